package domain

import "time"

type Channel string
type Urgency string
type Status string
type SortOrder string

const (
	ChannelSMS       Channel = "sms"
	ChannelEmail     Channel = "email"
	ChannelVoicemail Channel = "voicemail"
)

const (
	UrgencyEmergency Urgency = "emergency"
	UrgencyHigh      Urgency = "high"
	UrgencyMedium    Urgency = "medium"
	UrgencyLow       Urgency = "low"
)

const (
	StatusOpen            Status = "open"
	StatusInProgress      Status = "in_progress"
	StatusResolved        Status = "resolved"
	StatusEscalatedVendor Status = "escalated_vendor"
	StatusPendingRepair   Status = "pending_repair"
)

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelVoicemail:
		return true
	}
	return false
}

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyEmergency, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusEscalatedVendor, StatusPendingRepair:
		return true
	}
	return false
}

// User is a property manager account; messages are assigned to users.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Property struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	UserID    int       `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Tenant struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	PropertyID int       `json:"propertyId,omitempty"`
	UnitNumber string    `json:"unitNumber"`
	UserID     int       `json:"userId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MessageMetadata carries channel-specific context alongside shared
// display fields resolved at intake time. Exactly one of the channel
// sections is populated per message.
type MessageMetadata struct {
	TenantName   string `json:"tenantName,omitempty"`
	UnitNumber   string `json:"unitNumber,omitempty"`
	PropertyName string `json:"propertyName,omitempty"`

	// sms / voicemail
	Phone        string `json:"phone,omitempty"`
	RecordingURL string `json:"recordingUrl,omitempty"`
	RecordingSID string `json:"recordingSid,omitempty"`

	// email
	Email   string `json:"email,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// AISource distinguishes genuine model output from the fallback
// substituted when the model call fails or returns garbage.
const (
	AISourceModel    = "ai"
	AISourceFallback = "fallback"
)

type Message struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenantId"`
	Content         string          `json:"content"`
	OriginalContent string          `json:"originalContent"`
	Channel         Channel         `json:"channel"`
	Urgency         Urgency         `json:"urgency"`
	Category        string          `json:"category,omitempty"`
	AISummary       string          `json:"aiSummary,omitempty"`
	AIResponse      string          `json:"aiResponse,omitempty"`
	AISource        string          `json:"aiSource,omitempty"`
	Status          Status          `json:"status"`
	ResponseContent string          `json:"responseContent,omitempty"`
	RespondedAt     *time.Time      `json:"respondedAt,omitempty"`
	AssignedTo      int             `json:"assignedTo,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	Metadata        MessageMetadata `json:"metadata"`
}

// MessageUpdate is a partial update; nil fields are left untouched.
type MessageUpdate struct {
	Content         *string
	ResponseContent *string
	RespondedAt     *time.Time
	Status          *Status
	AssignedTo      *int
}

type MessageFilter struct {
	PropertyID *int
	Urgency    *Urgency
	Status     *Status
	TenantID   *int
	Category   *string
	Channel    *Channel
	SortOrder  SortOrder
}

func (f MessageFilter) Validate() error {
	if f.Urgency != nil && !f.Urgency.Valid() {
		return ErrInvalidFilter
	}
	if f.Status != nil && !f.Status.Valid() {
		return ErrInvalidFilter
	}
	if f.Channel != nil && !f.Channel.Valid() {
		return ErrInvalidFilter
	}
	if f.SortOrder != "" && f.SortOrder != SortNewest && f.SortOrder != SortOldest {
		return ErrInvalidFilter
	}
	return nil
}

// MessageStats backs the dashboard header cards. Resolved counts the
// last 24 hours only.
type MessageStats struct {
	Active    int `json:"active"`
	Emergency int `json:"emergency"`
	Pending   int `json:"pending"`
	Resolved  int `json:"resolved"`
}
