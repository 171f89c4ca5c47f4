package service

import (
	"context"
	"errors"
	"time"

	"tenantdesk/server/ai"
	"tenantdesk/server/common/log"
	"tenantdesk/server/domain"
)

var (
	ErrMissingSender  = errors.New("missing sender")
	ErrMissingContent = errors.New("missing message content")
	ErrUnknownSender  = errors.New("unknown sender")
)

// Classifier triages free text; it never fails, only degrades.
type Classifier interface {
	Classify(ctx context.Context, text string) ai.ClassifyResult
}

// Responder drafts the auto-reply; it never fails, only degrades.
type Responder interface {
	Draft(ctx context.Context, tenantName, text string, cls ai.Classification) ai.ReplyResult
}

// IntakeRequest is the normalized form every channel adapter produces.
type IntakeRequest struct {
	Channel domain.Channel
	Sender  string // phone for sms/voicemail, address for email
	Content string // text stored on the message

	// AnalysisText is what the classifier sees; for email it includes
	// the subject line. Empty means use Content.
	AnalysisText string

	Subject      string
	RecordingURL string
	RecordingSID string

	// AllowPlaceholder controls the unknown-sender branch: SMS and
	// email intakes mint a placeholder tenant, voicemail declines.
	AllowPlaceholder bool
}

type IntakeResult struct {
	Message        domain.Message
	Tenant         domain.Tenant
	TenantCreated  bool
	Classification ai.ClassifyResult
	Reply          ai.ReplyResult
	ReplySent      bool
}

// IntakeService runs the end-to-end pipeline for one inbound contact:
// identify, classify, draft, persist, dispatch, finalize. Each webhook
// invocation gets exactly one pipeline run; there is no queueing.
type IntakeService struct {
	store      Store
	directory  *TenantDirectory
	classifier Classifier
	responder  Responder
	sms        SMSSender
	email      EmailSender
	alerts     AlertSink
	events     Broadcaster
	cache      DeliveryCache
}

func NewIntakeService(store Store, directory *TenantDirectory, classifier Classifier, responder Responder, sms SMSSender, email EmailSender) *IntakeService {
	return &IntakeService{
		store:      store,
		directory:  directory,
		classifier: classifier,
		responder:  responder,
		sms:        sms,
		email:      email,
	}
}

// WithAlerts attaches the emergency alert sink.
func (s *IntakeService) WithAlerts(alerts AlertSink) *IntakeService {
	s.alerts = alerts
	return s
}

// WithEvents attaches the dashboard event broadcaster.
func (s *IntakeService) WithEvents(events Broadcaster) *IntakeService {
	s.events = events
	return s
}

// WithCache attaches the delivery/stats cache.
func (s *IntakeService) WithCache(cache DeliveryCache) *IntakeService {
	s.cache = cache
	return s
}

func (s *IntakeService) Process(ctx context.Context, req IntakeRequest) (IntakeResult, error) {
	if req.Sender == "" {
		return IntakeResult{}, ErrMissingSender
	}
	if req.Content == "" {
		return IntakeResult{}, ErrMissingContent
	}

	tenant, created, err := s.identify(ctx, req)
	if err != nil {
		return IntakeResult{}, err
	}

	analysis := req.AnalysisText
	if analysis == "" {
		analysis = req.Content
	}

	// Classification and draft never propagate AI failures; the
	// fallback arms absorb them so every intake yields a message.
	cls := s.classifier.Classify(ctx, analysis)
	reply := s.responder.Draft(ctx, tenant.Name, analysis, cls.Classification)

	msg, err := s.store.CreateMessage(ctx, domain.Message{
		TenantID:        tenant.ID,
		Content:         req.Content,
		OriginalContent: analysis,
		Channel:         req.Channel,
		Urgency:         cls.Urgency,
		Category:        cls.Category,
		AISummary:       cls.Summary,
		AIResponse:      reply.Text,
		AISource:        cls.Source,
		Status:          domain.StatusOpen,
		Metadata:        s.buildMetadata(ctx, req, tenant),
	})
	if err != nil {
		return IntakeResult{}, err
	}
	s.broadcastCreated(msg)
	s.invalidateStats(ctx)

	if cls.Urgency == domain.UrgencyEmergency && s.alerts != nil {
		if err := s.alerts.PublishAlert(ctx, msg); err != nil {
			log.Errorf("publish emergency alert for message %d: %v", msg.ID, err)
		}
	}

	// Delivery failure is logged, never rolled back: the request is
	// recorded even when the acknowledgment cannot be sent.
	sent := s.dispatch(ctx, req, tenant, cls, reply.Text)
	if sent {
		msg, err = s.finalize(ctx, msg.ID, cls.Urgency, reply.Text)
		if err != nil {
			log.Errorf("finalize message %d after dispatch: %v", msg.ID, err)
		}
	}

	return IntakeResult{
		Message:        msg,
		Tenant:         tenant,
		TenantCreated:  created,
		Classification: cls,
		Reply:          reply,
		ReplySent:      sent,
	}, nil
}

func (s *IntakeService) identify(ctx context.Context, req IntakeRequest) (domain.Tenant, bool, error) {
	switch req.Channel {
	case domain.ChannelEmail:
		if req.AllowPlaceholder {
			return s.directory.ResolveByEmail(ctx, req.Sender)
		}
		tenant, err := s.directory.FindByEmail(ctx, req.Sender)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Tenant{}, false, ErrUnknownSender
		}
		return tenant, false, err
	default:
		if req.AllowPlaceholder {
			return s.directory.ResolveByPhone(ctx, req.Sender)
		}
		tenant, err := s.directory.FindByPhone(ctx, req.Sender)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Tenant{}, false, ErrUnknownSender
		}
		return tenant, false, err
	}
}

func (s *IntakeService) buildMetadata(ctx context.Context, req IntakeRequest, tenant domain.Tenant) domain.MessageMetadata {
	meta := domain.MessageMetadata{
		TenantName: tenant.Name,
		UnitNumber: tenant.UnitNumber,
	}
	if tenant.PropertyID != 0 {
		if property, err := s.store.GetProperty(ctx, tenant.PropertyID); err == nil {
			meta.PropertyName = property.Name
		} else {
			meta.PropertyName = "Unknown Property"
		}
	} else {
		meta.PropertyName = "Unknown Property"
	}

	switch req.Channel {
	case domain.ChannelEmail:
		meta.Email = req.Sender
		meta.Subject = req.Subject
	case domain.ChannelVoicemail:
		meta.Phone = req.Sender
		meta.RecordingURL = req.RecordingURL
		meta.RecordingSID = req.RecordingSID
	default:
		meta.Phone = req.Sender
	}
	return meta
}

func (s *IntakeService) dispatch(ctx context.Context, req IntakeRequest, tenant domain.Tenant, cls ai.ClassifyResult, reply string) bool {
	switch req.Channel {
	case domain.ChannelSMS:
		return s.sendSMSReply(ctx, req.Sender, reply)

	case domain.ChannelVoicemail:
		if tenant.Phone == "" {
			log.Warnf("voicemail from tenant %d has no phone on file, skipping auto-reply", tenant.ID)
			return false
		}
		confirmation := "Thanks for your voicemail. We've flagged this as " + string(cls.Urgency) + ". We'll follow up shortly."
		if !s.sendSMSReply(ctx, tenant.Phone, confirmation) {
			return false
		}
		prefix := "We received your voicemail. "
		if cls.Urgency == domain.UrgencyEmergency {
			prefix = "We received your voicemail and identified it as urgent. "
		}
		return s.sendSMSReply(ctx, tenant.Phone, prefix+reply)

	case domain.ChannelEmail:
		subject := replySubject(req.Subject, cls.Urgency)
		if err := s.email.Send(ctx, req.Sender, subject, reply, ""); err != nil {
			log.Errorf("auto-reply email to %s failed: %v", req.Sender, err)
			return false
		}
		return true
	}
	return false
}

func (s *IntakeService) sendSMSReply(ctx context.Context, to, body string) bool {
	sid, err := s.sms.Send(ctx, to, body)
	if err != nil {
		log.Errorf("auto-reply sms to %s failed: %v", to, err)
		return false
	}
	if s.cache != nil {
		if err := s.cache.RecordDelivery(ctx, sid, time.Now().UTC()); err != nil {
			log.Warnf("record delivery %s: %v", sid, err)
		}
	}
	return true
}

func (s *IntakeService) finalize(ctx context.Context, id int, urgency domain.Urgency, reply string) (domain.Message, error) {
	now := time.Now()
	status := domain.StatusOpen
	if urgency == domain.UrgencyEmergency {
		status = domain.StatusInProgress
	}
	msg, err := s.store.UpdateMessage(ctx, id, domain.MessageUpdate{
		ResponseContent: &reply,
		RespondedAt:     &now,
		Status:          &status,
	})
	if err == nil {
		s.broadcastUpdated(msg)
		s.invalidateStats(ctx)
	}
	return msg, err
}

func (s *IntakeService) broadcastCreated(msg domain.Message) {
	if s.events != nil {
		s.events.MessageCreated(msg)
	}
}

func (s *IntakeService) broadcastUpdated(msg domain.Message) {
	if s.events != nil {
		s.events.MessageUpdated(msg)
	}
}

func (s *IntakeService) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.InvalidateStats(ctx); err != nil {
			log.Debugf("invalidate stats cache: %v", err)
		}
	}
}

func replySubject(subject string, urgency domain.Urgency) string {
	if subject == "" {
		subject = "Your Maintenance Request"
	}
	out := "RE: " + subject
	if urgency == domain.UrgencyEmergency {
		out += " - URGENT"
	}
	return out
}
