package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/server/ai"
	"tenantdesk/server/domain"
	"tenantdesk/server/repository"
)

type stubClassifier struct {
	result ai.ClassifyResult
}

func (s stubClassifier) Classify(context.Context, string) ai.ClassifyResult {
	return s.result
}

type stubResponder struct {
	result ai.ReplyResult
}

func (s stubResponder) Draft(context.Context, string, string, ai.Classification) ai.ReplyResult {
	return s.result
}

type smsCall struct {
	To   string
	Body string
}

type stubSMS struct {
	calls    []smsCall
	failNext bool
}

func (s *stubSMS) Send(_ context.Context, to, body string) (string, error) {
	if s.failNext {
		s.failNext = false
		return "", errors.New("simulated send failure")
	}
	s.calls = append(s.calls, smsCall{To: to, Body: body})
	return "SM-test-sid", nil
}

type emailCall struct {
	To      string
	Subject string
	Text    string
}

type stubEmail struct {
	calls []emailCall
}

func (s *stubEmail) Send(_ context.Context, to, subject, text, _ string) error {
	s.calls = append(s.calls, emailCall{To: to, Subject: subject, Text: text})
	return nil
}

type stubAlerts struct {
	published []domain.Message
}

func (s *stubAlerts) PublishAlert(_ context.Context, msg domain.Message) error {
	s.published = append(s.published, msg)
	return nil
}

type stubEvents struct {
	created []domain.Message
	updated []domain.Message
}

func (s *stubEvents) MessageCreated(msg domain.Message) { s.created = append(s.created, msg) }
func (s *stubEvents) MessageUpdated(msg domain.Message) { s.updated = append(s.updated, msg) }

func modelResult(urgency domain.Urgency, category, summary string) ai.ClassifyResult {
	return ai.ClassifyResult{
		Classification: ai.Classification{Urgency: urgency, Category: category, Summary: summary},
		Source:         domain.AISourceModel,
	}
}

func newIntakeFixture(t *testing.T, cls ai.ClassifyResult, reply string) (*IntakeService, *repository.MemoryStore, *stubSMS, *stubEmail, *stubAlerts, *stubEvents) {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedDemoData(context.Background(), store))

	smsSender := &stubSMS{}
	emailSender := &stubEmail{}
	alerts := &stubAlerts{}
	events := &stubEvents{}

	intake := NewIntakeService(
		store,
		NewTenantDirectory(store),
		stubClassifier{result: cls},
		stubResponder{result: ai.ReplyResult{Text: reply, Source: cls.Source}},
		smsSender,
		emailSender,
	).WithAlerts(alerts).WithEvents(events)

	return intake, store, smsSender, emailSender, alerts, events
}

func TestIntakeSMSEmergency(t *testing.T) {
	reply := "David, our emergency plumber is on the way to 3B."
	intake, store, smsSender, _, alerts, events := newIntakeFixture(t,
		modelResult(domain.UrgencyEmergency, "plumbing", "Gas smell reported near the kitchen"), reply)

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelSMS,
		Sender:           "+14155550101",
		Content:          "I smell gas in my kitchen, please help!",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)

	assert.False(t, result.TenantCreated)
	assert.Equal(t, "David Wilson", result.Tenant.Name)
	assert.True(t, result.ReplySent)

	stored, err := store.GetMessage(context.Background(), result.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyEmergency, stored.Urgency)
	assert.Equal(t, "plumbing", stored.Category)
	assert.Equal(t, domain.AISourceModel, stored.AISource)
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.Equal(t, reply, stored.ResponseContent)
	require.NotNil(t, stored.RespondedAt)

	assert.Equal(t, "+14155550101", stored.Metadata.Phone)
	assert.Equal(t, "David Wilson", stored.Metadata.TenantName)
	assert.Equal(t, "3B", stored.Metadata.UnitNumber)
	assert.Equal(t, "Sunset Apartments", stored.Metadata.PropertyName)

	require.Len(t, smsSender.calls, 1)
	assert.Equal(t, "+14155550101", smsSender.calls[0].To)
	assert.Equal(t, reply, smsSender.calls[0].Body)

	require.Len(t, alerts.published, 1)
	assert.Equal(t, stored.ID, alerts.published[0].ID)

	assert.Len(t, events.created, 1)
	assert.Len(t, events.updated, 1)
}

func TestIntakeSMSNonEmergencyStaysOpen(t *testing.T) {
	intake, store, _, _, alerts, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyLow, "general", "Question about pool hours"), "The pool reopens Monday.")

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelSMS,
		Sender:           "+14155550104",
		Content:          "When does the pool reopen?",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)

	stored, err := store.GetMessage(context.Background(), result.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status)
	assert.Empty(t, alerts.published)
}

func TestIntakeSMSUnknownSenderGetsPlaceholder(t *testing.T) {
	intake, store, smsSender, _, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyMedium, "maintenance", "Broken mailbox"), "We'll fix the mailbox this week.")

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelSMS,
		Sender:           "+19995550123",
		Content:          "my mailbox door fell off",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)

	assert.True(t, result.TenantCreated)
	assert.Equal(t, "Tenant (+19995550123)", result.Tenant.Name)
	assert.True(t, strings.HasPrefix(result.Tenant.UnitNumber, "TMP-"))

	tenant, err := store.GetTenantByPhone(context.Background(), "+19995550123")
	require.NoError(t, err)
	assert.Equal(t, result.Tenant.ID, tenant.ID)

	require.Len(t, smsSender.calls, 1)
	assert.Equal(t, "+19995550123", smsSender.calls[0].To)
}

func TestIntakeEmailRepliesWithSubject(t *testing.T) {
	intake, store, _, emailSender, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyMedium, "electrical", "Outlets not working"), "An electrician will visit Thursday.")

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelEmail,
		Sender:           "michael@example.com",
		Content:          "several outlets stopped working",
		AnalysisText:     "Subject: Outlet issue\n\nseveral outlets stopped working",
		Subject:          "Outlet issue",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)

	assert.False(t, result.TenantCreated)
	stored, err := store.GetMessage(context.Background(), result.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, "michael@example.com", stored.Metadata.Email)
	assert.Equal(t, "Outlet issue", stored.Metadata.Subject)
	assert.Equal(t, "Subject: Outlet issue\n\nseveral outlets stopped working", stored.OriginalContent)

	require.Len(t, emailSender.calls, 1)
	assert.Equal(t, "michael@example.com", emailSender.calls[0].To)
	assert.Equal(t, "RE: Outlet issue", emailSender.calls[0].Subject)
}

func TestIntakeEmailEmergencySubjectFlagged(t *testing.T) {
	intake, _, _, emailSender, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyEmergency, "plumbing", "Ceiling leaking heavily"), "Help is on the way.")

	_, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelEmail,
		Sender:           "michael@example.com",
		Content:          "water pouring through my ceiling",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)

	require.Len(t, emailSender.calls, 1)
	assert.Equal(t, "RE: Your Maintenance Request - URGENT", emailSender.calls[0].Subject)
}

func TestIntakeVoicemailSendsConfirmationThenReply(t *testing.T) {
	reply := "Lisa, an HVAC technician is booked for today."
	intake, store, smsSender, _, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyHigh, "hvac", "AC not working"), reply)

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:      domain.ChannelVoicemail,
		Sender:       "+14155550102",
		Content:      "my air conditioning stopped working",
		RecordingURL: "https://recordings.example.com/RE123",
		RecordingSID: "RE123",
	})
	require.NoError(t, err)

	stored, err := store.GetMessage(context.Background(), result.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelVoicemail, stored.Channel)
	assert.Equal(t, "https://recordings.example.com/RE123", stored.Metadata.RecordingURL)
	assert.Equal(t, "RE123", stored.Metadata.RecordingSID)

	require.Len(t, smsSender.calls, 2)
	assert.Contains(t, smsSender.calls[0].Body, "Thanks for your voicemail. We've flagged this as high.")
	assert.Equal(t, "We received your voicemail. "+reply, smsSender.calls[1].Body)
}

func TestIntakeVoicemailEmergencyPrefix(t *testing.T) {
	reply := "A plumber has been dispatched."
	intake, _, smsSender, _, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyEmergency, "plumbing", "Flooding"), reply)

	_, err := intake.Process(context.Background(), IntakeRequest{
		Channel: domain.ChannelVoicemail,
		Sender:  "+14155550101",
		Content: "my apartment is flooding",
	})
	require.NoError(t, err)

	require.Len(t, smsSender.calls, 2)
	assert.Equal(t, "We received your voicemail and identified it as urgent. "+reply, smsSender.calls[1].Body)
}

func TestIntakeVoicemailUnknownSenderDeclined(t *testing.T) {
	intake, store, smsSender, _, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyHigh, "maintenance", "n/a"), "reply")

	_, err := intake.Process(context.Background(), IntakeRequest{
		Channel: domain.ChannelVoicemail,
		Sender:  "+19990001111",
		Content: "hello, my sink is broken",
	})
	require.ErrorIs(t, err, ErrUnknownSender)
	assert.Empty(t, smsSender.calls)

	messages, err := store.ListMessages(context.Background(), domain.MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, messages, 4) // only the seeded ones
}

func TestIntakeDeliveryFailureKeepsMessage(t *testing.T) {
	intake, store, smsSender, _, _, events := newIntakeFixture(t,
		modelResult(domain.UrgencyMedium, "maintenance", "Dripping faucet"), "We'll send someone.")
	smsSender.failNext = true

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelSMS,
		Sender:           "+14155550101",
		Content:          "faucet is dripping",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)
	assert.False(t, result.ReplySent)

	stored, err := store.GetMessage(context.Background(), result.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, stored.Status)
	assert.Empty(t, stored.ResponseContent)
	assert.Nil(t, stored.RespondedAt)

	assert.Len(t, events.created, 1)
	assert.Empty(t, events.updated)
}

func TestIntakeValidatesInput(t *testing.T) {
	intake, _, _, _, _, _ := newIntakeFixture(t,
		modelResult(domain.UrgencyLow, "general", "n/a"), "reply")

	_, err := intake.Process(context.Background(), IntakeRequest{
		Channel: domain.ChannelSMS,
		Content: "no sender",
	})
	assert.ErrorIs(t, err, ErrMissingSender)

	_, err = intake.Process(context.Background(), IntakeRequest{
		Channel: domain.ChannelSMS,
		Sender:  "+14155550101",
	})
	assert.ErrorIs(t, err, ErrMissingContent)
}

func TestIntakeFallbackClassificationTagged(t *testing.T) {
	fallback := ai.ClassifyResult{
		Classification: ai.Classification{
			Urgency:  domain.UrgencyEmergency,
			Category: "maintenance",
			Summary:  "Tenant reported an issue that needs attention",
		},
		Source: domain.AISourceFallback,
	}
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedDemoData(context.Background(), store))

	smsSender := &stubSMS{}
	intake := NewIntakeService(
		store,
		NewTenantDirectory(store),
		stubClassifier{result: fallback},
		stubResponder{result: ai.ReplyResult{Text: ai.FallbackReply, Source: domain.AISourceFallback}},
		smsSender,
		&stubEmail{},
	)

	result, err := intake.Process(context.Background(), IntakeRequest{
		Channel:          domain.ChannelSMS,
		Sender:           "+14155550101",
		Content:          "FLOOD in the basement",
		AllowPlaceholder: true,
	})
	require.NoError(t, err)

	stored, err := store.GetMessage(context.Background(), result.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AISourceFallback, stored.AISource)
	assert.Equal(t, domain.UrgencyEmergency, stored.Urgency)
	assert.Equal(t, ai.FallbackReply, stored.AIResponse)

	require.Len(t, smsSender.calls, 1)
	assert.Equal(t, ai.FallbackReply, smsSender.calls[0].Body)
}
