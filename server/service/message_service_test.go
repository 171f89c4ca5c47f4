package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/server/domain"
	"tenantdesk/server/repository"
)

type stubCache struct {
	stats      domain.MessageStats
	hasStats   bool
	setCalls   int
	invalidate int
	deliveries []string
}

func (c *stubCache) GetStats(context.Context) (domain.MessageStats, bool) {
	return c.stats, c.hasStats
}

func (c *stubCache) SetStats(_ context.Context, stats domain.MessageStats) error {
	c.stats = stats
	c.hasStats = true
	c.setCalls++
	return nil
}

func (c *stubCache) InvalidateStats(context.Context) error {
	c.hasStats = false
	c.invalidate++
	return nil
}

func (c *stubCache) RecordDelivery(_ context.Context, sid string, _ time.Time) error {
	c.deliveries = append(c.deliveries, sid)
	return nil
}

func newMessageFixture(t *testing.T) (*MessageService, *repository.MemoryStore, *stubSMS, *stubCache, *stubEvents) {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedDemoData(context.Background(), store))

	smsSender := &stubSMS{}
	cache := &stubCache{}
	events := &stubEvents{}
	svc := NewMessageService(store, smsSender).WithCache(cache).WithEvents(events)
	return svc, store, smsSender, cache, events
}

func firstSeeded(t *testing.T, store *repository.MemoryStore, filter domain.MessageFilter) domain.Message {
	t.Helper()
	messages, err := store.ListMessages(context.Background(), filter)
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	return messages[0]
}

func TestRespondSendsSMSAndUpdates(t *testing.T) {
	svc, store, smsSender, cache, events := newMessageFixture(t)

	channel := domain.ChannelSMS
	target := firstSeeded(t, store, domain.MessageFilter{Channel: &channel})

	updated, err := svc.Respond(context.Background(), target.ID, "A plumber arrives in 20 minutes.")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusResolved, updated.Status)
	assert.Equal(t, "A plumber arrives in 20 minutes.", updated.ResponseContent)
	require.NotNil(t, updated.RespondedAt)

	require.Len(t, smsSender.calls, 1)
	assert.Equal(t, target.Metadata.Phone, smsSender.calls[0].To)
	assert.Equal(t, []string{"SM-test-sid"}, cache.deliveries)
	assert.Equal(t, 1, cache.invalidate)
	assert.Len(t, events.updated, 1)
}

func TestRespondEmailDoesNotSendSMS(t *testing.T) {
	svc, store, smsSender, _, _ := newMessageFixture(t)

	channel := domain.ChannelEmail
	target := firstSeeded(t, store, domain.MessageFilter{Channel: &channel})

	updated, err := svc.Respond(context.Background(), target.ID, "Electrician booked for Thursday.")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, updated.Status)
	assert.Empty(t, smsSender.calls)
}

func TestRespondUnknownMessage(t *testing.T) {
	svc, _, _, _, _ := newMessageFixture(t)
	_, err := svc.Respond(context.Background(), 9999, "hello")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssignValidatesUser(t *testing.T) {
	svc, store, _, _, _ := newMessageFixture(t)
	target := firstSeeded(t, store, domain.MessageFilter{})

	updated, err := svc.Assign(context.Background(), target.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.AssignedTo)
	assert.Equal(t, domain.StatusInProgress, updated.Status)

	_, err = svc.Assign(context.Background(), target.ID, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveMessage(t *testing.T) {
	svc, store, _, _, events := newMessageFixture(t)
	target := firstSeeded(t, store, domain.MessageFilter{})

	updated, err := svc.Resolve(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, updated.Status)
	assert.Len(t, events.updated, 1)
}

func TestUpdateStatusRejectsInvalid(t *testing.T) {
	svc, store, _, _, _ := newMessageFixture(t)
	target := firstSeeded(t, store, domain.MessageFilter{})

	_, err := svc.UpdateStatus(context.Background(), target.ID, domain.Status("shredded"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := svc.UpdateStatus(context.Background(), target.ID, domain.StatusEscalatedVendor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalatedVendor, updated.Status)
}

func TestStatsUsesCache(t *testing.T) {
	svc, _, _, cache, _ := newMessageFixture(t)

	first, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, first.Active)
	assert.Equal(t, 1, cache.setCalls)

	// second read comes from the cache, not the store
	cache.stats.Active = 99
	second, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 99, second.Active)
	assert.Equal(t, 1, cache.setCalls)
}

func TestListMessagesRejectsInvalidFilter(t *testing.T) {
	svc, _, _, _, _ := newMessageFixture(t)

	bad := domain.Urgency("catastrophic")
	_, err := svc.ListMessages(context.Background(), domain.MessageFilter{Urgency: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestCreateTenantValidation(t *testing.T) {
	svc, store, _, _, _ := newMessageFixture(t)

	_, err := svc.CreateTenant(context.Background(), domain.Tenant{Name: "No Unit"})
	assert.ErrorIs(t, err, ErrMissingTenantFields)

	_, err = svc.CreateTenant(context.Background(), domain.Tenant{
		Name:       "New Tenant",
		UnitNumber: "7F",
		PropertyID: 999,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	properties, err := store.ListProperties(context.Background())
	require.NoError(t, err)
	created, err := svc.CreateTenant(context.Background(), domain.Tenant{
		Name:       "New Tenant",
		UnitNumber: "7F",
		PropertyID: properties[0].ID,
		Phone:      "+14155550999",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
}

func TestSendTestSMSRecordsDelivery(t *testing.T) {
	svc, _, smsSender, cache, _ := newMessageFixture(t)

	sid, err := svc.TestSMS(context.Background(), "+14155550101", "test message")
	require.NoError(t, err)
	assert.Equal(t, "SM-test-sid", sid)
	require.Len(t, smsSender.calls, 1)
	assert.Equal(t, []string{"SM-test-sid"}, cache.deliveries)
}
