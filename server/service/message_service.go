package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tenantdesk/server/common/log"
	"tenantdesk/server/domain"
)

var (
	ErrMissingTenantFields = errors.New("tenant name and unit number required")
	ErrInvalidStatus       = errors.New("invalid status")
)

// MessageService covers the dashboard side of the API: listing and
// mutating messages, the stats cards, and the tenant/property lookups
// the intake UI needs.
type MessageService struct {
	store  Store
	sms    SMSSender
	events Broadcaster
	cache  DeliveryCache
}

func NewMessageService(store Store, sms SMSSender) *MessageService {
	return &MessageService{store: store, sms: sms}
}

func (s *MessageService) WithEvents(events Broadcaster) *MessageService {
	s.events = events
	return s
}

func (s *MessageService) WithCache(cache DeliveryCache) *MessageService {
	s.cache = cache
	return s
}

func (s *MessageService) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, filter)
}

func (s *MessageService) GetMessage(ctx context.Context, id int) (domain.Message, error) {
	return s.store.GetMessage(ctx, id)
}

// Stats serves the dashboard header cards, cached for a short TTL so a
// busy dashboard does not hammer the aggregate query.
func (s *MessageService) Stats(ctx context.Context) (domain.MessageStats, error) {
	if s.cache != nil {
		if stats, ok := s.cache.GetStats(ctx); ok {
			return stats, nil
		}
	}
	stats, err := s.store.MessageStats(ctx)
	if err != nil {
		return domain.MessageStats{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetStats(ctx, stats); err != nil {
			log.Debugf("cache stats: %v", err)
		}
	}
	return stats, nil
}

// Respond records a manual manager reply and closes the ticket. SMS
// and voicemail replies go back out as texts to the phone on file;
// email messages get no outbound send here, only the record.
func (s *MessageService) Respond(ctx context.Context, id int, response string) (domain.Message, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}

	if msg.Channel != domain.ChannelEmail && msg.Metadata.Phone != "" {
		sid, err := s.sms.Send(ctx, msg.Metadata.Phone, response)
		if err != nil {
			return domain.Message{}, err
		}
		if s.cache != nil {
			if err := s.cache.RecordDelivery(ctx, sid, time.Now().UTC()); err != nil {
				log.Warnf("record delivery %s: %v", sid, err)
			}
		}
	}

	now := time.Now()
	status := domain.StatusResolved
	return s.applyUpdate(ctx, id, domain.MessageUpdate{
		ResponseContent: &response,
		RespondedAt:     &now,
		Status:          &status,
	})
}

// Assign hands the message to a manager and marks it in progress.
func (s *MessageService) Assign(ctx context.Context, id, userID int) (domain.Message, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.Message{}, err
	}
	status := domain.StatusInProgress
	return s.applyUpdate(ctx, id, domain.MessageUpdate{AssignedTo: &userID, Status: &status})
}

func (s *MessageService) Resolve(ctx context.Context, id int) (domain.Message, error) {
	status := domain.StatusResolved
	return s.applyUpdate(ctx, id, domain.MessageUpdate{Status: &status})
}

func (s *MessageService) UpdateStatus(ctx context.Context, id int, status domain.Status) (domain.Message, error) {
	if !status.Valid() {
		return domain.Message{}, ErrInvalidStatus
	}
	return s.applyUpdate(ctx, id, domain.MessageUpdate{Status: &status})
}

func (s *MessageService) applyUpdate(ctx context.Context, id int, up domain.MessageUpdate) (domain.Message, error) {
	msg, err := s.store.UpdateMessage(ctx, id, up)
	if err != nil {
		return domain.Message{}, err
	}
	if s.events != nil {
		s.events.MessageUpdated(msg)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateStats(ctx); err != nil {
			log.Debugf("invalidate stats cache: %v", err)
		}
	}
	return msg, nil
}

func (s *MessageService) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return s.store.ListTenants(ctx)
}

func (s *MessageService) CreateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.UnitNumber) == "" {
		return domain.Tenant{}, ErrMissingTenantFields
	}
	if t.PropertyID != 0 {
		if _, err := s.store.GetProperty(ctx, t.PropertyID); err != nil {
			return domain.Tenant{}, err
		}
	}
	return s.store.CreateTenant(ctx, t)
}

func (s *MessageService) ListProperties(ctx context.Context) ([]domain.Property, error) {
	return s.store.ListProperties(ctx)
}

func (s *MessageService) CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Property{}, errors.New("property name required")
	}
	return s.store.CreateProperty(ctx, p)
}

// TestSMS exercises the delivery path end to end from the dashboard.
func (s *MessageService) TestSMS(ctx context.Context, to, body string) (string, error) {
	sid, err := s.sms.Send(ctx, to, body)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.RecordDelivery(ctx, sid, time.Now().UTC()); err != nil {
			log.Warnf("record delivery %s: %v", sid, err)
		}
	}
	return sid, nil
}
