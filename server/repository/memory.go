package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"tenantdesk/server/domain"
)

// MemoryStore is the zero-dependency store used for demo environments
// and tests. Identifier generation and find-or-create both run under
// the store lock, so concurrent intakes cannot mint duplicate
// placeholder tenants.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int]domain.User
	properties map[int]domain.Property
	tenants    map[int]domain.Tenant
	messages   map[int]domain.Message

	nextUserID     int
	nextPropertyID int
	nextTenantID   int
	nextMessageID  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          map[int]domain.User{},
		properties:     map[int]domain.Property{},
		tenants:        map[int]domain.Tenant{},
		messages:       map[int]domain.Message{},
		nextUserID:     1,
		nextPropertyID: 1,
		nextTenantID:   1,
		nextMessageID:  1,
	}
}

func (s *MemoryStore) Close() error { return nil }

// --- users ---

func (s *MemoryStore) GetUser(_ context.Context, id int) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.nextUserID
	s.nextUserID++
	u.CreatedAt = time.Now()
	s.users[u.ID] = u
	return u, nil
}

// --- properties ---

func (s *MemoryStore) GetProperty(_ context.Context, id int) (domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListProperties(_ context.Context) ([]domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.Property, 0, len(s.properties))
	for _, p := range s.properties {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreateProperty(_ context.Context, p domain.Property) (domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextPropertyID
	s.nextPropertyID++
	p.CreatedAt = time.Now()
	s.properties[p.ID] = p
	return p, nil
}

// --- tenants ---

func (s *MemoryStore) GetTenant(_ context.Context, id int) (domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) GetTenantByPhone(_ context.Context, phone string) (domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantByPhoneLocked(phone)
}

func (s *MemoryStore) GetTenantByEmail(_ context.Context, email string) (domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantByEmailLocked(email)
}

func (s *MemoryStore) tenantByPhoneLocked(phone string) (domain.Tenant, error) {
	for _, t := range s.tenants {
		if t.Phone != "" && t.Phone == phone {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrNotFound
}

func (s *MemoryStore) tenantByEmailLocked(email string) (domain.Tenant, error) {
	for _, t := range s.tenants {
		if t.Email != "" && t.Email == email {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrNotFound
}

func (s *MemoryStore) ListTenants(_ context.Context) ([]domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreateTenant(_ context.Context, t domain.Tenant) (domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTenantLocked(t), nil
}

func (s *MemoryStore) createTenantLocked(t domain.Tenant) domain.Tenant {
	t.ID = s.nextTenantID
	s.nextTenantID++
	t.CreatedAt = time.Now()
	s.tenants[t.ID] = t
	return t
}

func (s *MemoryStore) FindOrCreateTenantByPhone(_ context.Context, phone string, template domain.Tenant) (domain.Tenant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, err := s.tenantByPhoneLocked(phone); err == nil {
		return existing, false, nil
	}
	template.Phone = phone
	return s.createTenantLocked(template), true, nil
}

func (s *MemoryStore) FindOrCreateTenantByEmail(_ context.Context, email string, template domain.Tenant) (domain.Tenant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, err := s.tenantByEmailLocked(email); err == nil {
		return existing, false, nil
	}
	template.Email = email
	return s.createTenantLocked(template), true, nil
}

// --- messages ---

func (s *MemoryStore) GetMessage(_ context.Context, id int) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.Message{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, m domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextMessageID
	s.nextMessageID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages[m.ID] = m
	return m, nil
}

func (s *MemoryStore) UpdateMessage(_ context.Context, id int, up domain.MessageUpdate) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return domain.Message{}, domain.ErrNotFound
	}
	if up.Content != nil {
		m.Content = *up.Content
	}
	if up.ResponseContent != nil {
		m.ResponseContent = *up.ResponseContent
	}
	if up.RespondedAt != nil {
		t := *up.RespondedAt
		m.RespondedAt = &t
	}
	if up.Status != nil {
		m.Status = *up.Status
	}
	if up.AssignedTo != nil {
		m.AssignedTo = *up.AssignedTo
	}
	s.messages[id] = m
	return m, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var propertyTenants map[int]struct{}
	if filter.PropertyID != nil {
		propertyTenants = map[int]struct{}{}
		for _, t := range s.tenants {
			if t.PropertyID == *filter.PropertyID {
				propertyTenants[t.ID] = struct{}{}
			}
		}
	}

	items := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if propertyTenants != nil {
			if _, ok := propertyTenants[m.TenantID]; !ok {
				continue
			}
		}
		if filter.Urgency != nil && m.Urgency != *filter.Urgency {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		if filter.TenantID != nil && m.TenantID != *filter.TenantID {
			continue
		}
		if filter.Category != nil && m.Category != *filter.Category {
			continue
		}
		if filter.Channel != nil && m.Channel != *filter.Channel {
			continue
		}
		items = append(items, m)
	}

	if filter.SortOrder == domain.SortOldest {
		sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	} else {
		sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	}
	return items, nil
}

func (s *MemoryStore) MessageStats(_ context.Context) (domain.MessageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	oneDayAgo := time.Now().Add(-24 * time.Hour)
	var stats domain.MessageStats
	for _, m := range s.messages {
		if m.Status != domain.StatusResolved {
			stats.Active++
			if m.Urgency == domain.UrgencyEmergency {
				stats.Emergency++
			}
		}
		if m.Status == domain.StatusOpen {
			stats.Pending++
		}
		if m.Status == domain.StatusResolved && !m.CreatedAt.Before(oneDayAgo) {
			stats.Resolved++
		}
	}
	return stats, nil
}
