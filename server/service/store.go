package service

import (
	"context"
	"time"

	"tenantdesk/server/domain"
)

// Store is the persistence contract the services run against. Both the
// Postgres and the in-memory implementation satisfy it; identifier
// generation lives behind this interface.
type Store interface {
	GetUser(ctx context.Context, id int) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	GetProperty(ctx context.Context, id int) (domain.Property, error)
	ListProperties(ctx context.Context) ([]domain.Property, error)
	CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error)

	GetTenant(ctx context.Context, id int) (domain.Tenant, error)
	GetTenantByPhone(ctx context.Context, phone string) (domain.Tenant, error)
	GetTenantByEmail(ctx context.Context, email string) (domain.Tenant, error)
	ListTenants(ctx context.Context) ([]domain.Tenant, error)
	CreateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error)
	FindOrCreateTenantByPhone(ctx context.Context, phone string, template domain.Tenant) (domain.Tenant, bool, error)
	FindOrCreateTenantByEmail(ctx context.Context, email string, template domain.Tenant) (domain.Tenant, bool, error)

	GetMessage(ctx context.Context, id int) (domain.Message, error)
	CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error)
	UpdateMessage(ctx context.Context, id int, up domain.MessageUpdate) (domain.Message, error)
	ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)
	MessageStats(ctx context.Context) (domain.MessageStats, error)

	Close() error
}

// SMSSender delivers a text and returns the vendor message identifier.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// EmailSender delivers an email reply.
type EmailSender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// AlertSink receives emergency intake events; nil-able collaborator.
type AlertSink interface {
	PublishAlert(ctx context.Context, msg domain.Message) error
}

// Broadcaster pushes message lifecycle events to live dashboard
// sessions; nil-able collaborator.
type Broadcaster interface {
	MessageCreated(msg domain.Message)
	MessageUpdated(msg domain.Message)
}

// DeliveryCache records outbound send identifiers and caches the stats
// aggregate; nil-able collaborator.
type DeliveryCache interface {
	GetStats(ctx context.Context) (domain.MessageStats, bool)
	SetStats(ctx context.Context, stats domain.MessageStats) error
	InvalidateStats(ctx context.Context) error
	RecordDelivery(ctx context.Context, sid string, sentAt time.Time) error
}
