package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantdesk/server/domain"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	email TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'property_manager',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS properties (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT NOT NULL,
	user_id INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS tenants (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	property_id INT NOT NULL DEFAULT 0,
	unit_number TEXT NOT NULL,
	user_id INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS tenants_phone_idx ON tenants(phone) WHERE phone <> '';
CREATE UNIQUE INDEX IF NOT EXISTS tenants_email_idx ON tenants(email) WHERE email <> '';
CREATE TABLE IF NOT EXISTS messages (
	id SERIAL PRIMARY KEY,
	tenant_id INT NOT NULL REFERENCES tenants(id),
	content TEXT NOT NULL,
	original_content TEXT NOT NULL,
	channel TEXT NOT NULL,
	urgency TEXT NOT NULL DEFAULT 'medium',
	category TEXT NOT NULL DEFAULT '',
	ai_summary TEXT NOT NULL DEFAULT '',
	ai_response TEXT NOT NULL DEFAULT '',
	ai_source TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	response_content TEXT NOT NULL DEFAULT '',
	responded_at TIMESTAMPTZ,
	assigned_to INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	metadata JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS messages_created_at_idx ON messages(created_at);
`

const messageColumns = `id, tenant_id, content, original_content, channel, urgency, category,
	ai_summary, ai_response, ai_source, status, response_content, responded_at, assigned_to, created_at, metadata`

// PostgresStore persists the directory and intake records; the schema
// is ensured on startup.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- users ---

func (s *PostgresStore) GetUser(ctx context.Context, id int) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, full_name, email, role, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users(username, full_name, email, role)
		VALUES($1, $2, $3, $4)
		RETURNING id, created_at
	`, u.Username, u.FullName, u.Email, u.Role).Scan(&u.ID, &u.CreatedAt)
	return u, err
}

// --- properties ---

func (s *PostgresStore) GetProperty(ctx context.Context, id int) (domain.Property, error) {
	var p domain.Property
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, address, user_id, created_at
		FROM properties WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Address, &p.UserID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) ListProperties(ctx context.Context) ([]domain.Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, address, user_id, created_at
		FROM properties ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Property, 0)
	for rows.Next() {
		var p domain.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.UserID, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO properties(name, address, user_id)
		VALUES($1, $2, $3)
		RETURNING id, created_at
	`, p.Name, p.Address, p.UserID).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

// --- tenants ---

const tenantColumns = `id, name, email, phone, property_id, unit_number, user_id, created_at`

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.PropertyID, &t.UnitNumber, &t.UserID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) GetTenant(ctx context.Context, id int) (domain.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (s *PostgresStore) GetTenantByPhone(ctx context.Context, phone string) (domain.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE phone = $1 AND phone <> ''`, phone))
}

func (s *PostgresStore) GetTenantByEmail(ctx context.Context, email string) (domain.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE email = $1 AND email <> ''`, email))
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tenants(name, email, phone, property_id, unit_number, user_id)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, t.Name, t.Email, t.Phone, t.PropertyID, t.UnitNumber, t.UserID).Scan(&t.ID, &t.CreatedAt)
	return t, err
}

// FindOrCreateTenantByPhone inserts atomically; a concurrent insert for
// the same phone loses the conflict and reads the winner's row.
func (s *PostgresStore) FindOrCreateTenantByPhone(ctx context.Context, phone string, template domain.Tenant) (domain.Tenant, bool, error) {
	template.Phone = phone
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tenants(name, email, phone, property_id, unit_number, user_id)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (phone) WHERE phone <> '' DO NOTHING
		RETURNING id, created_at
	`, template.Name, template.Email, template.Phone, template.PropertyID, template.UnitNumber, template.UserID).
		Scan(&template.ID, &template.CreatedAt)
	if err == nil {
		return template, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, false, err
	}
	existing, err := s.GetTenantByPhone(ctx, phone)
	return existing, false, err
}

func (s *PostgresStore) FindOrCreateTenantByEmail(ctx context.Context, email string, template domain.Tenant) (domain.Tenant, bool, error) {
	template.Email = email
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tenants(name, email, phone, property_id, unit_number, user_id)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) WHERE email <> '' DO NOTHING
		RETURNING id, created_at
	`, template.Name, template.Email, template.Phone, template.PropertyID, template.UnitNumber, template.UserID).
		Scan(&template.ID, &template.CreatedAt)
	if err == nil {
		return template, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, false, err
	}
	existing, err := s.GetTenantByEmail(ctx, email)
	return existing, false, err
}

// --- messages ---

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	var metadata []byte
	err := row.Scan(&m.ID, &m.TenantID, &m.Content, &m.OriginalContent, &m.Channel, &m.Urgency, &m.Category,
		&m.AISummary, &m.AIResponse, &m.AISource, &m.Status, &m.ResponseContent, &m.RespondedAt, &m.AssignedTo,
		&m.CreatedAt, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
			return domain.Message{}, fmt.Errorf("decode message metadata: %w", err)
		}
	}
	return m, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, id int) (domain.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode message metadata: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages(tenant_id, content, original_content, channel, urgency, category,
			ai_summary, ai_response, ai_source, status, response_content, assigned_to, metadata)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`, m.TenantID, m.Content, m.OriginalContent, m.Channel, m.Urgency, m.Category,
		m.AISummary, m.AIResponse, m.AISource, m.Status, m.ResponseContent, m.AssignedTo, metadata).
		Scan(&m.ID, &m.CreatedAt)
	return m, err
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, id int, up domain.MessageUpdate) (domain.Message, error) {
	sets := make([]string, 0, 5)
	args := []any{id}
	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if up.Content != nil {
		addSet("content", *up.Content)
	}
	if up.ResponseContent != nil {
		addSet("response_content", *up.ResponseContent)
	}
	if up.RespondedAt != nil {
		addSet("responded_at", *up.RespondedAt)
	}
	if up.Status != nil {
		addSet("status", *up.Status)
	}
	if up.AssignedTo != nil {
		addSet("assigned_to", *up.AssignedTo)
	}
	if len(sets) == 0 {
		return s.GetMessage(ctx, id)
	}

	query := `UPDATE messages SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + messageColumns
	return scanMessage(s.pool.QueryRow(ctx, query, args...))
}

func (s *PostgresStore) ListMessages(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT m.id, m.tenant_id, m.content, m.original_content, m.channel, m.urgency, m.category,
		m.ai_summary, m.ai_response, m.ai_source, m.status, m.response_content, m.responded_at, m.assigned_to,
		m.created_at, m.metadata FROM messages m`)
	args := []any{}
	clauses := []string{}
	addClause := func(expr string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}

	if filter.PropertyID != nil {
		sb.WriteString(" JOIN tenants t ON t.id = m.tenant_id")
		addClause("t.property_id = $%d", *filter.PropertyID)
	}
	if filter.Urgency != nil {
		addClause("m.urgency = $%d", *filter.Urgency)
	}
	if filter.Status != nil {
		addClause("m.status = $%d", *filter.Status)
	}
	if filter.TenantID != nil {
		addClause("m.tenant_id = $%d", *filter.TenantID)
	}
	if filter.Category != nil {
		addClause("m.category = $%d", *filter.Category)
	}
	if filter.Channel != nil {
		addClause("m.channel = $%d", *filter.Channel)
	}
	if len(clauses) > 0 {
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	if filter.SortOrder == domain.SortOldest {
		sb.WriteString(" ORDER BY m.created_at ASC, m.id ASC")
	} else {
		sb.WriteString(" ORDER BY m.created_at DESC, m.id DESC")
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *PostgresStore) MessageStats(ctx context.Context) (domain.MessageStats, error) {
	var stats domain.MessageStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'resolved'),
			COUNT(*) FILTER (WHERE urgency = 'emergency' AND status <> 'resolved'),
			COUNT(*) FILTER (WHERE status = 'open'),
			COUNT(*) FILTER (WHERE status = 'resolved' AND created_at >= NOW() - INTERVAL '24 hours')
		FROM messages
	`).Scan(&stats.Active, &stats.Emergency, &stats.Pending, &stats.Resolved)
	return stats, err
}
