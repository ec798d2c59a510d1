package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/chatflow-ai/chatflow/pkg/models"
)

// PostgresProvider implements StorageProvider on PostgreSQL. Graph payloads
// and tag lists are stored as JSONB columns.
type PostgresProvider struct {
	db           *sql.DB
	flowStore    *PostgresFlowStore
	contactStore *PostgresContactStore
	messageStore *PostgresMessageStore
}

// PostgresProviderConfig contains PostgreSQL connection settings.
type PostgresProviderConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// NewPostgresProvider creates a PostgreSQL-backed storage provider.
func NewPostgresProvider(cfg PostgresProviderConfig) (*PostgresProvider, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	return &PostgresProvider{
		db:           db,
		flowStore:    &PostgresFlowStore{db: db},
		contactStore: &PostgresContactStore{db: db},
		messageStore: &PostgresMessageStore{db: db},
	}, nil
}

// Initialize verifies the connection and creates the schema.
func (p *PostgresProvider) Initialize() error {
	if err := p.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS flows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			flow_data JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone_number TEXT UNIQUE NOT NULL,
			tags JSONB NOT NULL DEFAULT '[]',
			current_flow_node_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			last_active TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS message_logs (
			id TEXT PRIMARY KEY,
			contact_id TEXT NOT NULL,
			from_number TEXT NOT NULL,
			direction TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_logs_contact ON message_logs (contact_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_message_logs_timestamp ON message_logs (timestamp)`,
	}
	for _, stmt := range schema {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// GetFlowStore returns a store for conversation flows.
func (p *PostgresProvider) GetFlowStore() FlowStore { return p.flowStore }

// GetContactStore returns a store for contacts.
func (p *PostgresProvider) GetContactStore() ContactStore { return p.contactStore }

// GetMessageStore returns a store for message logs.
func (p *PostgresProvider) GetMessageStore() MessageStore { return p.messageStore }

// PostgresFlowStore implements FlowStore on PostgreSQL.
type PostgresFlowStore struct {
	db *sql.DB
}

// SaveFlow inserts or replaces a flow.
func (s *PostgresFlowStore) SaveFlow(flow models.Flow) error {
	data, err := json.Marshal(flow.FlowData)
	if err != nil {
		return fmt.Errorf("failed to marshal flow data: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO flows (id, name, flow_data, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			flow_data = EXCLUDED.flow_data,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		flow.ID, flow.Name, data, flow.IsActive, flow.CreatedAt, flow.UpdatedAt)
	return err
}

// GetFlow retrieves a flow by id.
func (s *PostgresFlowStore) GetFlow(flowID string) (models.Flow, error) {
	row := s.db.QueryRow(`
		SELECT id, name, flow_data, is_active, created_at, updated_at
		FROM flows WHERE id = $1`, flowID)
	return scanFlow(row)
}

// ListFlows returns all flows in creation order.
func (s *PostgresFlowStore) ListFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`
		SELECT id, name, flow_data, is_active, created_at, updated_at
		FROM flows ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// DeleteFlow removes a flow.
func (s *PostgresFlowStore) DeleteFlow(flowID string) error {
	res, err := s.db.Exec(`DELETE FROM flows WHERE id = $1`, flowID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFlowNotFound
	}
	return nil
}

// GetActiveFlow returns the flow marked active.
func (s *PostgresFlowStore) GetActiveFlow() (models.Flow, error) {
	row := s.db.QueryRow(`
		SELECT id, name, flow_data, is_active, created_at, updated_at
		FROM flows WHERE is_active LIMIT 1`)
	flow, err := scanFlow(row)
	if err == ErrFlowNotFound {
		return models.Flow{}, ErrNoActiveFlow
	}
	return flow, err
}

// DeactivateOthers clears is_active on every flow except flowID.
func (s *PostgresFlowStore) DeactivateOthers(flowID string) error {
	_, err := s.db.Exec(`UPDATE flows SET is_active = FALSE WHERE id <> $1 AND is_active`, flowID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFlow(row rowScanner) (models.Flow, error) {
	var flow models.Flow
	var data []byte
	err := row.Scan(&flow.ID, &flow.Name, &data, &flow.IsActive, &flow.CreatedAt, &flow.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Flow{}, ErrFlowNotFound
	}
	if err != nil {
		return models.Flow{}, err
	}
	if err := json.Unmarshal(data, &flow.FlowData); err != nil {
		return models.Flow{}, fmt.Errorf("failed to unmarshal flow data: %w", err)
	}
	return flow, nil
}

// PostgresContactStore implements ContactStore on PostgreSQL.
type PostgresContactStore struct {
	db *sql.DB
}

// SaveContact inserts or replaces a contact.
func (s *PostgresContactStore) SaveContact(contact models.Contact) error {
	tags, err := json.Marshal(contact.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO contacts (id, name, phone_number, tags, current_flow_node_id, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number = EXCLUDED.phone_number,
			tags = EXCLUDED.tags,
			current_flow_node_id = EXCLUDED.current_flow_node_id,
			last_active = EXCLUDED.last_active`,
		contact.ID, contact.Name, contact.PhoneNumber, tags,
		nullable(contact.CurrentFlowNodeID), contact.CreatedAt, contact.LastActive)
	return err
}

// GetContact retrieves a contact by id.
func (s *PostgresContactStore) GetContact(contactID string) (models.Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, name, phone_number, tags, current_flow_node_id, created_at, last_active
		FROM contacts WHERE id = $1`, contactID)
	return scanContact(row)
}

// GetContactByPhone retrieves a contact by phone number.
func (s *PostgresContactStore) GetContactByPhone(phoneNumber string) (models.Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, name, phone_number, tags, current_flow_node_id, created_at, last_active
		FROM contacts WHERE phone_number = $1`, phoneNumber)
	return scanContact(row)
}

// ListContacts returns contacts, optionally filtered by tags.
func (s *PostgresContactStore) ListContacts(tags []string) ([]models.Contact, error) {
	rows, err := s.db.Query(`
		SELECT id, name, phone_number, tags, current_flow_node_id, created_at, last_active
		FROM contacts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		if len(tags) == 0 || hasAnyTag(contact.Tags, tags) {
			out = append(out, contact)
		}
	}
	return out, rows.Err()
}

func scanContact(row rowScanner) (models.Contact, error) {
	var contact models.Contact
	var tags []byte
	var nodeID sql.NullString
	err := row.Scan(&contact.ID, &contact.Name, &contact.PhoneNumber, &tags,
		&nodeID, &contact.CreatedAt, &contact.LastActive)
	if err == sql.ErrNoRows {
		return models.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return models.Contact{}, err
	}
	if err := json.Unmarshal(tags, &contact.Tags); err != nil {
		return models.Contact{}, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	contact.CurrentFlowNodeID = nodeID.String
	return contact, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// PostgresMessageStore implements MessageStore on PostgreSQL.
type PostgresMessageStore struct {
	db *sql.DB
}

// SaveMessage appends a message log entry.
func (s *PostgresMessageStore) SaveMessage(msg models.MessageLog) error {
	_, err := s.db.Exec(`
		INSERT INTO message_logs (id, contact_id, from_number, direction, text, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ContactID, msg.FromNumber, msg.Direction, msg.Text, msg.Timestamp)
	return err
}

// ListMessagesByContact returns up to limit most recent messages for a
// contact, oldest first.
func (s *PostgresMessageStore) ListMessagesByContact(contactID string, limit int) ([]models.MessageLog, error) {
	query := `
		SELECT id, contact_id, from_number, direction, text, timestamp
		FROM (
			SELECT * FROM message_logs WHERE contact_id = $1
			ORDER BY timestamp DESC LIMIT $2
		) recent ORDER BY timestamp`
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := s.db.Query(query, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CountMessages returns the number of logged messages with the direction.
func (s *PostgresMessageStore) CountMessages(direction string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM message_logs WHERE direction = $1`, direction).Scan(&count)
	return count, err
}

// ListMessagesSince returns every message logged at or after t.
func (s *PostgresMessageStore) ListMessagesSince(t time.Time) ([]models.MessageLog, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, from_number, direction, text, timestamp
		FROM message_logs WHERE timestamp >= $1 ORDER BY timestamp`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DeleteMessagesBefore removes messages older than t.
func (s *PostgresMessageStore) DeleteMessagesBefore(t time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM message_logs WHERE timestamp < $1`, t)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func scanMessages(rows *sql.Rows) ([]models.MessageLog, error) {
	var out []models.MessageLog
	for rows.Next() {
		var msg models.MessageLog
		if err := rows.Scan(&msg.ID, &msg.ContactID, &msg.FromNumber,
			&msg.Direction, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
