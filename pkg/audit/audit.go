// Package audit keeps a local trail of provisioning and reconciliation
// actions. The trail lives in a standalone SQLite file so it survives
// application restarts and stays queryable without the primary database.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meshfoundry/idhub/pkg/observability"
)

// Event is a single audit trail entry
type Event struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Trail records audit events in a SQLite database
type Trail struct {
	db     *sql.DB
	logger *observability.Logger
}

// Open opens or creates the audit database at the given path
func Open(path string, logger *observability.Logger) (*Trail, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	t := &Trail{db: db, logger: logger}
	if err := t.ensureTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure audit table: %w", err)
	}
	return t, nil
}

func (t *Trail) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		action TEXT NOT NULL,
		subject TEXT NOT NULL,
		request_id TEXT,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_action ON audit_events(action);
	CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events(subject);
	`
	_, err := t.db.Exec(query)
	return err
}

// Record stores one audit event. Recording is best-effort: failures are
// logged and swallowed so they never fail the recorded operation.
func (t *Trail) Record(ctx context.Context, action, subject string, details map[string]string) {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			t.logger.WithError(err).Warn("failed to marshal audit details")
			return
		}
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO audit_events (timestamp, action, subject, request_id, details) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), action, subject, observability.GetRequestID(ctx), string(detailsJSON),
	)
	if err != nil {
		t.logger.WithError(err).WithField("action", action).Warn("failed to record audit event")
	}
}

// Recent returns the newest events, newest first
func (t *Trail) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, timestamp, action, subject, request_id, details
		 FROM audit_events ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var requestID, detailsJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Subject, &requestID, &detailsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.RequestID = requestID.String
		if detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the audit database
func (t *Trail) Close() error {
	return t.db.Close()
}

// LogTrail writes audit events to the application log instead of a
// database; used when no audit database is configured.
type LogTrail struct {
	logger *observability.Logger
}

// NewLogTrail creates a log-only audit trail
func NewLogTrail(logger *observability.Logger) *LogTrail {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &LogTrail{logger: logger}
}

// Record logs the event
func (t *LogTrail) Record(ctx context.Context, action, subject string, details map[string]string) {
	fields := map[string]interface{}{
		"audit_action":  action,
		"audit_subject": subject,
	}
	for k, v := range details {
		fields["audit_"+k] = v
	}
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	t.logger.WithFields(fields).Info("audit event")
}
