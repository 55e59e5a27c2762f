// Package outbox queues finished study sessions in a local SQLite database
// and uploads them to the server when it is reachable.
package outbox

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fomopomo/internal/db"
	apperrors "fomopomo/internal/errors"
	"fomopomo/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	StatePending  = "pending"
	StateSent     = "sent"
	StateRejected = "rejected"

	timeLayout   = "2006-01-02T15:04:05.000000000Z07:00"
	flushTimeout = 15 * time.Second
)

// Uploader delivers one session to the server. Uploads must be idempotent
// by session id.
type Uploader interface {
	UploadSession(ctx context.Context, session model.StudySession) error
}

// Entry is one queued session.
type Entry struct {
	Session   model.StudySession
	State     string
	Attempts  int
	LastError string
}

type Outbox struct {
	db       *sql.DB
	uploader Uploader
	logger   *log.Logger

	flushMu sync.Mutex
	wg      sync.WaitGroup
}

// Open opens (or creates) the queue at path. uploader may be nil for an
// offline queue; Flush is then a no-op.
func Open(ctx context.Context, path string, uploader Uploader, logger *log.Logger) (*Outbox, error) {
	database, err := db.OpenEmbedded(path)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	if err := db.ApplyMigrations(ctx, database, migrations, "migrations"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate outbox: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Outbox{db: database, uploader: uploader, logger: logger}, nil
}

// Enqueue stores session as pending. An empty id is replaced by a new uuid.
func (o *Outbox) Enqueue(ctx context.Context, session model.StudySession) (model.StudySession, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.CreatedAt = session.CreatedAt.UTC()

	payload, err := json.Marshal(session)
	if err != nil {
		return session, fmt.Errorf("encode session: %w", err)
	}
	if _, err := o.db.ExecContext(
		ctx,
		`INSERT INTO outbox (id, payload, state, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		session.ID,
		string(payload),
		StatePending,
		session.CreatedAt.Format(timeLayout),
	); err != nil {
		return session, fmt.Errorf("enqueue session: %w", err)
	}
	return session, nil
}

// Pending returns up to limit pending entries, oldest first.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := o.db.QueryContext(
		ctx,
		`SELECT payload, state, attempts, COALESCE(last_error, '')
		 FROM outbox
		 WHERE state = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		StatePending,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var payload string
		if err := rows.Scan(&payload, &entry.State, &entry.Attempts, &entry.LastError); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Session); err != nil {
			return nil, fmt.Errorf("decode pending: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return entries, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	if _, err := o.db.ExecContext(
		ctx,
		`UPDATE outbox SET state = ?, attempts = attempts + 1, last_error = NULL, sent_at = ? WHERE id = ?`,
		StateSent,
		time.Now().UTC().Format(timeLayout),
		id,
	); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (o *Outbox) markFailed(ctx context.Context, id, state string, cause error) error {
	if _, err := o.db.ExecContext(
		ctx,
		`UPDATE outbox SET state = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		state,
		cause.Error(),
		id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Counts returns the number of entries per state.
func (o *Outbox) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := o.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM outbox GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count outbox: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{StatePending: 0, StateSent: 0, StateRejected: 0}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

// Flush uploads pending entries in order. It stops at the first transport or
// server error and leaves the rest pending. Entries the server rejects as
// invalid are parked in the rejected state so they do not block the queue.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	if o.uploader == nil {
		return 0, nil
	}
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	entries, err := o.Pending(ctx, 0)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, entry := range entries {
		uploadErr := o.uploader.UploadSession(ctx, entry.Session)
		if uploadErr == nil {
			if err := o.MarkSent(ctx, entry.Session.ID); err != nil {
				return sent, err
			}
			sent++
			continue
		}

		if isPermanent(uploadErr) {
			o.logger.Printf("outbox: session %s rejected: %v", entry.Session.ID, uploadErr)
			if err := o.markFailed(ctx, entry.Session.ID, StateRejected, uploadErr); err != nil {
				return sent, err
			}
			continue
		}
		if err := o.markFailed(ctx, entry.Session.ID, StatePending, uploadErr); err != nil {
			return sent, err
		}
		return sent, fmt.Errorf("upload session %s: %w", entry.Session.ID, uploadErr)
	}
	return sent, nil
}

// Record enqueues session and flushes in the background.
func (o *Outbox) Record(session model.StudySession) error {
	if _, err := o.Enqueue(context.Background(), session); err != nil {
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if _, err := o.Flush(ctx); err != nil {
			o.logger.Printf("outbox: flush deferred: %v", err)
		}
	}()
	return nil
}

// Close waits for background flushes and closes the database.
func (o *Outbox) Close() error {
	o.wg.Wait()
	return o.db.Close()
}

// isPermanent reports client errors that a retry cannot fix. Auth failures
// stay pending so a later login can deliver them.
func isPermanent(err error) bool {
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Permanent()
}
