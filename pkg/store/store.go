// Package store persists life events and myths in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	_ "modernc.org/sqlite"

	"mythforge/pkg/schema"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidDraft = errors.New("myth needs a label and a narrative")
)

// timeLayout sorts lexically in the same order as the instants it encodes (always UTC).
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is the SQLite-backed persistence gateway.
type Store struct {
	db  *sql.DB
	now func() time.Time

	// beforeCommit runs inside Finalize after the insert and before commit.
	beforeCommit func(ctx context.Context, tx *sql.Tx) error
}

// Open opens (creating if needed) the database at path and migrates it. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !memory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateLifeEvent stores ev, assigning its ID and creation time.
func (s *Store) CreateLifeEvent(ctx context.Context, ev schema.LifeEvent) (schema.LifeEvent, error) {
	ev.ID = ksuid.New().String()
	ev.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO life_events (id, owner_id, title, description, category, occurred_on, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.OwnerID, ev.Title, ev.Description, ev.Category, ev.OccurredOn, ev.CreatedAt.Format(timeLayout))
	if err != nil {
		return schema.LifeEvent{}, fmt.Errorf("insert life event: %w", err)
	}
	return ev, nil
}

// GetLifeEvent returns the owner's event. Events of other owners are reported as ErrNotFound.
func (s *Store) GetLifeEvent(ctx context.Context, ownerID, id string) (schema.LifeEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, description, category, occurred_on, created_at
		 FROM life_events WHERE id = ? AND owner_id = ?`, id, ownerID)
	ev, err := scanLifeEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.LifeEvent{}, ErrNotFound
	}
	return ev, err
}

// ListLifeEvents returns the owner's events, latest occurrence first.
func (s *Store) ListLifeEvents(ctx context.Context, ownerID string) ([]schema.LifeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, description, category, occurred_on, created_at
		 FROM life_events WHERE owner_id = ?
		 ORDER BY occurred_on DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list life events: %w", err)
	}
	defer rows.Close()

	events := []schema.LifeEvent{}
	for rows.Next() {
		ev, err := scanLifeEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Finalize inserts a myth in a single transaction. When the draft names a source event, that
// event must exist (ErrNotFound) and belong to the draft's owner (ErrForbidden). Nothing is
// visible unless the whole transaction commits.
func (s *Store) Finalize(ctx context.Context, draft schema.MythDraft) (schema.Myth, error) {
	if strings.TrimSpace(draft.Label) == "" || strings.TrimSpace(draft.Narrative) == "" {
		return schema.Myth{}, ErrInvalidDraft
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.Myth{}, fmt.Errorf("begin: %w", err)
	}
	defer rollback(tx)

	var source sql.NullString
	if draft.SourceEventID != "" {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM life_events WHERE id = ?`, draft.SourceEventID).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return schema.Myth{}, fmt.Errorf("life event %s: %w", draft.SourceEventID, ErrNotFound)
		case err != nil:
			return schema.Myth{}, fmt.Errorf("look up life event: %w", err)
		case owner != draft.OwnerID:
			return schema.Myth{}, fmt.Errorf("life event %s: %w", draft.SourceEventID, ErrForbidden)
		}
		source = sql.NullString{String: draft.SourceEventID, Valid: true}
	}

	myth := schema.Myth{
		ID:            ksuid.New().String(),
		OwnerID:       draft.OwnerID,
		Title:         draft.Title,
		Label:         draft.Label,
		Narrative:     draft.Narrative,
		SourceEventID: draft.SourceEventID,
		CreatedAt:     s.now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO myths (id, owner_id, title, label, narrative, source_event_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		myth.ID, myth.OwnerID, myth.Title, myth.Label, myth.Narrative, source, myth.CreatedAt.Format(timeLayout))
	if err != nil {
		return schema.Myth{}, fmt.Errorf("insert myth: %w", err)
	}

	if s.beforeCommit != nil {
		if err := s.beforeCommit(ctx, tx); err != nil {
			return schema.Myth{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return schema.Myth{}, fmt.Errorf("commit myth: %w", err)
	}
	return myth, nil
}

// GetMyth returns the owner's myth or ErrNotFound.
func (s *Store) GetMyth(ctx context.Context, ownerID, id string) (schema.Myth, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, label, narrative, source_event_id, created_at
		 FROM myths WHERE id = ? AND owner_id = ?`, id, ownerID)
	m, err := scanMyth(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Myth{}, ErrNotFound
	}
	return m, err
}

// ListMyths returns the owner's myths, newest first.
func (s *Store) ListMyths(ctx context.Context, ownerID string) ([]schema.Myth, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, label, narrative, source_event_id, created_at
		 FROM myths WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list myths: %w", err)
	}
	defer rows.Close()

	myths := []schema.Myth{}
	for rows.Next() {
		m, err := scanMyth(rows)
		if err != nil {
			return nil, err
		}
		myths = append(myths, m)
	}
	return myths, rows.Err()
}

// Stats summarizes the whole database for administrators.
func (s *Store) Stats(ctx context.Context) (schema.Stats, error) {
	var st schema.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM myths),
		(SELECT COUNT(*) FROM life_events),
		(SELECT COUNT(DISTINCT owner_id) FROM (SELECT owner_id FROM myths UNION SELECT owner_id FROM life_events))`,
	).Scan(&st.Myths, &st.LifeEvents, &st.Owners)
	if err != nil {
		return st, fmt.Errorf("count rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM myths GROUP BY label ORDER BY COUNT(*) DESC, label`)
	if err != nil {
		return st, fmt.Errorf("count labels: %w", err)
	}
	defer rows.Close()

	st.ByLabel = []schema.LabelCount{}
	for rows.Next() {
		var lc schema.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return st, err
		}
		st.ByLabel = append(st.ByLabel, lc)
	}
	return st, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLifeEvent(sc scanner) (schema.LifeEvent, error) {
	var ev schema.LifeEvent
	var created string
	if err := sc.Scan(&ev.ID, &ev.OwnerID, &ev.Title, &ev.Description, &ev.Category, &ev.OccurredOn, &created); err != nil {
		return schema.LifeEvent{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return schema.LifeEvent{}, fmt.Errorf("life event %s: bad created_at: %w", ev.ID, err)
	}
	ev.CreatedAt = t
	return ev, nil
}

func scanMyth(sc scanner) (schema.Myth, error) {
	var m schema.Myth
	var source sql.NullString
	var created string
	if err := sc.Scan(&m.ID, &m.OwnerID, &m.Title, &m.Label, &m.Narrative, &source, &created); err != nil {
		return schema.Myth{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return schema.Myth{}, fmt.Errorf("myth %s: bad created_at: %w", m.ID, err)
	}
	m.SourceEventID = source.String
	m.CreatedAt = t
	return m, nil
}
