package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/challengehub/internal/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore persists hub state in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS challenges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		current_participants INTEGER NOT NULL DEFAULT 0,
		max_participants INTEGER NOT NULL DEFAULT 0,
		starts_at INTEGER NOT NULL DEFAULT 0,
		ends_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		challenge_id INTEGER NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		is_completed INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		joined_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (user_id, challenge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		challenge_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		challenge_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	"CREATE INDEX IF NOT EXISTS idx_participations_challenge ON participations(challenge_id, id)",
	"CREATE INDEX IF NOT EXISTS idx_messages_challenge ON messages(challenge_id, id)",
	"CREATE INDEX IF NOT EXISTS idx_activity_challenge ON activity(challenge_id, id)",
}

// OpenSQLite opens (creating if needed) the database at path. An empty path
// opens a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// coherent across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateChallenge(ctx context.Context, c *models.Challenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	var id any
	if c.ID != 0 {
		id = c.ID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (id, title, description, kind, current_participants, max_participants, starts_at, ends_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Title, c.Description, string(c.Kind), c.CurrentParticipants, c.MaxParticipants,
		toUnix(c.StartsAt), toUnix(c.EndsAt), toUnix(c.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert challenge: %w", err)
	}
	if c.ID == 0 {
		if c.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("challenge id: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetChallenge(ctx context.Context, id int64) (*models.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, kind, current_participants, max_participants, starts_at, ends_at, created_at
		FROM challenges WHERE id = ?`, id)

	var (
		c                         models.Challenge
		kind                      string
		startsAt, endsAt, created int64
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &kind, &c.CurrentParticipants, &c.MaxParticipants, &startsAt, &endsAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select challenge: %w", err)
	}
	c.Kind = models.ChallengeKind(kind)
	c.StartsAt = fromUnix(startsAt)
	c.EndsAt = fromUnix(endsAt)
	c.CreatedAt = fromUnix(created)
	return &c, nil
}

func (s *SQLiteStore) UpdateParticipantCount(ctx context.Context, id int64, delta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenges SET current_participants = MAX(current_participants + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("update participant count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const participationColumns = "id, user_id, challenge_id, progress, is_completed, completed_at, joined_at, updated_at"

func scanParticipation(scan func(dest ...any) error) (*models.Participation, error) {
	var (
		p                 models.Participation
		completed         int
		completedAt       sql.NullInt64
		joined, updatedAt int64
	)
	if err := scan(&p.ID, &p.UserID, &p.ChallengeID, &p.Progress, &completed, &completedAt, &joined, &updatedAt); err != nil {
		return nil, err
	}
	p.IsCompleted = completed != 0
	if completedAt.Valid {
		at := fromUnix(completedAt.Int64)
		p.CompletedAt = &at
	}
	p.JoinedAt = fromUnix(joined)
	p.UpdatedAt = fromUnix(updatedAt)
	return &p, nil
}

func (s *SQLiteStore) GetParticipation(ctx context.Context, userID, challengeID int64) (*models.Participation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+participationColumns+" FROM participations WHERE user_id = ? AND challenge_id = ?",
		userID, challengeID)
	p, err := scanParticipation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select participation: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) CreateParticipation(ctx context.Context, p *models.Participation) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO participations (user_id, challenge_id, progress, is_completed, completed_at, joined_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.ChallengeID, p.Progress, boolInt(p.IsCompleted), nullableUnix(p.CompletedAt),
		toUnix(p.JoinedAt), toUnix(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert participation: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("participation id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateParticipation(ctx context.Context, id int64, update models.ParticipationUpdate) (*models.Participation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, "SELECT "+participationColumns+" FROM participations WHERE id = ?", id)
	p, err := scanParticipation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select participation: %w", err)
	}

	update.Apply(p)
	_, err = tx.ExecContext(ctx, `
		UPDATE participations SET progress = ?, is_completed = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		p.Progress, boolInt(p.IsCompleted), nullableUnix(p.CompletedAt), toUnix(p.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update participation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit participation: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListParticipationsForChallenge(ctx context.Context, challengeID int64) ([]*models.Participation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+participationColumns+" FROM participations WHERE challenge_id = ? ORDER BY id", challengeID)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	var out []*models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *models.Message) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (challenge_id, user_id, content, created_at) VALUES (?, ?, ?, ?)",
		m.ChallengeID, m.UserID, m.Content, toUnix(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRecentMessages(ctx context.Context, challengeID int64, limit int) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, user_id, content, created_at FROM (
			SELECT * FROM messages WHERE challenge_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, challengeID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var (
			m       models.Message
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ChallengeID, &m.UserID, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromUnix(created)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, e *models.ActivityEvent) error {
	data, err := marshalActivityData(e)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO activity (challenge_id, user_id, kind, data, created_at) VALUES (?, ?, ?, ?, ?)",
		e.ChallengeID, e.UserID, string(e.Kind()), string(data), toUnix(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("activity id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRecentActivity(ctx context.Context, challengeID int64, limit int) ([]*models.ActivityEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, user_id, kind, data, created_at
		FROM activity WHERE challenge_id = ? ORDER BY id DESC LIMIT ?`, challengeID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []*models.ActivityEvent
	for rows.Next() {
		var (
			e       models.ActivityEvent
			kind    string
			data    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.ChallengeID, &e.UserID, &kind, &data, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if e.Data, err = models.DecodeActivityData(models.ActivityKind(kind), []byte(data)); err != nil {
			return nil, err
		}
		e.CreatedAt = fromUnix(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqlLimit maps "no limit" onto SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toUnix(*t)
}
