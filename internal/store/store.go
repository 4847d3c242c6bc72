// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/winniek75/baseball-vison.training/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session history and badges.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			module_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			reaction_ms_avg INTEGER NOT NULL,
			reaction_ms_best INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			total_attempts INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			max_combo INTEGER NOT NULL,
			difficulty INTEGER NOT NULL,
			duration_sec INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			played_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_rounds (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			round_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			pitch TEXT NOT NULL,
			displayed_number INTEGER,
			answer INTEGER,
			reaction_ms REAL,
			is_correct INTEGER NOT NULL,
			counted INTEGER NOT NULL,
			tapped INTEGER NOT NULL,
			expired INTEGER NOT NULL,
			tier INTEGER NOT NULL,
			points INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS badges (
			user_id TEXT NOT NULL,
			badge_key TEXT NOT NULL,
			earned_at TEXT NOT NULL,
			PRIMARY KEY (user_id, badge_key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_played ON sessions(user_id, played_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_module ON sessions(module_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveResult stores a completed session and its rounds. An empty record ID
// is replaced by a fresh UUID.
func (s *Store) SaveResult(ctx context.Context, rec model.SessionRecord, rounds []model.RoundOutcome) (err error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = rec.Result.EndedAt
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	r := rec.Result
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, module_id, score, reaction_ms_avg, reaction_ms_best, accuracy, total_attempts, correct_count, max_combo, difficulty, duration_sec, seed, started_at, played_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.UserID,
		string(r.ModuleID),
		r.TotalScore,
		r.AvgReactionMs,
		r.BestReactionMs,
		r.Accuracy,
		r.TotalAttempts,
		r.CorrectCount,
		r.MaxCombo,
		int(r.Difficulty),
		r.DurationSec,
		r.Seed,
		formatStamp(r.StartedAt),
		formatStamp(rec.PlayedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(rounds) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO session_rounds (session_id, seq, round_id, kind, pitch, displayed_number, answer, reaction_ms, is_correct, counted, tapped, expired, tier, points)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, o := range rounds {
			var number, answer, reaction any
			if o.Spec.HasNumber {
				number = o.Spec.DisplayedNumber
			}
			if o.Timed {
				reaction = o.ReactionMs
				if o.Spec.HasNumber && !o.Tapped {
					answer = o.Answer
				}
			}
			if _, err = stmt.ExecContext(ctx, rec.ID, i+1, o.Spec.ID, o.Spec.Kind.String(), o.Spec.Pitch.ID,
				number, answer, reaction, o.IsCorrect, o.Counted, o.Tapped, o.Expired, int(o.Tier), o.PointsAwarded); err != nil {
				return fmt.Errorf("failed to insert round %d: %w", i+1, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

const sessionColumns = `id, user_id, module_id, score, reaction_ms_avg, reaction_ms_best, accuracy, total_attempts, correct_count, max_combo, difficulty, duration_sec, seed, started_at, played_at`

// ListSessions returns session records filtered by stats config, oldest
// first. Last is applied by the caller.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, cfg.UserID)
	}
	if cfg.Module != "" {
		clauses = append(clauses, "module_id = ?")
		args = append(args, string(cfg.Module))
	}
	if cfg.Since != nil {
		clauses = append(clauses, "played_at >= ?")
		args = append(args, formatStamp(*cfg.Since))
	}
	query := fmt.Sprintf(`SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY played_at ASC`, sessionColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (model.SessionRecord, error) {
	var rec model.SessionRecord
	var module, startedAt, playedAt string
	var difficulty int
	r := &rec.Result
	if err := row.Scan(&rec.ID, &rec.UserID, &module, &r.TotalScore, &r.AvgReactionMs, &r.BestReactionMs,
		&r.Accuracy, &r.TotalAttempts, &r.CorrectCount, &r.MaxCombo, &difficulty, &r.DurationSec, &r.Seed,
		&startedAt, &playedAt); err != nil {
		return rec, err
	}
	r.ModuleID = model.ModuleID(module)
	r.Difficulty = model.Difficulty(difficulty)
	var err error
	if r.StartedAt, err = parseStamp(startedAt); err != nil {
		return rec, err
	}
	if rec.PlayedAt, err = parseStamp(playedAt); err != nil {
		return rec, err
	}
	r.EndedAt = rec.PlayedAt
	return rec, nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM sessions WHERE id = ?`, sessionColumns), id)
	return scanSession(row)
}

// ListRounds returns the round history of a session in play order.
func (s *Store) ListRounds(ctx context.Context, sessionID string) ([]model.RoundOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, round_id, kind, pitch, displayed_number, answer, reaction_ms, is_correct, counted, tapped, expired, tier, points
		FROM session_rounds
		WHERE session_id = ?
		ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var rounds []model.RoundOutcome
	for rows.Next() {
		var o model.RoundOutcome
		var kind, pitch string
		var number, answer sql.NullInt64
		var reaction sql.NullFloat64
		var tier int
		if err := rows.Scan(&o.Spec.Seq, &o.Spec.ID, &kind, &pitch, &number, &answer, &reaction,
			&o.IsCorrect, &o.Counted, &o.Tapped, &o.Expired, &tier, &o.PointsAwarded); err != nil {
			return nil, err
		}
		if o.Spec.Kind, err = model.ParseStimulusKind(kind); err != nil {
			return nil, err
		}
		o.Spec.Pitch = model.PitchByID(pitch)
		if number.Valid {
			o.Spec.HasNumber = true
			o.Spec.DisplayedNumber = int(number.Int64)
		}
		if answer.Valid {
			o.Answer = int(answer.Int64)
		}
		if reaction.Valid {
			o.Timed = true
			o.ReactionMs = reaction.Float64
		}
		o.Tier = model.Tier(tier)
		rounds = append(rounds, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rounds, nil
}

// CountSessions returns how many sessions a user has stored.
func (s *Store) CountSessions(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// PlayedModules returns the distinct modules a user has played.
func (s *Store) PlayedModules(ctx context.Context, userID string) ([]model.ModuleID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT module_id FROM sessions WHERE user_id = ? ORDER BY module_id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var ids []model.ModuleID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, model.ModuleID(id))
	}
	return ids, rows.Err()
}

// PlayDates returns the play time of every session of a user, newest first.
func (s *Store) PlayDates(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT played_at FROM sessions WHERE user_id = ? ORDER BY played_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := parseStamp(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, t)
	}
	return dates, rows.Err()
}

// ListBadges returns the badges a user has earned, oldest first.
func (s *Store) ListBadges(ctx context.Context, userID string) ([]model.EarnedBadge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT badge_key, earned_at FROM badges WHERE user_id = ? ORDER BY earned_at ASC, badge_key ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var out []model.EarnedBadge
	for rows.Next() {
		var b model.EarnedBadge
		var raw string
		if err := rows.Scan(&b.Key, &raw); err != nil {
			return nil, err
		}
		if b.EarnedAt, err = parseStamp(raw); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertBadges records newly earned badges. Keys the user already holds are
// ignored.
func (s *Store) InsertBadges(ctx context.Context, userID string, keys []string, at time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO badges (user_id, badge_key, earned_at) VALUES (?, ?, ?)`,
			userID, key, formatStamp(at)); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
			return fmt.Errorf("failed to insert badge %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// stampLayout is fixed width so that stored timestamps order lexically.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatStamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

// parseStamp also accepts variable-width RFC 3339 values written by older
// databases.
func parseStamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	return t.Local(), nil
}
