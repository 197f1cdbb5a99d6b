// Package chatlog persists question/answer turns.
//
// Every answered question is written before resolution begins: the row is
// inserted with a pending sentinel answer and updated once an answer source
// wins. The log row id is the stable handle reaction endpoints and the
// downstream answer generator use to fill in the final text.
package chatlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/psybrarian/psybrarian/internal/log"
)

// PendingAnswer is the sentinel stored until resolution writes the real
// answer. Rows still carrying it mark turns that failed mid-flight.
const PendingAnswer = "pending"

// ErrLogNotFound indicates the requested log row does not exist.
var ErrLogNotFound = errors.New("chat log not found")

// Reaction is a reader's verdict on an answer.
type Reaction string

const (
	ReactionNone Reaction = ""
	ReactionUp   Reaction = "up"
	ReactionDown Reaction = "down"
)

// Valid reports whether r is a known reaction value.
func (r Reaction) Valid() bool {
	switch r {
	case ReactionNone, ReactionUp, ReactionDown:
		return true
	}
	return false
}

// Entry is one logged question/answer turn.
type Entry struct {
	ID        uuid.UUID
	Question  string
	Answer    string
	Reaction  Reaction
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DB is the slice of pgx this store consumes. *pgxpool.Pool satisfies it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes and updates chat log rows in PostgreSQL.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store. logger may be nil.
func NewStore(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// InsertPending records a new turn with the pending sentinel answer and
// returns the row id. Resolution treats a failure here as fatal; without the
// row there is nothing to attach the eventual answer to.
func (s *Store) InsertPending(ctx context.Context, question string) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.Exec(ctx, `
		INSERT INTO chat_logs (id, question, answer, reaction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		id, question, PendingAnswer, string(ReactionNone), now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting chat log: %w", err)
	}

	s.logger.Debug("chat log opened", "log_id", id)
	return id, nil
}

// UpdateAnswer replaces the pending sentinel with the resolved answer.
func (s *Store) UpdateAnswer(ctx context.Context, id uuid.UUID, answer string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE chat_logs
		SET answer = $2, updated_at = $3
		WHERE id = $1`,
		id, answer, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating chat log %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrLogNotFound, id)
	}
	return nil
}

// SetReaction records a reader's verdict for an answered turn.
func (s *Store) SetReaction(ctx context.Context, id uuid.UUID, r Reaction) error {
	if !r.Valid() {
		return fmt.Errorf("invalid reaction %q", r)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE chat_logs
		SET reaction = $2, updated_at = $3
		WHERE id = $1`,
		id, string(r), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting reaction on chat log %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrLogNotFound, id)
	}
	return nil
}

// Get returns a single logged turn by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	var (
		e        Entry
		reaction string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, question, answer, reaction, created_at, updated_at
		FROM chat_logs
		WHERE id = $1`,
		id).Scan(&e.ID, &e.Question, &e.Answer, &reaction, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %s", ErrLogNotFound, id)
		}
		return Entry{}, fmt.Errorf("reading chat log %s: %w", id, err)
	}
	e.Reaction = Reaction(reaction)
	return e, nil
}
