package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/psybrarian/psybrarian/internal/log"
)

// ErrEntryNotFound indicates the requested entry does not exist.
var ErrEntryNotFound = errors.New("knowledge entry not found")

// DB is the slice of pgx this store consumes. *pgxpool.Pool satisfies it.
// Defined by the consumer so tests can substitute a fake without a database.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads knowledge entries and chunks from PostgreSQL.
//
// The retrieval pipeline never mutates entries; ReplaceChunks exists for the
// reindex hook and rewrites a parent's chunk set atomically.
//
// Store is safe for concurrent use by multiple goroutines.
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

// queryTimeout bounds store reads so a slow scan cannot hold a request open.
const queryTimeout = 10 * time.Second

// ListEntries returns all entries of the given source type in insertion order.
func (s *Store) ListEntries(ctx context.Context, st SourceType) ([]Entry, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("invalid source type %q", st)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, title, source_type, content, embedding, metadata, created_at
		FROM knowledge_entries
		WHERE source_type = $1
		ORDER BY created_at, id`,
		string(st))
	if err != nil {
		return nil, fmt.Errorf("listing %s entries: %w", st, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// GetEntry returns a single entry by id.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, source_type, content, embedding, metadata, created_at
		FROM knowledge_entries
		WHERE id = $1`,
		id)

	e, err := s.scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return Entry{}, err
	}
	return e, nil
}

// ListChunks returns every stored chunk in insertion order. The chunk index
// performs an exhaustive scan, so there is deliberately no filtering here;
// ordering matters because equal scores tie-break by storage order.
func (s *Store) ListChunks(ctx context.Context) ([]Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, parent_id, source_type, chunk_index, content, embedding, metadata, created_at
		FROM knowledge_chunks
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c       Chunk
			st      string
			emb     pgvector.Vector
			rawMeta []byte
		)
		if err := rows.Scan(&c.ID, &c.ParentID, &st, &c.ChunkIndex, &c.Content, &emb, &rawMeta, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.SourceType = SourceType(st)
		c.Embedding = emb.Slice()

		meta, err := DecodeMetadata(c.SourceType, rawMeta)
		if err != nil {
			// A malformed metadata blob should not hide the chunk from
			// similarity search; content and embedding are intact.
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", c.ID, "error", err)
			meta = Metadata{}
		}
		c.Metadata = meta
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// ReplaceChunks deletes all chunks belonging to parentID and inserts the
// given replacements in one transaction. Chunks for a parent are never
// partially updated.
func (s *Store) ReplaceChunks(ctx context.Context, parentID uuid.UUID, chunks []Chunk) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning chunk replace: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM knowledge_chunks WHERE parent_id = $1`, parentID); err != nil {
		return fmt.Errorf("deleting old chunks for %s: %w", parentID, err)
	}

	for _, c := range chunks {
		metaJSON, mErr := c.Metadata.Encode()
		if mErr != nil {
			err = mErr
			return err
		}
		emb := pgvector.NewVector(c.Embedding)
		if _, err = tx.Exec(ctx, `
			INSERT INTO knowledge_chunks
				(id, parent_id, source_type, chunk_index, content, embedding, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, parentID, string(c.SourceType), c.ChunkIndex, c.Content, emb, metaJSON, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting chunk %d for %s: %w", c.ChunkIndex, parentID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk replace: %w", err)
	}

	s.logger.Debug("replaced chunks", "parent_id", parentID, "count", len(chunks))
	return nil
}

// scanEntry reads a single entry row.
func (s *Store) scanEntry(row pgx.Row) (Entry, error) {
	var (
		e       Entry
		st      string
		emb     pgvector.Vector
		rawMeta []byte
	)
	if err := row.Scan(&e.ID, &e.Title, &st, &e.Content, &emb, &rawMeta, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning entry: %w", err)
	}
	e.SourceType = SourceType(st)
	e.Embedding = emb.Slice()

	meta, err := DecodeMetadata(e.SourceType, rawMeta)
	if err != nil {
		s.logger.Warn("failed to parse entry metadata", "entry_id", e.ID, "error", err)
		meta = Metadata{}
	}
	e.Metadata = meta
	return e, nil
}
