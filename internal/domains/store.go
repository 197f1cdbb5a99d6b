package domains

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/psybrarian/psybrarian/internal/log"
)

// DB is the slice of pgx this store consumes. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads website rules written by the admin dashboard. The retrieval
// pipeline never writes rules.
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

// ListRules returns all rules of the given kind in insertion order.
// The stored domain column is already canonical (written through Extract at
// save time), but Engine re-normalizes anyway to guard against hand-edited
// rows.
func (s *Store) ListRules(ctx context.Context, kind RuleKind) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, url, domain, kind
		FROM domain_rules
		WHERE kind = $1
		ORDER BY created_at, id`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing %s domain rules: %w", kind, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		var k string
		if err := rows.Scan(&r.ID, &r.Title, &r.URL, &r.Domain, &k); err != nil {
			return nil, fmt.Errorf("scanning domain rule: %w", err)
		}
		r.Kind = RuleKind(k)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating domain rules: %w", err)
	}
	return rules, nil
}
