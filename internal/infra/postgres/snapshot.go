package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/redirector/internal/app/model"
)

const (
	selectActiveDomains = `SELECT id, name, target_url, redirect_mode, unmatched_behavior, redirect_code,
       status, priority, created_at, updated_at
FROM domains
WHERE status = $1
ORDER BY priority DESC, name ASC`

	selectBacklinkPaths = `SELECT DISTINCT domain_id, url_path
FROM backlinks
WHERE domain_id = ANY($1)
ORDER BY domain_id ASC, url_path ASC`

	selectRules = `SELECT id, domain_id, source_path, target_url, redirect_type, is_regex, priority,
       created_at, updated_at
FROM redirect_rules
WHERE domain_id = ANY($1)
ORDER BY priority DESC, created_at DESC, id DESC`
)

// SnapshotReader loads the emission input straight from the pgx pool. Every cycle
// reads inside one read-only repeatable-read transaction.
type SnapshotReader struct {
	pool *pgxpool.Pool
}

// NewSnapshotReader wraps pool.
func NewSnapshotReader(pool *pgxpool.Pool) *SnapshotReader {
	return &SnapshotReader{pool: pool}
}

type backlinkPath struct {
	DomainID uint   `db:"domain_id"`
	URLPath  string `db:"url_path"`
}

// LoadActive returns every active domain with its distinct backlink paths and rules.
func (r *SnapshotReader) LoadActive(ctx context.Context) ([]model.DomainRuleSet, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, selectActiveDomains, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("postgres: query domains: %w", err)
	}
	domains, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[model.Domain])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect domains: %w", err)
	}
	if len(domains) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(domains))
	for i, d := range domains {
		ids[i] = int64(d.ID)
	}

	rows, err = tx.Query(ctx, selectBacklinkPaths, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: query backlink paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowToStructByName[backlinkPath])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect backlink paths: %w", err)
	}

	rows, err = tx.Query(ctx, selectRules, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: query rules: %w", err)
	}
	rules, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[model.RedirectRule])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect rules: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit snapshot: %w", err)
	}

	return model.AssembleRuleSets(domains, func(yield func(uint, string)) {
		for _, p := range paths {
			yield(p.DomainID, p.URLPath)
		}
	}, rules), nil
}
