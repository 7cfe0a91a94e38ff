package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sifan077/redirector/internal/app/model"
	"gorm.io/gorm"
)

// SnapshotReader loads every active domain with its backlink path set and rules.
// Implementations read all three from one read-only repeatable-read transaction so
// an emission cycle never mixes states from different points in time.
type SnapshotReader interface {
	LoadActive(ctx context.Context) ([]model.DomainRuleSet, error)
}

type gormSnapshotReader struct {
	db *gorm.DB
}

// NewSnapshotReader returns a GORM-backed SnapshotReader.
func NewSnapshotReader(db *gorm.DB) SnapshotReader {
	return &gormSnapshotReader{db: db}
}

func (r *gormSnapshotReader) LoadActive(ctx context.Context) ([]model.DomainRuleSet, error) {
	var sets []model.DomainRuleSet
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var domains []model.Domain
		if err := tx.Where("status = ?", model.StatusActive).
			Order("priority DESC, name ASC").
			Find(&domains).Error; err != nil {
			return fmt.Errorf("load domains: %w", err)
		}
		if len(domains) == 0 {
			return nil
		}

		ids := make([]uint, len(domains))
		for i, d := range domains {
			ids[i] = d.ID
		}

		type pathRow struct {
			DomainID uint
			URLPath  string
		}
		var rows []pathRow
		if err := tx.Model(&model.Backlink{}).
			Select("DISTINCT domain_id, url_path").
			Where("domain_id IN ?", ids).
			Order("domain_id ASC, url_path ASC").
			Scan(&rows).Error; err != nil {
			return fmt.Errorf("load backlink paths: %w", err)
		}
		rules, err := rulesOf(tx, ids...)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}

		sets = model.AssembleRuleSets(domains, func(yield func(uint, string)) {
			for _, row := range rows {
				yield(row.DomainID, row.URLPath)
			}
		}, rules)
		return nil
	}, snapshotTxOptions(r.db))
	if err != nil {
		return nil, err
	}
	return sets, nil
}

// snapshotTxOptions asks Postgres for a single consistent view. Under the default
// READ COMMITTED level each statement sees its own snapshot, so a backlink committed
// between the domain and path queries could leak into a half-updated rule set.
// SQLite transactions are already serializable and its driver rejects other levels.
func snapshotTxOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
