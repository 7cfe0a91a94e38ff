package repository

import (
	"context"

	"github.com/sifan077/redirector/internal/app/model"
	"gorm.io/gorm"
)

// HitEventRepository defines the data access contract for redirect hit events.
type HitEventRepository interface {
	Create(ctx context.Context, event *model.HitEvent) error
}

type hitEventRepository struct {
	db *gorm.DB
}

// NewHitEventRepository returns a GORM-backed HitEventRepository.
func NewHitEventRepository(db *gorm.DB) HitEventRepository {
	return &hitEventRepository{db: db}
}

func (r *hitEventRepository) Create(ctx context.Context, event *model.HitEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
