package repository

import (
	"context"
	"errors"

	"github.com/sifan077/redirector/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrBacklinkNotFound signals that the requested backlink does not exist.
	ErrBacklinkNotFound = errors.New("backlink not found")
)

const backlinkBatchSize = 500

// BacklinkRepository defines the data access contract for backlinks.
type BacklinkRepository interface {
	Create(ctx context.Context, backlink *model.Backlink) error
	CreateBatch(ctx context.Context, backlinks []model.Backlink) error
	GetByID(ctx context.Context, id uint) (*model.Backlink, error)
	ListByDomain(ctx context.Context, domainID uint, limit, offset int) ([]model.Backlink, error)
	PathSet(ctx context.Context, domainID uint) ([]string, error)
	Delete(ctx context.Context, id uint) error
}

type backlinkRepository struct {
	db *gorm.DB
}

// NewBacklinkRepository returns a GORM-backed BacklinkRepository.
func NewBacklinkRepository(db *gorm.DB) BacklinkRepository {
	return &backlinkRepository{db: db}
}

func (r *backlinkRepository) Create(ctx context.Context, backlink *model.Backlink) error {
	return r.db.WithContext(ctx).Create(backlink).Error
}

func (r *backlinkRepository) CreateBatch(ctx context.Context, backlinks []model.Backlink) error {
	if len(backlinks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(backlinks, backlinkBatchSize).Error
}

func (r *backlinkRepository) GetByID(ctx context.Context, id uint) (*model.Backlink, error) {
	var backlink model.Backlink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&backlink).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBacklinkNotFound
		}
		return nil, err
	}
	return &backlink, nil
}

func (r *backlinkRepository) ListByDomain(ctx context.Context, domainID uint, limit, offset int) ([]model.Backlink, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var result []model.Backlink
	if err := r.db.WithContext(ctx).
		Where("domain_id = ?", domainID).
		Order("url_path ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// PathSet returns the distinct url paths linked to on a domain.
func (r *backlinkRepository) PathSet(ctx context.Context, domainID uint) ([]string, error) {
	return pathSet(r.db.WithContext(ctx), domainID)
}

func pathSet(db *gorm.DB, domainID uint) ([]string, error) {
	var paths []string
	if err := db.Model(&model.Backlink{}).
		Where("domain_id = ?", domainID).
		Distinct("url_path").
		Order("url_path ASC").
		Pluck("url_path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *backlinkRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Backlink{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBacklinkNotFound
	}
	return nil
}
