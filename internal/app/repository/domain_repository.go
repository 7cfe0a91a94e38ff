package repository

import (
	"context"
	"errors"

	"github.com/sifan077/redirector/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrDomainNotFound signals that the requested domain policy does not exist.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrDuplicateDomain signals that a policy for the domain name already exists.
	ErrDuplicateDomain = errors.New("domain already exists")
)

// DomainRepository defines the data access contract for domain policies.
type DomainRepository interface {
	Create(ctx context.Context, domain *model.Domain) error
	GetByID(ctx context.Context, id uint) (*model.Domain, error)
	GetByName(ctx context.Context, name string) (*model.Domain, error)
	List(ctx context.Context, limit, offset int) ([]model.Domain, error)
	ListActive(ctx context.Context) ([]model.Domain, error)
	Update(ctx context.Context, domain *model.Domain) error
	Delete(ctx context.Context, id uint) error
}

type domainRepository struct {
	db *gorm.DB
}

// NewDomainRepository returns a GORM-backed DomainRepository.
func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{db: db}
}

func (r *domainRepository) Create(ctx context.Context, domain *model.Domain) error {
	if err := r.db.WithContext(ctx).Create(domain).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateDomain
		}
		return err
	}
	return nil
}

func (r *domainRepository) GetByID(ctx context.Context, id uint) (*model.Domain, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *domainRepository) GetByName(ctx context.Context, name string) (*model.Domain, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *domainRepository) first(ctx context.Context, query string, arg any) (*model.Domain, error) {
	var domain model.Domain
	if err := r.db.WithContext(ctx).Where(query, arg).First(&domain).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return &domain, nil
}

func (r *domainRepository) List(ctx context.Context, limit, offset int) ([]model.Domain, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Domain
	if err := r.db.WithContext(ctx).
		Order("priority DESC, name ASC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *domainRepository) ListActive(ctx context.Context) ([]model.Domain, error) {
	var result []model.Domain
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.StatusActive).
		Order("priority DESC, name ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *domainRepository) Update(ctx context.Context, domain *model.Domain) error {
	result := r.db.WithContext(ctx).
		Model(&model.Domain{}).
		Where("id = ?", domain.ID).
		Updates(map[string]interface{}{
			"name":               domain.Name,
			"target_url":         domain.TargetURL,
			"redirect_mode":      domain.RedirectMode,
			"unmatched_behavior": domain.UnmatchedBehavior,
			"redirect_code":      domain.RedirectCode,
			"status":             domain.Status,
			"priority":           domain.Priority,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateDomain
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDomainNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", domain.ID).First(domain).Error
}

// Delete removes the domain together with its backlinks and rules.
func (r *domainRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("domain_id = ?", id).Delete(&model.Backlink{}).Error; err != nil {
			return err
		}
		if err := tx.Where("domain_id = ?", id).Delete(&model.RedirectRule{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Domain{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDomainNotFound
		}
		return nil
	})
}
