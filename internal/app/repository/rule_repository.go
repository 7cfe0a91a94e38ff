package repository

import (
	"context"
	"errors"

	"github.com/sifan077/redirector/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrRuleNotFound signals that the requested redirect rule does not exist.
	ErrRuleNotFound = errors.New("redirect rule not found")
	// ErrDuplicateRule signals that a non-regex rule for the same source path already exists.
	ErrDuplicateRule = errors.New("redirect rule already exists for source path")
)

// RuleRepository defines the data access contract for explicit redirect rules.
type RuleRepository interface {
	Create(ctx context.Context, rule *model.RedirectRule) error
	GetByID(ctx context.Context, id uint) (*model.RedirectRule, error)
	FindExact(ctx context.Context, domainID uint, sourcePath string) (*model.RedirectRule, error)
	ListByDomain(ctx context.Context, domainID uint) ([]model.RedirectRule, error)
	Update(ctx context.Context, rule *model.RedirectRule) error
	Delete(ctx context.Context, id uint) error
}

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository returns a GORM-backed RuleRepository.
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.RedirectRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRule
		}
		return err
	}
	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, id uint) (*model.RedirectRule, error) {
	var rule model.RedirectRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindExact returns the non-regex rule of a domain for sourcePath.
func (r *ruleRepository) FindExact(ctx context.Context, domainID uint, sourcePath string) (*model.RedirectRule, error) {
	var rule model.RedirectRule
	if err := r.db.WithContext(ctx).
		Where("domain_id = ? AND source_path = ? AND is_regex = ?", domainID, sourcePath, false).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListByDomain returns the rules of a domain ordered by priority, newest first on ties.
func (r *ruleRepository) ListByDomain(ctx context.Context, domainID uint) ([]model.RedirectRule, error) {
	return rulesOf(r.db.WithContext(ctx), domainID)
}

func rulesOf(db *gorm.DB, domainIDs ...uint) ([]model.RedirectRule, error) {
	var rules []model.RedirectRule
	if err := db.Where("domain_id IN ?", domainIDs).
		Order("priority DESC, created_at DESC, id DESC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.RedirectRule) error {
	result := r.db.WithContext(ctx).
		Model(&model.RedirectRule{}).
		Where("id = ?", rule.ID).
		Updates(map[string]interface{}{
			"source_path":   rule.SourcePath,
			"target_url":    rule.TargetURL,
			"redirect_type": rule.RedirectType,
			"is_regex":      rule.IsRegex,
			"priority":      rule.Priority,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRule
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return r.db.WithContext(ctx).Where("id = ?", rule.ID).First(rule).Error
}

func (r *ruleRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.RedirectRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
