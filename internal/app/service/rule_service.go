package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/repository"
	"go.uber.org/zap"
)

// RuleService manages explicit redirect rules.
type RuleService interface {
	CreateRule(ctx context.Context, domain string, input RuleInput) (*model.RedirectRule, *ConfigStatus, error)
	GetRule(ctx context.Context, id uint) (*model.RedirectRule, error)
	ListRules(ctx context.Context, domain string) ([]model.RedirectRule, error)
	UpdateRule(ctx context.Context, id uint, input UpdateRuleInput) (*model.RedirectRule, *ConfigStatus, error)
	DeleteRule(ctx context.Context, id uint) (*ConfigStatus, error)
}

// RuleInput captures data required to create a rule.
type RuleInput struct {
	SourcePath   string
	TargetURL    string
	RedirectType int
	IsRegex      bool
	Priority     int
}

// UpdateRuleInput captures fields that can be changed on an existing rule.
type UpdateRuleInput struct {
	SourcePath   *string
	TargetURL    *string
	RedirectType *int
	IsRegex      *bool
	Priority     *int
}

type ruleService struct {
	rules    repository.RuleRepository
	domains  repository.DomainRepository
	regen    Regenerator
	patterns *redirect.PatternCache
	logger   *zap.Logger
}

// NewRuleService returns a service backed by the given repositories.
func NewRuleService(rules repository.RuleRepository, domains repository.DomainRepository, regen Regenerator, patterns *redirect.PatternCache, logger *zap.Logger) RuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ruleService{rules: rules, domains: domains, regen: regen, patterns: patterns, logger: logger}
}

func (s *ruleService) CreateRule(ctx context.Context, domain string, input RuleInput) (*model.RedirectRule, *ConfigStatus, error) {
	d, err := s.domains.GetByName(ctx, redirect.NormalizeHost(domain))
	if err != nil {
		return nil, nil, fmt.Errorf("load domain: %w", err)
	}

	rule := &model.RedirectRule{
		DomainID:     d.ID,
		SourcePath:   input.SourcePath,
		TargetURL:    input.TargetURL,
		RedirectType: input.RedirectType,
		IsRegex:      input.IsRegex,
		Priority:     input.Priority,
	}
	if err := redirect.ValidateRule(rule, s.patterns); err != nil {
		return nil, nil, err
	}
	if err := s.ensureSourceFree(ctx, rule); err != nil {
		return nil, nil, fmt.Errorf("create rule: %w", err)
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, nil, fmt.Errorf("create rule: %w", err)
	}

	var status *ConfigStatus
	if d.IsActive() {
		status = regenerate(ctx, s.regen, s.logger, "rule created")
	}
	return rule, status, nil
}

func (s *ruleService) GetRule(ctx context.Context, id uint) (*model.RedirectRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (s *ruleService) ListRules(ctx context.Context, domain string) ([]model.RedirectRule, error) {
	d, err := s.domains.GetByName(ctx, redirect.NormalizeHost(domain))
	if err != nil {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	rules, err := s.rules.ListByDomain(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *ruleService) UpdateRule(ctx context.Context, id uint, input UpdateRuleInput) (*model.RedirectRule, *ConfigStatus, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load rule: %w", err)
	}

	if input.SourcePath != nil {
		rule.SourcePath = *input.SourcePath
	}
	if input.TargetURL != nil {
		rule.TargetURL = *input.TargetURL
	}
	if input.RedirectType != nil {
		rule.RedirectType = *input.RedirectType
	}
	if input.IsRegex != nil {
		rule.IsRegex = *input.IsRegex
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if err := redirect.ValidateRule(rule, s.patterns); err != nil {
		return nil, nil, err
	}
	if err := s.ensureSourceFree(ctx, rule); err != nil {
		return nil, nil, fmt.Errorf("update rule: %w", err)
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, nil, fmt.Errorf("update rule: %w", err)
	}

	return rule, s.regenerateFor(ctx, rule.DomainID, "rule updated"), nil
}

func (s *ruleService) DeleteRule(ctx context.Context, id uint) (*ConfigStatus, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete rule: %w", err)
	}
	return s.regenerateFor(ctx, rule.DomainID, "rule deleted"), nil
}

func (s *ruleService) regenerateFor(ctx context.Context, domainID uint, cause string) *ConfigStatus {
	d, err := s.domains.GetByID(ctx, domainID)
	switch {
	case errors.Is(err, repository.ErrDomainNotFound):
		return nil
	case err != nil:
		// Activity unknown; a redundant cycle is harmless.
		s.logger.Warn("failed to load rule domain", zap.Uint("domain_id", domainID), zap.Error(err))
	case !d.IsActive():
		return nil
	}
	return regenerate(ctx, s.regen, s.logger, cause)
}

// ensureSourceFree enforces one non-regex rule per (domain, source path).
func (s *ruleService) ensureSourceFree(ctx context.Context, rule *model.RedirectRule) error {
	if rule.IsRegex {
		return nil
	}
	existing, err := s.rules.FindExact(ctx, rule.DomainID, rule.SourcePath)
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != rule.ID:
		return repository.ErrDuplicateRule
	}
	return nil
}
