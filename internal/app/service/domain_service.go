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

// DomainService defines behaviour-level operations on domain policies.
type DomainService interface {
	CreateDomain(ctx context.Context, input CreateDomainInput) (*model.Domain, *ConfigStatus, error)
	GetDomain(ctx context.Context, name string) (*model.Domain, error)
	ListDomains(ctx context.Context, limit, offset int) ([]model.Domain, error)
	UpdateDomain(ctx context.Context, name string, input UpdateDomainInput) (*model.Domain, *ConfigStatus, error)
	SetStatus(ctx context.Context, name, status string) (*model.Domain, *ConfigStatus, error)
	DeleteDomain(ctx context.Context, name string) (*ConfigStatus, error)
}

type domainService struct {
	repo   repository.DomainRepository
	regen  Regenerator
	logger *zap.Logger
}

// NewDomainService returns a service backed by repo that regenerates proxy config through regen.
func NewDomainService(repo repository.DomainRepository, regen Regenerator, logger *zap.Logger) DomainService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &domainService{repo: repo, regen: regen, logger: logger}
}

// CreateDomainInput captures data required to create a domain policy.
type CreateDomainInput struct {
	Name              string
	TargetURL         string
	RedirectMode      string
	UnmatchedBehavior string
	RedirectCode      int
	Status            string
	Priority          int
}

// UpdateDomainInput captures fields that can be changed on an existing domain policy.
type UpdateDomainInput struct {
	Name              *string
	TargetURL         *string
	RedirectMode      *string
	UnmatchedBehavior *string
	RedirectCode      *int
	Status            *string
	Priority          *int
}

func (s *domainService) CreateDomain(ctx context.Context, input CreateDomainInput) (*model.Domain, *ConfigStatus, error) {
	domain := &model.Domain{
		Name:              redirect.NormalizeHost(input.Name),
		TargetURL:         input.TargetURL,
		RedirectMode:      input.RedirectMode,
		UnmatchedBehavior: input.UnmatchedBehavior,
		RedirectCode:      input.RedirectCode,
		Status:            input.Status,
		Priority:          input.Priority,
	}
	if domain.RedirectMode == "" {
		domain.RedirectMode = model.ModeFull
	}
	if domain.UnmatchedBehavior == "" {
		domain.UnmatchedBehavior = model.UnmatchedNotFound
	}
	if domain.RedirectCode == 0 {
		domain.RedirectCode = 301
	}
	if domain.Status == "" {
		domain.Status = model.StatusActive
	}
	if err := redirect.ValidateDomain(domain); err != nil {
		return nil, nil, err
	}
	if err := s.ensureNameFree(ctx, domain.Name, 0); err != nil {
		return nil, nil, fmt.Errorf("create domain: %w", err)
	}

	if err := s.repo.Create(ctx, domain); err != nil {
		return nil, nil, fmt.Errorf("create domain: %w", err)
	}

	var status *ConfigStatus
	if domain.IsActive() {
		status = regenerate(ctx, s.regen, s.logger, "domain created")
	}
	return domain, status, nil
}

func (s *domainService) GetDomain(ctx context.Context, name string) (*model.Domain, error) {
	domain, err := s.repo.GetByName(ctx, redirect.NormalizeHost(name))
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return domain, nil
}

func (s *domainService) ListDomains(ctx context.Context, limit, offset int) ([]model.Domain, error) {
	domains, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return domains, nil
}

func (s *domainService) UpdateDomain(ctx context.Context, name string, input UpdateDomainInput) (*model.Domain, *ConfigStatus, error) {
	domain, err := s.repo.GetByName(ctx, redirect.NormalizeHost(name))
	if err != nil {
		return nil, nil, fmt.Errorf("load domain: %w", err)
	}
	wasActive := domain.IsActive()
	oldName := domain.Name

	if input.Name != nil {
		domain.Name = redirect.NormalizeHost(*input.Name)
	}
	if input.TargetURL != nil {
		domain.TargetURL = *input.TargetURL
	}
	if input.RedirectMode != nil {
		domain.RedirectMode = *input.RedirectMode
	}
	if input.UnmatchedBehavior != nil {
		domain.UnmatchedBehavior = *input.UnmatchedBehavior
	}
	if input.RedirectCode != nil {
		domain.RedirectCode = *input.RedirectCode
	}
	if input.Status != nil {
		domain.Status = *input.Status
	}
	if input.Priority != nil {
		domain.Priority = *input.Priority
	}

	if err := redirect.ValidateDomain(domain); err != nil {
		return nil, nil, err
	}
	if domain.Name != oldName {
		if err := s.ensureNameFree(ctx, domain.Name, domain.ID); err != nil {
			return nil, nil, fmt.Errorf("update domain: %w", err)
		}
	}

	if err := s.repo.Update(ctx, domain); err != nil {
		return nil, nil, fmt.Errorf("update domain: %w", err)
	}

	var status *ConfigStatus
	if wasActive || domain.IsActive() {
		status = regenerate(ctx, s.regen, s.logger, "domain updated")
	}
	return domain, status, nil
}

func (s *domainService) SetStatus(ctx context.Context, name, status string) (*model.Domain, *ConfigStatus, error) {
	if status != model.StatusActive && status != model.StatusInactive {
		return nil, nil, &redirect.ValidationError{Field: "status", Message: fmt.Sprintf("must be %q or %q", model.StatusActive, model.StatusInactive)}
	}
	domain, err := s.repo.GetByName(ctx, redirect.NormalizeHost(name))
	if err != nil {
		return nil, nil, fmt.Errorf("load domain: %w", err)
	}
	if domain.Status == status {
		return domain, nil, nil
	}

	domain.Status = status
	if err := s.repo.Update(ctx, domain); err != nil {
		return nil, nil, fmt.Errorf("set domain status: %w", err)
	}
	return domain, regenerate(ctx, s.regen, s.logger, "domain "+status), nil
}

func (s *domainService) DeleteDomain(ctx context.Context, name string) (*ConfigStatus, error) {
	domain, err := s.repo.GetByName(ctx, redirect.NormalizeHost(name))
	if err != nil {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	if err := s.repo.Delete(ctx, domain.ID); err != nil {
		return nil, fmt.Errorf("delete domain: %w", err)
	}
	if !domain.IsActive() {
		return nil, nil
	}
	return regenerate(ctx, s.regen, s.logger, "domain deleted"), nil
}

func (s *domainService) ensureNameFree(ctx context.Context, name string, selfID uint) error {
	existing, err := s.repo.GetByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrDomainNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return repository.ErrDuplicateDomain
	}
	return nil
}
