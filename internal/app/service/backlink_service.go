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

const maxReportedImportErrors = 50

// BacklinkService manages the backlinks that make up each domain's backlink path set.
type BacklinkService interface {
	AddBacklink(ctx context.Context, domain string, input BacklinkInput) (*model.Backlink, *ConfigStatus, error)
	ImportBacklinks(ctx context.Context, domain string, rows []BacklinkInput) (*ImportResult, *ConfigStatus, error)
	ListBacklinks(ctx context.Context, domain string, limit, offset int) ([]model.Backlink, error)
	DeleteBacklink(ctx context.Context, id uint) (*ConfigStatus, error)
}

// BacklinkInput is one normalized backlink record. Target is a URL on the domain or a bare path.
type BacklinkInput struct {
	LinkingURL string `json:"linking_url"`
	Target     string `json:"target"`
}

// ImportError describes a skipped import row.
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

type backlinkService struct {
	backlinks repository.BacklinkRepository
	domains   repository.DomainRepository
	regen     Regenerator
	logger    *zap.Logger
}

// NewBacklinkService returns a service backed by the given repositories.
func NewBacklinkService(backlinks repository.BacklinkRepository, domains repository.DomainRepository, regen Regenerator, logger *zap.Logger) BacklinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backlinkService{backlinks: backlinks, domains: domains, regen: regen, logger: logger}
}

func (s *backlinkService) AddBacklink(ctx context.Context, domain string, input BacklinkInput) (*model.Backlink, *ConfigStatus, error) {
	d, err := s.domains.GetByName(ctx, redirect.NormalizeHost(domain))
	if err != nil {
		return nil, nil, fmt.Errorf("load domain: %w", err)
	}
	path, err := redirect.BacklinkPath(d.Name, input.LinkingURL, input.Target)
	if err != nil {
		return nil, nil, err
	}

	backlink := &model.Backlink{DomainID: d.ID, LinkingURL: input.LinkingURL, URLPath: path}
	if err := s.backlinks.Create(ctx, backlink); err != nil {
		return nil, nil, fmt.Errorf("create backlink: %w", err)
	}

	var status *ConfigStatus
	if d.IsActive() {
		status = regenerate(ctx, s.regen, s.logger, "backlink added")
	}
	return backlink, status, nil
}

// ImportBacklinks stores every valid row and counts the rest. One regeneration covers the whole batch.
func (s *backlinkService) ImportBacklinks(ctx context.Context, domain string, rows []BacklinkInput) (*ImportResult, *ConfigStatus, error) {
	d, err := s.domains.GetByName(ctx, redirect.NormalizeHost(domain))
	if err != nil {
		return nil, nil, fmt.Errorf("load domain: %w", err)
	}

	result := &ImportResult{}
	batch := make([]model.Backlink, 0, len(rows))
	for i, row := range rows {
		path, err := redirect.BacklinkPath(d.Name, row.LinkingURL, row.Target)
		if err != nil {
			result.Skipped++
			if len(result.Errors) < maxReportedImportErrors {
				result.Errors = append(result.Errors, ImportError{Row: i + 1, Message: err.Error()})
			}
			continue
		}
		batch = append(batch, model.Backlink{DomainID: d.ID, LinkingURL: row.LinkingURL, URLPath: path})
	}

	if err := s.backlinks.CreateBatch(ctx, batch); err != nil {
		return nil, nil, fmt.Errorf("import backlinks: %w", err)
	}
	result.Imported = len(batch)

	s.logger.Info("backlinks imported",
		zap.String("domain", d.Name),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
	)

	var status *ConfigStatus
	if d.IsActive() && result.Imported > 0 {
		status = regenerate(ctx, s.regen, s.logger, "backlinks imported")
	}
	return result, status, nil
}

func (s *backlinkService) ListBacklinks(ctx context.Context, domain string, limit, offset int) ([]model.Backlink, error) {
	d, err := s.domains.GetByName(ctx, redirect.NormalizeHost(domain))
	if err != nil {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	list, err := s.backlinks.ListByDomain(ctx, d.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list backlinks: %w", err)
	}
	return list, nil
}

func (s *backlinkService) DeleteBacklink(ctx context.Context, id uint) (*ConfigStatus, error) {
	backlink, err := s.backlinks.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load backlink: %w", err)
	}
	// The owning domain is loaded first so a failed lookup leaves the backlink in place.
	d, err := s.domains.GetByID(ctx, backlink.DomainID)
	if err != nil && !errors.Is(err, repository.ErrDomainNotFound) {
		return nil, fmt.Errorf("load domain: %w", err)
	}
	if err := s.backlinks.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete backlink: %w", err)
	}
	if d == nil || !d.IsActive() {
		return nil, nil
	}
	return regenerate(ctx, s.regen, s.logger, "backlink deleted"), nil
}
