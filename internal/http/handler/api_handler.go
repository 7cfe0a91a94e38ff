package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/repository"
	"github.com/sifan077/redirector/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger    *zap.Logger
	Domains   service.DomainService
	Backlinks service.BacklinkService
	Rules     service.RuleService
	Redirects service.RedirectService
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger    *zap.Logger
	domains   service.DomainService
	backlinks service.BacklinkService
	rules     service.RuleService
	redirects service.RedirectService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:    logger,
		domains:   deps.Domains,
		backlinks: deps.Backlinks,
		rules:     deps.Rules,
		redirects: deps.Redirects,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		domains := api.Group("/domains")
		{
			domains.Post("/", h.CreateDomain)
			domains.Get("/", h.ListDomains)
			domains.Get("/:name", h.GetDomain)
			domains.Patch("/:name", h.UpdateDomain)
			domains.Delete("/:name", h.DeleteDomain)
			domains.Post("/:name/activate", h.ActivateDomain)
			domains.Post("/:name/deactivate", h.DeactivateDomain)

			domains.Get("/:name/backlinks", h.ListBacklinks)
			domains.Post("/:name/backlinks", h.AddBacklink)
			domains.Post("/:name/backlinks/import", h.ImportBacklinks)

			domains.Get("/:name/rules", h.ListRules)
			domains.Post("/:name/rules", h.CreateRule)
		}

		api.Delete("/backlinks/:id", h.DeleteBacklink)

		rules := api.Group("/rules")
		{
			rules.Get("/:id", h.GetRule)
			rules.Patch("/:id", h.UpdateRule)
			rules.Delete("/:id", h.DeleteRule)
		}

		api.Post("/redirects/test", h.TestRedirect)

		cfg := api.Group("/config")
		{
			cfg.Post("/regenerate", h.Regenerate)
			cfg.Get("/preview/:name", h.Preview)
		}
	}
}

// DomainRequest represents the request body for creating a domain policy.
type DomainRequest struct {
	Name              string `json:"name"`
	TargetURL         string `json:"target_url"`
	RedirectMode      string `json:"redirect_mode,omitempty"`
	UnmatchedBehavior string `json:"unmatched_behavior,omitempty"`
	RedirectCode      int    `json:"redirect_code,omitempty"`
	Status            string `json:"status,omitempty"`
	Priority          int    `json:"priority,omitempty"`
}

// UpdateDomainRequest represents the request body for updating a domain policy.
type UpdateDomainRequest struct {
	Name              *string `json:"name,omitempty"`
	TargetURL         *string `json:"target_url,omitempty"`
	RedirectMode      *string `json:"redirect_mode,omitempty"`
	UnmatchedBehavior *string `json:"unmatched_behavior,omitempty"`
	RedirectCode      *int    `json:"redirect_code,omitempty"`
	Status            *string `json:"status,omitempty"`
	Priority          *int    `json:"priority,omitempty"`
}

// DomainResponse represents a domain policy in API responses.
type DomainResponse struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	TargetURL         string    `json:"target_url"`
	RedirectMode      string    `json:"redirect_mode"`
	UnmatchedBehavior string    `json:"unmatched_behavior"`
	RedirectCode      int       `json:"redirect_code"`
	Status            string    `json:"status"`
	Priority          int       `json:"priority"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toDomainResponse(d *model.Domain) DomainResponse {
	return DomainResponse{
		ID:                d.ID,
		Name:              d.Name,
		TargetURL:         d.TargetURL,
		RedirectMode:      d.RedirectMode,
		UnmatchedBehavior: d.UnmatchedBehavior,
		RedirectCode:      d.RedirectCode,
		Status:            d.Status,
		Priority:          d.Priority,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// CreateDomain handles POST /api/domains
func (h *APIHandler) CreateDomain(c *fiber.Ctx) error {
	var req DomainRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	domain, status, err := h.domains.CreateDomain(requestContext(c), service.CreateDomainInput{
		Name:              req.Name,
		TargetURL:         req.TargetURL,
		RedirectMode:      req.RedirectMode,
		UnmatchedBehavior: req.UnmatchedBehavior,
		RedirectCode:      req.RedirectCode,
		Status:            req.Status,
		Priority:          req.Priority,
	})
	if err != nil {
		return h.fail(c, err, "failed to create domain")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"domain": toDomainResponse(domain),
		"config": status,
	})
}

// ListDomains handles GET /api/domains
func (h *APIHandler) ListDomains(c *fiber.Ctx) error {
	limit, offset := pagination(c, 20)

	domains, err := h.domains.ListDomains(requestContext(c), limit, offset)
	if err != nil {
		return h.fail(c, err, "failed to list domains")
	}

	response := make([]DomainResponse, len(domains))
	for i := range domains {
		response[i] = toDomainResponse(&domains[i])
	}

	return c.JSON(fiber.Map{
		"domains": response,
		"limit":   limit,
		"offset":  offset,
		"count":   len(response),
	})
}

// GetDomain handles GET /api/domains/:name
func (h *APIHandler) GetDomain(c *fiber.Ctx) error {
	domain, err := h.domains.GetDomain(requestContext(c), c.Params("name"))
	if err != nil {
		return h.fail(c, err, "failed to get domain")
	}
	return c.JSON(toDomainResponse(domain))
}

// UpdateDomain handles PATCH /api/domains/:name
func (h *APIHandler) UpdateDomain(c *fiber.Ctx) error {
	var req UpdateDomainRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	domain, status, err := h.domains.UpdateDomain(requestContext(c), c.Params("name"), service.UpdateDomainInput{
		Name:              req.Name,
		TargetURL:         req.TargetURL,
		RedirectMode:      req.RedirectMode,
		UnmatchedBehavior: req.UnmatchedBehavior,
		RedirectCode:      req.RedirectCode,
		Status:            req.Status,
		Priority:          req.Priority,
	})
	if err != nil {
		return h.fail(c, err, "failed to update domain")
	}

	return c.JSON(fiber.Map{
		"domain": toDomainResponse(domain),
		"config": status,
	})
}

// ActivateDomain handles POST /api/domains/:name/activate
func (h *APIHandler) ActivateDomain(c *fiber.Ctx) error {
	return h.setStatus(c, model.StatusActive)
}

// DeactivateDomain handles POST /api/domains/:name/deactivate
func (h *APIHandler) DeactivateDomain(c *fiber.Ctx) error {
	return h.setStatus(c, model.StatusInactive)
}

func (h *APIHandler) setStatus(c *fiber.Ctx, status string) error {
	domain, cfg, err := h.domains.SetStatus(requestContext(c), c.Params("name"), status)
	if err != nil {
		return h.fail(c, err, "failed to change domain status")
	}
	return c.JSON(fiber.Map{
		"domain": toDomainResponse(domain),
		"config": cfg,
	})
}

// DeleteDomain handles DELETE /api/domains/:name
func (h *APIHandler) DeleteDomain(c *fiber.Ctx) error {
	status, err := h.domains.DeleteDomain(requestContext(c), c.Params("name"))
	if err != nil {
		return h.fail(c, err, "failed to delete domain")
	}
	return c.JSON(fiber.Map{
		"deleted": true,
		"config":  status,
	})
}

// TestRedirectRequest represents the request body for a redirect dry run.
type TestRedirectRequest struct {
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	UserAgent string `json:"user_agent,omitempty"`
}

// TestRedirect handles POST /api/redirects/test
func (h *APIHandler) TestRedirect(c *fiber.Ctx) error {
	var req TestRedirectRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "domain is required",
		})
	}
	if req.Path == "" {
		req.Path = "/"
	}

	decision, err := h.redirects.TestRedirect(requestContext(c), req.Domain, req.Path, req.UserAgent)
	if err != nil {
		return h.fail(c, err, "failed to test redirect")
	}
	return c.JSON(decision)
}

// Regenerate handles POST /api/config/regenerate
func (h *APIHandler) Regenerate(c *fiber.Ctx) error {
	result, err := h.redirects.RegenerateAndReload(requestContext(c))
	if err != nil {
		h.logger.Error("manual regeneration failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}
	return c.JSON(result)
}

// Preview handles GET /api/config/preview/:name
func (h *APIHandler) Preview(c *fiber.Ctx) error {
	content, err := h.redirects.Preview(requestContext(c), c.Params("name"))
	if err != nil {
		return h.fail(c, err, "failed to render preview")
	}
	return c.Type("txt", "utf-8").Send(content)
}

// fail maps service errors onto HTTP statuses.
func (h *APIHandler) fail(c *fiber.Ctx, err error, message string) error {
	var verr *redirect.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, repository.ErrDomainNotFound),
		errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrBacklinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": rootMessage(err),
		})
	case errors.Is(err, repository.ErrDuplicateDomain),
		errors.Is(err, repository.ErrDuplicateRule):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": rootMessage(err),
		})
	}

	h.logger.Error(message, zap.Error(err), zap.String("path", c.Path()))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
	})
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
	})
}

func pagination(c *fiber.Ctx, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed := c.QueryInt("offset"); parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
