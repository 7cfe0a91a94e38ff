package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/service"
	"go.uber.org/zap"
)

// HitPublisher records decisions made by the live redirect surface.
type HitPublisher interface {
	Publish(domain, ip, userAgent string, decision redirect.Decision) error
}

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger    *zap.Logger
	Redirects service.RedirectService
	Hits      HitPublisher
}

// RedirectHandler answers requests for redirected domains with the same decisions the edge proxy makes.
type RedirectHandler struct {
	logger    *zap.Logger
	redirects service.RedirectService
	hits      HitPublisher
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:    logger,
		redirects: deps.Redirects,
		hits:      deps.Hits,
	}
}

// Register wires the catch-all redirect route onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/*", h.Resolve)
}

// Health is a simple endpoint so we know the service is running.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "redirector",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /* for any host.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	// Request strings alias fasthttp buffers that are reused once the handler returns,
	// and both the plan cache and the hit publisher outlive the request.
	host := utils.CopyString(c.Hostname())
	ua := utils.CopyString(c.Get(fiber.HeaderUserAgent))

	decision, err := h.redirects.Resolve(requestContext(c), host, string(c.Request().URI().PathOriginal()), ua)
	if err != nil {
		h.logger.Error("failed to resolve redirect", zap.Error(err), zap.String("host", host))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if h.hits != nil {
		ip := utils.CopyString(c.IP())
		go h.publishHit(host, ip, ua, decision)
	}

	if !decision.Matched {
		return c.SendStatus(fiber.StatusNotFound)
	}
	h.logger.Debug("redirecting",
		zap.String("host", host),
		zap.String("path", decision.Path),
		zap.String("target", decision.TargetURL),
	)
	return c.Redirect(decision.TargetURL, decision.StatusCode)
}

func (h *RedirectHandler) publishHit(host, ip, ua string, decision redirect.Decision) {
	if err := h.hits.Publish(redirect.NormalizeHost(host), ip, ua, decision); err != nil {
		h.logger.Error("failed to publish hit event", zap.Error(err), zap.String("host", host))
	}
}
