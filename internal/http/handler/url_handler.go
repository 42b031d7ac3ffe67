package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/tinyurl/internal/app/service"
	"go.uber.org/zap"
)

// URLDeps groups dependencies required by the URL handlers.
type URLDeps struct {
	Logger    *zap.Logger
	Service   service.URLService
	URLPrefix string
	Now       func() time.Time
}

// URLHandler implements the create/resolve/delete/stats endpoints.
type URLHandler struct {
	logger    *zap.Logger
	svc       service.URLService
	urlPrefix string
	now       func() time.Time
}

// NewURLHandler creates a URL handler with the provided dependencies.
func NewURLHandler(deps URLDeps) *URLHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &URLHandler{
		logger:    logger,
		svc:       deps.Service,
		urlPrefix: deps.URLPrefix,
		now:       now,
	}
}

// Register wires the routes onto the provided router. The catch-all
// redirect route goes last so it never shadows the others.
func (h *URLHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)

	router.Post("/url", h.Create)
	router.Get("/url/:code", h.Resolve)
	router.Delete("/url/:code", h.Delete)
	router.Get("/urlStats/:code", h.Stats)

	router.Get("/:code", h.Redirect)
}

// Health is a simple root endpoint so we know the service is running.
func (h *URLHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "tinyurl",
		"status":  "ok",
		"time":    h.now().UTC().Format(time.RFC3339),
	})
}

// CreateURLRequest is the body of POST /url.
type CreateURLRequest struct {
	LongURL string `json:"longUrl"`
}

// Create handles POST /url and answers with the full short URL.
func (h *URLHandler) Create(c *fiber.Ctx) error {
	var req CreateURLRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	code, err := h.svc.Assign(userContext(c), req.LongURL)
	if err != nil {
		return h.fail(c, err, "create short url", "")
	}

	return c.Status(fiber.StatusCreated).SendString(h.urlPrefix + code)
}

// Resolve handles GET /url/:code and returns the long URL as plain text.
func (h *URLHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	longURL, err := h.svc.Resolve(userContext(c), code)
	if err != nil {
		return h.fail(c, err, "resolve short url", code)
	}
	return c.SendString(longURL)
}

// Redirect handles GET /:code with a 302 to the long URL.
func (h *URLHandler) Redirect(c *fiber.Ctx) error {
	code := c.Params("code")
	longURL, err := h.svc.Resolve(userContext(c), code)
	if err != nil {
		return h.fail(c, err, "resolve short url", code)
	}
	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", longURL))
	return c.Redirect(longURL, fiber.StatusFound)
}

// Delete handles DELETE /url/:code. Unknown codes are not an error.
func (h *URLHandler) Delete(c *fiber.Ctx) error {
	code := c.Params("code")
	if err := h.svc.Remove(userContext(c), code); err != nil {
		return h.fail(c, err, "delete short url", code)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stats handles GET /urlStats/:code.
func (h *URLHandler) Stats(c *fiber.Ctx) error {
	code := c.Params("code")
	stats, err := h.svc.Stats(userContext(c), code, h.now())
	if err != nil {
		return h.fail(c, err, "load url stats", code)
	}
	return c.JSON(stats)
}

func (h *URLHandler) fail(c *fiber.Ctx, err error, action, code string) error {
	status, message := fiber.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, service.ErrValidation):
		status, message = fiber.StatusBadRequest, "please provide a long url to be shortened"
	case errors.Is(err, service.ErrNotFound):
		status, message = fiber.StatusNotFound, "no url found for the short url provided"
	case errors.Is(err, service.ErrConflict):
		status, message = fiber.StatusConflict, "failed to create short url, please retry"
	case errors.Is(err, service.ErrStoreUnavailable):
		status, message = fiber.StatusServiceUnavailable, "unable to "+action+", please try again later"
	}

	if status >= fiber.StatusInternalServerError {
		h.logger.Error("failed to "+action, zap.Error(err), zap.String("code", code))
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
