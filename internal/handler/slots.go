package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/netpulse/webclient/internal/ads"
	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/util"
)

var positionPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

type SlotRenderer interface {
	Render(ctx context.Context, slot ads.Slot) (ads.Rendered, error)
	RenderArticle(ctx context.Context, body string, interval int) string
}

type Invalidator interface {
	Invalidate(ctx context.Context)
}

type SlotHandler struct {
	renderer        SlotRenderer
	invalidator     Invalidator
	logger          *util.Logger
	articleInterval int
}

func NewSlotHandler(renderer SlotRenderer, invalidator Invalidator, logger *util.Logger, articleInterval int) *SlotHandler {
	if logger == nil {
		logger = util.NewNopLogger()
	}
	if articleInterval <= 0 {
		articleInterval = ads.DefaultArticleAdInterval
	}
	return &SlotHandler{
		renderer:        renderer,
		invalidator:     invalidator,
		logger:          logger,
		articleInterval: articleInterval,
	}
}

// Slot answers GET /api/v1/slots/:position with the rendered slot as JSON.
func (h *SlotHandler) Slot(c *gin.Context) {
	rendered, ok := h.render(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.SlotResponse{
		Position: rendered.Position,
		Found:    rendered.Found,
		HTML:     rendered.HTML,
	})
}

// SlotHTML answers GET /api/v1/slots/:position/html with the bare fragment.
func (h *SlotHandler) SlotHTML(c *gin.Context) {
	rendered, ok := h.render(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(rendered.HTML))
}

func (h *SlotHandler) RenderArticle(c *gin.Context) {
	var req model.RenderArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, util.NewAppError(http.StatusBadRequest, util.ErrBadRequest.Message, err.Error()))
		return
	}

	interval := req.Interval
	if interval == 0 {
		interval = h.articleInterval
	}
	c.JSON(http.StatusOK, model.RenderArticleResponse{
		HTML: h.renderer.RenderArticle(c.Request.Context(), req.HTML, interval),
	})
}

func (h *SlotHandler) Invalidate(c *gin.Context) {
	h.invalidator.Invalidate(c.Request.Context())
	h.logger.Infow("Ad cache invalidated by request", "ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

// render never fails the page: a bad creative still yields its fallback.
func (h *SlotHandler) render(c *gin.Context) (ads.Rendered, bool) {
	position := c.Param("position")
	if !positionPattern.MatchString(position) {
		respondError(c, util.NewAppError(http.StatusBadRequest, util.ErrBadRequest.Message, "invalid slot position"))
		return ads.Rendered{}, false
	}

	rendered, err := h.renderer.Render(c.Request.Context(), ads.SlotForPosition(position))
	if err != nil {
		h.logger.Warnw("Slot rendered with fallback", "position", position, "error", err)
	}
	return rendered, true
}

func respondError(c *gin.Context, err error) {
	var appErr *util.AppError
	if !errors.As(err, &appErr) {
		appErr = util.WrapError(err, util.ErrInternalServer.Message)
	}
	c.AbortWithStatusJSON(appErr.Code, model.ErrorResponse{
		Error:   appErr.Message,
		Details: appErr.Details,
	})
}
