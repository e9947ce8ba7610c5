package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type settingsService interface {
	Get(ctx context.Context) (*models.SchoolConfig, error)
	Update(ctx context.Context, cfg models.SchoolConfig) (*models.SchoolConfig, error)
}

// SettingsHandler serves school branding and session dates.
type SettingsHandler struct {
	settings settingsService
}

func NewSettingsHandler(settings settingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get godoc
// @Summary School settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	cfg, err := h.settings.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Update godoc
// @Summary Replace school settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.SchoolConfig true "Settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var cfg models.SchoolConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Error(c, invalidPayload(err, "invalid settings payload"))
		return
	}
	saved, err := h.settings.Update(c.Request.Context(), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved, nil)
}
