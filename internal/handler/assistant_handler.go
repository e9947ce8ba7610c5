package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type announcementDrafter interface {
	DraftAnnouncement(ctx context.Context, req service.AnnouncementRequest) (service.GeneratedText, error)
}

// AssistantHandler exposes the text assistant.
type AssistantHandler struct {
	assistant announcementDrafter
}

func NewAssistantHandler(assistant announcementDrafter) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

// Announcement godoc
// @Summary Draft a WhatsApp announcement
// @Tags Assistant
// @Accept json
// @Produce json
// @Param payload body service.AnnouncementRequest true "Topic"
// @Success 200 {object} response.Envelope
// @Router /assistant/announcements [post]
func (h *AssistantHandler) Announcement(c *gin.Context) {
	var req service.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid announcement payload"))
		return
	}
	text, err := h.assistant.DraftAnnouncement(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, text, nil)
}
