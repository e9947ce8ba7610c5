package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type examService interface {
	Standings(ctx context.Context) ([]service.StandingEntry, bool, error)
	Marksheet(ctx context.Context, id string) (*service.Marksheet, error)
	UpdateScore(ctx context.Context, id string, req service.UpdateScoreRequest) (*models.Student, error)
	ReplaceTermScores(ctx context.Context, id, term string, req service.ReplaceTermScoresRequest) (*models.Student, error)
	Remarks(ctx context.Context, id string) (*service.GeneratedText, error)
}

// ExamHandler exposes marks entry, ranking and marksheets.
type ExamHandler struct {
	exams examService
}

func NewExamHandler(exams examService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// Standings godoc
// @Summary Ranked class standings
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exams/standings [get]
func (h *ExamHandler) Standings(c *gin.Context) {
	entries, hit, err := h.exams.Standings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, withCacheMeta(c, hit))
}

// Marksheet godoc
// @Summary Marksheet of one student
// @Tags Exams
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exams/students/{id}/marksheet [get]
func (h *ExamHandler) Marksheet(c *gin.Context) {
	sheet, err := h.exams.Marksheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// UpdateScore godoc
// @Summary Update one mark
// @Description value accepts a number or string; non-numeric input is stored as 0
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateScoreRequest true "Score cell"
// @Success 200 {object} response.Envelope
// @Router /exams/students/{id}/scores [patch]
func (h *ExamHandler) UpdateScore(c *gin.Context) {
	var req service.UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid score payload"))
		return
	}
	student, err := h.exams.UpdateScore(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ReplaceTerm godoc
// @Summary Replace every score of a term
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param term path string true "Term name"
// @Param payload body service.ReplaceTermScoresRequest true "Scores"
// @Success 200 {object} response.Envelope
// @Router /exams/students/{id}/terms/{term} [put]
func (h *ExamHandler) ReplaceTerm(c *gin.Context) {
	var req service.ReplaceTermScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid term scores payload"))
		return
	}
	student, err := h.exams.ReplaceTermScores(c.Request.Context(), c.Param("id"), c.Param("term"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Remarks godoc
// @Summary Draft a report card remark
// @Tags Exams
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /exams/students/{id}/remarks [get]
func (h *ExamHandler) Remarks(c *gin.Context) {
	text, err := h.exams.Remarks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, text, nil)
}
