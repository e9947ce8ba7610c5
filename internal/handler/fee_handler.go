package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type feeService interface {
	Ledger(ctx context.Context, asOf time.Time, className string) ([]service.LedgerRow, error)
	StudentLedger(ctx context.Context, id string, asOf time.Time) (*service.StudentLedger, error)
	Collect(ctx context.Context, id string, req service.CollectFeeRequest) (*service.Receipt, error)
}

// FeeHandler exposes the fee ledger.
type FeeHandler struct {
	fees feeService
}

func NewFeeHandler(fees feeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Ledger godoc
// @Summary Fee ledger for every student
// @Tags Fees
// @Produce json
// @Param asOf query string false "Reference date (YYYY-MM-DD), defaults to today"
// @Param className query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /fees/ledger [get]
func (h *FeeHandler) Ledger(c *gin.Context) {
	asOf, err := asOfParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.fees.Ledger(c.Request.Context(), asOf, strings.TrimSpace(c.Query("className")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// StudentLedger godoc
// @Summary Fee ledger and payment history of one student
// @Tags Fees
// @Produce json
// @Param id path string true "Student ID"
// @Param asOf query string false "Reference date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/students/{id} [get]
func (h *FeeHandler) StudentLedger(c *gin.Context) {
	asOf, err := asOfParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	row, err := h.fees.StudentLedger(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Collect godoc
// @Summary Collect a monthly fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.CollectFeeRequest true "Month and optional amount"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /fees/students/{id}/collect [post]
func (h *FeeHandler) Collect(c *gin.Context) {
	var req service.CollectFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payment payload"))
		return
	}
	receipt, err := h.fees.Collect(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}
