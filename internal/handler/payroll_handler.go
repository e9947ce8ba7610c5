package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/service"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type payrollService interface {
	Roster(ctx context.Context) (*service.PayrollRoster, error)
	Pay(ctx context.Context, id string, req service.PaySalaryRequest) (*service.SalarySlip, error)
}

// PayrollHandler exposes salary disbursement.
type PayrollHandler struct {
	payroll payrollService
}

func NewPayrollHandler(payroll payrollService) *PayrollHandler {
	return &PayrollHandler{payroll: payroll}
}

// Roster godoc
// @Summary Payroll roster with paid months
// @Tags Payroll
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payroll [get]
func (h *PayrollHandler) Roster(c *gin.Context) {
	roster, err := h.payroll.Roster(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Pay godoc
// @Summary Disburse a monthly salary
// @Tags Payroll
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.PaySalaryRequest true "Month and optional amount"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payroll/teachers/{id}/pay [post]
func (h *PayrollHandler) Pay(c *gin.Context) {
	var req service.PaySalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid salary payload"))
		return
	}
	slip, err := h.payroll.Pay(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slip)
}
