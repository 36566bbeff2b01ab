package handler

import (
	"context"
	"net/http"
	"time"

	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/service"

	"github.com/gin-gonic/gin"
)

// OpenCash godoc
// @Summary Open the operator's cash session with an initial float
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenCashRequest true "Initial float"
// @Success 201 {object} dto.SessionResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/open [post]
func (h *EngineHandler) OpenCash(c *gin.Context) {
	var req dto.OpenCashRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusCreated, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		sess, err := e.OpenCash(ctx, req.InitialFloat, escalatorFor(req.Supervisor))
		if err != nil {
			return nil, err
		}
		return sessionResponse(sess), nil
	})
}

// RecordMovement godoc
// @Summary Record a drop or an infusion
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovementRequest true "Movement"
// @Success 201 {object} dto.MovementResponse
// @Failure 403 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cash/movements [post]
func (h *EngineHandler) RecordMovement(c *gin.Context) {
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusCreated, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		m, err := e.RecordMovement(ctx, req.Kind, req.Amount, req.Reason, escalatorFor(req.Supervisor))
		if err != nil {
			return nil, err
		}
		return dto.MovementResponse{
			ID:           m.ID.String(),
			Kind:         string(m.Kind),
			Amount:       m.Amount,
			Reason:       m.Reason,
			AuthorizerID: uuidPtr(m.AuthorizerID),
			CreatedAt:    m.CreatedAt.Format(time.RFC3339),
		}, nil
	})
}

func (h *EngineHandler) ExpectedTotals(c *gin.Context) {
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.ExpectedTotals(ctx)
	})
}

// ZReport returns the partial report of the open session.
func (h *EngineHandler) ZReport(c *gin.Context) {
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.ZReport(ctx)
	})
}

// CloseCash godoc
// @Summary Count the drawer, close the session and post the ledger entries
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CloseCashRequest true "Counted amounts per tender form"
// @Success 200 {object} dto.CloseResponse
// @Failure 403 {object} apierror.APIError
// @Router /v1/cash/close [post]
func (h *EngineHandler) CloseCash(c *gin.Context) {
	var req dto.CloseCashRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.CloseCash(ctx, toFormAmounts(req.Counted), escalatorFor(req.Supervisor))
	})
}

func sessionResponse(s *model.CashSession) dto.SessionResponse {
	r := dto.SessionResponse{
		ID:           s.ID.String(),
		TerminalID:   s.TerminalID.String(),
		OperatorID:   s.OperatorID.String(),
		InitialFloat: s.InitialFloat,
		Status:       string(s.Status),
		OpenedAt:     s.OpenedAt.Format(time.RFC3339),
		AuthorizerID: uuidPtr(s.AuthorizerID),
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		r.ClosedAt = &t
	}
	return r
}
