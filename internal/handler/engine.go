package handler

import (
	"context"
	"net/http"

	"posterminal/internal/dto"
	"posterminal/internal/middleware"
	"posterminal/internal/model"
	"posterminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EngineHandler exposes the operator's engine to the shell. Every call runs
// under the engine's lock, so one operator's commands never interleave.
type EngineHandler struct{ registry *service.EngineRegistry }

func NewEngineHandler(registry *service.EngineRegistry) *EngineHandler {
	return &EngineHandler{registry: registry}
}

// run executes fn against the caller's engine and writes its result.
func (h *EngineHandler) run(c *gin.Context, status int, fn func(ctx context.Context, e *service.Engine) (interface{}, error)) {
	op := middleware.GetOperator(c)
	var out interface{}
	err := h.registry.With(c.Request.Context(), op, func(e *service.Engine) error {
		var err error
		out, err = fn(c.Request.Context(), e)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, out)
}

// State godoc
// @Summary Current cart, tenders and session of the operator
// @Tags engine
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.EngineState
// @Router /v1/engine/state [get]
func (h *EngineHandler) State(c *gin.Context) {
	h.run(c, http.StatusOK, func(_ context.Context, e *service.Engine) (interface{}, error) {
		return e.State(), nil
	})
}

func (h *EngineHandler) Functions(c *gin.Context) {
	h.run(c, http.StatusOK, func(_ context.Context, e *service.Engine) (interface{}, error) {
		return e.Functions(), nil
	})
}

func (h *EngineHandler) ToggleMenu(c *gin.Context) {
	h.run(c, http.StatusOK, func(_ context.Context, e *service.Engine) (interface{}, error) {
		return e.ToggleMenu(), nil
	})
}

// Dispatch godoc
// @Summary Run a function-key command by name
// @Tags engine
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CommandRequest true "Command"
// @Success 200 {object} dto.CommandResponse
// @Failure 403 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/engine/commands [post]
func (h *EngineHandler) Dispatch(c *gin.Context) {
	var req dto.CommandRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cmd := service.Command{
		Name:         service.CommandName(req.Command),
		Token:        req.Token,
		Index:        req.Index,
		Amount:       req.Amount,
		Counted:      toFormAmounts(req.Counted),
		DocumentKind: model.DocumentKind(req.DocumentKind),
		Motive:       req.Motive,
		Escalate:     escalatorFor(req.Supervisor),
	}
	if req.SaleID != "" {
		cmd.SaleID = uuid.MustParse(req.SaleID)
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		res, err := e.Dispatch(ctx, cmd)
		if err != nil {
			return nil, err
		}
		return dto.CommandResponse{Command: req.Command, Result: res}, nil
	})
}
