package handler

import (
	"context"
	"net/http"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PriceCheck godoc
// @Summary Price a code without touching the cart
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param token query string true "Code or N*CODE"
// @Success 200 {object} dto.PriceCheckResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/products/price [get]
func (h *EngineHandler) PriceCheck(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, apierror.New("token is required"))
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.SearchProduct(ctx, token)
	})
}

// Scan godoc
// @Summary Add a scanned line, or recall a non-fiscal sale with #NUMBER
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ScanRequest true "Token"
// @Success 200 {object} dto.EngineState
// @Failure 404 {object} apierror.APIError
// @Router /v1/cart/scan [post]
func (h *EngineHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.Scan(ctx, req.Token, escalatorFor(req.Supervisor))
	})
}

func (h *EngineHandler) DeleteLine(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}
	var req dto.SupervisorOnlyRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.DeleteLine(ctx, idx, escalatorFor(req.Supervisor))
	})
}

// LineDiscount godoc
// @Summary Set a line discount by amount or percentage
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param index path int true "Line index"
// @Param body body dto.DiscountRequest true "Discount"
// @Success 200 {object} dto.EngineState
// @Failure 403 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/cart/lines/{index}/discount [put]
func (h *EngineHandler) LineDiscount(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}
	var req dto.DiscountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.SetLineDiscount(ctx, idx, req.Amount, req.Percent, escalatorFor(req.Supervisor))
	})
}

func (h *EngineHandler) SaleDiscount(c *gin.Context) {
	var req dto.DiscountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.SetSaleDiscount(ctx, req.Amount, req.Percent, escalatorFor(req.Supervisor))
	})
}

func (h *EngineHandler) SetCustomer(c *gin.Context) {
	var req dto.CustomerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	var id *uuid.UUID
	if req.CustomerID != nil {
		parsed := uuid.MustParse(*req.CustomerID)
		id = &parsed
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.SetCustomer(ctx, id)
	})
}

func (h *EngineHandler) CancelCurrent(c *gin.Context) {
	var req dto.SupervisorOnlyRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.CancelCurrent(ctx, escalatorFor(req.Supervisor))
	})
}

// AddTender godoc
// @Summary Add a tender to the current sale
// @Tags payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.TenderRequest true "Tender"
// @Success 200 {object} dto.EngineState
// @Failure 422 {object} apierror.APIError
// @Failure 501 {object} apierror.APIError
// @Router /v1/payment/tenders [post]
func (h *EngineHandler) AddTender(c *gin.Context) {
	var req dto.TenderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	preq := payment.Request{Form: model.TenderForm(req.Form), Amount: req.Amount}
	if req.Card != nil {
		mode := payment.CardMode(req.Card.Mode)
		if mode == "" {
			mode = payment.CardModePOS
		}
		preq.Card = &payment.CardEntry{
			Type:         model.CardType(req.Card.Type),
			Installments: req.Card.Installments,
			Mode:         mode,
			NSU:          req.Card.NSU,
			Doc:          req.Card.Doc,
		}
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.AddTender(ctx, preq)
	})
}

func (h *EngineHandler) RemoveTender(c *gin.Context) {
	idx, ok := pathIndex(c)
	if !ok {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.RemoveTender(ctx, idx)
	})
}

// Finalize godoc
// @Summary Commit the current sale, or convert a recalled one to fiscal
// @Tags sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.FinalizeRequest true "Document kind"
// @Success 201 {object} dto.FinalizeResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/sales/finalize [post]
func (h *EngineHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusCreated, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.Finalize(ctx, model.DocumentKind(req.DocumentKind), escalatorFor(req.Supervisor))
	})
}

// CancelSale godoc
// @Summary Cancel a finalized sale of the current session
// @Tags sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sale ID"
// @Param body body dto.CancelSaleRequest true "Reason"
// @Success 200 {object} dto.CancelSaleResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/sales/{id}/cancel [post]
func (h *EngineHandler) CancelSale(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid sale id"))
		return
	}
	var req dto.CancelSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.run(c, http.StatusOK, func(ctx context.Context, e *service.Engine) (interface{}, error) {
		return e.CancelFinalized(ctx, id, req.Motive, escalatorFor(req.Supervisor))
	})
}

func uuidPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
