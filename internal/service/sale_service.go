package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/cart"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommitRequest is everything a confirmed sale needs. Permissions have
// already been resolved by the caller.
type CommitRequest struct {
	Binding              *Binding
	SessionID            uuid.UUID
	Operator             *Operator
	CustomerID           *uuid.UUID
	Lines                []cart.Line
	Totals               cart.Totals
	Tenders              []payment.Tender
	Change               decimal.Decimal
	DocumentKind         model.DocumentKind
	DiscountAuthorizerID *uuid.UUID
	OpenedAt             time.Time
}

type SaleService interface {
	Commit(ctx context.Context, req CommitRequest) (*model.Sale, *dto.Receipt, error)
	Cancel(ctx context.Context, b *Binding, op *Operator, sessionID, saleID uuid.UUID, motive string, authorizerID *uuid.UUID) (*dto.CancellationReceipt, error)
	ConvertToFiscal(ctx context.Context, b *Binding, op *Operator, saleID uuid.UUID) (*model.Sale, *dto.Receipt, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
}

type saleService struct {
	repo      repository.SaleRepository
	terminals repository.TerminalRepository
	cash      repository.CashRepository
	stock     repository.StockRepository
	customers repository.CustomerRepository
	now       func() time.Time
}

func NewSaleService(
	repo repository.SaleRepository,
	terminals repository.TerminalRepository,
	cash repository.CashRepository,
	stock repository.StockRepository,
	customers repository.CustomerRepository,
) SaleService {
	return &saleService{
		repo:      repo,
		terminals: terminals,
		cash:      cash,
		stock:     stock,
		customers: customers,
		now:       time.Now,
	}
}

// ── Commit ────────────────────────────────────────────────────────────────────
// One transaction:
//   1. lock the terminal row and read the counter (assigned = counter + 1)
//   2. lock the session and check it is still open
//   3. insert header, lines and tenders
//   4. decrement stock per line (oversell allowed) and record the movement
//   5. store the counter
// A rollback leaves the counter untouched, so the number is not consumed.

func (s *saleService) Commit(ctx context.Context, req CommitRequest) (*model.Sale, *dto.Receipt, error) {
	if len(req.Lines) == 0 {
		return nil, nil, apierror.Invalid(apierror.CodeEmptyCart, "the cart is empty")
	}
	if !req.DocumentKind.Valid() {
		return nil, nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown document kind %q", req.DocumentKind))
	}
	tendered := decimal.Zero
	for _, t := range req.Tenders {
		tendered = tendered.Add(t.Amount)
	}
	if !model.NearlyEqual(tendered.Sub(req.Change), req.Totals.Net) {
		return nil, nil, apierror.Invalid(apierror.CodeOutstandingBalance,
			fmt.Sprintf("tendered %s minus change %s does not settle %s",
				tendered.StringFixed(2), req.Change.StringFixed(2), req.Totals.Net.StringFixed(2)))
	}
	customerName, err := s.customerName(ctx, req.CustomerID)
	if err != nil {
		return nil, nil, err
	}

	b := req.Binding
	now := s.now()
	sale := &model.Sale{
		SessionID:            req.SessionID,
		TerminalID:           b.Terminal.ID,
		OperatorID:           req.Operator.ID,
		CustomerID:           req.CustomerID,
		Subtotal:             req.Totals.Subtotal,
		LineDiscountTotal:    req.Totals.LineDiscounts,
		SaleDiscount:         req.Totals.SaleDiscount,
		NetTotal:             req.Totals.Net,
		AmountTendered:       model.Round2(tendered),
		Change:               model.Round2(req.Change),
		Status:               model.SaleFinalized,
		DocumentKind:         req.DocumentKind,
		DiscountAuthorizerID: req.DiscountAuthorizerID,
		OpenedAt:             req.OpenedAt,
		CreatedAt:            now,
	}
	for i, l := range req.Lines {
		sale.Lines = append(sale.Lines, model.SaleLine{
			Position:     i + 1,
			ProductID:    l.ProductID,
			Code:         l.Code,
			Description:  l.Description,
			Unit:         l.Unit,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LineDiscount: l.Discount,
			LineTotal:    l.Total(),
		})
	}
	for _, t := range req.Tenders {
		sale.Tenders = append(sale.Tenders, model.Tender{
			Form:         t.Form,
			Amount:       t.Amount,
			CardType:     t.CardType,
			Installments: t.Installments,
			NSU:          t.NSU,
			Doc:          t.Doc,
		})
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		term, err := s.terminals.LockTx(tx, b.Terminal.ID)
		if err != nil {
			return err
		}
		sess, err := s.cash.LockSessionTx(tx, req.SessionID)
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return apierror.Session(apierror.CodeSessionNotOpen, "session is no longer open")
		}

		sale.TerminalSaleNumber = term.NextSaleCounter + 1
		if sale.DocumentKind == model.DocumentFiscal {
			sale.FiscalKey = fiscalKey(b, sale.TerminalSaleNumber, now)
			sale.FiscalQR = fiscalQR(sale.FiscalKey)
		}
		if err := s.repo.CreateTx(tx, sale); err != nil {
			return err
		}
		for _, l := range sale.Lines {
			if err := s.moveStockTx(tx, sale.ID, l, b.WarehouseID, model.StockSale, l.Quantity.Neg(), now); err != nil {
				return err
			}
		}
		return s.terminals.UpdateCounterTx(tx, term.ID, sale.TerminalSaleNumber)
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("terminal", b.Terminal.Name).
		Str("session_id", sale.SessionID.String()).
		Int64("sale_number", sale.TerminalSaleNumber).
		Str("document_kind", string(sale.DocumentKind)).
		Str("net_total", sale.NetTotal.StringFixed(2)).
		Msg("sale committed")

	return sale, buildReceipt(b, sale, req.Operator.Name, customerName), nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────
// Flips the status and puts the stock back. Tenders, counter and ledger are
// left alone; the close simply skips canceled sales.

func (s *saleService) Cancel(ctx context.Context, b *Binding, op *Operator, sessionID, saleID uuid.UUID, motive string, authorizerID *uuid.UUID) (*dto.CancellationReceipt, error) {
	motive = strings.TrimSpace(motive)
	if motive == "" {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "a cancellation reason is required")
	}
	canceledAt := s.now()

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sale, err := s.repo.LockTx(tx, saleID)
		if isNotFound(err) {
			return apierror.Sale(apierror.CodeSaleNotFound, fmt.Sprintf("sale %s not found", saleID))
		}
		if err != nil {
			return err
		}
		if sale.TerminalID != b.Terminal.ID {
			return apierror.Sale(apierror.CodeSaleNotFound, fmt.Sprintf("sale %s not found", saleID))
		}
		if sale.SessionID != sessionID {
			return apierror.Sale(apierror.CodeSaleNotInSession, "only sales of the current session can be canceled")
		}
		if sale.Status == model.SaleCanceled {
			return apierror.Sale(apierror.CodeSaleAlreadyCanceled, fmt.Sprintf("sale %d is already canceled", sale.TerminalSaleNumber))
		}
		if err := s.repo.UpdateTx(tx, sale.ID, map[string]interface{}{
			"status":               model.SaleCanceled,
			"cancel_reason":        motive,
			"cancel_authorizer_id": authorizerID,
			"canceled_at":          canceledAt,
		}); err != nil {
			return err
		}
		for _, l := range sale.Lines {
			if err := s.moveStockTx(tx, sale.ID, l, b.WarehouseID, model.StockCancelRestock, l.Quantity, canceledAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sale, err := s.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	customerName, err := s.customerName(ctx, sale.CustomerID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("terminal", b.Terminal.Name).
		Str("session_id", sessionID.String()).
		Int64("sale_number", sale.TerminalSaleNumber).
		Str("authorizer_id", uuidString(authorizerID)).
		Msg("sale canceled")

	return &dto.CancellationReceipt{
		Receipt:    *buildReceipt(b, sale, op.Name, customerName),
		Motive:     motive,
		CanceledAt: canceledAt.Format(time.RFC3339),
	}, nil
}

// ── ConvertToFiscal ───────────────────────────────────────────────────────────
// Same counter protocol as commit: terminal first, then the sale. Only the
// number and document kind change.

func (s *saleService) ConvertToFiscal(ctx context.Context, b *Binding, op *Operator, saleID uuid.UUID) (*model.Sale, *dto.Receipt, error) {
	now := s.now()
	var previous int64

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		term, err := s.terminals.LockTx(tx, b.Terminal.ID)
		if err != nil {
			return err
		}
		sale, err := s.repo.LockTx(tx, saleID)
		if isNotFound(err) || (err == nil && sale.TerminalID != b.Terminal.ID) {
			return apierror.Sale(apierror.CodeSaleNotFound, fmt.Sprintf("sale %s not found", saleID))
		}
		if err != nil {
			return err
		}
		if sale.DocumentKind == model.DocumentFiscal {
			return apierror.Sale(apierror.CodeSaleAlreadyFiscal, fmt.Sprintf("sale %d is already fiscal", sale.TerminalSaleNumber))
		}
		if sale.Status != model.SaleFinalized {
			return apierror.Sale(apierror.CodeSaleAlreadyCanceled, fmt.Sprintf("sale %d is canceled", sale.TerminalSaleNumber))
		}

		previous = sale.TerminalSaleNumber
		assigned := term.NextSaleCounter + 1
		key := fiscalKey(b, assigned, now)
		if err := s.repo.UpdateTx(tx, sale.ID, map[string]interface{}{
			"terminal_sale_number": assigned,
			"document_kind":        model.DocumentFiscal,
			"fiscal_key":           key,
			"fiscal_qr":            fiscalQR(key),
			"converted_at":         now,
		}); err != nil {
			return err
		}
		return s.terminals.UpdateCounterTx(tx, term.ID, assigned)
	})
	if err != nil {
		return nil, nil, err
	}

	sale, err := s.FindByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	customerName, err := s.customerName(ctx, sale.CustomerID)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("terminal", b.Terminal.Name).
		Int64("previous_number", previous).
		Int64("sale_number", sale.TerminalSaleNumber).
		Msg("sale converted to fiscal")

	return sale, buildReceipt(b, sale, op.Name, customerName), nil
}

// moveStockTx applies delta to the line's stock row and records the movement
// against the sale.
func (s *saleService) moveStockTx(tx *gorm.DB, saleID uuid.UUID, l model.SaleLine, warehouseID uuid.UUID, kind model.StockMovementKind, delta decimal.Decimal, at time.Time) error {
	if err := s.stock.ApplyDeltaTx(tx, l.ProductID, warehouseID, delta); err != nil {
		return err
	}
	return s.stock.CreateMovementTx(tx, &model.StockMovement{
		ProductID:   l.ProductID,
		WarehouseID: warehouseID,
		Kind:        kind,
		Delta:       delta,
		SaleID:      saleID,
		CreatedAt:   at,
	})
}

func (s *saleService) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if isNotFound(err) {
		return nil, apierror.Sale(apierror.CodeSaleNotFound, fmt.Sprintf("sale %s not found", id))
	}
	if err != nil {
		return nil, persistence(err)
	}
	return sale, nil
}

func (s *saleService) customerName(ctx context.Context, id *uuid.UUID) (string, error) {
	if id == nil {
		return "", nil
	}
	c, err := s.customers.FindByID(ctx, *id)
	if isNotFound(err) {
		return "", apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("customer %s not found", id))
	}
	if err != nil {
		return "", persistence(err)
	}
	return c.Name, nil
}

// buildReceipt snapshots a sale for printing; the printer never reads the
// store.
func buildReceipt(b *Binding, sale *model.Sale, operatorName, customerName string) *dto.Receipt {
	r := &dto.Receipt{
		SaleID:       sale.ID.String(),
		Company:      b.Company.Name,
		CompanyTaxID: b.StoreIdentifier,
		Store:        b.Store.Name,
		Terminal:     b.Terminal.Name,
		PrinterName:  b.Terminal.PrinterName,
		Operator:     operatorName,
		Customer:     customerName,
		SaleNumber:   sale.TerminalSaleNumber,
		Subtotal:     sale.Subtotal,
		Discounts:    sale.TotalDiscount(),
		Net:          sale.NetTotal,
		Change:       sale.Change,
		DocumentKind: sale.DocumentKind,
		FiscalKey:    sale.FiscalKey,
		FiscalQR:     sale.FiscalQR,
		Timestamp:    sale.CreatedAt.Format(time.RFC3339),
	}
	for _, l := range sale.Lines {
		r.Lines = append(r.Lines, dto.ReceiptLine{
			Position:    l.Position,
			Code:        l.Code,
			Description: l.Description,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.LineDiscount,
			Total:       l.LineTotal,
		})
	}
	for _, t := range sale.Tenders {
		r.Tenders = append(r.Tenders, dto.ReceiptTender{
			Form:         t.Form,
			Amount:       t.Amount,
			CardType:     t.CardType,
			Installments: t.Installments,
			NSU:          t.NSU,
			Doc:          t.Doc,
		})
	}
	return r
}
