package service

import (
	"context"
	"fmt"
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
)

// Printer renders receipts. A failed print never undoes the operation that
// produced the receipt; it is reported as a warning.
type Printer interface {
	PrintReceipt(ctx context.Context, r *dto.Receipt) error
	PrintCancellation(ctx context.Context, r *dto.CancellationReceipt) error
	PrintZReport(ctx context.Context, z *dto.ZReport) error
}

// PrintSpool keeps documents whose print failed so they can be printed later.
type PrintSpool interface {
	SpoolReceipt(ctx context.Context, r *dto.Receipt) error
	SpoolCancellation(ctx context.Context, r *dto.CancellationReceipt) error
	SpoolZReport(ctx context.Context, z *dto.ZReport) error
}

type EngineDeps struct {
	Permissions PermissionService
	Cash        CashService
	Sales       SaleService
	Products    ProductResolver
	Customers   repository.CustomerRepository
	// Printer may be nil, in which case nothing is printed.
	Printer Printer
	// Spool may be nil; failed prints are then only reported.
	Spool PrintSpool
}

// Engine is one operator's sale session on a bound terminal: the cart, the
// tender list and the open cash session. It is not safe for concurrent use;
// EngineRegistry serializes access per operator.
type Engine struct {
	deps    EngineDeps
	binding *Binding
	op      *Operator
	session *model.CashSession

	cart *cart.Cart
	pay  *payment.Composer

	// recall is the non-fiscal sale the cart was prefilled from.
	recall             *model.Sale
	discountAuthorizer *uuid.UUID
	openedAt           time.Time
	menuOpen           bool
	notice             string

	now func() time.Time
}

// NewEngine adopts the operator's open session on this terminal, if any.
func NewEngine(ctx context.Context, deps EngineDeps, b *Binding, op *Operator) (*Engine, error) {
	sess, err := deps.Cash.FindOpen(ctx, b, op.ID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		log.Info().
			Str("terminal", b.Terminal.Name).
			Str("session_id", sess.ID.String()).
			Str("operator", op.Username).
			Msg("session resumed")
	}
	return &Engine{
		deps:    deps,
		binding: b,
		op:      op,
		session: sess,
		cart:    cart.New(),
		pay:     payment.New(decimal.Zero),
		now:     time.Now,
	}, nil
}

func (e *Engine) Operator() *Operator { return e.op }

// SetOperator refreshes the operator's permissions without touching the sale.
func (e *Engine) SetOperator(op *Operator) {
	if op.ID == e.op.ID {
		e.op = op
	}
}

func (e *Engine) Session() *model.CashSession { return e.session }

// State is the snapshot the shell redraws. The pending notice is returned
// once and then cleared.
func (e *Engine) State() *dto.EngineState {
	t := e.cart.Totals()
	st := &dto.EngineState{
		Terminal:      e.binding.Terminal.Name,
		Operator:      e.op.Name,
		Subtotal:      t.Subtotal,
		LineDiscounts: t.LineDiscounts,
		SaleDiscount:  t.SaleDiscount,
		Net:           t.Net,
		Outstanding:   decimal.Max(e.pay.Outstanding(), decimal.Zero),
		Change:        e.pay.Change(),
		CanConfirm:    !e.cart.IsEmpty() && e.pay.CanConfirm(),
		MenuOpen:      e.menuOpen,
		Notice:        e.notice,
		Lines:         make([]dto.CartLineResponse, 0, e.cart.Len()),
		Tenders:       make([]dto.ReceiptTender, 0),
	}
	e.notice = ""
	if e.session != nil {
		id := e.session.ID.String()
		st.SessionID = &id
	}
	if c := e.cart.CustomerID(); c != nil {
		id := c.String()
		st.CustomerID = &id
	}
	if e.recall != nil {
		n := e.recall.TerminalSaleNumber
		st.RecallNumber = &n
	}
	for i, l := range e.cart.Lines() {
		st.Lines = append(st.Lines, dto.CartLineResponse{
			Index:       i,
			Code:        l.Code,
			Description: l.Description,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.Discount,
			Total:       l.Total(),
		})
	}
	for _, t := range e.pay.Tenders() {
		st.Tenders = append(st.Tenders, dto.ReceiptTender{
			Form:         t.Form,
			Amount:       t.Amount,
			CardType:     t.CardType,
			Installments: t.Installments,
			NSU:          t.NSU,
			Doc:          t.Doc,
		})
	}
	return st
}

// ── Guards ────────────────────────────────────────────────────────────────────

func (e *Engine) requireSession() error {
	if e.session == nil {
		return apierror.Session(apierror.CodeSessionNotOpen, "open the cash session first")
	}
	return nil
}

// requireEditable rejects cart changes once tenders were taken or while the
// cart holds a recalled sale.
func (e *Engine) requireEditable() error {
	if err := e.requireSession(); err != nil {
		return err
	}
	if e.recall != nil {
		return apierror.Invalid(apierror.CodeInvalidInput, "a recalled sale can only be finalized or canceled")
	}
	if len(e.pay.Tenders()) > 0 {
		return apierror.Invalid(apierror.CodeInvalidInput, "remove the tenders before changing the cart")
	}
	return nil
}

func (e *Engine) inProgress() bool {
	return !e.cart.IsEmpty() || len(e.pay.Tenders()) > 0
}

func (e *Engine) resetSale() {
	e.cart.Clear()
	e.pay.Reset(decimal.Zero)
	e.recall = nil
	e.discountAuthorizer = nil
	e.openedAt = time.Time{}
}

func (e *Engine) cartChanged() {
	e.pay.Reset(e.cart.Totals().Net)
}

// ── Cash session ──────────────────────────────────────────────────────────────

func (e *Engine) OpenCash(ctx context.Context, initialFloat decimal.Decimal, escalate Escalator) (*model.CashSession, error) {
	if e.session != nil {
		return nil, apierror.Session(apierror.CodeSessionAlreadyOpen, fmt.Sprintf("session %s is already open", e.session.ID))
	}
	sess, err := e.deps.Cash.Open(ctx, e.binding, e.op, initialFloat, escalate)
	if err != nil {
		return nil, err
	}
	e.session = sess
	return sess, nil
}

func (e *Engine) CloseCash(ctx context.Context, counted dto.FormAmounts, escalate Escalator) (*dto.CloseResponse, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if e.inProgress() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "finish or cancel the current sale first")
	}
	res, err := e.deps.Cash.Close(ctx, e.binding, e.op, e.session.ID, counted, escalate)
	if err != nil {
		return nil, err
	}
	e.session = nil
	e.menuOpen = false
	if e.deps.Printer != nil {
		if err := e.deps.Printer.PrintZReport(ctx, res.ZReport); err != nil {
			res.Warnings = append(res.Warnings, e.printWarning("z-report", err, func(s PrintSpool) error {
				return s.SpoolZReport(ctx, res.ZReport)
			}))
		}
	}
	return res, nil
}

func (e *Engine) RecordMovement(ctx context.Context, kind model.MovementKind, amount decimal.Decimal, reason string, escalate Escalator) (*model.CashMovement, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	return e.deps.Cash.RecordMovement(ctx, e.binding, e.op, e.session.ID, kind, amount, reason, escalate)
}

func (e *Engine) ExpectedTotals(ctx context.Context) (*dto.ExpectedTotals, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	return e.deps.Cash.ExpectedTotals(ctx, e.session.ID)
}

// ZReport is the partial report of the open session.
func (e *Engine) ZReport(ctx context.Context) (*dto.ZReport, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	return e.deps.Cash.ZReport(ctx, e.binding, e.session.ID, e.op.Name)
}

// ── Cart ──────────────────────────────────────────────────────────────────────

// SearchProduct is a price check; the cart is not touched.
func (e *Engine) SearchProduct(ctx context.Context, raw string) (*dto.PriceCheckResponse, error) {
	return e.deps.Products.PriceCheck(ctx, e.binding, raw)
}

// Scan resolves a token and adds its line, or prefills the whole cart from a
// recalled non-fiscal sale.
func (e *Engine) Scan(ctx context.Context, raw string, escalate Escalator) (*dto.EngineState, error) {
	if err := e.requireEditable(); err != nil {
		return nil, err
	}
	res, err := e.deps.Products.Resolve(ctx, e.binding, raw)
	if err != nil {
		return nil, err
	}
	if res.Recall != nil {
		if err := e.prefill(ctx, res.Recall, escalate); err != nil {
			return nil, err
		}
		return e.State(), nil
	}

	wasEmpty := e.cart.IsEmpty()
	if _, err := e.cart.Add(*res.Line); err != nil {
		return nil, err
	}
	if wasEmpty {
		e.openedAt = e.now()
	}
	e.cartChanged()
	return e.State(), nil
}

func (e *Engine) prefill(ctx context.Context, sale *model.Sale, escalate Escalator) error {
	if !e.cart.IsEmpty() {
		return apierror.Invalid(apierror.CodeInvalidInput, "the cart must be empty to recall a sale")
	}
	if _, err := e.deps.Permissions.Require(ctx, e.op, model.PermRecallSale, escalate); err != nil {
		return err
	}
	lines := make([]cart.Line, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		lines = append(lines, cart.Line{
			ProductID:   l.ProductID,
			Code:        l.Code,
			Description: l.Description,
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Discount:    l.LineDiscount,
		})
	}
	if err := e.cart.Restore(lines, sale.SaleDiscount, sale.CustomerID); err != nil {
		return err
	}
	tenders := make([]payment.Tender, 0, len(sale.Tenders))
	for _, t := range sale.Tenders {
		tenders = append(tenders, payment.Tender{
			Form:         t.Form,
			Amount:       t.Amount,
			CardType:     t.CardType,
			Installments: t.Installments,
			NSU:          t.NSU,
			Doc:          t.Doc,
		})
	}
	e.pay.Restore(e.cart.Totals().Net, tenders)
	e.recall = sale
	e.openedAt = sale.OpenedAt
	e.notice = fmt.Sprintf("sale %d recalled for fiscal conversion", sale.TerminalSaleNumber)
	return nil
}

func (e *Engine) DeleteLine(ctx context.Context, index int, escalate Escalator) (*dto.EngineState, error) {
	if err := e.requireEditable(); err != nil {
		return nil, err
	}
	if index < 0 || index >= e.cart.Len() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("line %d does not exist", index+1))
	}
	if _, err := e.deps.Permissions.Require(ctx, e.op, model.PermDeleteLine, escalate); err != nil {
		return nil, err
	}
	_, cleared, err := e.cart.Remove(index)
	if err != nil {
		return nil, err
	}
	if cleared {
		e.notice = "sale discount removed, apply it again if needed"
	}
	e.cartChanged()
	return e.State(), nil
}

// SetLineDiscount takes either an absolute amount or a percentage of the
// line's pre-discount total.
func (e *Engine) SetLineDiscount(ctx context.Context, index int, amount, percent *decimal.Decimal, escalate Escalator) (*dto.EngineState, error) {
	if err := e.requireEditable(); err != nil {
		return nil, err
	}
	if index < 0 || index >= e.cart.Len() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("line %d does not exist", index+1))
	}
	value, err := discountValue(amount, percent, func(pct decimal.Decimal) (decimal.Decimal, error) {
		return e.cart.LineDiscountFromPercent(index, pct)
	})
	if err != nil {
		return nil, err
	}
	if value.IsPositive() {
		auth, err := e.deps.Permissions.RequireDiscount(ctx, e.op, model.PermLineDiscount, value, e.cart.Line(index).Gross(), percent, escalate)
		if err != nil {
			return nil, err
		}
		if err := e.cart.SetLineDiscount(index, value); err != nil {
			return nil, err
		}
		if auth.Escalated() {
			e.discountAuthorizer = auth.AuthorizerID
		}
	} else if err := e.cart.SetLineDiscount(index, value); err != nil {
		return nil, err
	}
	e.cartChanged()
	return e.State(), nil
}

func (e *Engine) SetSaleDiscount(ctx context.Context, amount, percent *decimal.Decimal, escalate Escalator) (*dto.EngineState, error) {
	if err := e.requireEditable(); err != nil {
		return nil, err
	}
	if e.cart.IsEmpty() {
		return nil, apierror.Invalid(apierror.CodeEmptyCart, "the cart is empty")
	}
	value, err := discountValue(amount, percent, e.cart.SaleDiscountFromPercent)
	if err != nil {
		return nil, err
	}
	if value.IsPositive() {
		auth, err := e.deps.Permissions.RequireDiscount(ctx, e.op, model.PermSaleDiscount, value, e.cart.SaleDiscountBase(), percent, escalate)
		if err != nil {
			return nil, err
		}
		if err := e.cart.SetSaleDiscount(value); err != nil {
			return nil, err
		}
		if auth.Escalated() {
			e.discountAuthorizer = auth.AuthorizerID
		}
	} else if err := e.cart.SetSaleDiscount(value); err != nil {
		return nil, err
	}
	e.cartChanged()
	return e.State(), nil
}

func discountValue(amount, percent *decimal.Decimal, fromPercent func(decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	switch {
	case amount != nil && percent != nil:
		return decimal.Zero, apierror.Invalid(apierror.CodeInvalidInput, "give either an amount or a percentage")
	case amount != nil:
		if amount.IsNegative() {
			return decimal.Zero, apierror.Invalid(apierror.CodeInvalidInput, "discount must not be negative")
		}
		return model.Round2(*amount), nil
	case percent != nil:
		if percent.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, apierror.Invalid(apierror.CodeInvalidInput, "percentage must not exceed 100")
		}
		return fromPercent(*percent)
	default:
		return decimal.Zero, apierror.Invalid(apierror.CodeInvalidInput, "give either an amount or a percentage")
	}
}

// SetCustomer assigns or clears (nil) the customer of the current sale.
func (e *Engine) SetCustomer(ctx context.Context, customerID *uuid.UUID) (*dto.EngineState, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if e.recall != nil {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "a recalled sale can only be finalized or canceled")
	}
	if customerID != nil {
		if _, err := e.deps.Customers.FindByID(ctx, *customerID); err != nil {
			if isNotFound(err) {
				return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("customer %s not found", customerID))
			}
			return nil, persistence(err)
		}
	}
	e.cart.SetCustomer(customerID)
	return e.State(), nil
}

// ── Payment ───────────────────────────────────────────────────────────────────

func (e *Engine) AddTender(_ context.Context, req payment.Request) (*dto.EngineState, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if e.cart.IsEmpty() {
		return nil, apierror.Invalid(apierror.CodeEmptyCart, "the cart is empty")
	}
	if e.recall != nil {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "a recalled sale keeps its original tenders")
	}
	if _, err := e.pay.Add(req); err != nil {
		return nil, err
	}
	return e.State(), nil
}

func (e *Engine) RemoveTender(_ context.Context, index int) (*dto.EngineState, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if e.recall != nil {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "a recalled sale keeps its original tenders")
	}
	if err := e.pay.Remove(index); err != nil {
		return nil, err
	}
	return e.State(), nil
}

// ── Finalize ──────────────────────────────────────────────────────────────────
// A cart prefilled by recall is converted instead of committed.

func (e *Engine) Finalize(ctx context.Context, kind model.DocumentKind, escalate Escalator) (*dto.FinalizeResponse, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if e.cart.IsEmpty() {
		return nil, apierror.Invalid(apierror.CodeEmptyCart, "the cart is empty")
	}
	if kind == "" {
		kind = model.DocumentFiscal
	}
	if !kind.Valid() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown document kind %q", kind))
	}

	if e.recall != nil {
		if kind != model.DocumentFiscal {
			return nil, apierror.Invalid(apierror.CodeInvalidInput, "a recalled sale can only be finalized as fiscal")
		}
		_, receipt, err := e.deps.Sales.ConvertToFiscal(ctx, e.binding, e.op, e.recall.ID)
		if err != nil {
			return nil, err
		}
		e.resetSale()
		return e.printed(ctx, receipt), nil
	}

	if kind == model.DocumentNonFiscal {
		if !e.binding.Terminal.AllowNonFiscal {
			return nil, apierror.Sale(apierror.CodeNonFiscalDisabled, "this terminal does not issue non-fiscal sales")
		}
		if _, err := e.deps.Permissions.Require(ctx, e.op, model.PermNonFiscalSale, escalate); err != nil {
			return nil, err
		}
	}

	tenders, change, err := e.pay.Confirm()
	if err != nil {
		return nil, err
	}
	_, receipt, err := e.deps.Sales.Commit(ctx, CommitRequest{
		Binding:              e.binding,
		SessionID:            e.session.ID,
		Operator:             e.op,
		CustomerID:           e.cart.CustomerID(),
		Lines:                e.cart.Lines(),
		Totals:               e.cart.Totals(),
		Tenders:              tenders,
		Change:               change,
		DocumentKind:         kind,
		DiscountAuthorizerID: e.discountAuthorizer,
		OpenedAt:             e.openedAt,
	})
	if err != nil {
		// Confirm may have absorbed a residual into the last tender; the
		// operator keeps the same list for a retry.
		return nil, err
	}
	e.resetSale()
	return e.printed(ctx, receipt), nil
}

func (e *Engine) printed(ctx context.Context, receipt *dto.Receipt) *dto.FinalizeResponse {
	res := &dto.FinalizeResponse{Receipt: receipt}
	if e.deps.Printer != nil {
		if err := e.deps.Printer.PrintReceipt(ctx, receipt); err != nil {
			res.Warnings = append(res.Warnings, e.printWarning("receipt", err, func(s PrintSpool) error {
				return s.SpoolReceipt(ctx, receipt)
			}))
		}
	}
	return res
}

// printWarning logs a failed print and hands the document to the spool when
// one is configured.
func (e *Engine) printWarning(what string, err error, spool func(PrintSpool) error) string {
	log.Warn().Err(err).Str("terminal", e.binding.Terminal.Name).Str("document", what).Msg("print failed")
	if e.deps.Spool != nil {
		serr := spool(e.deps.Spool)
		if serr == nil {
			return fmt.Sprintf("%s was not printed and was queued for retry: %v", what, err)
		}
		log.Error().Err(serr).Str("document", what).Msg("print spool unavailable")
	}
	return fmt.Sprintf("%s was not printed: %v", what, err)
}

// ── Cancellation ──────────────────────────────────────────────────────────────

// CancelCurrent discards the sale in progress. Nothing is persisted.
func (e *Engine) CancelCurrent(ctx context.Context, escalate Escalator) (*dto.EngineState, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if !e.inProgress() {
		return e.State(), nil
	}
	if _, err := e.deps.Permissions.Require(ctx, e.op, model.PermCancelCurrent, escalate); err != nil {
		return nil, err
	}
	e.resetSale()
	e.notice = "sale canceled"
	return e.State(), nil
}

// CancelFinalized cancels a committed sale of the current session.
func (e *Engine) CancelFinalized(ctx context.Context, saleID uuid.UUID, motive string, escalate Escalator) (*dto.CancelSaleResponse, error) {
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	auth, err := e.deps.Permissions.Require(ctx, e.op, model.PermCancelFinalized, escalate)
	if err != nil {
		return nil, err
	}
	receipt, err := e.deps.Sales.Cancel(ctx, e.binding, e.op, e.session.ID, saleID, motive, auth.AuthorizerID)
	if err != nil {
		return nil, err
	}
	res := &dto.CancelSaleResponse{Receipt: receipt}
	if e.deps.Printer != nil {
		if err := e.deps.Printer.PrintCancellation(ctx, receipt); err != nil {
			res.Warnings = append(res.Warnings, e.printWarning("cancellation receipt", err, func(s PrintSpool) error {
				return s.SpoolCancellation(ctx, receipt)
			}))
		}
	}
	return res, nil
}

// ── Menu ──────────────────────────────────────────────────────────────────────

// Functions lists the shell commands and whether the operator holds their key
// outright. Commands without a key are always available.
func (e *Engine) Functions() []dto.FunctionEntry {
	out := make([]dto.FunctionEntry, 0, len(commandKeys))
	for _, c := range commandOrder {
		key := commandKeys[c]
		out = append(out, dto.FunctionEntry{
			Command: string(c),
			Key:     string(key),
			Granted: key == "" || e.op.Granted(key),
		})
	}
	return out
}

func (e *Engine) ToggleMenu() *dto.EngineState {
	e.menuOpen = !e.menuOpen
	return e.State()
}
