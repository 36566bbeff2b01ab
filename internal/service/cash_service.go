package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CashService interface {
	Open(ctx context.Context, b *Binding, op *Operator, initialFloat decimal.Decimal, escalate Escalator) (*model.CashSession, error)
	// FindOpen returns nil without error when the operator has no open session.
	FindOpen(ctx context.Context, b *Binding, operatorID uuid.UUID) (*model.CashSession, error)
	RecordMovement(ctx context.Context, b *Binding, op *Operator, sessionID uuid.UUID, kind model.MovementKind, amount decimal.Decimal, reason string, escalate Escalator) (*model.CashMovement, error)
	ExpectedTotals(ctx context.Context, sessionID uuid.UUID) (*dto.ExpectedTotals, error)
	ZReport(ctx context.Context, b *Binding, sessionID uuid.UUID, operatorName string) (*dto.ZReport, error)
	Close(ctx context.Context, b *Binding, op *Operator, sessionID uuid.UUID, counted dto.FormAmounts, escalate Escalator) (*dto.CloseResponse, error)
}

type cashService struct {
	repo   repository.CashRepository
	sales  repository.SaleRepository
	ledger repository.LedgerRepository
	perms  PermissionService
	now    func() time.Time
}

func NewCashService(repo repository.CashRepository, sales repository.SaleRepository, ledger repository.LedgerRepository, perms PermissionService) CashService {
	return &cashService{repo: repo, sales: sales, ledger: ledger, perms: perms, now: time.Now}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *cashService) Open(ctx context.Context, b *Binding, op *Operator, initialFloat decimal.Decimal, escalate Escalator) (*model.CashSession, error) {
	if initialFloat.IsNegative() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "initial float must not be negative")
	}
	auth, err := s.perms.Require(ctx, op, model.PermOpenCash, escalate)
	if err != nil {
		return nil, err
	}

	sess := &model.CashSession{
		TerminalID:   b.Terminal.ID,
		OperatorID:   op.ID,
		InitialFloat: model.Round2(initialFloat),
		Status:       model.SessionOpen,
		AuthorizerID: auth.AuthorizerID,
		OpenedAt:     s.now(),
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		open, err := s.repo.FindOpenSessionTx(tx, b.Terminal.ID, op.ID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return apierror.Session(apierror.CodeSessionAlreadyOpen,
				fmt.Sprintf("session %s is already open", open[0].ID))
		}
		return s.repo.CreateSessionTx(tx, sess)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("terminal", b.Terminal.Name).
		Str("session_id", sess.ID.String()).
		Str("operator", op.Username).
		Str("initial_float", sess.InitialFloat.StringFixed(2)).
		Msg("session opened")
	return sess, nil
}

func (s *cashService) FindOpen(ctx context.Context, b *Binding, operatorID uuid.UUID) (*model.CashSession, error) {
	sess, err := s.repo.FindOpenSession(ctx, b.Terminal.ID, operatorID)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(err)
	}
	return sess, nil
}

// openSession loads a session and checks it is open on this terminal.
func (s *cashService) openSession(ctx context.Context, b *Binding, sessionID uuid.UUID) (*model.CashSession, error) {
	sess, err := s.repo.FindSessionByID(ctx, sessionID)
	if isNotFound(err) {
		return nil, apierror.Session(apierror.CodeSessionNotOpen, "session not found")
	}
	if err != nil {
		return nil, persistence(err)
	}
	if !sess.IsOpen() || sess.TerminalID != b.Terminal.ID {
		return nil, apierror.Session(apierror.CodeSessionNotOpen, fmt.Sprintf("session %s is not open on this terminal", sess.ID))
	}
	return sess, nil
}

// ── RecordMovement ────────────────────────────────────────────────────────────
// Drop / infusion. Movements are immutable.

func (s *cashService) RecordMovement(ctx context.Context, b *Binding, op *Operator, sessionID uuid.UUID, kind model.MovementKind, amount decimal.Decimal, reason string, escalate Escalator) (*model.CashMovement, error) {
	if !kind.Valid() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown movement kind %q", kind))
	}
	amount = model.Round2(amount)
	if !amount.IsPositive() {
		return nil, apierror.Invalid(apierror.CodeInvalidInput, "movement amount must be positive")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apierror.Invalid(apierror.CodeEmptyMovementReason, "a reason is required")
	}
	sess, err := s.openSession(ctx, b, sessionID)
	if err != nil {
		return nil, err
	}
	auth, err := s.perms.Require(ctx, op, model.MovementPermission(kind), escalate)
	if err != nil {
		return nil, err
	}

	mov := &model.CashMovement{
		SessionID:    sess.ID,
		Kind:         kind,
		Amount:       amount,
		Reason:       reason,
		OperatorID:   op.ID,
		AuthorizerID: auth.AuthorizerID,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateMovement(ctx, mov); err != nil {
		return nil, persistence(err)
	}
	log.Info().
		Str("session_id", sess.ID.String()).
		Str("kind", string(kind)).
		Str("amount", amount.StringFixed(2)).
		Bool("escalated", auth.Escalated()).
		Msg("cash movement recorded")
	return mov, nil
}

// ── ExpectedTotals ────────────────────────────────────────────────────────────

func (s *cashService) ExpectedTotals(ctx context.Context, sessionID uuid.UUID) (*dto.ExpectedTotals, error) {
	sess, sales, movs, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return computeExpected(sess, sales, movs), nil
}

func (s *cashService) load(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, []model.Sale, []model.CashMovement, error) {
	sess, err := s.repo.FindSessionByID(ctx, sessionID)
	if isNotFound(err) {
		return nil, nil, nil, apierror.Session(apierror.CodeSessionNotOpen, "session not found")
	}
	if err != nil {
		return nil, nil, nil, persistence(err)
	}
	sales, err := s.sales.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, persistence(err)
	}
	movs, err := s.repo.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, persistence(err)
	}
	return sess, sales, movs, nil
}

// computeExpected starts from the float on CASH, adds the tenders of every
// finalized sale by form, takes cash change back out of CASH and applies
// drops and infusions. Canceled sales are skipped; unknown forms fold into
// OTHER.
func computeExpected(sess *model.CashSession, sales []model.Sale, movs []model.CashMovement) *dto.ExpectedTotals {
	exp := &dto.ExpectedTotals{
		InitialFloat:  sess.InitialFloat,
		CashFromSales: decimal.Zero,
		Drops:         decimal.Zero,
		Infusions:     decimal.Zero,
		ByForm:        dto.NewFormAmounts(),
	}
	for _, sale := range sales {
		if sale.Status != model.SaleFinalized {
			continue
		}
		for _, t := range sale.Tenders {
			form, _ := model.ParseTenderForm(string(t.Form))
			exp.ByForm.Add(form, t.Amount)
			if form == model.FormCash {
				exp.CashFromSales = exp.CashFromSales.Add(t.Amount)
			}
		}
		exp.ByForm.Add(model.FormCash, sale.Change.Neg())
		exp.CashFromSales = exp.CashFromSales.Sub(sale.Change)
	}
	for _, m := range movs {
		if m.Kind == model.MovementDrop {
			exp.Drops = exp.Drops.Add(m.Amount)
		} else {
			exp.Infusions = exp.Infusions.Add(m.Amount)
		}
		exp.ByForm.Add(model.FormCash, m.Signed())
	}
	exp.ByForm.Add(model.FormCash, sess.InitialFloat)
	for f, v := range exp.ByForm {
		exp.ByForm[f] = model.Round2(v)
	}
	exp.Total = exp.ByForm.Sum()
	return exp
}

// ── ZReport ───────────────────────────────────────────────────────────────────

func (s *cashService) ZReport(ctx context.Context, b *Binding, sessionID uuid.UUID, operatorName string) (*dto.ZReport, error) {
	sess, sales, movs, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return buildZReport(b, sess, operatorName, sales, computeExpected(sess, sales, movs), sess.Counted, s.now()), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────
// Permissions are resolved first so no transaction spans a prompt. The
// transaction then flips the session, writes the closure title with one entry
// per non-zero form and moves each amount from the till to its destination.

func (s *cashService) Close(ctx context.Context, b *Binding, op *Operator, sessionID uuid.UUID, counted dto.FormAmounts, escalate Escalator) (*dto.CloseResponse, error) {
	sess, err := s.openSession(ctx, b, sessionID)
	if err != nil {
		return nil, err
	}
	counted, err = normalizeCounted(counted)
	if err != nil {
		return nil, err
	}
	_, sales, movs, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	exp := computeExpected(sess, sales, movs)
	countedTotal := counted.Sum()
	difference := exp.Total.Sub(countedTotal)

	auth, err := s.perms.Require(ctx, op, model.PermCloseCash, escalate)
	if err != nil {
		return nil, err
	}
	authorizer := auth.AuthorizerID
	if difference.Abs().GreaterThan(model.Cent) {
		div, err := s.perms.Require(ctx, op, model.PermCloseWithDivergence, escalate)
		if err != nil {
			return nil, err
		}
		if div.AuthorizerID != nil {
			authorizer = div.AuthorizerID
		}
	}

	closedAt := s.now()
	report := buildZReport(b, sess, op.Name, sales, exp, &countedTotal, closedAt)

	title := &model.Title{
		SessionID:   sess.ID,
		Kind:        model.TitleReceivable,
		Status:      model.TitlePaid,
		Amount:      exp.Total,
		Description: fmt.Sprintf("Closure of session %s on %s", sess.ID, b.Terminal.Name),
		IssuedAt:    closedAt,
	}
	var entries []dto.LedgerEntryResponse
	accountIDs := []uuid.UUID{b.TillAccountID}
	for _, f := range model.TenderForms() {
		amount := exp.ByForm[f]
		if amount.IsZero() {
			continue
		}
		dest := b.DestinationFor(f)
		accountIDs = append(accountIDs, dest)
		title.Entries = append(title.Entries, model.Entry{
			Form:   f,
			Amount: amount,
			Movements: []model.AccountMovement{
				{AccountID: b.TillAccountID, Direction: model.LegOut, Amount: amount.Neg(), CreatedAt: closedAt},
				{AccountID: dest, Direction: model.LegIn, Amount: amount, CreatedAt: closedAt},
			},
		})
		entries = append(entries, dto.LedgerEntryResponse{
			Form:           f,
			Amount:         amount,
			TillAccount:    b.TillAccountID.String(),
			Destination:    dest.String(),
			TillLeg:        amount.Neg(),
			DestinationLeg: amount,
		})
	}
	accountIDs = uniqueSorted(accountIDs)

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		locked, err := s.repo.LockSessionTx(tx, sess.ID)
		if err != nil {
			return err
		}
		if !locked.IsOpen() {
			return apierror.Session(apierror.CodeSessionNotOpen, "session was closed concurrently")
		}
		accs, err := s.ledger.LockAccountsTx(tx, accountIDs)
		if err != nil {
			return err
		}
		if len(accs) != len(accountIDs) {
			return apierror.Binding(apierror.CodeFinancialLinkMissing, "a linked account does not exist")
		}
		if err := s.ledger.CreateTitleTx(tx, title); err != nil {
			return err
		}
		for _, e := range title.Entries {
			for _, leg := range e.Movements {
				if err := s.ledger.AdjustBalanceTx(tx, leg.AccountID, leg.Amount); err != nil {
					return err
				}
			}
		}
		expected, countedCopy, diff := exp.Total, countedTotal, difference
		locked.Status = model.SessionClosed
		locked.ClosedAt = &closedAt
		locked.Expected = &expected
		locked.Counted = &countedCopy
		locked.Difference = &diff
		locked.AuthorizerID = authorizer
		return s.repo.SaveSessionTx(tx, locked)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("terminal", b.Terminal.Name).
		Str("session_id", sess.ID.String()).
		Str("expected", exp.Total.StringFixed(2)).
		Str("counted", countedTotal.StringFixed(2)).
		Str("difference", difference.StringFixed(2)).
		Str("authorizer_id", uuidString(authorizer)).
		Msg("session closed")

	return &dto.CloseResponse{
		SessionID:    sess.ID.String(),
		Expected:     exp.ByForm.Ordered(),
		Counted:      counted.Ordered(),
		Difference:   model.Round2(difference),
		Label:        differenceLabel(difference),
		TitleID:      title.ID.String(),
		Entries:      entries,
		AuthorizerID: uuidPtrString(authorizer),
		ZReport:      report,
	}, nil
}

// normalizeCounted rejects unknown forms and negative amounts and fills the
// missing forms with zero. Amounts are kept as entered.
func normalizeCounted(in dto.FormAmounts) (dto.FormAmounts, error) {
	out := dto.NewFormAmounts()
	for f, v := range in {
		form, ok := model.ParseTenderForm(string(f))
		if !ok {
			return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("unknown tender form %q", f))
		}
		if v.IsNegative() {
			return nil, apierror.Invalid(apierror.CodeInvalidInput, fmt.Sprintf("counted %s must not be negative", form))
		}
		out.Add(form, v)
	}
	return out, nil
}

// differenceLabel names expected minus counted.
func differenceLabel(diff decimal.Decimal) string {
	switch {
	case diff.GreaterThan(model.Epsilon):
		return dto.LabelShortage
	case diff.LessThan(model.Epsilon.Neg()):
		return dto.LabelOver
	default:
		return dto.LabelEven
	}
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
