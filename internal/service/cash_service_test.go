package service

import (
	"context"
	"errors"
	"testing"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/model"
	"posterminal/internal/repository"
	"posterminal/internal/seed"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCashOpen_OneOpenSessionPerOperator(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	op := env.operator(t)

	_, err := env.cash.Open(ctx, env.binding, op, dec("-1"), nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeInvalidInput)

	sess, err := env.cash.Open(ctx, env.binding, op, dec("150.004"), neverPrompted(t))
	require.NoError(t, err)
	assertDecimal(t, "150.00", sess.InitialFloat)
	assert.Nil(t, sess.AuthorizerID)

	_, err = env.cash.Open(ctx, env.binding, op, dec("10"), nil)
	requireCode(t, err, apierror.CategorySession, apierror.CodeSessionAlreadyOpen)

	found, err := env.cash.FindOpen(ctx, env.binding, op.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sess.ID, found.ID)

	none, err := env.cash.FindOpen(ctx, env.binding, env.fx.Supervisor.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCashOpen_EscalatesWithoutGrant(t *testing.T) {
	env := newTestEnv(t, seed.Options{OperatorGrants: []model.PermissionKey{}})
	ctx := context.Background()
	op := env.operator(t)

	_, err := env.cash.Open(ctx, env.binding, op, dec("50"), promptDismissed())
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeEscalationAborted)

	sess, err := env.cash.Open(ctx, env.binding, op, dec("50"), supervisorApproves())
	require.NoError(t, err)
	require.NotNil(t, sess.AuthorizerID)
	assert.Equal(t, env.fx.Supervisor.ID, *sess.AuthorizerID)
}

func TestRecordMovement(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	op := env.operator(t)
	sess, err := env.cash.Open(ctx, env.binding, op, dec("100"), nil)
	require.NoError(t, err)

	_, err = env.cash.RecordMovement(ctx, env.binding, op, sess.ID, model.MovementDrop, dec("10"), "   ", nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeEmptyMovementReason)

	_, err = env.cash.RecordMovement(ctx, env.binding, op, sess.ID, model.MovementDrop, dec("0.001"), "safe", nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeInvalidInput)

	drop, err := env.cash.RecordMovement(ctx, env.binding, op, sess.ID, model.MovementDrop, dec("30"), " to safe ", neverPrompted(t))
	require.NoError(t, err)
	assert.Equal(t, "to safe", drop.Reason)
	assert.Nil(t, drop.AuthorizerID)

	// Infusions are not granted to the demo operator.
	_, err = env.cash.RecordMovement(ctx, env.binding, op, sess.ID, model.MovementInfusion, dec("20"), "coins", nil)
	requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeDenied)

	inf, err := env.cash.RecordMovement(ctx, env.binding, op, sess.ID, model.MovementInfusion, dec("20"), "coins", supervisorApproves())
	require.NoError(t, err)
	require.NotNil(t, inf.AuthorizerID)

	exp, err := env.cash.ExpectedTotals(ctx, sess.ID)
	require.NoError(t, err)
	assertDecimal(t, "30", exp.Drops)
	assertDecimal(t, "20", exp.Infusions)
	assertDecimal(t, "90", exp.ByForm[model.FormCash])
}

// closeFixture: float 100, coffee 18.90 paid with 20.00 cash, sugar 5.49 on
// debit, a 30.00 drop. Expected CASH 88.90, CARD 5.49.
func closeFixture(t *testing.T) (*testEnv, *Engine) {
	t.Helper()
	env := newTestEnv(t, seed.Options{})
	e := env.openEngine(t, "100")
	ringUp(t, e, model.DocumentFiscal, []string{"7891000100103"}, cashTender("20.00"))
	ringUp(t, e, model.DocumentFiscal, []string{"7891000200200"}, debitTender())
	_, err := e.RecordMovement(context.Background(), model.MovementDrop, dec("30"), "safe", nil)
	require.NoError(t, err)
	return env, e
}

func TestExpectedTotals(t *testing.T) {
	_, e := closeFixture(t)
	exp, err := e.ExpectedTotals(context.Background())
	require.NoError(t, err)

	assertDecimal(t, "100", exp.InitialFloat)
	assertDecimal(t, "18.90", exp.CashFromSales)
	assertDecimal(t, "88.90", exp.ByForm[model.FormCash])
	assertDecimal(t, "5.49", exp.ByForm[model.FormCard])
	assertDecimal(t, "0", exp.ByForm[model.FormPix])
	assertDecimal(t, "94.39", exp.Total)
}

func TestClose_PostsBalancedLedger(t *testing.T) {
	env, e := closeFixture(t)
	ctx := context.Background()
	sessionID := e.Session().ID

	res, err := e.CloseCash(ctx, dto.FormAmounts{model.FormCash: dec("88.90"), model.FormCard: dec("5.49")}, neverPrompted(t))
	require.NoError(t, err)
	assert.Equal(t, dto.LabelEven, res.Label)
	assertDecimal(t, "0", res.Difference)
	assert.Nil(t, res.AuthorizerID)
	assert.Nil(t, e.Session())
	require.Len(t, res.Entries, 2)

	titles, err := env.ledger.ListTitlesBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	assertDecimal(t, "94.39", titles[0].Amount)
	assert.Equal(t, model.TitleReceivable, titles[0].Kind)
	assert.Equal(t, model.TitlePaid, titles[0].Status)
	for _, entry := range titles[0].Entries {
		require.Len(t, entry.Movements, 2)
		sum := entry.Movements[0].Amount.Add(entry.Movements[1].Amount)
		assert.True(t, sum.IsZero(), "legs of %s must cancel out", entry.Form)
	}

	assertDecimal(t, "-94.39", env.balance(t, env.fx.Till.ID))
	assertDecimal(t, "88.90", env.balance(t, env.fx.DestCash.ID))
	assertDecimal(t, "5.49", env.balance(t, env.fx.DestCard.ID))

	closed, err := env.cashRepo.FindSessionByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// The Z-report was printed and carries the count.
	require.Len(t, env.printer.zreports, 1)
	conf := env.printer.zreports[0].Synthetic.Conference
	require.NotNil(t, conf.Counted)
	assertDecimal(t, "94.39", *conf.Counted)

	_, err = env.cash.Close(ctx, env.binding, env.operator(t), sessionID, dto.FormAmounts{}, nil)
	requireCode(t, err, apierror.CategorySession, apierror.CodeSessionNotOpen)
}

func TestClose_DivergenceBoundary(t *testing.T) {
	t.Run("half a cent closes even without escalation", func(t *testing.T) {
		_, e := closeFixture(t)
		res, err := e.CloseCash(context.Background(),
			dto.FormAmounts{model.FormCash: dec("88.895"), model.FormCard: dec("5.49")}, neverPrompted(t))
		require.NoError(t, err)
		assert.Equal(t, dto.LabelEven, res.Label)
	})

	t.Run("a cent and a half needs close_with_divergence", func(t *testing.T) {
		env, e := closeFixture(t)
		counted := dto.FormAmounts{model.FormCash: dec("88.885"), model.FormCard: dec("5.49")}

		_, err := e.CloseCash(context.Background(), counted, nil)
		requireCode(t, err, apierror.CategoryAuthorization, apierror.CodeDenied)
		require.NotNil(t, e.Session(), "a refused close keeps the session open")

		res, err := e.CloseCash(context.Background(), counted, supervisorApproves())
		require.NoError(t, err)
		assert.Equal(t, dto.LabelShortage, res.Label)
		assertDecimal(t, "0.02", res.Difference)
		require.NotNil(t, res.AuthorizerID)
		assert.Equal(t, env.fx.Supervisor.ID.String(), *res.AuthorizerID)
	})

	t.Run("counting more than expected is over", func(t *testing.T) {
		_, e := closeFixture(t)
		res, err := e.CloseCash(context.Background(),
			dto.FormAmounts{model.FormCash: dec("90.00"), model.FormCard: dec("5.49")}, supervisorApproves())
		require.NoError(t, err)
		assert.Equal(t, dto.LabelOver, res.Label)
		assertDecimal(t, "-1.10", res.Difference)
	})
}

func TestClose_RejectsUnknownForm(t *testing.T) {
	_, e := closeFixture(t)
	_, err := e.CloseCash(context.Background(), dto.FormAmounts{"CHEQUE": dec("1")}, nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeInvalidInput)
}

func TestZReport_SeparatesCanceledSales(t *testing.T) {
	_, e := closeFixture(t)
	ctx := context.Background()
	extra := ringUp(t, e, model.DocumentFiscal, []string{"7891000300307"}, cashTender("4.99"))
	saleID := extra.Receipt.SaleID

	_, err := e.CancelFinalized(ctx, mustUUID(t, saleID), "customer changed mind", supervisorApproves())
	require.NoError(t, err)

	z, err := e.ZReport(ctx)
	require.NoError(t, err)
	syn := z.Synthetic
	assert.Equal(t, 2, syn.SalesCount)
	assert.Equal(t, 1, syn.CanceledCount)
	assertDecimal(t, "4.99", syn.CanceledTotal)
	assertDecimal(t, "24.39", syn.Net)
	assert.Nil(t, syn.Conference.Counted)
	assertDecimal(t, "94.39", syn.Conference.Expected)
	require.Len(t, z.Analytic, 3)
	highlighted := 0
	for _, row := range z.Analytic {
		if row.Highlight {
			highlighted++
			assert.Equal(t, model.SaleCanceled, row.Status)
		}
	}
	assert.Equal(t, 1, highlighted)
}

// brokenLedger fails the n-th balance update.
type brokenLedger struct {
	repository.LedgerRepository
	failOn int
	calls  int
}

func (l *brokenLedger) AdjustBalanceTx(tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	l.calls++
	if l.calls == l.failOn {
		return errors.New("connection reset")
	}
	return l.LedgerRepository.AdjustBalanceTx(tx, id, delta)
}

func TestClose_RollsBackOnFailure(t *testing.T) {
	env, e := closeFixture(t)
	ctx := context.Background()
	sessionID := e.Session().ID
	counted := dto.FormAmounts{model.FormCash: dec("88.90"), model.FormCard: dec("5.49")}

	// The third leg is the till side of the CARD entry: the CASH entry and
	// the title are already written when it fails.
	cash := NewCashService(env.cashRepo, env.salesRepo, &brokenLedger{LedgerRepository: env.ledger, failOn: 3}, env.perms)
	_, err := cash.Close(ctx, env.binding, env.operator(t), sessionID, counted, nil)
	requireCode(t, err, apierror.CategoryPersistence, apierror.CodeTransactionFailed)

	sess, err := env.cashRepo.FindSessionByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, sess.Status)
	assert.Nil(t, sess.ClosedAt)
	titles, err := env.ledger.ListTitlesBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, titles)
	assertDecimal(t, "0", env.balance(t, env.fx.Till.ID))
	assertDecimal(t, "0", env.balance(t, env.fx.DestCash.ID))

	// The session closes normally afterwards.
	res, err := e.CloseCash(ctx, counted, nil)
	require.NoError(t, err)
	assert.Equal(t, dto.LabelEven, res.Label)
	assertDecimal(t, "-94.39", env.balance(t, env.fx.Till.ID))
}
