package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"posterminal/internal/apierror"
	"posterminal/internal/cart"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/repository"
	"posterminal/internal/seed"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func coffeeLine(env *testEnv, qty string) cart.Line {
	p := env.fx.Products["7891000100103"]
	return cart.Line{
		ProductID:   p.ID,
		Code:        p.Code,
		Description: p.Description,
		Unit:        p.Unit,
		Quantity:    dec(qty),
		UnitPrice:   dec("18.90"),
		Discount:    dec("0"),
	}
}

func TestCommit_RejectsUnsettledTenders(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	e := env.openEngine(t, "0")

	_, _, err := env.sales.Commit(context.Background(), CommitRequest{
		Binding:      env.binding,
		SessionID:    e.Session().ID,
		Operator:     env.operator(t),
		Lines:        []cart.Line{coffeeLine(env, "1")},
		Totals:       cart.Totals{Subtotal: dec("18.90"), LineDiscounts: dec("0"), SaleDiscount: dec("0"), Net: dec("18.90")},
		Tenders:      []payment.Tender{{Form: model.FormCash, Amount: dec("10")}},
		Change:       dec("0"),
		DocumentKind: model.DocumentFiscal,
		OpenedAt:     time.Now(),
	})
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeOutstandingBalance)
	assert.Equal(t, int64(0), env.counter(t))
	assertDecimal(t, "100", env.stockOf(t, "7891000100103"))
}

func TestCommit_NumbersSalesAndMovesStock(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	e := env.openEngine(t, "50")

	first := ringUp(t, e, model.DocumentFiscal, []string{"2*7891000100103"}, cashTender("40"))
	second := ringUp(t, e, model.DocumentFiscal, []string{"7891000200200", "0.5*2001"}, debitTender())

	assert.Equal(t, int64(1), first.Receipt.SaleNumber)
	assert.Equal(t, int64(2), second.Receipt.SaleNumber)
	assert.Equal(t, int64(2), env.counter(t))

	assertDecimal(t, "37.80", first.Receipt.Net)
	assertDecimal(t, "2.20", first.Receipt.Change)
	assertDecimal(t, "11.49", second.Receipt.Net)

	assertDecimal(t, "98", env.stockOf(t, "7891000100103"))
	assertDecimal(t, "99", env.stockOf(t, "7891000200200"))
	assertDecimal(t, "99.5", env.stockOf(t, "2001"))

	key := first.Receipt.FiscalKey
	assert.Len(t, key, 33)
	assert.Contains(t, key, seed.StoreTaxID)
	assert.True(t, strings.HasSuffix(key, "000000001"), key)
	assert.Contains(t, first.Receipt.FiscalQR, key)
	require.Len(t, env.printer.receipts, 2)

	sale, err := env.sales.FindByID(context.Background(), mustUUID(t, first.Receipt.SaleID))
	require.NoError(t, err)
	assert.Equal(t, model.SaleFinalized, sale.Status)
	assert.Equal(t, e.Session().ID, sale.SessionID)
	require.Len(t, sale.Tenders, 1)
	assertDecimal(t, "40", sale.Tenders[0].Amount)
	assertDecimal(t, "40", sale.AmountTendered)
}

func TestCancel_RestocksOnce(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	e := env.openEngine(t, "0")
	res := ringUp(t, e, model.DocumentFiscal, []string{"3*7891000100103"}, debitTender())
	saleID := mustUUID(t, res.Receipt.SaleID)
	assertDecimal(t, "97", env.stockOf(t, "7891000100103"))

	op := env.operator(t)
	_, err := env.sales.Cancel(ctx, env.binding, op, e.Session().ID, saleID, "  ", nil)
	requireCode(t, err, apierror.CategoryValidation, apierror.CodeInvalidInput)

	receipt, err := env.sales.Cancel(ctx, env.binding, op, e.Session().ID, saleID, "wrong item", &env.fx.Supervisor.ID)
	require.NoError(t, err)
	assert.Equal(t, "wrong item", receipt.Motive)
	assert.Equal(t, int64(1), receipt.SaleNumber)
	assertDecimal(t, "100", env.stockOf(t, "7891000100103"))

	sale, err := env.sales.FindByID(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCanceled, sale.Status)
	assert.Equal(t, "wrong item", sale.CancelReason)

	_, err = env.sales.Cancel(ctx, env.binding, op, e.Session().ID, saleID, "again", nil)
	requireCode(t, err, apierror.CategorySale, apierror.CodeSaleAlreadyCanceled)
	assertDecimal(t, "100", env.stockOf(t, "7891000100103"))
	assert.Equal(t, int64(1), env.counter(t), "cancellation keeps the number")

	moves, err := env.stock.ListMovementsBySale(ctx, saleID)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	net := decimal.Zero
	kinds := map[model.StockMovementKind]int{}
	for _, m := range moves {
		assert.Equal(t, env.fx.Products["7891000100103"].ID, m.ProductID)
		assert.Equal(t, env.fx.Warehouse.ID, m.WarehouseID)
		net = net.Add(m.Delta)
		kinds[m.Kind]++
	}
	assert.Equal(t, map[model.StockMovementKind]int{model.StockSale: 1, model.StockCancelRestock: 1}, kinds)
	assertDecimal(t, "0", net, "a canceled sale leaves no stock behind")
}

func TestCancel_OnlyCurrentSession(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	e := env.openEngine(t, "0")
	res := ringUp(t, e, model.DocumentFiscal, []string{"7891000200200"}, debitTender())

	_, err := env.sales.Cancel(ctx, env.binding, env.operator(t), uuid.New(), mustUUID(t, res.Receipt.SaleID), "late", nil)
	requireCode(t, err, apierror.CategorySale, apierror.CodeSaleNotInSession)

	_, err = env.sales.Cancel(ctx, env.binding, env.operator(t), e.Session().ID, uuid.New(), "ghost", nil)
	requireCode(t, err, apierror.CategorySale, apierror.CodeSaleNotFound)
}

func TestConvertToFiscal(t *testing.T) {
	env := newTestEnv(t, seed.Options{AllowNonFiscal: true})
	ctx := context.Background()
	e := env.openEngine(t, "0")

	draft := ringUp(t, e, model.DocumentNonFiscal, []string{"7891000300307"}, cashTender("5"))
	assert.Empty(t, draft.Receipt.FiscalKey)
	ringUp(t, e, model.DocumentFiscal, []string{"7891000200200"}, debitTender())
	require.Equal(t, int64(2), env.counter(t))

	draftID := mustUUID(t, draft.Receipt.SaleID)
	sale, receipt, err := env.sales.ConvertToFiscal(ctx, env.binding, env.operator(t), draftID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sale.TerminalSaleNumber)
	assert.Equal(t, model.DocumentFiscal, sale.DocumentKind)
	require.NotNil(t, sale.ConvertedAt)
	assert.NotEmpty(t, sale.FiscalKey)
	assert.Equal(t, sale.FiscalKey, receipt.FiscalKey)
	assertDecimal(t, "0.01", receipt.Change)
	assert.Equal(t, int64(3), env.counter(t))
	assertDecimal(t, "99", env.stockOf(t, "7891000300307"), "conversion does not move stock again")

	_, _, err = env.sales.ConvertToFiscal(ctx, env.binding, env.operator(t), draftID)
	requireCode(t, err, apierror.CategorySale, apierror.CodeSaleAlreadyFiscal)
	assert.Equal(t, int64(3), env.counter(t))
}

func TestConvertToFiscal_CanceledSale(t *testing.T) {
	env := newTestEnv(t, seed.Options{AllowNonFiscal: true})
	ctx := context.Background()
	e := env.openEngine(t, "0")
	draft := ringUp(t, e, model.DocumentNonFiscal, []string{"7891000300307"}, cashTender("4.99"))
	id := mustUUID(t, draft.Receipt.SaleID)

	_, err := env.sales.Cancel(ctx, env.binding, env.operator(t), e.Session().ID, id, "void", nil)
	require.NoError(t, err)

	_, _, err = env.sales.ConvertToFiscal(ctx, env.binding, env.operator(t), id)
	requireCode(t, err, apierror.CategorySale, apierror.CodeSaleAlreadyCanceled)
	assert.Equal(t, int64(1), env.counter(t))
}

// flakyStock fails the n-th stock update.
type flakyStock struct {
	repository.StockRepository
	failOn int
	calls  int
}

func (f *flakyStock) ApplyDeltaTx(tx *gorm.DB, productID, warehouseID uuid.UUID, delta decimal.Decimal) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("disk full")
	}
	return f.StockRepository.ApplyDeltaTx(tx, productID, warehouseID, delta)
}

func TestCommit_RollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t, seed.Options{})
	ctx := context.Background()
	e := env.openEngine(t, "0")
	sugar := env.fx.Products["7891000200200"]

	sales := NewSaleService(env.salesRepo, env.terminals, env.cashRepo, &flakyStock{StockRepository: env.stock, failOn: 2}, env.customers)
	_, _, err := sales.Commit(ctx, CommitRequest{
		Binding:   env.binding,
		SessionID: e.Session().ID,
		Operator:  env.operator(t),
		Lines: []cart.Line{
			coffeeLine(env, "1"),
			{ProductID: sugar.ID, Code: sugar.Code, Description: sugar.Description, Unit: sugar.Unit,
				Quantity: dec("1"), UnitPrice: dec("5.49"), Discount: dec("0")},
		},
		Totals:       cart.Totals{Subtotal: dec("24.39"), LineDiscounts: dec("0"), SaleDiscount: dec("0"), Net: dec("24.39")},
		Tenders:      []payment.Tender{{Form: model.FormCash, Amount: dec("24.39")}},
		Change:       dec("0"),
		DocumentKind: model.DocumentFiscal,
		OpenedAt:     time.Now(),
	})
	requireCode(t, err, apierror.CategoryPersistence, apierror.CodeTransactionFailed)

	assert.Equal(t, int64(0), env.counter(t), "the number is not consumed")
	recorded, err := env.salesRepo.ListBySession(ctx, e.Session().ID)
	require.NoError(t, err)
	assert.Empty(t, recorded)
	var lines, moves int64
	require.NoError(t, env.db.Model(&model.SaleLine{}).Count(&lines).Error)
	require.NoError(t, env.db.Model(&model.StockMovement{}).Count(&moves).Error)
	assert.Zero(t, lines)
	assert.Zero(t, moves)
	assertDecimal(t, "100", env.stockOf(t, "7891000100103"))
	assertDecimal(t, "100", env.stockOf(t, "7891000200200"))

	// The engine-level retry takes number 1.
	res := ringUp(t, e, model.DocumentFiscal, []string{"7891000100103"}, debitTender())
	assert.Equal(t, int64(1), res.Receipt.SaleNumber)
}
