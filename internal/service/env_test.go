package service

import (
	"context"
	"sync"
	"testing"

	"posterminal/internal/apierror"
	"posterminal/internal/dto"
	"posterminal/internal/infra"
	"posterminal/internal/model"
	"posterminal/internal/payment"
	"posterminal/internal/repository"
	"posterminal/internal/seed"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── Shared fixtures ──────────────────────────────────────────────────────────
// Each testEnv is a fresh in-memory SQLite store holding the demo terminal.

const testHost = "till-test"

type recordingPrinter struct {
	mu            sync.Mutex
	fail          error
	receipts      []*dto.Receipt
	cancellations []*dto.CancellationReceipt
	zreports      []*dto.ZReport
}

func (p *recordingPrinter) PrintReceipt(_ context.Context, r *dto.Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.receipts = append(p.receipts, r)
	return nil
}

func (p *recordingPrinter) PrintCancellation(_ context.Context, r *dto.CancellationReceipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.cancellations = append(p.cancellations, r)
	return nil
}

func (p *recordingPrinter) PrintZReport(_ context.Context, z *dto.ZReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.zreports = append(p.zreports, z)
	return nil
}

type testEnv struct {
	db        *gorm.DB
	fx        *seed.Fixture
	binding   *Binding
	users     repository.UserRepository
	terminals repository.TerminalRepository
	stock     repository.StockRepository
	ledger    repository.LedgerRepository
	salesRepo repository.SaleRepository
	cashRepo  repository.CashRepository
	customers repository.CustomerRepository
	perms     PermissionService
	cash      CashService
	sales     SaleService
	products  ProductResolver
	printer   *recordingPrinter
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := infra.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestEnv(t *testing.T, opts seed.Options) *testEnv {
	t.Helper()
	ctx := context.Background()
	db := openTestDB(t)
	if opts.Host == "" {
		opts.Host = testHost
	}
	opts.PasswordCost = bcrypt.MinCost
	fx, err := seed.Demo(ctx, db, opts)
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		fx:        fx,
		users:     repository.NewUserRepository(db),
		terminals: repository.NewTerminalRepository(db),
		stock:     repository.NewStockRepository(db),
		ledger:    repository.NewLedgerRepository(db),
		salesRepo: repository.NewSaleRepository(db),
		cashRepo:  repository.NewCashRepository(db),
		customers: repository.NewCustomerRepository(db),
		printer:   &recordingPrinter{},
	}
	env.perms = NewPermissionService(env.users)
	env.cash = NewCashService(env.cashRepo, env.salesRepo, env.ledger, env.perms)
	env.sales = NewSaleService(env.salesRepo, env.terminals, env.cashRepo, env.stock, env.customers)
	env.products = NewProductResolver(repository.NewProductRepository(db), env.salesRepo, nil)

	env.binding, err = NewTerminalService(env.terminals).Bind(ctx, opts.Host)
	require.NoError(t, err)
	return env
}

func (env *testEnv) deps() EngineDeps {
	return EngineDeps{
		Permissions: env.perms,
		Cash:        env.cash,
		Sales:       env.sales,
		Products:    env.products,
		Customers:   env.customers,
		Printer:     env.printer,
	}
}

func (env *testEnv) operator(t *testing.T) *Operator {
	t.Helper()
	op, err := env.perms.Load(context.Background(), env.fx.Operator.ID)
	require.NoError(t, err)
	return op
}

func (env *testEnv) supervisor(t *testing.T) *Operator {
	t.Helper()
	op, err := env.perms.Load(context.Background(), env.fx.Supervisor.ID)
	require.NoError(t, err)
	return op
}

func (env *testEnv) engine(t *testing.T, op *Operator) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), env.deps(), env.binding, op)
	require.NoError(t, err)
	return e
}

// openEngine returns an operator engine with a session opened on float.
func (env *testEnv) openEngine(t *testing.T, float string) *Engine {
	t.Helper()
	e := env.engine(t, env.operator(t))
	_, err := e.OpenCash(context.Background(), dec(float), nil)
	require.NoError(t, err)
	return e
}

func (env *testEnv) stockOf(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	q, err := env.stock.Quantity(context.Background(), env.fx.Products[code].ID, env.fx.Warehouse.ID)
	require.NoError(t, err)
	return q
}

func (env *testEnv) counter(t *testing.T) int64 {
	t.Helper()
	term, err := env.terminals.FindByID(context.Background(), env.fx.Terminal.ID)
	require.NoError(t, err)
	return term.NextSaleCounter
}

func (env *testEnv) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	acc, err := env.ledger.FindAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

// ── Sales ────────────────────────────────────────────────────────────────────

func cashTender(amount string) payment.Request {
	return payment.Request{Form: model.FormCash, Amount: decp(amount)}
}

// debitTender takes whatever is outstanding.
func debitTender() payment.Request {
	return payment.Request{Form: model.FormCard, Card: &payment.CardEntry{
		Type: model.CardDebit, Mode: payment.CardModePOS, NSU: "000123", Doc: "987654",
	}}
}

// ringUp scans tokens, takes the tenders and finalizes the sale as kind.
func ringUp(t *testing.T, e *Engine, kind model.DocumentKind, tokens []string, tenders ...payment.Request) *dto.FinalizeResponse {
	t.Helper()
	ctx := context.Background()
	for _, tok := range tokens {
		_, err := e.Scan(ctx, tok, nil)
		require.NoError(t, err, tok)
	}
	for _, tr := range tenders {
		_, err := e.AddTender(ctx, tr)
		require.NoError(t, err)
	}
	res, err := e.Finalize(ctx, kind, nil)
	require.NoError(t, err)
	return res
}

// ── Escalators ───────────────────────────────────────────────────────────────

func supervisorApproves() Escalator {
	return func(context.Context, model.PermissionKey) (*Credentials, bool) {
		return &Credentials{Username: seed.SupervisorUsername, Password: seed.SupervisorPassword}, true
	}
}

func promptDismissed() Escalator {
	return func(context.Context, model.PermissionKey) (*Credentials, bool) { return nil, false }
}

func wrongPassword() Escalator {
	return func(context.Context, model.PermissionKey) (*Credentials, bool) {
		return &Credentials{Username: seed.SupervisorUsername, Password: "nope"}, true
	}
}

// neverPrompted fails the test when the engine escalates.
func neverPrompted(t *testing.T) Escalator {
	return func(_ context.Context, key model.PermissionKey) (*Credentials, bool) {
		t.Errorf("unexpected escalation for %s", key)
		return nil, false
	}
}

// ── Assertions ───────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(want).Equal(got) {
		assert.Fail(t, "want "+want+", got "+got.String(), msgAndArgs...)
	}
}

func requireCode(t *testing.T, err error, category apierror.Category, code apierror.Code) *apierror.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := apierror.As(err)
	require.True(t, ok, "not an engine error: %v", err)
	assert.Equal(t, category, e.Category, err.Error())
	assert.Equal(t, code, e.Code, err.Error())
	return e
}
