package router

import (
	"context"
	"time"

	"posterminal/internal/config"
	"posterminal/internal/handler"
	"posterminal/internal/infra"
	"posterminal/internal/middleware"
	"posterminal/internal/repository"
	"posterminal/internal/service"
	"posterminal/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Engine ← Service ← Repository ← DB/Redis
//
// rdb and printer may be nil. The terminal is bound to host once here; when
// binding fails the server still starts so /health can report why, but every
// engine route answers 503.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, printer *infra.GuardedPrinter, host string) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	terminalRepo := repository.NewTerminalRepository(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	stockRepo := repository.NewStockRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	cashRepo := repository.NewCashRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// ── Terminal binding ─────────────────────────────────────────────────────
	binding, bindErr := service.NewTerminalService(terminalRepo).Bind(context.Background(), host)
	if bindErr != nil {
		log.Error().Err(bindErr).Str("host", host).Msg("terminal binding failed, engine routes disabled")
	}

	// ── Services ─────────────────────────────────────────────────────────────
	var cache service.PriceCache
	if rdb != nil {
		cache = infra.NewRedisPriceCache(rdb, infra.PriceCacheTTL)
	}
	permSvc := service.NewPermissionService(userRepo)
	cashSvc := service.NewCashService(cashRepo, saleRepo, ledgerRepo, permSvc)
	saleSvc := service.NewSaleService(saleRepo, terminalRepo, cashRepo, stockRepo, customerRepo)
	resolver := service.NewProductResolver(productRepo, saleRepo, cache)
	authSvc := service.NewAuthService(permSvc, cashSvc, binding, cfg)

	deps := service.EngineDeps{
		Permissions: permSvc,
		Cash:        cashSvc,
		Sales:       saleSvc,
		Products:    resolver,
		Customers:   customerRepo,
	}
	var breaker *infra.CircuitBreaker
	if printer != nil {
		deps.Printer = printer
		breaker = printer.Breaker()
	}
	if rdb != nil {
		deps.Spool = worker.NewDispatcher(rdb)
	}
	registry := service.NewEngineRegistry(deps, binding)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	engineH := handler.NewEngineHandler(registry)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, breaker, bindErr))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected: a valid access token on a bound terminal. The operator is
	// reloaded on every request so revoked grants apply immediately.
	v1 := r.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireBinding(bindErr),
		middleware.LoadOperator(permSvc),
	)
	{
		eng := v1.Group("/engine")
		{
			eng.GET("/state", engineH.State)
			eng.GET("/functions", engineH.Functions)
			eng.POST("/menu", engineH.ToggleMenu)
			eng.POST("/commands", engineH.Dispatch)
		}

		cash := v1.Group("/cash")
		{
			cash.POST("/open", engineH.OpenCash)
			cash.POST("/movements", engineH.RecordMovement)
			cash.GET("/expected", engineH.ExpectedTotals)
			cash.GET("/zreport", engineH.ZReport)
			cash.POST("/close", engineH.CloseCash)
		}

		v1.GET("/products/price", engineH.PriceCheck)

		cart := v1.Group("/cart")
		{
			cart.POST("/scan", engineH.Scan)
			cart.DELETE("/lines/:index", engineH.DeleteLine)
			cart.PUT("/lines/:index/discount", engineH.LineDiscount)
			cart.PUT("/discount", engineH.SaleDiscount)
			cart.PUT("/customer", engineH.SetCustomer)
			cart.POST("/cancel", engineH.CancelCurrent)
		}

		pay := v1.Group("/payment")
		{
			pay.POST("/tenders", engineH.AddTender)
			pay.DELETE("/tenders/:index", engineH.RemoveTender)
		}

		sales := v1.Group("/sales")
		{
			sales.POST("/finalize", engineH.Finalize)
			sales.POST("/:id/cancel", engineH.CancelSale)
		}
	}

	return r
}
