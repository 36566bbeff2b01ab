package handler

import (
	"context"
	"net/http"
	"time"

	"posterminal/internal/infra"
	"posterminal/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health reports store, cache, printer and binding state. rdb and breaker may
// be nil when those components are disabled.
func Health(db *gorm.DB, rdb *redis.Client, breaker *infra.CircuitBreaker, bindErr error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		var deadPrints int64
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			} else if n, err := worker.DeadPrintCount(ctx, rdb); err == nil {
				deadPrints = n
			}
		}

		printerStatus := "disabled"
		if breaker != nil {
			printerStatus = breaker.State().String()
		}

		binding := "bound"
		if bindErr != nil {
			binding = bindErr.Error()
		}

		// The cache is optional and an open printer breaker only yields
		// warnings, so neither makes the terminal unhealthy.
		status := http.StatusOK
		if dbStatus != "connected" || bindErr != nil {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":                 status == http.StatusOK,
			"db":                 dbStatus,
			"redis":              redisStatus,
			"printer":            printerStatus,
			"print_dead_letters": deadPrints,
			"binding":            binding,
		})
	}
}
