// Package health implements the `/healthz` surface (§4.6): a generic
// check over whatever plugins are actually configured, plus a presence
// check for the loader.
package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orbitflux/flux/internal/loader"
	"github.com/orbitflux/flux/internal/logger"
	"github.com/orbitflux/flux/internal/plugin"
	"github.com/orbitflux/flux/internal/store"
)

// Handler serves the health and liveness endpoints over whatever
// plugins are registered, without assuming which ones are present.
type Handler struct {
	registry *plugin.Registry
	loader   *loader.Loader
	log      *logger.Logger
}

// NewHandler creates a health handler backed by the live plugin
// registry and the loader's tables.
func NewHandler(registry *plugin.Registry, l *loader.Loader, log *logger.Logger) *Handler {
	return &Handler{registry: registry, loader: l, log: log}
}

// HealthStatus is the full `/healthz` response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckResult is the outcome of pinging one registered plugin.
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SystemInfo is a snapshot of Go runtime resource usage.
type SystemInfo struct {
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
	NumCPU       int    `json:"numCpu"`
	MemoryAlloc  uint64 `json:"memoryAllocBytes"`
}

var startTime = time.Now()

// GetHealth pings every registered plugin's underlying client where
// cheaply possible (redis PING, gorm's sql.DB.Ping) and, when a loader
// is set, adds a "loader" check with a fixed "tables loaded" message; the
// table sizes are not reported. Plugin kinds with no cheap
// ping (e.g. the websocket broadcaster) are reported present but
// unchecked, never marked unhealthy on our behalf.
func (h *Handler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckResult{}
	overall := "healthy"

	for name, p := range h.registry.Snapshot() {
		result := pingClient(ctx, p.GetClient())
		checks[name] = result
		if result.Status == "unhealthy" {
			overall = "unhealthy"
		}
	}

	if h.loader != nil {
		checks["loader"] = CheckResult{
			Status:  "healthy",
			Message: "tables loaded",
		}
	}

	status := HealthStatus{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime),
		Checks:    checks,
		System:    systemInfo(),
	}

	code := http.StatusOK
	if overall == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// GetLiveness is a bare liveness probe: if the process can answer,
// it's alive.
func (h *Handler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now()})
}

// pingClient type-switches on a plugin's concrete client to perform a
// cheap liveness check, matching the teacher's per-dependency ping
// style (checkDatabase/checkRedis) but generalized over whatever the
// plugin registry happens to hold rather than a fixed db+redis pair.
func pingClient(ctx context.Context, client any) CheckResult {
	start := time.Now()
	switch c := client.(type) {
	case *redis.Client:
		if err := c.Ping(ctx).Err(); err != nil {
			return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: time.Since(start)}
		}
		return CheckResult{Status: "healthy", Duration: time.Since(start)}
	case *gorm.DB:
		return pingGormDB(ctx, c, start)
	case *store.Store:
		return pingGormDB(ctx, c.DB(), start)
	default:
		return CheckResult{Status: "healthy", Message: "no cheap ping available for this client type", Duration: time.Since(start)}
	}
}

func pingGormDB(ctx context.Context, db *gorm.DB, start time.Time) CheckResult {
	sqlDB, err := db.DB()
	if err != nil {
		return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: time.Since(start)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: time.Since(start)}
	}
	return CheckResult{Status: "healthy", Duration: time.Since(start)}
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemoryAlloc:  m.Alloc,
	}
}
