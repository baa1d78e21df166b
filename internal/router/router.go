// Package router binds the loader's flux table onto concrete HTTP
// routes via gin (§4.6/§4.7): the "surrounding HTTP framework" the
// core treats as an external collaborator.
package router

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/orbitflux/flux/internal/config"
	"github.com/orbitflux/flux/internal/executor"
	"github.com/orbitflux/flux/internal/flux"
	"github.com/orbitflux/flux/internal/health"
	"github.com/orbitflux/flux/internal/loader"
	"github.com/orbitflux/flux/internal/logger"
	"github.com/orbitflux/flux/internal/middleware"
	"github.com/orbitflux/flux/internal/plugin"
	"github.com/orbitflux/flux/plugins/jwtauth"
)

// New assembles a gin.Engine: ambient middleware and routes (§4.7),
// then one handler per loaded flux endpoint.
func New(cfg *config.Config, l *loader.Loader, ex *executor.Executor, registry *plugin.Registry, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(cfg.Server.CORS))
	r.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))

	if rl := rateLimiterMiddleware(cfg, registry, log); rl != nil {
		r.Use(rl)
	}
	if auth := jwtAuthMiddleware(registry); auth != nil {
		r.Use(auth)
	}

	h := health.NewHandler(registry, l, log)
	r.GET("/healthz", h.GetHealth)
	r.GET("/healthz/live", h.GetLiveness)

	if cfg.Server.DebugRoutes {
		r.GET("/flux-errors", fluxErrorsHandler(l))
	}

	if cfg.Swagger.Enabled {
		mountDocs(r, l)
	}

	BindFluxes(r, l, ex)

	return r
}

// rateLimiterMiddleware wires middleware.RateLimiter against the
// configured `cache`/`redis` plugin instance, gated on both a
// server.rateLimit config block and that plugin actually being a
// *redis.Client. Returns nil (no-op) when either is missing, so
// rate limiting is opt-in rather than a hard requirement on Redis.
func rateLimiterMiddleware(cfg *config.Config, registry *plugin.Registry, log *logger.Logger) gin.HandlerFunc {
	if cfg.Server.RateLimit == nil {
		return nil
	}

	cachePlugin, ok := registry.Snapshot()["cache"]
	if !ok {
		log.Warnw("router: rate limit configured but no cache plugin is set up, skipping")
		return nil
	}
	rdb, ok := cachePlugin.GetClient().(*redis.Client)
	if !ok {
		log.Warnw("router: rate limit configured but cache plugin is not a redis client, skipping")
		return nil
	}

	window := time.Duration(cfg.Server.RateLimit.WindowSeconds) * time.Second
	return middleware.RateLimiter(rdb, cfg.Server.RateLimit.Requests, window)
}

// jwtAuthMiddleware wires middleware.JWTAuth against the configured
// `auth`/`jwt` plugin instance, when one is set up. A flux endpoint
// gates itself on the result via a condition node on
// `${request.authenticated}` (§4.4) rather than this middleware
// rejecting requests outright.
func jwtAuthMiddleware(registry *plugin.Registry) gin.HandlerFunc {
	authPlugin, ok := registry.Snapshot()["auth"]
	if !ok {
		return nil
	}
	client, ok := authPlugin.GetClient().(*jwtauth.Client)
	if !ok {
		return nil
	}
	return middleware.JWTAuth(client)
}

// BindFluxes registers one gin.HandlerFunc per currently loaded flux
// definition. gin cannot unregister or re-register a route, so endpoints
// added or removed by a later Reload are not served until a new engine
// is built with New; cmd/fluxd builds its engine once at startup.
func BindFluxes(r *gin.Engine, l *loader.Loader, ex *executor.Executor) {
	for _, def := range l.LoadFluxDefinitions() {
		def := def
		r.Handle(string(def.Method), ginPath(def.Endpoint), fluxHandler(def, ex))
	}
}

// ginPath is a no-op translation point: gin's `:name` path-param
// syntax is already what the flux `endpoint` field uses, so no
// rewriting is needed (§4.7's "deliberate point of leverage").
func ginPath(endpoint string) string { return endpoint }

func fluxHandler(def *flux.Definition, ex *executor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		input := mergeInput(c)
		ctx := executor.BuildContext(c.Request.Context(), c.Request, c.Writer, input)
		if requestID, ok := c.Get("request_id"); ok {
			ctx.State["requestID"] = requestID
		}
		if authenticated, ok := c.Get("request.authenticated"); ok {
			ctx.RequestMeta["authenticated"] = authenticated
		}
		if claims, ok := c.Get("request.claims"); ok {
			ctx.RequestMeta["claims"] = claims
		}
		ex.ExecuteFlux(def, ctx)
	}
}

// mergeInput builds the flux `input` bag as `{...body, ...query,
// ...params}`, later keys winning, per spec.md's merge-order
// invariant.
func mergeInput(c *gin.Context) map[string]any {
	input := map[string]any{}

	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		raw, err := io.ReadAll(c.Request.Body)
		if err == nil && len(raw) > 0 {
			var body map[string]any
			if json.Unmarshal(raw, &body) == nil {
				for k, v := range body {
					input[k] = v
				}
			}
		}
	}

	for k, values := range c.Request.URL.Query() {
		if len(values) == 1 {
			input[k] = values[0]
		} else {
			input[k] = values
		}
	}

	for _, p := range c.Params {
		input[p.Key] = p.Value
	}

	return input
}

func fluxErrorsHandler(l *loader.Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, l.GetFluxErrors())
	}
}

// mountDocs serves a small, dynamically generated description of the
// loaded flux endpoints via swaggo/gin-swagger + swaggo/files. This is
// deliberately not a full OpenAPI compiler (§4.7) — the document is
// rebuilt from the loader's live table on every request to
// /docs/openapi.json, so it never goes stale across a Reload the way
// a build-time swag-generated spec would.
func mountDocs(r *gin.Engine, l *loader.Loader) {
	r.GET("/docs/openapi.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, buildOpenAPIDoc(l))
	})
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/openapi.json")))
}

func buildOpenAPIDoc(l *loader.Loader) map[string]any {
	paths := map[string]any{}
	for _, def := range l.LoadFluxDefinitions() {
		entry, ok := paths[def.Endpoint].(map[string]any)
		if !ok {
			entry = map[string]any{}
			paths[def.Endpoint] = entry
		}
		entry[strings.ToLower(string(def.Method))] = map[string]any{
			"summary": def.Description,
			"responses": map[string]any{
				"200": map[string]any{"description": "flux-defined response"},
			},
		}
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "flux engine",
			"version": "1.0",
		},
		"paths": paths,
	}
}
