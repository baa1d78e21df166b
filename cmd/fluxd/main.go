// Command fluxd is the reference CLI (§6 "CLI surface (thin, outside
// core)"): enough of a start/validate/list surface to run the engine
// end-to-end without claiming to be a full product CLI.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/orbitflux/flux/internal/config"
	"github.com/orbitflux/flux/internal/executor"
	"github.com/orbitflux/flux/internal/loader"
	"github.com/orbitflux/flux/internal/logger"
	"github.com/orbitflux/flux/internal/plugin"
	"github.com/orbitflux/flux/internal/router"
	"github.com/orbitflux/flux/plugins/jwtauth"
	"github.com/orbitflux/flux/plugins/redis"
	"github.com/orbitflux/flux/plugins/sqlite"
	"github.com/orbitflux/flux/plugins/websocket"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "start":
		runStart(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fluxd <start|validate|list> [-config path]")
}

func configPath(args []string) string {
	path := "config.json"
	for i, a := range args {
		if a == "-config" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	return path
}

// loadEnvFile is the "environment-variable loading from files"
// collaborator named out-of-scope for the core in §1: it lives here,
// strictly outside internal/config, which never reads .env itself.
func loadEnvFile() {
	_ = godotenv.Load()
}

func registerPlugins(reg *plugin.Registry) {
	reg.Register("cache", "redis", redis.New)
	reg.Register("store", "sqlite", sqlite.New)
	reg.Register("broadcast", "websocket", websocket.New)
	reg.Register("auth", "jwt", jwtauth.New)
}

func runStart(args []string) {
	loadEnvFile()
	cfg, err := config.Load(configPath(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxd: config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	registry := plugin.NewRegistry()
	registerPlugins(registry)

	entries := make([]plugin.Entry, 0, len(cfg.Plugins))
	for logicalKey, entry := range cfg.Plugins {
		entries = append(entries, plugin.Entry{
			LogicalKey: logicalKey,
			Type:       entry.Type,
			Config:     entry.Options,
		})
	}
	if err := registry.Configure(context.Background(), entries); err != nil {
		log.Fatalw("fluxd: plugin setup failed", "error", err)
	}
	defer func() {
		for _, err := range registry.TeardownAll(context.Background()) {
			log.Errorw("fluxd: plugin teardown error", "error", err)
		}
	}()

	l := loader.New(cfg.Paths.Actions, cfg.Paths.Flux, log)
	if err := l.Reload(); err != nil {
		log.Fatalw("fluxd: initial load failed", "error", err)
	}
	for _, fe := range l.GetFluxErrors() {
		log.Warnw("fluxd: flux file failed validation", "file", fe.File, "errors", fe.Errors)
	}

	if cfg.Loader.ReloadCron != "" {
		if err := l.StartCronReload(cfg.Loader.ReloadCron); err != nil {
			log.Fatalw("fluxd: failed to start scheduled reload", "error", err)
		}
		defer l.StopCronReload()
	}

	ex := executor.New(l, log, registry)
	engine := router.New(cfg, l, ex, registry, log)

	httpServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        engine,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("fluxd: server failed", "error", err)
		}
	}()
	log.Infow("fluxd: server started", "addr", httpServer.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("fluxd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorw("fluxd: forced shutdown", "error", err)
	}
	log.Info("fluxd: exited")
}

func runValidate(args []string) {
	loadEnvFile()
	cfg, err := config.Load(configPath(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxd: config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	l := loader.New(cfg.Paths.Actions, cfg.Paths.Flux, log)
	if err := l.Reload(); err != nil {
		fmt.Fprintln(os.Stderr, "fluxd: load:", err)
		os.Exit(1)
	}

	fluxErrors := l.GetFluxErrors()
	if len(fluxErrors) == 0 {
		fmt.Println("fluxd: all flux files valid")
		os.Exit(0)
	}

	for _, fe := range fluxErrors {
		fmt.Printf("%s:\n", fe.File)
		for _, e := range fe.Errors {
			fmt.Printf("  %s: %s\n", e.Path, e.Message)
		}
	}
	os.Exit(1)
}

func runList(args []string) {
	loadEnvFile()
	cfg, err := config.Load(configPath(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxd: config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	l := loader.New(cfg.Paths.Actions, cfg.Paths.Flux, log)
	if err := l.Reload(); err != nil {
		fmt.Fprintln(os.Stderr, "fluxd: load:", err)
		os.Exit(1)
	}

	for _, def := range l.LoadFluxDefinitions() {
		fmt.Printf("%-7s %s\n", def.Method, def.Endpoint)
	}
}
