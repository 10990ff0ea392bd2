// Command workflowd runs the workflow execution engine as an HTTP service:
// it loads config, wires the registry/interpreter/store, and serves the
// trigger/cancel/resume/stream surface until told to shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/adapter"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/handlers"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/service"
	"github.com/moizaamir12/vsync-workflow-sub000/engine/store"
	"github.com/moizaamir12/vsync-workflow-sub000/internal/config"
	"github.com/moizaamir12/vsync-workflow-sub000/internal/logging"
	"github.com/moizaamir12/vsync-workflow-sub000/internal/resolver"
	transporthttp "github.com/moizaamir12/vsync-workflow-sub000/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to workflowd.toml")
	workflowsDir := flag.String("workflows", "./workflows", "directory of workflow version YAML files + manifest.toml")
	flag.Parse()

	cfg := config.Load(*configPath)

	log := logging.Must(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	defer log.Sync()

	if err := run(cfg, *workflowsDir, log); err != nil {
		log.Fatal("workflowd exited with error", zap.Error(err))
	}
}

func run(cfg config.Config, workflowsDir string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	registry := engine.NewRegistry()
	breakers := handlers.NewFetchBreakers()
	models := handlers.NewAgentModels(handlers.AgentCredentials{
		AnthropicKey: cfg.Agents.AnthropicAPIKey,
		OpenAIKey:    cfg.Agents.OpenAIAPIKey,
		GoogleKey:    cfg.Agents.GoogleAPIKey,
	})

	sandbox := handlers.CodeSandbox{
		Image:             cfg.Sandbox.Image,
		DefaultMemMB:      cfg.Sandbox.DefaultMemMB,
		DefaultTimeoutSec: cfg.Sandbox.DefaultTimeoutSeconds,
	}

	var platform adapter.Adapter
	switch cfg.Server.Platform {
	case "mobile":
		return fmt.Errorf("platform %q requires a native DeviceBridge; workflowd only serves the server/cloud_worker adapters", cfg.Server.Platform)
	case "cloud_worker":
		platform = adapter.NewCloudWorker(breakers, models, sandbox)
	default:
		platform = adapter.NewServer(breakers, models, nil, sandbox)
	}
	platform.RegisterBlocks(registry)
	log.Info("platform adapter registered", zap.String("platform", platform.Platform()))

	metrics := engine.NewMetrics(prometheus.DefaultRegisterer)

	broadcaster := service.NewBroadcaster()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		broadcaster = broadcaster.WithRedis(rdb, cfg.Redis.Channel)
	}
	if cfg.Slack.Enabled {
		broadcaster = broadcaster.WithSlack(slack.New(cfg.Slack.Token), cfg.Slack.Channel)
	}

	emitter := emit.NewMultiEmitter(
		emit.NewLogEmitter(log),
		engine.NewMetricsEmitter(metrics, emit.NewNullEmitter()),
		broadcaster,
	)

	executor := engine.NewExecutor(registry, emitter, rand.New(rand.NewSource(time.Now().UnixNano())))

	rateLimiter := service.NewRateLimiter(st, cfg.RateLimit.PublicRunsPerMinute)

	svc := service.New(nil, st, broadcaster, rateLimiter).WithMetrics(metrics)
	interp := engine.NewInterpreter(executor, svc.IsCancelled,
		engine.WithRunTimeout(5*time.Minute),
		engine.WithBlockTimeout(engine.DefaultServerBlockTimeout),
	)
	svc.SetInterpreter(interp)

	res := resolver.NewDir(workflowsDir)

	mux := http.NewServeMux()
	mux.Handle("/", transporthttp.NewRouter(svc, res, st, log))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("workflowd listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		sl, err := store.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sl, func() { _ = sl.Close() }, nil
	}
}
