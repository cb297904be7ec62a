// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dominion-workers/internal/common/camunda"
	"dominion-workers/internal/common/config"
	"dominion-workers/internal/common/database"
	apperrors "dominion-workers/internal/common/errors"
	"dominion-workers/internal/common/logger"
	"dominion-workers/internal/common/observability"
	"dominion-workers/internal/dominion/agent"
	"dominion-workers/internal/dominion/alert"
	"dominion-workers/internal/dominion/audit"
	"dominion-workers/internal/dominion/completion"
	"dominion-workers/internal/dominion/prompt"
	"dominion-workers/internal/dominion/ratelimit"
	taskagent "dominion-workers/internal/workers/intelligence/task-agent"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// pinger is a client handle that is opened once and pinged until it answers.
type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// waitFor pings p with backoff and closes it when it never answers.
func waitFor(ctx context.Context, p pinger, attempts int, delay time.Duration, log *zap.Logger, name string) error {
	err := retryWithBackoff(func() error {
		return p.Ping(ctx)
	}, attempts, delay, log, name)
	if err != nil {
		_ = p.Close()
	}
	return err
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load(taskagent.TaskTypes()...)
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(apperrors.NewConfigInvalidError(err)))
	}
	_ = bootLog.Sync()

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)
	if cfg.LLM.APIKey == "" {
		zapLog.Warn("llm.api_key is empty; completion calls will fail with an authentication error")
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []readinessCheck

	// --- Completion client ---
	completer := completion.NewOpenAICompleter(completion.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: config.GetDuration(cfg.LLM.Timeout),
	})
	invoker := completion.NewInvoker(completion.Config{
		Model:         cfg.LLM.Model,
		SystemPersona: cfg.LLM.SystemPersona,
	}, completer, log)
	baseURL := cfg.LLM.BaseURL
	if baseURL == "" {
		baseURL = completion.DefaultBaseURL
	}
	zapLog.Info("Completion client configured",
		zap.String("baseURL", baseURL),
		zap.String("model", invoker.Config().Model),
	)

	opts := []agent.Option{agent.WithRecorder(obs)}

	// --- Audit store ---
	if cfg.Audit.Enabled {
		switch cfg.Audit.Sink {
		case config.AuditSinkElasticsearch:
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
			if err != nil {
				zapLog.Fatal("elasticsearch client setup failed", zap.Error(err))
			}
			err = retryWithBackoff(func() error {
				return es.Ping(ctx)
			}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
			if err != nil {
				zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
			}

			store := audit.NewElasticsearchStore(es.Client, cfg.Database.Elasticsearch.Index)
			if err := store.EnsureIndex(ctx); err != nil {
				zapLog.Fatal("audit index setup failed", zap.Error(err))
			}
			opts = append(opts, agent.WithAuditStore(store))
			checks = append(checks, readinessCheck{name: "elasticsearch", check: es.Ping})
			zapLog.Info("Elasticsearch audit store ready", zap.String("index", cfg.Database.Elasticsearch.Index))

		default:
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				zapLog.Fatal("postgres client setup failed", zap.Error(err))
			}
			if err := waitFor(ctx, pg, 15, 2*time.Second, zapLog, "PostgreSQL connection"); err != nil {
				zapLog.Fatal("postgres failed after retries", zap.Error(err))
			}
			defer pg.Close()

			store := audit.NewPostgresStore(pg)
			if err := store.EnsureSchema(ctx); err != nil {
				zapLog.Fatal("audit schema setup failed", zap.Error(err))
			}
			opts = append(opts, agent.WithAuditStore(store))
			checks = append(checks, readinessCheck{name: "postgres", check: pg.Ping})
			zapLog.Info("PostgreSQL audit store ready", zap.String("table", audit.TableName))
		}
	}

	// --- Operator alerts (SNS / SES) ---
	if cfg.Alerts.Enabled {
		notifier, err := alert.NewFromAWS(ctx, cfg.Alerts.Region, alert.Config{
			Kinds:       cfg.Alerts.Kinds,
			SNSTopicARN: cfg.Alerts.SNSTopicARN,
			EmailFrom:   cfg.Alerts.EmailFrom,
			EmailTo:     cfg.Alerts.EmailTo,
		}, log)
		if err != nil {
			zapLog.Fatal("alert setup failed", zap.Error(err))
		}
		opts = append(opts, agent.WithAlerter(notifier))
		zapLog.Info("Operator alerts enabled",
			zap.String("region", cfg.Alerts.Region),
			zap.Strings("kinds", cfg.Alerts.Kinds),
		)
	}

	// --- Rate limiter (Redis) ---
	if cfg.RateLimit.Limit > 0 {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis client setup failed", zap.Error(err))
		}
		if err := waitFor(ctx, rdb, 10, 2*time.Second, zapLog, "Redis connection"); err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		limiter := ratelimit.New(rdb.Client, cfg.RateLimit.Limit, config.GetDuration(cfg.RateLimit.Window), log)
		opts = append(opts, agent.WithLimiter(limiter))
		checks = append(checks, readinessCheck{name: "redis", check: rdb.Ping})
		zapLog.Info("Redis rate limiter ready", zap.String("policy", limiter.Describe()))
	}

	svc := agent.New(invoker, log, opts...)

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	checks = append(checks, readinessCheck{name: "zeebe", check: zeebe.HealthCheck})
	zapLog.Info("Zeebe client connected successfully", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- Task workers, one per category ---
	pool := camunda.NewPool(zapLog)
	for _, category := range prompt.Categories() {
		if !config.IsWorkerEnabled(cfg, string(category)) {
			zapLog.Info("Worker disabled", zap.String("taskType", string(category)))
			continue
		}
		wcfg := config.GetWorkerConfig(cfg, string(category))
		handler, err := taskagent.NewHandler(category, taskagent.LoadConfig(wcfg), svc, obs, log)
		if err != nil {
			zapLog.Fatal("worker setup failed", zap.String("taskType", string(category)), zap.Error(err))
		}
		pool.Start(zeebe.GetClient(), handler.TaskType(), wcfg, handler.Handle)
	}
	zapLog.Info("Workers registered", zap.Strings("taskTypes", pool.TaskTypes()))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newServerMux(checks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newServerMux(checks []readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failures := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				failures[c.name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "not_ready",
				"failures": failures,
				"time":     time.Now().Format(time.RFC3339),
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
