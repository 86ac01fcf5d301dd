package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrichain/ledgercore/pkg/chain"
	"github.com/agrichain/ledgercore/pkg/config"
	"github.com/agrichain/ledgercore/pkg/database"
	"github.com/agrichain/ledgercore/pkg/health"
	"github.com/agrichain/ledgercore/pkg/keystore"
	"github.com/agrichain/ledgercore/pkg/metrics"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	showHelp := flag.Bool("help", false, "show help message")
	flag.Parse()
	if *showHelp {
		printHelp()
		return
	}

	log.Printf("starting ledger service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	dbLogger := log.New(log.Writer(), "[database] ", log.LstdFlags)
	client, err := database.NewClient(cfg, database.WithLogger(dbLogger))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.MigrateUp(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	repos := database.NewRepositories(client)

	keyLogger := log.New(log.Writer(), "[keystore] ", log.LstdFlags)
	keyManager, err := keystore.NewManager(repos.Keys, cfg.KeySealSecret, keyLogger)
	if err != nil {
		log.Fatalf("init key manager: %v", err)
	}

	chainCfg := chain.Config{
		BlockSize:                cfg.BlockSize,
		InitialDifficulty:        cfg.InitialDifficulty,
		TargetBlockTime:          cfg.TargetBlockTime,
		AdjustEvery:              cfg.AdjustEvery,
		RateWindow:               cfg.RateWindow,
		RateMax:                  cfg.RateMax,
		StrictReloadVerification: cfg.StrictReloadVerification,
	}

	chainLogger := log.New(log.Writer(), "[chain] ", log.LstdFlags)
	engine := chain.NewEngine(chainCfg, keyManager, repos, chainLogger)
	if err := engine.Initialize(ctx); err != nil {
		log.Fatalf("initialize chain: %v", err)
	}

	stats := engine.Stats()
	log.Printf("chain ready: %d block(s), difficulty %d", stats.BlockCount, stats.Difficulty)

	healthLogger := log.New(log.Writer(), "[health] ", log.LstdFlags)
	supervisor, err := health.NewSupervisor(engine, repos, &health.Config{
		Interval: cfg.HealthCheckInterval,
		Logger:   healthLogger,
	})
	if err != nil {
		log.Fatalf("init health supervisor: %v", err)
	}
	if err := supervisor.Start(ctx); err != nil {
		log.Fatalf("start health supervisor: %v", err)
	}

	m, promHandler := metrics.New()
	refreshMetrics(m, engine)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		refreshMetrics(m, engine)
		h := engine.Health()
		dbStatus, dbErr := client.Health(r.Context())

		report := serviceHealth{Chain: h}
		ready := h.Valid
		if dbErr != nil {
			report.Database = &database.HealthStatus{Healthy: false, Error: dbErr.Error(), CheckedAt: time.Now()}
			ready = false
		} else {
			report.Database = dbStatus
			ready = ready && dbStatus.Healthy
		}

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	healthServer := &http.Server{Addr: cfg.HealthAddr, Handler: healthMux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promHandler)
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		log.Printf("health endpoint listening on %s", cfg.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("health server: %v", err)
		}
	}()
	go func() {
		log.Printf("metrics endpoint listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := supervisor.Stop(); err != nil {
		log.Printf("health supervisor stop error: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("health server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	log.Printf("stopped")
}

func refreshMetrics(m *metrics.Metrics, engine *chain.Engine) {
	stats := engine.Stats()
	m.ObserveStats(stats.Difficulty, stats.PendingCount)
}

// serviceHealth is the /health response body: the chain's own
// integrity view plus the durable store's connectivity, so a probe
// can tell "chain looks valid but the database is unreachable" apart
// from "chain is corrupt".
type serviceHealth struct {
	Chain    chain.Health           `json:"chain"`
	Database *database.HealthStatus `json:"database"`
}

func printHelp() {
	log.Printf("ledgerd: single-writer proof-of-work ledger for supply-chain events")
	log.Printf("")
	log.Printf("Environment variables:")
	log.Printf("  KEY_SEAL_SECRET              secret used to derive per-user key-sealing AES keys (required, >=32 chars)")
	log.Printf("  DATABASE_URL                 Postgres connection string (required)")
	log.Printf("  HEALTH_ADDR                  health endpoint bind address (default 0.0.0.0:8081)")
	log.Printf("  METRICS_ADDR                 metrics endpoint bind address (default 0.0.0.0:9090)")
	log.Printf("  BLOCK_SIZE                   transactions per block (default 5000)")
	log.Printf("  INITIAL_DIFFICULTY           starting proof-of-work difficulty (default 2)")
	log.Printf("  HEALTH_CHECK_INTERVAL        integrity-loop cadence (default 5m)")
	log.Printf("  CONFIG_FILE                  optional YAML override file for the above except HEALTH_CHECK_INTERVAL")
}
