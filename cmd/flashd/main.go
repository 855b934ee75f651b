package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"flashreserve/config"
	"flashreserve/core/events"
	"flashreserve/core/genesis"
	"flashreserve/core/state"
	"flashreserve/native/receivers"
	"flashreserve/native/reserve"
	"flashreserve/observability/logging"
	"flashreserve/observability/metrics"
	telemetry "flashreserve/observability/otel"
	"flashreserve/rpc"
	"flashreserve/storage"
	"flashreserve/storage/history"
)

const envPrefix = "FLASH_"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flashd: load config: %v\n", err)
		os.Exit(1)
	}
	env := cfg.Environment
	if v, ok := os.LookupEnv(envPrefix + "ENV"); ok {
		env = v
	}
	logger, closer := logging.Setup(logging.Options{
		Service:    "flashd",
		Env:        env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("flashd stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("flashd stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "flashd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	d, err := boot(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.server.Serve(gctx, cfg.RPCAddress) })
	if cfg.MetricsAddress != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddress, logger) })
	}
	return g.Wait()
}

// daemon holds the long-lived components of a running node.
type daemon struct {
	db        *storage.LevelDB
	engine    *reserve.Engine
	history   *history.Store
	events    *events.Broadcaster
	server    *rpc.Server
	receivers map[string]string
}

func (d *daemon) Close() {
	if d.history != nil {
		_ = d.history.Close()
	}
	d.db.Close()
}

// boot opens the ledger, applies genesis on first start and wires the engine,
// bundled receivers, journal and HTTP server.
func boot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.LevelDBPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	d := &daemon{db: db, events: events.NewBroadcaster(), receivers: map[string]string{}}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	st := state.NewManager(db)
	d.engine = reserve.NewEngine(nil)
	d.engine.SetLogger(logger)
	res, err := genesis.Apply(ctx, st, d.engine, cfg.Genesis, cfg.Reserve)
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	if res.Created {
		logger.Info("reserve initialised",
			"vault", res.Config.VaultAddress().String(),
			"authority", res.Config.AuthorityAddress().String(),
			"claim_token", res.Config.ClaimToken)
	}

	installed, err := receivers.Install(d.engine.Borrowers())
	if err != nil {
		return nil, err
	}
	for name, addr := range installed {
		d.receivers[name] = addr.String()
		logger.Info("receiver registered", "name", name, "address", addr.String())
	}

	emitters := events.Multi{d.events, metrics.Events()}
	if cfg.HistoryDriver != "" {
		d.history, err = history.Open(cfg.HistoryDriver, cfg.HistoryDSN)
		if err != nil {
			return nil, err
		}
		d.history.SetLogger(logger)
		emitters = append(emitters, d.history)
	}
	d.engine.SetEmitter(emitters)
	d.engine.SetMetrics(metrics.Reserve())

	d.server, err = rpc.NewServer(rpcConfig(cfg.RPC), rpc.Deps{
		Engine:  d.engine,
		History: d.history,
		Events:  d.events,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return d, nil
}

func rpcConfig(c config.RPC) rpc.Config {
	return rpc.Config{
		RateLimitPerSecond: c.RateLimitPerSecond,
		RateLimitBurst:     c.RateLimitBurst,
		MaxBodyBytes:       c.MaxBodyBytes,
		MaxSignatureAge:    time.Duration(c.MaxSignatureAge) * time.Second,
		ReadHeaderTimeout:  time.Duration(c.ReadHeaderTimeout) * time.Second,
		WriteTimeout:       time.Duration(c.WriteTimeout) * time.Second,
		Faucet:             c.Faucet,
		FaucetAmount:       c.FaucetAmount,
	}
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("metrics listening", "address", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
