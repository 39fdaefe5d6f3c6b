package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/api"
	"solana-rent-reclaim/internal/closure"
	"solana-rent-reclaim/internal/config"
	"solana-rent-reclaim/internal/dashboard"
	"solana-rent-reclaim/internal/ledger"
	"solana-rent-reclaim/internal/metadata"
	"solana-rent-reclaim/internal/price"
	"solana-rent-reclaim/internal/solana"
	"solana-rent-reclaim/internal/storage"
	chstore "solana-rent-reclaim/internal/storage/clickhouse"
	"solana-rent-reclaim/internal/storage/memory"
	"solana-rent-reclaim/internal/storage/migrations"
	pgstore "solana-rent-reclaim/internal/storage/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard and closure HTTP API",
	RunE:  runServe,
}

var serveMigrate bool

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default :8080)")
	serveCmd.Flags().String("rpc-url", "", "Solana JSON-RPC endpoint")
	serveCmd.Flags().String("ws-url", "", "Solana WebSocket endpoint; empty confirms by polling")
	serveCmd.Flags().String("fee-collector", "", "service fee recipient")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply schema migrations before serving")

	v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	v.BindPFlag("solana.rpc_url", serveCmd.Flags().Lookup("rpc-url"))
	v.BindPFlag("solana.ws_url", serveCmd.Flags().Lookup("ws-url"))
	v.BindPFlag("fee.collector", serveCmd.Flags().Lookup("fee-collector"))
}

// stores holds the closure persistence backends.
type stores struct {
	receipts storage.ClosureReceiptStore
	events   storage.ReclaimEventStore
	cleanup  func()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, err := openStores(ctx, cfg.Storage, serveMigrate, logger)
	if err != nil {
		return err
	}
	defer st.cleanup()

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Solana.Timeout),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithLogger(logger.Named("rpc")),
	)

	ws := dialWS(ctx, cfg, logger)
	if ws != nil {
		defer ws.Close()
	}
	confirmer := newConfirmer(cfg, rpc, ws, logger)

	resolver, registry, closeCache, err := newMetadataResolver(ctx, cfg, rpc, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	sessions := dashboard.NewManager(ctx, dashboard.Options{
		Ledger: ledger.NewAdapter(ledger.Options{
			RPC:        rpc,
			WS:         wsClient(ws),
			Commitment: cfg.Solana.Commitment,
			Logger:     logger.Named("ledger"),
		}),
		Metadata: resolver,
		Prices: price.NewClient(cfg.Price.BaseURL,
			price.WithHTTPClient(&http.Client{Timeout: cfg.Price.Timeout}),
			price.WithLogger(logger.Named("price")),
		),
		Concurrency: cfg.Dashboard.Concurrency,
		Logger:      logger.Named("dashboard"),
	})

	builder, err := closure.NewBuilder(closure.FeeConfig{
		Collector:          cfg.Fee.Collector,
		LamportsPerAccount: cfg.Fee.LamportsPerAccount,
	})
	if err != nil {
		return err
	}
	closures := closure.NewService(ctx, closure.Options{
		RPC:            rpc,
		Builder:        builder,
		Confirmer:      confirmer,
		Receipts:       st.receipts,
		Events:         st.events,
		ConfirmTimeout: cfg.Closure.ConfirmTimeout,
		SigningTimeout: cfg.Closure.SigningTimeout,
		Logger:         logger.Named("closure"),
	})

	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Sessions: sessions,
		Closures: closures,
		Registry: registry,
		Receipts: st.receipts,
		ViewDefaults: dashboard.ViewOptions{
			SortKey:          dashboard.SortByTotal,
			Order:            dashboard.Descending,
			ZeroValuePolicy:  cfg.ZeroValuePolicy(),
			ExplorerBaseURL:  cfg.Dashboard.ExplorerBaseURL,
			SwapBaseURL:      cfg.Dashboard.SwapBaseURL,
			PlaceholderImage: cfg.Dashboard.PlaceholderImage,
		},
		Logger: logger.Named("api"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Uint64("fee_lamports_per_account", cfg.Fee.LamportsPerAccount),
			zap.String("fee_collector", cfg.Fee.Collector),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// A second signal skips the graceful phase.
	go func() {
		sig := <-sigCh
		logger.Warn("received second signal, forcing exit", zap.Stringer("signal", sig))
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("shutdown complete")
	return nil
}

// openStores connects PostgreSQL and ClickHouse when configured and falls
// back to memory stores otherwise.
func openStores(ctx context.Context, cfg config.StorageConfig, migrate bool, logger *zap.Logger) (*stores, error) {
	st := &stores{
		receipts: memory.NewClosureReceiptStore(),
		events:   memory.NewReclaimEventStore(),
	}
	var closers []func()
	st.cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool, logger.Named("migrate")); err != nil {
				st.cleanup()
				return nil, err
			}
		}
		st.receipts = pgstore.NewClosureReceiptStore(pool)
	} else {
		logger.Warn("storage.postgres_dsn not set, closure receipts kept in memory")
	}

	if cfg.ClickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger.Named("migrate"))
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			st.cleanup()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		st.events = chstore.NewReclaimEventStore(conn)
	} else {
		logger.Warn("storage.clickhouse_dsn not set, reclaim events kept in memory")
	}

	return st, nil
}

// dialWS opens the WebSocket used for confirmations and live balances.
// It returns nil when no endpoint is configured or the dial fails.
func dialWS(ctx context.Context, cfg *config.Config, logger *zap.Logger) *solana.WSClientImpl {
	if cfg.Solana.WSURL == "" {
		return nil
	}
	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = logger.Named("ws")
	ws, err := solana.NewWSClient(ctx, cfg.Solana.WSURL, &wsCfg)
	if err != nil {
		logger.Warn("websocket unavailable, confirming by polling without live balances", zap.Error(err))
		return nil
	}
	return ws
}

// wsClient keeps a nil *WSClientImpl from becoming a non-nil interface.
func wsClient(ws *solana.WSClientImpl) solana.WSClient {
	if ws == nil {
		return nil
	}
	return ws
}

// newConfirmer prefers signature subscriptions and falls back to polling.
func newConfirmer(cfg *config.Config, rpc solana.RPCClient, ws *solana.WSClientImpl, logger *zap.Logger) closure.Confirmer {
	polling := closure.NewPollingConfirmer(rpc, cfg.Solana.Commitment, cfg.Closure.PollInterval, logger.Named("confirm"))
	if ws == nil {
		return polling
	}
	return closure.NewFallbackConfirmer(closure.NewWSConfirmer(ws, cfg.Solana.Commitment), polling)
}

// newMetadataResolver builds the registry-backed resolver, cached in Redis when configured.
func newMetadataResolver(ctx context.Context, cfg *config.Config, rpc solana.RPCClient, logger *zap.Logger) (metadata.Resolver, *metadata.Registry, func(), error) {
	var registry *metadata.Registry
	if path := cfg.Metadata.RegistryPath; path != "" {
		r, err := metadata.LoadRegistry(path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load token registry: %w", err)
		}
		registry = r
		logger.Info("token registry loaded", zap.String("path", path), zap.Int("tokens", r.Len()))
	}

	svc := metadata.NewService(metadata.Options{
		RPC:        rpc,
		HTTPClient: &http.Client{Timeout: cfg.Metadata.HTTPTimeout},
		Registry:   registry,
		Logger:     logger.Named("metadata"),
	})
	if cfg.Redis.Addr == "" {
		return svc, registry, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, metadata cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		rdb.Close()
		return svc, registry, func() {}, nil
	}

	cached := metadata.NewCachedResolver(svc, rdb, cfg.Metadata.CacheTTL, logger.Named("metadata_cache"))
	return cached, registry, func() { rdb.Close() }, nil
}
