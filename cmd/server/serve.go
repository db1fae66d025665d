package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"mintgate/internal/allowlist"
	"mintgate/internal/platform/config"
	"mintgate/internal/platform/httpserver"
	"mintgate/internal/platform/logger"
	"mintgate/internal/platform/metrics"
	"mintgate/internal/platform/postgres"
	redisclient "mintgate/internal/platform/redis"
	salehandler "mintgate/internal/sale/handler"
	salemetrics "mintgate/internal/sale/metrics"
	"mintgate/internal/sale/service"
	"mintgate/internal/sale/store/state"
	httptransport "mintgate/internal/transport/http"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the public sale API and the admin listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// storeHandle bundles the selected backend with its health check and cleanup.
type storeHandle struct {
	store  service.Store
	health httptransport.HealthCheck
	close  func() error
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log, err := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	var tree *allowlist.Tree
	root := common.Hash{}
	if cfg.Sale.AllowlistFile != "" {
		if tree, err = a.loadTree(); err != nil {
			return err
		}
		root = tree.Root()
		if cfg.Sale.AllowlistRoot != "" && !sameRoot(cfg.Sale.AllowlistRoot, root) {
			return fmt.Errorf("allowlist file root %s does not match sale.allowlist_root %s", root.Hex(), cfg.Sale.AllowlistRoot)
		}
	}
	saleCfg, err := cfg.Sale.SaleConfig(root)
	if err != nil {
		return err
	}

	sh, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sh.close(); err != nil {
			log.Warn("closing state store failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := service.New(ctx, saleCfg, sh.store,
		service.WithLogger(log),
		service.WithMetrics(salemetrics.New(reg)),
		service.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("start sale service: %w", err)
	}

	var proofs salehandler.ProofSource
	if tree != nil {
		proofs = tree
	}
	deps := httptransport.Deps{
		Sale:       salehandler.New(svc, proofs, log),
		Logger:     log,
		Metrics:    metrics.New(reg),
		Gatherer:   reg,
		AdminToken: cfg.Admin.Token,
		Health:     sh.health,
	}

	public := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(deps))
	admin := httpserver.New(cfg.Server.AdminAddr, httptransport.NewAdminRouter(deps))

	log.Info("starting mintgate",
		"addr", cfg.Server.Addr,
		"admin_addr", cfg.Server.AdminAddr,
		"store", cfg.Store.Backend,
		"sale_id", cfg.Store.SaleID,
		"phase", svc.Phase().String(),
		"allowlist_root", saleCfg.AllowlistRoot.Hex(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, public, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return httpserver.Run(gctx, admin, cfg.Server.ShutdownTimeout)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("mintgate stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (*storeHandle, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store := state.NewPostgres(db, cfg.Store.SaleID)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &storeHandle{store: store, health: pingDB(db), close: db.Close}, nil
	case config.StoreRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &storeHandle{
			store:  state.NewRedis(client.Client, cfg.Store.SaleID),
			health: client.Health,
			close:  client.Close,
		}, nil
	default:
		return &storeHandle{store: state.NewInMemory(), close: func() error { return nil }}, nil
	}
}

func pingDB(db *sql.DB) httptransport.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func sameRoot(configured string, root common.Hash) bool {
	return common.HexToHash(configured) == root
}
