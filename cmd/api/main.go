package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "cartflow/docs"
	"cartflow/pkg/api"
	"cartflow/pkg/cart"
	cartfile "cartflow/pkg/cart/file"
	cartmem "cartflow/pkg/cart/memory"
	cartpg "cartflow/pkg/cart/postgres"
	cartredis "cartflow/pkg/cart/redis"
	"cartflow/pkg/config"
	"cartflow/pkg/logger"
	"cartflow/pkg/notify"
	"cartflow/pkg/otel"
	"cartflow/pkg/session"
	sessmem "cartflow/pkg/session/memory"
	sessredis "cartflow/pkg/session/redis"
	"cartflow/pkg/shutdown"
	stockhttp "cartflow/pkg/stock/httpapi"
	stockmem "cartflow/pkg/stock/memory"
	stockpg "cartflow/pkg/stock/postgres"
)

// @title cartflow API
// @version 1.0
// @description Per-session shopping carts validated against product stock
// @host localhost:8443
// @BasePath /
func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "cartflow", otel.GetTraceID)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "cartflow stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, shutdownTracing, err := otel.InitTracing(log, otel.Config{
		ServiceName: "cartflow",
		Host:        cfg.OTELHost,
		Probability: cfg.OTELProbability,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	slot, err := openSlot(ctx, cfg, db, rdb)
	if err != nil {
		return err
	}
	catalog, err := openCatalog(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	var sessions session.Store
	if rdb != nil {
		sessions = sessredis.New(rdb, cfg.SessionTTL)
	} else {
		log.Warn(ctx, "REDIS_ADDR not set, keeping sessions in memory")
		sessions = sessmem.New(cfg.SessionTTL)
	}

	carts := cart.NewRegistry(slot, catalog, cfg.CartIdleTTL,
		cart.WithLogger(log),
		cart.WithNotifier(notify.Multi(notify.Log(log), notify.Context())),
	)

	srv := api.New(api.Deps{
		Carts:      carts,
		Sessions:   sessions,
		Catalog:    catalog,
		Log:        log,
		Tracer:     tp.Tracer("cartflow"),
		SessionTTL: cfg.SessionTTL,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr, "tls", cfg.TLSCert != "",
			"slot", cfg.SlotBackend, "stock", cfg.StockBackend)
		var err error
		if cfg.TLSCert != "" {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shCtx)
	})

	return g.Wait()
}

func openSlot(ctx context.Context, cfg config.Config, db *sql.DB, rdb *redis.Client) (cart.Slot, error) {
	switch cfg.SlotBackend {
	case config.SlotFile:
		return cartfile.New(cfg.SlotDir)
	case config.SlotRedis:
		return cartredis.New(rdb, cfg.SlotTTL), nil
	case config.SlotPostgres:
		s := cartpg.New(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("create cart_slots table: %w", err)
		}
		return s, nil
	default:
		return cartmem.New(), nil
	}
}

func openCatalog(ctx context.Context, cfg config.Config, db *sql.DB, log *logger.Logger) (cart.StockGateway, error) {
	switch cfg.StockBackend {
	case config.StockPostgres:
		c := stockpg.New(db)
		if err := c.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("create products table: %w", err)
		}
		return c, nil
	case config.StockMemory:
		if cfg.StockSeed == "" {
			log.Warn(ctx, "STOCK_SEED not set, catalog is empty")
			return stockmem.New(), nil
		}
		f, err := os.Open(cfg.StockSeed)
		if err != nil {
			return nil, fmt.Errorf("open stock seed: %w", err)
		}
		defer f.Close()
		return stockmem.Load(f)
	default:
		return stockhttp.New(stockhttp.Config{BaseURL: cfg.StockAPIURL, Timeout: cfg.StockTimeout}, log), nil
	}
}
