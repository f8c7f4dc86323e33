package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/market-trust-core/internal/api"
	"github.com/sheikh-saqib/market-trust-core/internal/config"
	"github.com/sheikh-saqib/market-trust-core/internal/events/kafka"
	"github.com/sheikh-saqib/market-trust-core/internal/exchange"
	interfaces "github.com/sheikh-saqib/market-trust-core/internal/interfaces"
	"github.com/sheikh-saqib/market-trust-core/internal/ledger"
	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/notify"
	"github.com/sheikh-saqib/market-trust-core/internal/reputation"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/memory"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/postgres"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/redis"
	"github.com/sheikh-saqib/market-trust-core/internal/trust"
)

const shutdownTimeout = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("seed", "", "JSON fixture loaded into the in-memory store (ignored with DATABASE_URL)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

// stores groups the store implementations chosen at startup.
type stores struct {
	ledger        interfaces.LedgerStore
	exchange      interfaces.ExchangeStore
	directory     interfaces.Directory
	relationships interfaces.RelationshipStore
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.WithError(err).Warn("close failed")
			}
		}
	}()

	seedPath, _ := cmd.Flags().GetString("seed")
	st, err := openStores(ctx, cfg, seedPath, log, &closers)
	if err != nil {
		return err
	}

	var publisher interfaces.EventPublisher
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp := kafka.NewPublisher(brokers, log)
		closers = append(closers, kp)
		publisher = kp
		log.WithField("brokers", brokers).Info("publishing events to kafka")
	} else {
		publisher = notify.NewLogPublisher(log)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	ledgerSvc := ledger.NewLedger(st.ledger, ledger.Config{
		Location:               loc,
		ListingCreatedDailyCap: cfg.ListingCreatedDailyCap,
		ListingUpdatedDailyCap: cfg.ListingUpdatedDailyCap,
	}, log)
	engine := trust.NewEngine(st.relationships, log)
	aggregator := reputation.NewAggregator(st.exchange, st.directory, log)
	workflow := exchange.NewWorkflow(st.exchange, st.directory, ledgerSvc, aggregator,
		notify.NewPublishingNotifier(publisher), publisher, log)

	server := api.NewServer(api.Services{
		Directory:  st.directory,
		Ledger:     ledgerSvc,
		Trust:      engine,
		Contacts:   trust.NewContactBook(st.relationships, st.directory, engine),
		Workflow:   workflow,
		Reputation: aggregator,
	}, api.Options{
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		ServiceToken:   cfg.ServiceToken,
	}, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStores picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise. REDIS_ADDR moves the contact graph to Redis in either case.
func openStores(ctx context.Context, cfg *config.Config, seedPath string, log logrus.FieldLogger, closers *[]io.Closer) (stores, error) {
	var st stores
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return st, err
		}
		*closers = append(*closers, db)
		pg := postgres.NewStore(db)
		st = stores{ledger: pg, exchange: pg, directory: pg, relationships: pg}
		log.Info("using postgres store")
	} else {
		mem := memory.NewStore()
		if seedPath != "" {
			f, err := os.Open(seedPath)
			if err != nil {
				return st, fmt.Errorf("open seed: %w", err)
			}
			defer f.Close()
			if err := mem.LoadSeed(f); err != nil {
				return st, err
			}
		}
		st = stores{ledger: mem, exchange: mem, directory: mem, relationships: mem}
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	if cfg.RedisAddr != "" {
		rs, err := redis.NewRelationshipStore(ctx, cfg.RedisAddr)
		if err != nil {
			return st, err
		}
		*closers = append(*closers, rs)
		st.relationships = rs
		log.WithField("addr", cfg.RedisAddr).Info("using redis for contacts")
	}
	return st, nil
}
