package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/uhyunpark/stockex/params"
	"github.com/uhyunpark/stockex/pkg/api"
	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/market"
	"github.com/uhyunpark/stockex/pkg/feed"
	"github.com/uhyunpark/stockex/pkg/feed/kafka"
	"github.com/uhyunpark/stockex/pkg/feed/ordergen"
	"github.com/uhyunpark/stockex/pkg/metrics"
	"github.com/uhyunpark/stockex/pkg/storage"
	"github.com/uhyunpark/stockex/pkg/util"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		brokers []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the matching engine with its HTTP, WebSocket and Kafka feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if len(brokers) > 0 {
				cfg.Kafka.Brokers = brokers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides API_ADDR)")
	cmd.Flags().StringSliceVar(&brokers, "kafka-brokers", nil, "kafka brokers (overrides KAFKA_BROKERS)")
	return cmd
}

func serve(ctx context.Context, cfg params.Config) error {
	logger, err := util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	// ---- Symbol registry ----
	registry := market.NewFileRegistry(cfg.Symbols.File, sugar)
	if err := registry.EnsureFile(cfg.Symbols.Defaults); err != nil {
		return err
	}

	genCfg, err := ordergen.ConfigForMode(cfg.OrderGen.Mode)
	if err != nil {
		return err
	}

	// ---- Trade sinks ----
	m := metrics.New()
	sinks := feed.NewMultiSink(sugar, m, feed.NamedSink{Name: "log", Sink: feed.LogSink{Log: sugar}})

	var journal *storage.TradeJournal
	if cfg.Journal.Dir != "" {
		journal, err = storage.NewTradeJournal(cfg.Journal.Dir)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks.Add("journal", journal)
	}

	if cfg.KafkaEnabled() {
		producer, err := kafka.NewTradeProducer(cfg.Kafka.Brokers, cfg.Kafka.TradesTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		sinks.Add("kafka", producer)
	}

	// ---- Engine ----
	eng := engine.New(registry,
		engine.WithSink(sinks),
		engine.WithLogger(sugar),
		engine.WithMetrics(m),
	)

	// A corrupted book cancels everything with ErrBookInconsistent as the cause.
	ctx, fail := context.WithCancelCause(ctx)
	defer fail(nil)

	// ---- API Server ----
	opts := api.Options{
		Exchange:    eng,
		Symbols:     registry,
		Metrics:     m,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Log:         sugar,
		OnFatal:     fail,
	}
	if journal != nil {
		opts.Trades = journal
	}
	apiServer := api.NewServer(opts)
	sinks.Add("ws", apiServer)

	if cfg.Symbols.Watch {
		if err := registry.Watch(ctx, apiServer.BroadcastSymbols); err != nil {
			sugar.Warnw("symbol_registry_watch_disabled", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Start(gctx, cfg.HTTP.Addr)
	})

	// ---- Kafka order feed (optional) ----
	if cfg.KafkaEnabled() {
		consumer := kafka.NewOrderConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID, eng, sugar)
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx)
		})
	} else {
		sugar.Info("kafka_disabled - orders accepted over HTTP only")
	}

	// ---- Order generator (optional) ----
	// Enable with: ENABLE_ORDERGEN=true ORDERGEN_MODE=default|high
	if cfg.OrderGen.Enabled {
		genCfg.Symbols, _ = registry.Symbols()
		g.Go(func() error {
			_, err := ordergen.Run(gctx, eng, genCfg, sugar)
			return err
		})
	}

	sugar.Infow("exchange_started",
		"addr", cfg.HTTP.Addr,
		"symbols_file", registry.Path(),
		"journal", cfg.Journal.Dir,
		"kafka_brokers", cfg.Kafka.Brokers,
		"sinks", sinks.Len())

	err = g.Wait()
	if cause := context.Cause(ctx); errors.Is(cause, engine.ErrBookInconsistent) {
		sugar.Errorw("exchange_failed", "err", cause)
		return cause
	}
	if err != nil {
		sugar.Errorw("exchange_failed", "err", err)
		return err
	}
	sugar.Infow("exchange_stopped", "resting_orders", eng.Resting())
	return nil
}
