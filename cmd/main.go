package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"call-analytics-service/internal/broadcast"
	"call-analytics-service/internal/channel"
	"call-analytics-service/internal/config"
	"call-analytics-service/internal/consumer"
	httpapi "call-analytics-service/internal/http"
	"call-analytics-service/internal/observability"
	"call-analytics-service/internal/observability/logging"
	"call-analytics-service/internal/store"
	"call-analytics-service/internal/summarize"
)

const connectionPruneInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Database.URL, cfg.Database.ConnectionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open durable store")
	}
	defer st.Close()

	gateway := channel.NewGateway(channel.GatewayConfig{
		SendBuffer:   cfg.Channel.SendBuffer,
		WriteTimeout: cfg.Channel.WriteTimeout,
		PingInterval: cfg.Channel.PingInterval,
	})
	defer gateway.Close()

	broadcaster := broadcast.New(st, gateway, cfg.Channel.FanOutWorkers)
	cons := consumer.New(st, st, broadcaster)
	gateway.SetEventHandler(cons.HandleChannelEvent)

	model := summarize.NewOpenAI(cfg.Summarizer.APIKey, cfg.Summarizer.BaseURL, cfg.Summarizer.Model)
	trigger := summarize.New(st, broadcaster, model, cfg.Summarizer.Question)

	transcriptReader := consumer.NewReader(consumer.ReaderConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.TopicTranscript,
		GroupID:      cfg.Kafka.GroupID,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchMaxWait: cfg.Kafka.BatchMaxWait,
	}, cons.Consume)

	lifecycleReader := consumer.NewReader(consumer.ReaderConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.TopicLifecycle,
		GroupID:      cfg.Kafka.GroupID,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchMaxWait: cfg.Kafka.BatchMaxWait,
	}, trigger.HandleLifecycle)

	obs := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obs.Start()

	httpServer := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     httpapi.NewRouter(gateway),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("topic", cfg.Kafka.TopicTranscript).Msg("starting transcript consumer")
		return transcriptReader.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("topic", cfg.Kafka.TopicLifecycle).Msg("starting lifecycle consumer")
		return lifecycleReader.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("starting push channel HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(connectionPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := st.PruneExpiredConnections(gctx); err != nil {
					log.Error().Err(err).Msg("connection expiry sweep failed")
				} else if n > 0 {
					log.Info().Int64("pruned", n).Msg("swept expired connections")
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	<-gctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("observability server shutdown failed")
	}

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("service exited with error")
	}
	log.Info().Msg("shutdown complete")
}
