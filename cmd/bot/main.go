package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/davidZal1992/soccer-automation-registry-ai/internal/adapters/classifier"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/adapters/gateway"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/adapters/repo"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/adapters/whatsapp"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/domain"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/cache"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/config"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/db"
	httpinfra "github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/http"
	loginfra "github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/log"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/metrics"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/openai"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/infra/queue"
	adminusecase "github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/admin"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/registration"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/schedule"
	"github.com/davidZal1992/soccer-automation-registry-ai/internal/usecase/state"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("bot: bad timezone")
	}

	var store domain.DocumentStore
	switch cfg.Storage.Backend {
	case "sqlite":
		sq, err := repo.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot: sqlite open failed")
		}
		defer sq.Close()
		store = sq
	default:
		pool, err := db.Connect(cfg.Storage.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot: no database connection")
		}
		defer pool.Close()
		pg := repo.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("bot: migration failed")
		}
		store = pg
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	appCache := cache.NewRedis(redisClient)

	var flushQueue domain.FlushQueue
	switch cfg.Queue.Backend {
	case "rabbitmq":
		rq, err := queue.NewRabbitFlushQueue(cfg.Queue.AMQPURL, cfg.Queue.Key)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot: rabbitmq connect failed")
		}
		defer rq.Close()
		flushQueue = rq
	default:
		flushQueue = queue.NewRedisFlushQueue(redisClient, cfg.Queue.Key)
	}

	messenger := whatsapp.NewClient(cfg.Bridge.BaseURL, cfg.Bridge.Token)

	var oracle domain.Classifier
	if cfg.LLM.APIKey != "" {
		llm := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, time.Duration(cfg.LLM.TimeoutSec)*time.Second)
		oracle = classifier.NewOpenAIClassifier(llm, cfg.LLM.Model, logger.With().Str("component", "classifier").Logger())
	} else {
		logger.Warn().Msg("bot: no LLM key, using keyword classifier")
		oracle = classifier.NewSimpleClassifier()
	}

	stateService := state.NewService(store, loc, domain.AdminEntry{
		UserID: domain.NormalizeJID(cfg.Admin.SeedJID),
		Name:   cfg.Admin.SeedName,
	})

	regService := registration.NewService(
		stateService, oracle, messenger, flushQueue, appCache,
		logger.With().Str("component", "registration").Logger(),
		cfg.Channels.Players,
		time.Duration(cfg.Schedule.DebounceSec)*time.Second,
	)

	adminService := adminusecase.NewService(stateService, messenger, logger.With().Str("component", "admin").Logger())

	schedCfg := schedule.DefaultConfig(loc)
	schedCfg.BurstDelay = time.Duration(cfg.Schedule.BurstDelayMin) * time.Minute
	schedCfg.Cadence = time.Duration(cfg.Schedule.CadenceMin) * time.Minute
	schedCfg.WarnBefore = time.Duration(cfg.Schedule.WarnBeforeWarmupMin) * time.Minute
	schedCfg.CloseBefore = time.Duration(cfg.Schedule.CloseBeforeWarmupMin) * time.Minute
	scheduler := schedule.NewService(
		schedCfg, stateService, regService, messenger, appCache,
		logger.With().Str("component", "scheduler").Logger(),
		cfg.Channels.Admins, cfg.Channels.Players,
	)

	// A warmup-time change moves the warning and close moments with it.
	adminService.SetTimesChangedHook(func(ctx context.Context) {
		if err := scheduler.ArmEventTimers(ctx); err != nil {
			logger.Error().Err(err).Msg("bot: rearm after time change failed")
		}
	})

	handler := gateway.NewHandler(
		regService, adminService, stateService, scheduler, oracle,
		logger.With().Str("component", "gateway").Logger(),
		cfg.Bridge.BotJID, cfg.Channels.Admins, cfg.Channels.Players,
	)

	server := httpinfra.NewServer(logger)
	server.Router.Mount("/", handler.Router())

	go runFlushWorker(ctx, flushQueue, regService, logger)
	go scheduler.Run(ctx)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("bot: http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("bot: shutting down")

	regService.StopDebounce()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("bot: http shutdown failed")
	}
}

// runFlushWorker is the single consumer of the flush queue. Every roster
// mutation goes through here, one job at a time.
func runFlushWorker(ctx context.Context, q domain.FlushQueue, reg *registration.Service, logger zerolog.Logger) {
	for {
		job, err := q.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("bot: flush pop failed")
			time.Sleep(time.Second)
			continue
		}
		if err := reg.ProcessFlush(ctx, job); err != nil {
			logger.Error().Err(err).Str("reason", job.Reason).Msg("bot: flush failed")
			continue
		}
		if job.Reason == domain.FlushReasonClose {
			if err := reg.CloseRegistration(ctx); err != nil {
				logger.Error().Err(err).Msg("bot: close registration failed")
			}
		}
	}
}
