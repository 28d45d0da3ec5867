package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/merryquiz/internal/api"
	"github.com/victornm/merryquiz/internal/auth"
	"github.com/victornm/merryquiz/internal/event"
	"github.com/victornm/merryquiz/internal/home"
	"github.com/victornm/merryquiz/internal/leaderboard"
	"github.com/victornm/merryquiz/internal/quiz"
	"github.com/victornm/merryquiz/internal/score"
	"github.com/victornm/merryquiz/internal/seed"
	"github.com/victornm/merryquiz/internal/store/cache"
	"github.com/victornm/merryquiz/internal/store/memory"
	"github.com/victornm/merryquiz/internal/store/postgres"
	"github.com/victornm/merryquiz/internal/telemetry"
)

// Store is everything the services need from the backend.
type Store interface {
	quiz.QuestionSource
	score.Store
	home.Store
	leaderboard.Store
	auth.Store
	seed.QuestionWriter
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			embedded *miniredis.Miniredis
			cache    redis.UniversalClient
			pubsub   redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    Store
	}

	service struct {
		questions   *cache.Questions
		score       *score.Service
		quiz        *quiz.Service
		home        *home.Service
		auth        *auth.Service
		leaderboard *leaderboard.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	// ctx is cancelled on shutdown to stop background loops.
	ctx  context.Context
	stop context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.stop = context.WithCancel(context.Background())

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	cacheConf, pubsubConf := s.c.Redis.Cache, s.c.Redis.Pubsub
	if s.c.Redis.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("embedded: %w", err)
		}
		s.infra.redis.embedded = mr
		slog.Warn("server: using embedded redis, data is lost on exit", "addr", mr.Addr())

		cacheConf.Addrs, cacheConf.Pass = []string{mr.Addr()}, ""
		pubsubConf.Addrs, pubsubConf.Pass = []string{mr.Addr()}, ""
	}

	var err error
	s.infra.redis.cache, err = ConnectRedis(cacheConf)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.pubsub, err = ConnectRedis(pubsubConf)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

// ConnectRedis opens an instrumented client and verifies it with a ping.
func ConnectRedis(c RedisConfig) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Server) initStore() error {
	switch s.c.Backend.Driver {
	case DriverMemory:
		ms := memory.NewStore()
		if s.c.Backend.SeedFile != "" {
			n, err := seed.Apply(context.Background(), ms, s.c.Backend.SeedFile)
			if err != nil {
				return fmt.Errorf("memory: %w", err)
			}
			slog.Info("server: memory backend seeded", "questions", n)
		}
		s.infra.store = ms

	case DriverPostgres, "":
		db, err := postgres.Connect(context.Background(), s.c.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		s.infra.postgres = db
		s.infra.store = postgres.New(db)

	default:
		return fmt.Errorf("unknown backend driver %q", s.c.Backend.Driver)
	}

	return nil
}

func (s *Server) initService() {
	prefix := s.c.Redis.Cache.Prefix

	s.service.questions = cache.NewQuestions(cache.QuestionsConfig{
		Source: s.infra.store,
		Redis:  s.infra.redis.cache,
		Prefix: prefix,
		TTL:    s.c.Quiz.QuestionCacheTTL,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		Store:    s.infra.store,
		Timeout:  s.c.Score.WriteTimeout,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		Questions:  s.service.questions,
		Score:      s.service.score,
		SessionTTL: s.c.Quiz.SessionTTL,
	})

	s.service.home = home.NewService(home.Config{
		EventBus: s.eb,
		Store:    s.infra.store,
		Redis:    s.infra.redis.cache,
		Prefix:   prefix,
		CacheTTL: s.c.Home.CacheTTL,
	})

	s.service.auth = auth.NewService(auth.Config{
		Store:    s.infra.store,
		Redis:    s.infra.redis.cache,
		Prefix:   prefix,
		TokenTTL: s.c.Auth.TokenTTL,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus:        s.eb,
		Store:           s.infra.store,
		Redis:           s.infra.redis.cache,
		Prefix:          prefix,
		CacheTTL:        s.c.Leaderboard.CacheTTL,
		PublishInterval: s.c.Leaderboard.PublishInterval,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", s.healthz)
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor()...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Auth:         s.service.auth,
		Home:         s.service.home,
		Quiz:         s.service.quiz,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"redis": "ok"}
	status := http.StatusOK

	if err := s.infra.redis.cache.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if s.infra.postgres != nil {
		checks["postgres"] = "ok"
		if err := s.infra.postgres.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, checks)
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		return s.service.quiz.Run(ctx)
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}
	s.stop()

	s.service.score.Stop()
	s.eb.Stop()
	// A trailing leaderboard publish lands on the bus once more.
	s.service.leaderboard.Stop()
	s.eb.Stop()

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
	_ = s.infra.redis.cache.Close()
	_ = s.infra.redis.pubsub.Close()
	if s.infra.redis.embedded != nil {
		s.infra.redis.embedded.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
