// Server runs the CHANCAFE Q REST API and, when GRPC_ADDR is set, the gRPC health service.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chancafe-q/backend/internal/audit"
	"chancafe-q/backend/internal/config"
	"chancafe-q/backend/internal/db"
	"chancafe-q/backend/internal/health"
	healthhandler "chancafe-q/backend/internal/health/handler"
	identityhandler "chancafe-q/backend/internal/identity/handler"
	identityservice "chancafe-q/backend/internal/identity/service"
	"chancafe-q/backend/internal/logger"
	"chancafe-q/backend/internal/metrics"
	"chancafe-q/backend/internal/platform/rbac"
	"chancafe-q/backend/internal/policy/engine"
	"chancafe-q/backend/internal/ratelimit"
	"chancafe-q/backend/internal/security"
	"chancafe-q/backend/internal/server"
	"chancafe-q/backend/internal/server/middleware"
	"chancafe-q/backend/internal/server/response"
	sessionservice "chancafe-q/backend/internal/session/service"
	telemetryotel "chancafe-q/backend/internal/telemetry/otel"
	"chancafe-q/backend/internal/telemetry/producer"
	userhandler "chancafe-q/backend/internal/user/handler"
	userservice "chancafe-q/backend/internal/user/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Env, cfg.LogLevel, cfg.OTelServiceName)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()

	stores, err := db.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.JWTPrivateKey, cfg.JWTPublicKey, security.IssuerOptions{
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
	if err != nil {
		return err
	}
	log.Info("token issuer ready", zap.String("alg", tokens.Alg()))

	publishers := []audit.Publisher{telemetryotel.NewActivityPublisher(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.ActivityKafkaBrokersList(), cfg.ActivityKafkaTopic, log)
	if kafkaProducer != nil {
		publishers = append(publishers, kafkaProducer)
		log.Info("streaming activity to kafka", zap.String("topic", cfg.ActivityKafkaTopic))
	}
	recorder := audit.NewRecorder(stores.Activity, log, middleware.ClientInfoFromContext, nil, publishers...)

	hasher := security.NewHasher(cfg.BcryptCost)
	policy := security.DefaultPasswordPolicy()
	policy.MinLength = cfg.PasswordMinLength
	sessions := sessionservice.NewStore(stores.Sessions, stores.Users, cfg.SessionTTL(), nil)
	authSvc := identityservice.NewAuthService(stores.Users, sessions, tokens, hasher, policy, recorder, log)
	userSvc := userservice.NewService(stores.Users, hasher, policy, sessions, recorder, nil)

	authz, err := engine.NewOPAAuthorizer(ctx, engine.DefaultPolicy)
	if err != nil {
		return err
	}

	checker := health.NewChecker(2 * time.Second)
	if stores.DB != nil {
		checker.AddPinger("database", stores.DB)
	}
	checker.AddPolicy("policy", authz)

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(nil)
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client)
		checker.Add("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
		log.Info("rate limiting through redis")
	}

	m := metrics.New()
	resp := response.NewWriter(cfg.IsDevelopment(), log)
	router := server.NewRouter(server.Deps{
		BasePath:      cfg.APIBasePath,
		Log:           log,
		Resp:          resp,
		Metrics:       m,
		Authenticator: middleware.NewAuthenticator(tokens, stores.Users, sessions, resp),
		Gate:          rbac.NewGate(authz, resp),
		Limiter:       middleware.NewRateLimiter(limiter, resp, log, m),
		LoginLimit:    middleware.RateLimitRule{Limit: cfg.LoginRateLimitMax, Window: cfg.LoginRateLimitWindowDuration()},
		APILimit:      middleware.RateLimitRule{Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow()},
		Auth:          identityhandler.New(authSvc, resp, m),
		Users:         userhandler.New(userSvc, stores.Activity, resp),
		Health:        healthhandler.NewHTTPHandler(checker, resp, cfg.Env),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("base_path", cfg.APIBasePath))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.GRPCAddr != "" {
		healthSrv := healthhandler.NewServer(checker, log)
		grpcSrv := server.NewGRPCServer(healthSrv, log)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go healthSrv.Run(ctx, 15*time.Second)
		go func() {
			log.Info("grpc health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		defer grpcSrv.GracefulStop()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := recorder.Wait(shutdownCtx); err != nil {
		log.Warn("activity writes still pending at shutdown", zap.Error(err))
	}
	if err := kafkaProducer.Close(); err != nil {
		log.Warn("kafka producer close", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
	return serveErr
}
