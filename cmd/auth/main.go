package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	myPostgresRepo "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/db/postgres"
	myRedisRepo "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/mail"
	myGrpc "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/grpc"
	myHttp "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http"
	httpmw "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/federated"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/password"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/reset"
	appsvc "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/app/auth/totp"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/migrate"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/server"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		lg.Must("info", "console").Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel, cfg.LogFormat)
	defer zapLog.Sync()

	if err := run(cfg, zapLog); err != nil {
		zapLog.Fatal("server terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLog *zap.Logger) error {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "db handle")
	}
	defer sqlDB.Close()
	if err := migrate.Up(sqlDB); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisCli.Close()

	userRepo := myPostgresRepo.NewPostgresUserRepo(db)
	ledger := myPostgresRepo.NewPostgresRefreshTokenRepo(db)
	resetRepo := myPostgresRepo.NewPostgresResetRepo(db)
	enrollmentRepo := myRedisRepo.NewRedisEnrollmentRepo(redisCli)

	hasher, err := password.New(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "password hasher")
	}
	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		return errors.Wrap(err, "init JWT util")
	}
	validate := validator.New()

	linker := federated.NewLinker(userRepo, hasher,
		federated.NewGoogleProvider(cfg.GoogleClientID),
		federated.NewTelegramProvider(cfg.TelegramBotToken, cfg.TelegramInitDataTTL),
		federated.NewTelegramWidgetProvider(cfg.TelegramBotToken, cfg.TelegramInitDataTTL),
	)

	svc, err := appsvc.New(
		userRepo, ledger, enrollmentRepo, jwtUtil, hasher,
		totp.New(cfg.TOTPIssuer, cfg.TOTPSkew),
		linker, cfg, validate, zapLog,
	)
	if err != nil {
		return err
	}

	mailer := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	resetFlow := reset.New(userRepo, resetRepo, ledger, hasher, mailer, validate, zapLog,
		cfg.ResetURLBase, cfg.ResetTokenTTL)

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, ratelimit.DefaultCacheSize, ratelimit.DefaultIdleTTL)
	metrics, err := httpmw.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return errors.Wrap(err, "register metrics")
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := myHttp.NewHandler(svc, resetFlow, myHttp.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	}, zapLog)
	router := myHttp.NewRouter(handler, myHttp.RouterConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: cfg.AllowCredentials,
		Limiter:          limiter,
		Metrics:          metrics,
		Gatherer:         prometheus.DefaultGatherer,
	}, zapLog)

	health := myGrpc.NewHealthHandler(map[string]myGrpc.Checker{
		"postgres": sqlDB.PingContext,
		"redis":    enrollmentRepo.Ping,
	}, zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.StartGRPCServer(ctx, cfg, health, limiter, zapLog)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddress))
		var err error
		if cfg.HTTPSCertFile != "" && cfg.HTTPSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve HTTP")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zapLog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// письма сброса, уже принятые в работу, дописываем до выхода
		resetFlow.Wait()
		return err
	})

	return g.Wait()
}
