package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/seating/internal/auth"
	"github.com/MarcoPoloResearchLab/seating/internal/config"
	"github.com/MarcoPoloResearchLab/seating/internal/database"
	"github.com/MarcoPoloResearchLab/seating/internal/events"
	"github.com/MarcoPoloResearchLab/seating/internal/logging"
	"github.com/MarcoPoloResearchLab/seating/internal/ratelimit"
	"github.com/MarcoPoloResearchLab/seating/internal/seating"
	"github.com/MarcoPoloResearchLab/seating/internal/server"
	"github.com/MarcoPoloResearchLab/seating/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// appRuntime bundles what every command needs after configuration is loaded.
type appRuntime struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	close  func()
}

func openRuntime() (*appRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &appRuntime{
		config: appConfig,
		logger: logger,
		db:     db,
		close: func() {
			_ = sqlDB.Close()
			_ = logger.Sync()
		},
	}, nil
}

func (r *appRuntime) seatingService(notifiers ...seating.ChangeNotifier) (*seating.Service, error) {
	return seating.NewService(seating.ServiceConfig{
		Repository: seating.NewGormRepository(r.db),
		Clock:      time.Now,
		IDProvider: seating.NewUUIDProvider(),
		Logger:     r.logger,
		Policy:     seating.AssignmentPolicy{UniqueGuestNames: r.config.UniqueGuestNames},
		Notifiers:  notifiers,
	})
}

func (r *appRuntime) roleService() (*users.Service, error) {
	return users.NewService(users.ServiceConfig{
		Database: r.db,
		Clock:    time.Now,
		Logger:   r.logger,
	})
}

func runServer(ctx context.Context) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()
	appConfig := rt.config
	logger := rt.logger
	logger.Info("database ready",
		zap.String("driver", appConfig.DatabaseDriver),
		zap.String("target", appConfig.DatabaseTarget()))

	realtime := server.NewRealtimeDispatcher()
	notifiers := []seating.ChangeNotifier{realtime}
	if appConfig.AMQPURL != "" {
		publisher, err := events.Dial(appConfig.AMQPURL, events.PublisherConfig{
			Queue:  appConfig.AMQPQueue,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer publisher.Close() //nolint:errcheck
		notifiers = append(notifiers, publisher)
		logger.Info("change events enabled", zap.String("queue", appConfig.AMQPQueue))
	}

	seatingService, err := rt.seatingService(notifiers...)
	if err != nil {
		return err
	}
	roleService, err := rt.roleService()
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newRSVPLimiter(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessionValidator,
		Roles:          roleService,
		Seating:        seatingService,
		RSVPLimiter:    limiter,
		Realtime:       realtime,
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newRSVPLimiter prefers Redis so that several API replicas share one budget per client.
func newRSVPLimiter(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (ratelimit.Limiter, func(), error) {
	settings := ratelimit.Settings{
		RequestsPerMinute: appConfig.RSVPRequestsPerMinute,
		Burst:             appConfig.RSVPBurst,
	}
	if appConfig.RedisAddress == "" {
		logger.Info("rsvp rate limiting in memory", zap.Int("requests_per_minute", settings.RequestsPerMinute))
		return ratelimit.NewMemoryLimiter(settings), func() {}, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisOptions{
		Address:  appConfig.RedisAddress,
		Password: appConfig.RedisPassword,
		DB:       appConfig.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("rsvp rate limiting in redis", zap.String("address", appConfig.RedisAddress))
	return ratelimit.NewRedisLimiter(client, settings), func() { _ = client.Close() }, nil
}
