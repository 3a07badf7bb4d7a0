package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/NEARBuilders/crosspost/internal/adapter/nearsocial"
	"github.com/NEARBuilders/crosspost/internal/adapter/twitter"
	"github.com/NEARBuilders/crosspost/internal/config"
	"github.com/NEARBuilders/crosspost/internal/draft"
	httptransport "github.com/NEARBuilders/crosspost/internal/http"
	"github.com/NEARBuilders/crosspost/internal/http/handler"
	apimiddleware "github.com/NEARBuilders/crosspost/internal/middleware"
	"github.com/NEARBuilders/crosspost/internal/oauth"
	"github.com/NEARBuilders/crosspost/internal/publish"
	"github.com/NEARBuilders/crosspost/internal/server"
	"github.com/NEARBuilders/crosspost/internal/session"
	"github.com/NEARBuilders/crosspost/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newDB,
			newDraftStore,
			newAutosaveScheduler,
			newTwitterClient,
			newFlowManager,
			newRefresher,
			newThreadPublisher,
			newProtocolPublisher,
			newCoordinator,
			newRateLimiter,
			newTwitterHandler,
			handler.NewPublishHandler,
			handler.NewDraftHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newDB(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}

func newDraftStore(lc fx.Lifecycle, db *sql.DB, node *snowflake.Node) *draft.Store {
	store := draft.NewStore(db, node)
	lc.Append(fx.Hook{
		OnStart: store.Migrate,
	})
	return store
}

func newAutosaveScheduler(lc fx.Lifecycle, store *draft.Store, cfg config.Config, logger *zap.Logger) *draft.Scheduler {
	scheduler := draft.NewScheduler(store, cfg.AutosaveDebounce, logger)
	lc.Append(fx.Hook{
		// Pending edits survive a restart.
		OnStop: func(context.Context) error {
			scheduler.Flush()
			return nil
		},
	})
	return scheduler
}

func newTwitterClient(cfg config.Config) *twitter.Client {
	return twitter.NewClient(twitter.Credentials{
		ClientID:       cfg.TwitterClientID,
		ClientSecret:   cfg.TwitterClientSecret,
		ConsumerKey:    cfg.TwitterConsumerKey,
		ConsumerSecret: cfg.TwitterConsumerSecret,
		UploadToken:    cfg.TwitterUploadToken,
		UploadSecret:   cfg.TwitterUploadSecret,
	}, nil)
}

func newFlowManager(cfg config.Config, client *twitter.Client, logger *zap.Logger) *oauth.FlowManager {
	return oauth.NewFlowManager(oauth.FlowConfig{
		AuthorizeURL: twitter.AuthorizeURL,
		ClientID:     cfg.TwitterClientID,
		RedirectURI:  cfg.CallbackURL(),
		Scopes:       cfg.TwitterScopes,
	}, client, logger)
}

func newRefresher(flow *oauth.FlowManager) session.TokenRefresher {
	return session.NewRefresher(flow)
}

func newThreadPublisher(client *twitter.Client, logger *zap.Logger) *publish.ThreadPublisher {
	return publish.NewThreadPublisher(client, logger)
}

func newProtocolPublisher(cfg config.Config, logger *zap.Logger) (publish.ProtocolPublisher, error) {
	if !cfg.Destinations.NearSocialEnabled {
		return nil, nil
	}
	sender := nearsocial.NewRelaySender(cfg.NearRelayerURL, nil)
	client, err := nearsocial.New(cfg.NearNetworkID, cfg.NearAccountID, sender, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newCoordinator(cfg config.Config, logger *zap.Logger) *publish.Coordinator {
	return publish.NewCoordinator(cfg.Destinations, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newTwitterHandler(cfg config.Config, flow *oauth.FlowManager, client *twitter.Client, refresher session.TokenRefresher, thread *publish.ThreadPublisher, logger *zap.Logger) *handler.TwitterHandler {
	return handler.NewTwitterHandler(cfg, flow, client, refresher, thread, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
