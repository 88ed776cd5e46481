// Package server wires the keybud components together and runs the HTTP
// and socket.io endpoint until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/keybud/internal/cryptox"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/attachments"
	"github.com/dmitrijs2005/keybud/internal/server/config"
	"github.com/dmitrijs2005/keybud/internal/server/fanout"
	"github.com/dmitrijs2005/keybud/internal/server/httpapi"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/messages"
	"github.com/dmitrijs2005/keybud/internal/server/metrics"
	"github.com/dmitrijs2005/keybud/internal/server/notifier"
	"github.com/dmitrijs2005/keybud/internal/server/oauth"
	"github.com/dmitrijs2005/keybud/internal/server/realtime"
	"github.com/dmitrijs2005/keybud/internal/server/registry"
	"github.com/dmitrijs2005/keybud/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/keybud/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

// App owns the process-wide resources.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	store  kv.Store
	socket *realtime.SocketServer
	server *httpapi.Server
}

// NewApp connects to Postgres and the key-value store, applies migrations
// and builds every component.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.Debug)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !c.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := kv.New(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, store: store}
	if err := app.build(rm); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) build(rm repomanager.RepositoryManager) error {
	c, logger := app.config, app.logger

	cipher, err := cryptox.NewCipher(c.EncryptionSecret)
	if err != nil {
		return fmt.Errorf("cipher init error: %w", err)
	}
	signer, err := attachments.NewSigner(c)
	if err != nil {
		return fmt.Errorf("signer init error: %w", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	sessions := registry.NewAuth(app.store, logger)
	subscriptions := registry.NewMessage(app.store, logger)

	app.socket = realtime.NewSocketServer(logger,
		realtime.NewSessionGateway(sessions, logger),
		realtime.NewSubscriptionGateway(subscriptions, logger, []byte(c.SecretKey)),
		c.ClientURL)

	redirectURL := strings.TrimSuffix(c.BaseURL, "/") + "/auth/google/redirect"

	router := httpapi.NewRouter(httpapi.Deps{
		Users:         services.NewUserService(app.db, rm, c),
		Provider:      oauth.NewGoogleProvider(c.GoogleClientID, c.GoogleClientSecret, redirectURL),
		Completions:   notifier.New(app.store, sessions, app.socket.AuthPusher(), logger, c.KVDefaultTTL),
		Conversations: services.NewConversationService(app.db, rm, logger),
		Messages:      messages.NewService(app.db, rm, cipher, app.store, logger, c.MessagePageSize, c.CursorTTL),
		Fanout:        fanout.NewDispatcher(subscriptions, app.socket.MessagePusher(), logger),
		Attachments:   attachments.NewURLCache(app.store, signer, logger, c.SignedURLValidity, c.SignedURLCacheFraction),
	}, httpapi.Options{
		ClientURL:      c.ClientURL,
		Production:     c.Production,
		Logger:         logger,
		SocketHandler:  app.socket.Handler(),
		MetricsHandler: promhttp.Handler(),
	})

	app.server = httpapi.NewServer(c.EndpointAddrHTTP, router, logger)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives or ctx is cancelled, then
// releases all resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)
	if cerr := app.Close(); cerr != nil {
		app.logger.Error(ctx, "shutdown error", "error", cerr)
	}
	return err
}

// Close releases the socket server, key-value store and database.
func (app *App) Close() error {
	var err error
	if app.socket != nil {
		err = multierr.Append(err, app.socket.Close())
	}
	if app.store != nil {
		err = multierr.Append(err, app.store.Close())
	}
	if app.db != nil {
		err = multierr.Append(err, app.db.Close())
	}
	return err
}
