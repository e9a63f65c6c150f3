package board

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/cors"
	"github.com/putto11262002/board/core"
	"github.com/putto11262002/board/pkg/router"
)

type App struct {
	config    *Config
	context   context.Context
	server    *http.Server
	logger    *slog.Logger
	router    *router.Router
	feed      *core.ChangeFeed
	feedSub   core.Subscription
	wsManager *core.ConnManager

	exit chan int

	store MessageStore

	messageHandler *MessageHandler

	cleanupFuncs []func(context.Context)

	staticFS *StaticFS

	wg sync.WaitGroup
}

// New builds the app or exits the process if it cannot.
func New(ctx context.Context, config *Config) *App {
	if config == nil {
		var err error
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, "%s", FormatValidationErrors(err))
	}
	app, err := newApp(ctx, config)
	if err != nil {
		failed(1, "%v\n", err)
	}
	return app
}

func newApp(ctx context.Context, config *Config) (*App, error) {
	app := &App{
		exit:   make(chan int),
		config: config,
		feed:   core.NewChangeFeed(),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx
	app.logger = newLogger(config.LogLevel())

	if err := app.openStore(); err != nil {
		app.cleanup(context.Background())
		return nil, err
	}

	if config.Static.Dir != "" {
		staticFS, err := NewStaticFS(os.DirFS(config.Static.Dir), "index.html", map[string]string{
			"index.html": "no-cache",
			"assets/*":   "public, max-age=31536000, immutable",
		})
		if err != nil {
			app.cleanup(context.Background())
			return nil, fmt.Errorf("failed to load static files: %w", err)
		}
		app.staticFS = staticFS
	}

	app.wsManager = core.NewConnManager(app.context, &app.wg, app.logger,
		core.WithCheckOrigin(originChecker(app.config.AllowedOrigins)))
	app.wsManager.OnConnectionOpened(func(id int) {
		app.logger.Debug(fmt.Sprintf("viewer %d connected", id))
	})
	app.wsManager.OnConnectionClosed(func(id int) {
		app.logger.Debug(fmt.Sprintf("viewer %d disconnected", id))
	})
	sub, err := app.feed.Subscribe(app.broadcastChange)
	if err != nil {
		app.cleanup(context.Background())
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}
	app.feedSub = sub
	app.AddCleanupFunc(func(ctx context.Context) {
		app.feedSub.Unsubscribe()
		app.wsManager.Close(ctx)
	})

	app.messageHandler = NewMessageHandler(app.store)

	app.router = router.New(router.WithLogger(app.logger))
	registerErrorMappers(app.router)

	app.router.Use(router.Std(router.RequestLogger(app.logger)))
	app.router.Use(router.Std(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	})))

	app.router.Router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := app.wsManager.Connect(w, r); err != nil {
			app.logger.Error(err.Error())
		}
	})

	app.router.Route("/api", func(api *router.Router) {
		api.Get("/board", app.messageHandler.BoardHandler)
		api.Route("/messages", func(r *router.Router) {
			r.Get("/", app.messageHandler.ListMessagesHandler)
			r.Post("/", app.messageHandler.CreateMessageHandler)
			r.Delete("/{id}", app.messageHandler.DeleteMessageHandler)
		})
	})

	if app.staticFS != nil {
		app.router.With(router.Std(app.staticFS.EtagMiddleware())).Mount("/", http.FileServer(app.staticFS))
	}

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
		Handler: app.router.Router,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}
	if app.config.Mode == ProdMode {
		app.server.TLSConfig = defaultTLSConfig.Clone()
	}

	return app, nil
}

func (app *App) openStore() error {
	switch app.config.Store.Driver {
	case BadgerDriver:
		opts := badger.DefaultOptions(app.config.Badger.Dir).WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("failed to open badger: %w", err)
		}
		app.AddCleanupFunc(func(ctx context.Context) {
			db.Close()
		})
		app.store = core.NewBadgerMessageStore(db, app.feed, app.logger)
	default:
		sqliteOptions := &core.SQLiteDBOption{
			Mode:        "rwc",
			Cache:       "shared",
			JournalMode: "WAL",
			BusyTimeout: 5 * time.Second,
		}
		db, err := core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		app.AddCleanupFunc(func(ctx context.Context) {
			db.Close()
		})
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		app.store = core.NewSQLiteMessageStore(db.DB, app.feed)
	}
	app.logger.Info(fmt.Sprintf("using %s message store", app.config.Store.Driver))
	return nil
}

// originChecker accepts websocket upgrades from the same origins CORS allows.
// Requests without an Origin header come from non-browser clients and are accepted.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// broadcastChange tells every connected viewer to refetch.
func (app *App) broadcastChange() {
	e, err := core.NewEvent(core.MessagesChangedEvent, struct{}{})
	if err != nil {
		app.logger.Error(err.Error())
		return
	}
	app.wsManager.Send(e)
}

// Handler returns the app's HTTP handler.
func (app *App) Handler() http.Handler {
	return app.router.Router
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))
}

func (app *App) Start() {
	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()

		done := make(chan struct{})
		go func() {
			app.cleanup(closeCtx)
			app.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1
		}
	}()

	// runs first on shutdown, before the stores are closed
	app.cleanupFuncs = append([]func(context.Context){func(ctx context.Context) {
		app.server.Shutdown(ctx)
	}}, app.cleanupFuncs...)

	app.logger.Info(fmt.Sprintf("app running in %s mode on: %s:%d",
		app.config.Mode, app.config.Hostname, app.config.Port))

	var err error
	// TODO: perhaps better validation for TLS config
	if app.config.TLS.Key != "" && app.config.TLS.Crt != "" {
		err = app.server.ListenAndServeTLS(app.config.TLS.Crt, app.config.TLS.Key)
	} else {
		err = app.server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	if code != 0 {
		failed(code, "app exit with code: %d\n", code)
	} else {
		os.Exit(code)
	}
}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

// Close runs the cleanup functions and waits for the websocket connections to finish.
// It is used when the app is served by something other than Start.
func (app *App) Close(ctx context.Context) {
	app.cleanup(ctx)
	app.wg.Wait()
}

// cleanup runs the cleanup functions in registration order.
func (app *App) cleanup(ctx context.Context) {
	for _, f := range app.cleanupFuncs {
		f(ctx)
	}
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
