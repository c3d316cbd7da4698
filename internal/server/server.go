// Package server is the composition root: it builds every dependency from
// the configuration, declares the routes with their guard chains, and runs
// the HTTP server until it is told to stop.
//
//	config ─▶ sqlite.DB ─▶ services ─▶ guard.Set ─▶ handlers ─▶ chi routes
//	       ↘ TokenService / PasswordService
//	       ↘ Notifier ─▶ Dispatcher (reset emails)
//	       ↘ ImageStore (S3 or disk)
//	       ↘ GitHubProvider (optional)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/authors-haven/internal/auth"
	"github.com/sakif/authors-haven/internal/config"
	"github.com/sakif/authors-haven/internal/guard"
	"github.com/sakif/authors-haven/internal/handler"
	"github.com/sakif/authors-haven/internal/middleware"
	"github.com/sakif/authors-haven/internal/notify"
	sqliteRepo "github.com/sakif/authors-haven/internal/repository/sqlite"
	"github.com/sakif/authors-haven/internal/service"
	"github.com/sakif/authors-haven/internal/storage"
)

const imagesPrefix = "/images/"

// Option overrides a collaborator that New would otherwise build from the
// configuration.
type Option func(*options)

type options struct {
	notifier      notify.Notifier
	images        storage.ImageStore
	provider      auth.IdentityProvider
	passwords     *auth.PasswordService
	dispatcherCfg notify.DispatcherConfig
	clock         func() time.Time
}

func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithImageStore(s storage.ImageStore) Option {
	return func(o *options) { o.images = s }
}

func WithIdentityProvider(p auth.IdentityProvider) Option {
	return func(o *options) { o.provider = p }
}

func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

func WithDispatcherConfig(cfg notify.DispatcherConfig) Option {
	return func(o *options) { o.dispatcherCfg = cfg }
}

// WithClock sets the clock used to issue and verify credentials.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Server owns the database and the notification dispatcher and closes both
// on shutdown.
type Server struct {
	router     *chi.Mux
	config     config.Config
	logger     *slog.Logger
	db         *sqliteRepo.DB
	dispatcher *notify.Dispatcher
	diskDir    string
}

// New wires the application.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{dispatcherCfg: notify.DefaultDispatcherConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setup(ctx, o); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context, o options) error {
	tokenOpts := []auth.Option{
		auth.WithSessionTTL(s.config.SessionTTL),
		auth.WithResetTTL(s.config.ResetTTL),
	}
	if o.clock != nil {
		tokenOpts = append(tokenOpts, auth.WithClock(o.clock))
	}
	tokens, err := auth.NewTokenService(s.config.JWTSecret, tokenOpts...)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	passwords := o.passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = s.newNotifier()
	}
	s.dispatcher = notify.NewDispatcher(notifier, o.dispatcherCfg, s.logger)
	s.dispatcher.Start()

	images := o.images
	if images == nil {
		images, err = s.newImageStore(ctx)
		if err != nil {
			s.dispatcher.Stop()
			return fmt.Errorf("creating image store: %w", err)
		}
	}

	provider := o.provider
	if provider == nil && s.config.GitHub.Enabled() {
		provider = auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
	}

	authService := service.NewAuthService(s.db, tokens, passwords, s.dispatcher, s.config.ResetPasswordURL, s.logger)
	articleService := service.NewArticleService(s.db, s.logger)
	commentService := service.NewCommentService(s.db, s.logger)

	guards := guard.NewSet(authService, s.db, s.db, images, s.logger)

	s.routes(routeDeps{
		guards:   guards,
		users:    handler.NewUserHandler(authService, tokens.SessionTTL(), s.logger),
		articles: handler.NewArticleHandler(articleService, images, s.logger),
		comments: handler.NewCommentHandler(commentService, s.logger),
		social:   s.socialHandler(provider, authService, tokens.SessionTTL()),
	})
	return nil
}

func (s *Server) newNotifier() notify.Notifier {
	if !s.config.SMTP.Enabled() {
		s.logger.Warn("SMTP_HOST not set, reset emails will only be logged")
		return notify.NewLogNotifier(s.logger)
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     s.config.SMTP.Host,
		Port:     s.config.SMTP.Port,
		Username: s.config.SMTP.Username,
		Password: s.config.SMTP.Password,
		From:     s.config.SMTP.From,
	})
}

func (s *Server) newImageStore(ctx context.Context) (storage.ImageStore, error) {
	if s.config.S3.Enabled() {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    s.config.S3.Bucket,
			Region:    s.config.S3.Region,
			Endpoint:  s.config.S3.Endpoint,
			AccessKey: s.config.S3.AccessKey,
			SecretKey: s.config.S3.SecretKey,
			PublicURL: s.config.S3.PublicURL,
		})
	}

	disk, err := storage.NewDiskStore(s.config.ImageDir, imagesPrefix)
	if err != nil {
		return nil, err
	}
	s.diskDir = disk.Dir()
	return disk, nil
}

func (s *Server) socialHandler(p auth.IdentityProvider, a *service.AuthService, ttl time.Duration) *handler.AuthHandler {
	if p == nil {
		s.logger.Warn("GITHUB_CLIENT_ID not set, social login is disabled")
		return nil
	}
	return handler.NewAuthHandler(p, a, ttl, s.logger)
}

type routeDeps struct {
	guards   *guard.Set
	users    *handler.UserHandler
	articles *handler.ArticleHandler
	comments *handler.CommentHandler
	social   *handler.AuthHandler
}

// routes declares every endpoint with its guard chain. Within a chain,
// guards that load the identity and the resource come before the guards
// that compare them, and those come before anything that changes state.
func (s *Server) routes(d routeDeps) {
	g := d.guards
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recover(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.Respond[any](w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.Respond[any](w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handler.HandleHealth(s.db))

	if s.diskDir != "" {
		r.Handle(imagesPrefix+"*", http.StripPrefix(imagesPrefix, http.FileServer(http.Dir(s.diskDir))))
	}

	r.Route("/users", func(r chi.Router) {
		r.Post("/signup", handler.Guarded(guard.Of(guard.ValidateSignUp), d.users.HandleSignUp))
		r.Post("/signin", handler.Guarded(guard.Of(guard.ValidateSignIn), d.users.HandleSignIn))
		r.Post("/signout", d.users.HandleSignOut)
		r.Post("/forgot-password", handler.Guarded(guard.Of(guard.ValidateEmail), d.users.HandleForgotPassword))
		r.Put("/reset-password/{token}", handler.Guarded(guard.Of(guard.ValidatePassword), d.users.HandleResetPassword))
	})

	if d.social != nil {
		r.Get("/auth/github/login", d.social.HandleGitHubLogin)
		r.Get("/auth/github/callback", d.social.HandleGitHubCallback)
	}

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", d.articles.HandleList)
		r.Post("/", handler.Guarded(
			guard.Of(g.SignInAuth, g.ImageUpload, guard.ValidateArticle(false)),
			d.articles.HandleCreate))

		r.Get("/{slug}", handler.Guarded(guard.Of(g.ArticleExists), d.articles.HandleGet))
		r.Put("/{slug}", handler.Guarded(
			guard.Of(g.SignInAuth, g.ArticleExists, g.CheckAuthor, guard.ValidateArticle(true)),
			d.articles.HandleUpdate))
		r.Delete("/{slug}", handler.Guarded(
			guard.Of(g.SignInAuth, g.ArticleExists, g.CheckAuthor, g.DeleteImage),
			d.articles.HandleDelete))

		r.Get("/{slug}/comments", handler.Guarded(guard.Of(g.ArticleExists), d.comments.HandleList))
		r.Post("/{slug}/comment", handler.Guarded(
			guard.Of(g.SignInAuth, g.ArticleExists, guard.VerifyText),
			d.comments.HandleCreate))
		r.Post("/{slug}/comment/{commentid}/thread", handler.Guarded(
			guard.Of(g.ParentCommentExists, g.SignInAuth, guard.VerifyText),
			d.comments.HandleReply))

		r.Post("/comment/{commentId}/like", handler.Guarded(
			guard.Of(g.SignInAuth, g.CommentExists, g.DuplicateLike),
			d.comments.HandleLike))
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the dispatcher, letting queued emails go out, then closes
// the database.
func (s *Server) Close() error {
	s.dispatcher.Stop()
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds before closing the server's resources.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
