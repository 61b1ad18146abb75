// cmd/web/main.go
//
// Agriportal – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Console logger until configuration is known, then the daily rotating
//     file logger (tees to console when log.stdout is set or stdout is a
//     TTY).
//
//  2. Load configuration (.env → conf/global.yaml → AGRI_* env → Vault).
//
//  3. Open the MySQL pool and build the account service over it.
//
//  4. Load form definitions, the shared Submitter, post-submit Actions,
//     and the CSRF signer.
//
//  5. Open the optional GeoLite2 database.
//
//  6. Build the router:
//
//     • RequestID → RealIP → Recoverer       – chi middleware
//     • Enrich → RequestLog                  – UA/geo, then access log
//     • Security → ForceHTTPS                – headers, 308 redirect
//     • /metrics, /healthz                   – ops endpoints
//     • components                           – forms, auth, calendar, debug
//
//  7. Serve until SIGINT or SIGTERM, then drain for server.ShutdownGrace.
//     SIGHUP re-reads form definitions without a restart.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/agriportal/internal/account"
	"github.com/yanizio/agriportal/internal/component"
	"github.com/yanizio/agriportal/internal/config"
	"github.com/yanizio/agriportal/internal/database"
	"github.com/yanizio/agriportal/internal/form"
	"github.com/yanizio/agriportal/internal/logger"
	"github.com/yanizio/agriportal/internal/middleware"
	"github.com/yanizio/agriportal/internal/requestinfo"
	"github.com/yanizio/agriportal/internal/server"

	_ "github.com/yanizio/agriportal/components/auth"
	_ "github.com/yanizio/agriportal/components/calendar"
	_ "github.com/yanizio/agriportal/components/debug"
	_ "github.com/yanizio/agriportal/components/forms"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	boot, err := logger.NewConsole("info")
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		boot.Errorw("agriportal stopped", "err", err)
		_ = zap.L().Sync()
		os.Exit(1)
	}
	_ = zap.L().Sync()
}

func run(ctx context.Context) error {
	//
	// ── 1.  Configuration and logger ────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(filepath.Join(cfg.Paths.Root, "logs"), cfg.Log.Level, cfg.Log.Stdout || runningInTTY())
	if err != nil {
		return err
	}

	//
	// ── 2.  Database and accounts ───────────────────────────────────────
	//
	db, err := database.Open(ctx, database.Config{
		DSN:      cfg.Database.DSN,
		Password: cfg.Database.Password,
		MaxOpen:  cfg.Database.MaxOpen,
		MaxIdle:  cfg.Database.MaxIdle,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	log.Infow("database online")

	accounts, err := newAccounts(cfg, db, log)
	if err != nil {
		return err
	}

	//
	// ── 3.  Forms ───────────────────────────────────────────────────────
	//
	forms := form.NewRegistry()
	if err := forms.LoadDirs(cfg.Forms.Dirs...); err != nil {
		return err
	}
	log.Infow("forms loaded", "forms", forms.IDs())

	submitter := form.NewSubmitter(
		form.WithTimeout(cfg.Forms.SubmitTimeout),
		form.WithRetry(cfg.Forms.RetryMax, 0, 0),
		form.WithSubmitLogger(log),
	)
	actions := form.NewActions(db, submitter, log)

	csrfKey := []byte(cfg.CSRF.Key)
	if len(csrfKey) == 0 {
		log.Warnw("csrf.key is empty; using a per-process key")
		csrfKey = form.RandomCSRFKey()
	}
	csrf, err := form.NewCSRF(csrfKey, cfg.CSRF.MaxAge)
	if err != nil {
		return err
	}

	//
	// ── 4.  Geo database (optional) ─────────────────────────────────────
	//
	geo, err := requestinfo.OpenGeo(cfg.Geo.DBPath)
	if err != nil {
		return err
	}
	defer geo.Close()

	//
	// ── 5.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(requestinfo.Enrich(geo), middleware.RequestLog(log))
	r.Use(middleware.Security, middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", health(db))

	err = component.Mount(r, component.Deps{
		DB:            db,
		Forms:         forms,
		Poster:        submitter,
		Actions:       actions,
		CSRF:          csrf,
		Accounts:      accounts,
		SecureCookies: cfg.Auth.SecureCookies,
		Debug:         cfg.Log.Level == "debug",
		Log:           log,
	}, component.All()...)
	if err != nil {
		return err
	}

	//
	// ── 6.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		return server.Run(gctx, srv)
	})
	g.Go(func() error { return reloadOnHangup(gctx, forms, cfg.Forms.Dirs, log) })
	err = g.Wait()
	log.Infow("server stopped", "err", err)
	return err
}

func newAccounts(cfg *config.Config, db *sqlx.DB, log *zap.SugaredLogger) (*account.Service, error) {
	tokens, err := account.NewTokens(
		[]byte(cfg.Auth.AccessSecret),
		[]byte(cfg.Auth.RefreshSecret),
		cfg.Auth.AccessTTL,
		cfg.Auth.RefreshTTL,
	)
	if err != nil {
		return nil, err
	}
	return account.NewService(account.NewSQLStore(db), tokens, cfg.Auth.BcryptCost, log), nil
}

// health answers 200 while the database responds.
func health(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			form.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		form.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// reloadOnHangup re-reads form definitions on SIGHUP until ctx ends.  A
// broken file keeps the previous definitions.
func reloadOnHangup(ctx context.Context, forms *form.Registry, dirs []string, log *zap.SugaredLogger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if err := forms.LoadDirs(dirs...); err != nil {
				log.Errorw("form reload failed", "err", err)
				continue
			}
			log.Infow("forms reloaded", "forms", forms.IDs())
		}
	}
}
