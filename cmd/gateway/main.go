package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	api "github.com/mind-engage/mindengage-quiz/internal/api/http"
	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/generation"
	"github.com/mind-engage/mindengage-quiz/internal/identity"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	config.LoadDotEnv()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		glog.Exitf("db open failed: %v", err)
	}
	defer dbh.Close()

	store := quiz.NewSQLStore(dbh, db.Driver(cfg.DBDriver))
	ids := identity.NewSQLProvider(dbh)
	ids.SetCost(cfg.BcryptCost)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)

	// --- Question generation ---
	var gen generation.Generator = generation.Disabled{}
	if cfg.GeminiAPIKey != "" {
		g, err := generation.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			glog.Exitf("gemini client: %v", err)
		}
		defer g.Close()
		gen = generation.NewModelGenerator(g)
		glog.Infof("question generation enabled (model %s)", cfg.GeminiModel)
	} else {
		glog.Warning("GEMINI_API_KEY not set; question generation disabled")
	}

	// --- Attempts ---
	attempts := attempt.NewService(store,
		attempt.WithEvents(events),
		attempt.WithBaseContext(ctx),
		attempt.WithCountdownTick(cfg.CountdownTick),
	)

	// --- Auth ---
	if cfg.AuthSecret == "dev-secret-change-me" && cfg.Mode == config.ModeOnline {
		glog.Warning("AUTH_SECRET is the development default")
	}
	authSvc := auth.NewAuthService(cfg.AuthSecret)
	sessions := auth.NewSessions(cfg.SessionTTL)
	go sweepSessions(ctx, sessions, time.Minute)

	// --- Router ---
	r := api.NewRouter(api.Deps{
		Identity:           ids,
		Auth:               authSvc,
		Sessions:           sessions,
		Store:              store,
		Attempts:           attempts,
		Generator:          gen,
		Events:             events,
		PublicURL:          cfg.PublicURL,
		AllowedOrigins:     cfg.CORSOrigins(),
		DevProfileFallback: cfg.DevFallback,
		Ready:              dbh.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			glog.Errorf("shutdown: %v", err)
		}
	}()

	glog.Infof("mindengage-quiz listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		glog.Exitf("http server: %v", err)
	}
	glog.Infof("stopped with %d live attempts", attempts.Registry().Len())
}

func sweepSessions(ctx context.Context, s *auth.Sessions, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				glog.V(1).Infof("expired %d sessions", n)
			}
		}
	}
}
