package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/CrowderSoup/admin-panel/database"
	"github.com/CrowderSoup/admin-panel/handlers"
	"github.com/CrowderSoup/admin-panel/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	started := time.Now()

	db, err := openDatabase(cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize services
	dataService := database.NewDataService(db)
	if err := dataService.ProbeCapabilities(ctx); err != nil {
		return err
	}
	authService, err := services.NewAuthService(dataService, cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	kanbanService := services.NewKanbanService(dataService, cfg.AutoHealSchema)
	uploads, err := services.NewUploadStore(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		return err
	}
	logos, err := services.NewLogoStore(cfg.DataRoot)
	if err != nil {
		return err
	}
	quotes, err := services.NewQuoteStore(cfg.QuotesDir)
	if err != nil {
		return err
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run(ctx)

	middleware := handlers.NewAuthMiddleware(authService)
	r := handlers.NewRouter(handlers.Handlers{
		Middleware: middleware,
		Auth:       handlers.NewAuthHandler(authService, middleware),
		Kanban:     handlers.NewKanbanHandler(kanbanService, logos, hub),
		Uploads:    handlers.NewUploadHandler(uploads, dataService, hub),
		Quotes:     handlers.NewQuoteHandler(quotes, hub),
		Status:     handlers.NewStatusHandler(started, services.NewSystemInfo()),
		WebSocket:  handlers.NewWebSocketHandler(hub, cfg.CORSOrigins),
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	var h http.Handler = c.Handler(r)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log.Logger)(h)

	// Large uploads stream through this server, so there is no write timeout.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
