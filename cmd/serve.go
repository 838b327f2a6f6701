package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for model administration and contract generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(e),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func buildRouter(e *env) http.Handler {
	a := &api{env: e}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/models", func(r chi.Router) {
			r.Get("/", a.listModels)
			r.Post("/", a.createModel)
			r.Post("/upload", a.uploadTemplate)
			r.Get("/{id}", a.getModel)
			r.Put("/{id}", a.updateModel)
			r.Delete("/{id}", a.deleteModel)
			r.Get("/{id}/download", a.downloadTemplate)
		})
		r.Route("/contracts", func(r chi.Router) {
			r.Post("/generate", a.generateContract)
			r.Get("/", a.listActiveContracts)
			r.Get("/{modelID}/history", a.contractHistory)
			r.Post("/{modelID}/history", a.contractHistoryByParams)
			r.Get("/{modelID}/{fingerprint}/download", a.downloadContract)
		})
		r.Post("/query/test", a.testQuery)
	})

	return r
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
