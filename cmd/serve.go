package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/event-scout/internal/model"
	"github.com/sells-group/event-scout/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			store:    env.Store,
			profiles: env.lookupProfile,
			discover: env.discover,
		}

		return startServer(ctx, buildRouter(api), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort picks the flag value when set, the config value otherwise.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

type (
	profileLookupFunc func(name string) (*model.InterestProfile, error)
	runDiscoveryFunc  func(ctx context.Context, req model.DiscoveryRequest, prof *model.InterestProfile) (*model.PipelineState, error)
)

// apiServer carries the handler dependencies. The mutex serializes
// discovery: one run at a time keeps API spend predictable.
type apiServer struct {
	store    store.Store
	profiles profileLookupFunc
	discover runDiscoveryFunc
	mu       sync.Mutex
}

// buildRouter wires the HTTP API routes.
func buildRouter(s *apiServer) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/discover", s.handleDiscover)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string   `json:"query"`
		Location  string   `json:"location"`
		TimeFrame string   `json:"time_frame"`
		Interests []string `json:"interests"`
		Profile   string   `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	prof, err := s.profiles(req.Profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.mu.TryLock() {
		writeError(w, http.StatusConflict, "a discovery run is already in progress")
		return
	}
	defer s.mu.Unlock()

	state, err := s.discover(r.Context(), model.DiscoveryRequest{
		Query:     req.Query,
		Location:  req.Location,
		TimeFrame: req.TimeFrame,
		Interests: req.Interests,
	}, prof)
	if err != nil {
		zap.L().Error("api discovery failed",
			zap.String("query", req.Query),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "discovery failed")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = model.RunStatus(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("api get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// startServer runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}
