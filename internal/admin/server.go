// Package admin serves a small operational HTTP API next to the tool
// protocol: health, queue inspection and generation history. It is off by
// default and only starts when a listen address is configured.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PeeperFrog/peeperfrog-create/internal/genlog"
	"github.com/PeeperFrog/peeperfrog-create/internal/service"
)

type Server struct {
	addr     string
	username string
	password string
	log      *slog.Logger
	svc      *service.ImageService
	router   *chi.Mux
}

func NewServer(addr, username, password string, log *slog.Logger, svc *service.ImageService) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		username: username,
		password: password,
		log:      log,
		svc:      svc,
		router:   r,
	}
	r.Get("/healthz", s.handleHealth)
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Get("/models", s.handleListModels)
		protected.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleViewQueue)
			r.Delete("/{identifier}", s.handleRemoveFromQueue)
		})
		protected.Get("/log", s.handleQueryLog)
	})
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models := s.svc.Models()
	type modelView struct {
		Key       string  `json:"key"`
		Provider  string  `json:"provider"`
		Quality   string  `json:"quality"`
		CostPerMP float64 `json:"cost_per_megapixel"`
		MaxSize   string  `json:"max_image_size"`
	}
	views := make([]modelView, 0, len(models))
	for _, m := range models {
		views = append(views, modelView{
			Key:       m.Key,
			Provider:  string(m.Provider),
			Quality:   string(m.Quality),
			CostPerMP: m.NormalizedCostPerMP,
			MaxSize:   string(m.MaxImageSize),
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleViewQueue(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.svc.ViewQueue()
	if err != nil {
		s.log.Error("view queue", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"queue_size": len(entries), "prompts": entries})
}

func (s *Server) handleRemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	result, err := s.svc.RemoveFromBatch(identifier)
	if err != nil {
		s.log.Error("remove from queue", "identifier", identifier, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQueryLog(w http.ResponseWriter, r *http.Request) {
	query := genlog.Query{Filename: r.URL.Query().Get("filename")}
	if v := r.URL.Query().Get("start_date"); v != "" {
		start, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		query.Start = start
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		end, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		query.End = end.Add(24*time.Hour - time.Second)
	}

	result, err := s.svc.QueryLog(query)
	if err != nil {
		s.log.Error("query log", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"records":        result.Records,
		"count":          len(result.Records),
		"total_cost_usd": result.TotalCost,
	})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != s.username || pass != s.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="peeperfrog-create"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
