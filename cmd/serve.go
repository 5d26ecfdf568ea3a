package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/ingest"
	"github.com/sells-group/leadgen-cli/internal/lifecycle"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/scoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the batch ingestion webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initWorkspace(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.Repo.SeedSources(ctx, model.DefaultSources()); err != nil {
			return eris.Wrap(err, "seed sources")
		}

		handler := buildMux(env, serverOptions{
			Token:          cfg.Server.Token,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		})
		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type serverOptions struct {
	Token          string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// server holds the HTTP handlers over a workspace.
type server struct {
	env     *workspaceEnv
	maxBody int64
}

// buildMux returns the router. Everything but /health requires the bearer
// token; an empty token rejects every authenticated request.
func buildMux(env *workspaceEnv, opts serverOptions) http.Handler {
	s := &server{env: env, maxBody: opts.MaxBodyBytes}
	if s.maxBody <= 0 {
		s.maxBody = 10 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))
		r.Post("/webhook/batch", s.handleBatch)
		r.Get("/batches/{batchID}", s.handleGetBatch)
		r.Get("/leads/{id}", s.handleGetLead)
		r.Post("/leads/{id}/transition", s.handleTransition)
		r.Post("/leads/{id}/rescore", s.handleRescore)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	p, err := ingest.DecodePayload(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := s.env.Gateway.Ingest(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.env.Repo.FindBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	l, err := s.env.Repo.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, eris.Wrapf(model.ErrSchemaValidation, "days: %q is not a non-negative integer", v))
			return
		}
		days = n
	}
	snap, err := s.env.Monitor.Collect(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type transitionRequest struct {
	To              string `json:"to"`
	Role            string `json:"role"`
	Actor           string `json:"actor"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (s *server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionRequest
	if err := decodeBody(w, r, s.maxBody, &body); err != nil {
		writeError(w, err)
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, err)
		return
	}

	l, err := s.env.Lifecycle.Transition(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (t transitionRequest) toRequest() (lifecycle.Request, error) {
	to, err := model.ParseLeadStatus(t.To)
	if err != nil {
		return lifecycle.Request{}, err
	}
	role, err := lifecycle.ParseRole(t.Role)
	if err != nil {
		return lifecycle.Request{}, eris.Wrap(model.ErrSchemaValidation, err.Error())
	}
	return lifecycle.Request{
		To:              to,
		Actor:           lifecycle.Actor{Role: role, ID: t.Actor},
		RejectionReason: model.RejectionReason(t.RejectionReason),
		Notes:           t.Notes,
	}, nil
}

type rescoreRequest struct {
	FleetLikelihood int    `json:"fleet_likelihood"`
	TrackingNeed    int    `json:"tracking_need"`
	FleetSize       string `json:"fleet_size"`
}

func (s *server) handleRescore(w http.ResponseWriter, r *http.Request) {
	var body rescoreRequest
	if err := decodeBody(w, r, s.maxBody, &body); err != nil {
		writeError(w, err)
		return
	}
	l, err := s.env.Lifecycle.Rescore(r.Context(), chi.URLParam(r, "id"), scoring.Input{
		FleetLikelihood: body.FleetLikelihood,
		TrackingNeed:    body.TrackingNeed,
		FleetSize:       model.FleetSize(body.FleetSize),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		return eris.Wrapf(model.ErrSchemaValidation, "invalid request body: %v", err)
	}
	return nil
}

// bearerAuth rejects requests whose Authorization header does not carry
// token.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, eris.Wrap(model.ErrUnauthorized, "invalid bearer credential"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// statusOf maps the error taxonomy to an HTTP status.
func statusOf(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrBatchClosed),
		errors.Is(err, model.ErrIllegalTransition),
		errors.Is(err, model.ErrStaleWrite):
		return http.StatusConflict
	case errors.Is(err, model.ErrSchemaValidation),
		errors.Is(err, model.ErrInvalidScoreInput),
		errors.Is(err, model.ErrUnknownSourceReference):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{
		"error": msg,
		"kind":  model.ErrorKind(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves handler until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
