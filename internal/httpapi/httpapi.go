// Package httpapi exposes the extraction engine over the inbound JSON HTTP
// surface: one route per requested shape of "which weeks", all gated on a
// forwarded Cookie header and a student_id query parameter.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tgadapter/internal/apierr"
	"tgadapter/internal/extract"
	"tgadapter/internal/model"
	"tgadapter/internal/session"
)

// Engine is the subset of extract.Engine this package depends on.
type Engine interface {
	Week(ctx context.Context, cookies map[string]string, studentID string, offset int, force bool) (*model.TimetableData, error)
	Weeks(ctx context.Context, cookies map[string]string, studentID string, offsets []int, force bool) ([]model.TimetableData, error)
	AvailableOffsets(ctx context.Context, cookies map[string]string, studentID string) ([]int, error)
}

var _ Engine = (*extract.Engine)(nil)

// Handler wires Engine into an *http.ServeMux.
type Handler struct {
	engine Engine
	force  bool
}

// NewHandler builds a Handler. force disables dynamic concurrency
// adjustment in favor of the fixed ceilings, for deterministic benchmarking.
func NewHandler(engine Engine, force bool) *Handler {
	return &Handler{engine: engine, force: force}
}

// Register mounts every route onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /profiles/{username}/weeks/all", h.handleAll)
	mux.HandleFunc("GET /profiles/{username}/weeks/current_forward", h.handleCurrentForward)
	mux.HandleFunc("GET /profiles/{username}/weeks/forward/{count}", h.handleForward)
	mux.HandleFunc("GET /profiles/{username}/weeks/{offset}", h.handleOne)
}

func requestInputs(r *http.Request) (cookies map[string]string, studentID string, err error) {
	cookieHeader := r.Header.Get("Cookie")
	if cookieHeader == "" {
		return nil, "", apierr.Input("missing Cookie header")
	}
	studentID = r.URL.Query().Get("student_id")
	if studentID == "" {
		return nil, "", apierr.Input("missing student_id query parameter")
	}
	cookies = session.ParseCookies(cookieHeader)
	if len(cookies) == 0 {
		return nil, "", apierr.Input("Cookie header did not contain any usable cookies")
	}
	return cookies, studentID, nil
}

func (h *Handler) handleOne(w http.ResponseWriter, r *http.Request) {
	cookies, studentID, err := requestInputs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := strconv.Atoi(r.PathValue("offset"))
	if err != nil {
		writeError(w, apierr.Input("offset must be an integer"))
		return
	}

	data, err := h.engine.Week(r.Context(), cookies, studentID, offset, h.force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	cookies, studentID, err := requestInputs(r)
	if err != nil {
		writeError(w, err)
		return
	}

	offs, err := h.engine.AvailableOffsets(r.Context(), cookies, studentID)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := h.engine.Weeks(r.Context(), cookies, studentID, offs, h.force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleCurrentForward(w http.ResponseWriter, r *http.Request) {
	cookies, studentID, err := requestInputs(r)
	if err != nil {
		writeError(w, err)
		return
	}

	offs, err := h.engine.AvailableOffsets(r.Context(), cookies, studentID)
	if err != nil {
		writeError(w, err)
		return
	}
	forward := offs[:0:0]
	for _, o := range offs {
		if o >= 0 {
			forward = append(forward, o)
		}
	}
	results, err := h.engine.Weeks(r.Context(), cookies, studentID, forward, h.force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	cookies, studentID, err := requestInputs(r)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := strconv.Atoi(r.PathValue("count"))
	if err != nil || count < 0 {
		writeError(w, apierr.Input("count must be a non-negative integer"))
		return
	}

	forward := make([]int, count+1)
	for i := 0; i <= count; i++ {
		forward[i] = i
	}
	results, err := h.engine.Weeks(r.Context(), cookies, studentID, forward, h.force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response body", "error", err)
	}
}

type errorBody struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		slog.Error("unclassified internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Category: "internal_error", Message: "internal error"})
		return
	}
	writeJSON(w, apierr.HTTPStatus(apiErr.Kind), errorBody{
		Category: string(apiErr.Kind),
		Message:  apiErr.Message,
	})
}

// AccessLog wraps mux with a request-scoped structured summary log line,
// mirroring the teacher's access-logging convention. Each request's log line
// carries an opaque request id; the id is not passed on to upstream calls
// or to dump output, which use ids of their own.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
