package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joescharf/codeguardian/internal/progress"
	"github.com/joescharf/codeguardian/internal/review"
	"github.com/joescharf/codeguardian/internal/sessions"
)

// SessionCookie names the cookie carrying the visitor's session ID.
const SessionCookie = "codeguardian_session"

// MaxUploadBytes bounds uploaded files and JSON review bodies.
const MaxUploadBytes = 1 << 20

// Server provides the REST API handlers.
type Server struct {
	reviews  *review.Service
	sessions *sessions.Manager
	logger   *slog.Logger
	validate *validator.Validate
}

// NewServer creates a new API server. A nil manager keeps unbounded
// in-memory history per session, with no idle expiry.
func NewServer(svc *review.Service, mgr *sessions.Manager, logger *slog.Logger) *Server {
	if mgr == nil {
		mgr = sessions.NewManager(nil, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		reviews:  svc,
		sessions: mgr,
		logger:   logger,
		validate: validator.New(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/reviews", s.createReview)
	mux.HandleFunc("POST /api/v1/reviews/upload", s.uploadReview)

	mux.HandleFunc("GET /api/v1/progress", s.listProgress)
	mux.HandleFunc("GET /api/v1/progress/summary", s.progressSummary)
	mux.HandleFunc("DELETE /api/v1/progress", s.clearProgress)

	mux.HandleFunc("GET /api/v1/scoring/weights", s.scoringWeights)
	mux.HandleFunc("GET /api/v1/healthz", s.healthz)

	return accessLog(s.logger, corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// session resolves the caller's session from its cookie, issuing a new one
// when the cookie is missing or not a ULID. Only writes start sessions.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *sessions.Session {
	id := sessionID(r)
	sess := s.sessions.Resume(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// ledger returns the caller's ledger for reads, or nil when the request
// carries no usable session cookie.
func (s *Server) ledger(r *http.Request) progress.Ledger {
	return s.sessions.Ledger(sessionID(r))
}

// --- Reviews ---

type reviewRequest struct {
	Code     string `json:"code"`
	Filename string `json:"filename" validate:"omitempty,max=255"`
}

type reviewResponse struct {
	*review.Result
	Recorded bool            `json:"recorded"`
	Entry    *progress.Entry `json:"entry,omitempty"`
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+4096)
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Code) > MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("code exceeds %d bytes", MaxUploadBytes))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	s.runReview(w, r, req.Code, req.Filename)
}

func (s *Server) uploadReview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(content) > MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", MaxUploadBytes))
		return
	}
	if err := review.ValidateUpload(header.Filename, content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runReview(w, r, string(content), header.Filename)
}

// runReview reviews code and records the result in the caller's session
// ledger. Degraded results are recorded with their flag set.
func (s *Server) runReview(w http.ResponseWriter, r *http.Request, code, label string) {
	res, err := s.reviews.Review(r.Context(), code)
	if err != nil {
		if errors.Is(err, review.ErrEmptyCode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess := s.session(w, r)
	resp := reviewResponse{Result: res}
	entry := progress.NewEntry(res.Score, label)
	entry.Degraded = res.Degraded
	if err := sess.Ledger.Record(r.Context(), entry); err != nil {
		s.logger.Warn("failed to record progress", "session", sess.ID, "error", err)
	} else {
		resp.Recorded = true
		resp.Entry = entry
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Progress ---

func (s *Server) listProgress(w http.ResponseWriter, r *http.Request) {
	ledger := s.ledger(r)
	if ledger == nil {
		writeJSON(w, http.StatusOK, []*progress.Entry{})
		return
	}
	entries, err := ledger.Entries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []*progress.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) progressSummary(w http.ResponseWriter, r *http.Request) {
	ledger := s.ledger(r)
	if ledger == nil {
		writeError(w, http.StatusNotFound, progress.ErrNoData.Error())
		return
	}
	sum, err := ledger.Summarize(r.Context())
	if err != nil {
		if errors.Is(err, progress.ErrNoData) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) clearProgress(w http.ResponseWriter, r *http.Request) {
	ledger := s.ledger(r)
	if ledger == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := ledger.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("progress cleared", "session", sessionID(r))
	w.WriteHeader(http.StatusNoContent)
}

// --- Scoring & health ---

func (s *Server) scoringWeights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reviews.Scorer().Weights())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}

// validationMessage renders the first validator failure as "field: tag".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s: failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return err.Error()
}
