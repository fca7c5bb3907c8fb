package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/remindbot/internal/models"
	"github.com/Kerhoff/remindbot/internal/repository"
	"github.com/Kerhoff/remindbot/internal/service"
)

// Server exposes the reminder book over HTTP next to the Telegram bot.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	router chi.Router
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, router: chi.NewRouter()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/api/due", s.handleGetDue)
	s.router.Route("/api/chats/{chatID}/reminders", func(r chi.Router) {
		r.Get("/", s.handleGetReminders)
		r.Post("/", s.handleCreateReminder)
		r.Delete("/{index}", s.handleDeleteReminder)
		r.Post("/{id}/done", s.handleMarkDone)
		r.Post("/{id}/postpone", s.handlePostpone)
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps lifecycle errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUsage):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrInvalidIndex):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrCorrupt):
		s.logger.WithError(err).Errorf("failed to %s", op)
		s.respondError(w, http.StatusServiceUnavailable, "reminder storage is unreadable")
	default:
		s.logger.WithError(err).Errorf("failed to %s", op)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", op))
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"ticks":    s.svc.Ticks(),
		"scanning": s.svc.Scanning(),
	})
}

// ---------------------------------------------------------------------------
// Reminders
// ---------------------------------------------------------------------------

type reminderResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IntervalDays int    `json:"interval_days"`
	NextDue      string `json:"next_due"`
}

type dueResponse struct {
	ChatID string `json:"chat_id"`
	reminderResponse
}

func toResponse(r models.Reminder) reminderResponse {
	return reminderResponse{
		ID:           r.ID,
		Name:         r.Name,
		IntervalDays: r.IntervalDays,
		NextDue:      models.FormatTimestamp(r.NextDue),
	}
}

// createReminderRequest accepts interval_days as a number or as text, like
// the /create command does.
type createReminderRequest struct {
	IntervalDays json.Number `json:"interval_days"`
	Name         string      `json:"name"`
}

func (s *Server) handleGetReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.svc.List(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.respondServiceError(w, "get reminders", err)
		return
	}

	out := make([]reminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		out = append(out, toResponse(rem))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := s.svc.Create(r.Context(), chi.URLParam(r, "chatID"), req.IntervalDays.String(), req.Name)
	if err != nil {
		s.respondServiceError(w, "create reminder", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, toResponse(created))
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid reminder index")
		return
	}

	deleted, err := s.svc.DeleteAt(r.Context(), chi.URLParam(r, "chatID"), index)
	if err != nil {
		s.respondServiceError(w, "delete reminder", err)
		return
	}

	s.respondJSON(w, http.StatusOK, toResponse(deleted))
}

func (s *Server) handleMarkDone(w http.ResponseWriter, r *http.Request) {
	updated, err := s.svc.MarkDoneByID(r.Context(), chi.URLParam(r, "chatID"), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "mark reminder done", err)
		return
	}

	s.respondJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handlePostpone(w http.ResponseWriter, r *http.Request) {
	updated, err := s.svc.PostponeByID(r.Context(), chi.URLParam(r, "chatID"), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "postpone reminder", err)
		return
	}

	s.respondJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) handleGetDue(w http.ResponseWriter, r *http.Request) {
	due, err := s.svc.Due(r.Context())
	if err != nil {
		s.respondServiceError(w, "get due reminders", err)
		return
	}

	out := make([]dueResponse, 0, len(due))
	for _, d := range due {
		out = append(out, dueResponse{ChatID: d.ChatID, reminderResponse: toResponse(d.Reminder)})
	}
	s.respondJSON(w, http.StatusOK, out)
}
