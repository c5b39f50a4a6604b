package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PabloGalante/folio-chat/internal/app/chat"
	"github.com/PabloGalante/folio-chat/internal/app/conversation"
	"github.com/PabloGalante/folio-chat/internal/app/profile"
	"github.com/PabloGalante/folio-chat/internal/domain"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

const (
	defaultDispatchLimit = 50
	maxBodyBytes         = 64 << 10
)

// ProfileLoader serves GET /profile.
type ProfileLoader interface {
	Load(ctx context.Context) (*profile.Profile, error)
}

type Options struct {
	// Profiles may be nil, in which case /profile answers 404.
	Profiles    ProfileLoader
	CORSOrigins []string
}

type Server struct {
	svc      *conversation.Service
	profiles ProfileLoader
}

func NewServer(svc *conversation.Service, opts Options) http.Handler {
	s := &Server{svc: svc, profiles: opts.Profiles}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}, /sessions/{id}/messages, /sessions/{id}/{open,close,toggle}
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	mux.HandleFunc("/dispatches", s.handleDispatches)
	mux.HandleFunc("/profile", s.handleProfile)

	return chainMiddlewares(mux,
		withCORS(opts.CORSOrigins),
		withLogging,
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	Greeting *bool `json:"greeting,omitempty"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	IsOpen    bool   `json:"is_open"`
	IsLoading bool   `json:"is_loading"`
	Error     string `json:"error,omitempty"`
}

type messageResponse struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   []domain.Source `json:"sources,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type timelineResponse struct {
	Session  sessionResponse   `json:"session"`
	Messages []messageResponse `json:"messages"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type dispatchErrorResponse struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	UserMessage      messageResponse        `json:"user_message"`
	AssistantMessage *messageResponse       `json:"assistant_message,omitempty"`
	Error            *dispatchErrorResponse `json:"error,omitempty"`
	Stale            bool                   `json:"stale,omitempty"`
}

type dispatchResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status,omitempty"`
	Stale      bool      `json:"stale,omitempty"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id}[/action]
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])

	if id == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		case http.MethodDelete:
			s.handleEndSession(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "messages":
		switch r.Method {
		case http.MethodPost:
			s.handleSendMessage(w, r, id)
		case http.MethodDelete:
			s.handleClear(w, r, id)
		default:
			methodNotAllowed(w)
		}
	case "open", "close", "toggle":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleVisibility(w, r, id, parts[1])
	default:
		http.NotFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// An empty body is fine here.
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeDecodeError(w, err)
		return
	}

	greeting := req.Greeting == nil || *req.Greeting
	out, err := s.svc.StartSession(r.Context(), conversation.StartSessionInput{Greeting: greeting})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTimelineResponse(out))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	out, err := s.svc.GetSessionTimeline(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(out))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.EndSession(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req sendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	ex, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		SessionID: id,
		Text:      req.Text,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSendMessageResponse(ex))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.Clear(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request, id domain.SessionID, action string) {
	var (
		state domain.State
		err   error
	)
	switch action {
	case "open":
		state, err = s.svc.Open(r.Context(), id)
	case "close":
		state, err = s.svc.Close(r.Context(), id)
	default:
		state, err = s.svc.Toggle(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(id, state))
}

func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := defaultDispatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.svc.RecentDispatches(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]dispatchResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dispatchResponse{
			ID:         string(rec.ID),
			SessionID:  string(rec.SessionID),
			StartedAt:  rec.StartedAt,
			DurationMS: rec.Duration.Milliseconds(),
			Outcome:    rec.Outcome,
			Status:     rec.Status,
			Stale:      rec.Stale,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"dispatches": out})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.profiles == nil {
		notFound(w, "profile not configured")
		return
	}

	p, err := s.profiles.Load(r.Context())
	if err != nil {
		if errors.Is(err, profile.ErrNotConfigured) {
			notFound(w, "profile not configured")
			return
		}
		observability.LoggerFromContext(r.Context()).Warn("profile unavailable", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toSessionResponse(id domain.SessionID, st domain.State) sessionResponse {
	return sessionResponse{
		ID:        string(id),
		IsOpen:    st.IsOpen,
		IsLoading: st.IsLoading,
		Error:     st.Error,
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		Role:      string(m.Role),
		Content:   m.Content,
		Sources:   m.Sources,
		CreatedAt: m.CreatedAt,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toTimelineResponse(v *conversation.SessionView) timelineResponse {
	return timelineResponse{
		Session:  toSessionResponse(v.ID, v.State),
		Messages: toMessagesResponse(v.Messages),
	}
}

func toSendMessageResponse(ex *chat.Exchange) sendMessageResponse {
	resp := sendMessageResponse{
		UserMessage: toMessageResponse(ex.User),
		Stale:       ex.Stale,
	}
	if ex.Assistant != nil {
		m := toMessageResponse(ex.Assistant)
		resp.AssistantMessage = &m
	}
	if ex.Err != nil {
		resp.Error = &dispatchErrorResponse{
			Kind:    string(ex.Err.Kind),
			Status:  ex.Err.Status,
			Message: ex.Err.UserMessage(),
		}
	}
	return resp
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		notFound(w, err.Error())
		return
	}
	if errors.Is(err, domain.ErrTooManySessions) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	if de, ok := domain.AsDispatchError(err); ok {
		switch de.Kind {
		case domain.KindEmptyInput, domain.KindInputTooLong:
			writeJSON(w, http.StatusBadRequest, dispatchErrorResponse{Kind: string(de.Kind), Message: de.UserMessage()})
			return
		case domain.KindBusy:
			writeJSON(w, http.StatusConflict, dispatchErrorResponse{Kind: string(de.Kind), Message: de.UserMessage()})
			return
		}
	}

	internalError(w, r, err)
}

// decodeBody reads at most maxBodyBytes of JSON into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "request body too large",
		})
		return
	}
	badRequest(w, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
