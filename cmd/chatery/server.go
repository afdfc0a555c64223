package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"chatery/internal/constants"
	apperrors "chatery/internal/errors"
	"chatery/internal/middleware"
	"chatery/internal/models"
	"chatery/internal/queue"
	"chatery/internal/security"
	"chatery/internal/service"
	"chatery/internal/validation"
	"chatery/pkg/protocol/rest"
	"chatery/pkg/protocol/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ServerDeps bundles the services the operational surface exposes.
type ServerDeps struct {
	Registry *service.Registry
	Queue    *queue.Queue
	Bulk     *service.BulkTracker
	Hub      *service.Hub
	Clients  map[string]*rest.Client
}

type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	config  *models.Config
	deps    ServerDeps
	server  *http.Server
	dataDir string
}

func NewServer(cfg *models.Config, deps ServerDeps, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		config:  cfg,
		deps:    deps,
		dataDir: cfg.DataDir,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Inbound gateway events
	events := s.router.PathPrefix("/events/{sessionId}").Subrouter()
	events.Use(middleware.WebhookObservabilityMiddleware(s.logger, "protocol"))
	events.HandleFunc("", s.handleProtocolEvent()).Methods(http.MethodPost)

	// Real-time subscribers
	s.router.HandleFunc("/ws/{sessionId}", s.handleSubscribe()).Methods(http.MethodGet)

	// Media registration for downloaded attachments
	s.router.HandleFunc("/sessions/{sessionId}/media", s.handleRegisterMedia()).Methods(http.MethodPost)

	// Thin job and campaign surface
	s.router.HandleFunc("/sessions/{sessionId}/jobs", s.handleEnqueueJob()).Methods(http.MethodPost)
	s.router.HandleFunc("/jobs/{jobId}", s.handleJobStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions/{sessionId}/bulk", s.handleStartBulk()).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/{sessionId}/bulk", s.handleListBulk()).Methods(http.MethodGet)
	s.router.HandleFunc("/bulk/{campaignId}", s.handleBulkStatus()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	port := s.config.Server.Port
	if port == 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	type sessionHealth struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	type healthResponse struct {
		Status   string                  `json:"status"`
		Version  string                  `json:"version"`
		Sessions []sessionHealth         `json:"sessions"`
		Jobs     map[models.JobState]int `json:"jobs,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		response := healthResponse{Status: "ok", Version: Version}
		for _, session := range s.deps.Registry.List() {
			response.Sessions = append(response.Sessions, sessionHealth{
				ID:    session.ID,
				State: string(session.State()),
			})
		}
		if counts, err := s.deps.Queue.Counts(r.Context()); err == nil {
			response.Jobs = counts
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			s.logger.WithError(err).Error("Failed to encode health response")
		}
	}
}

// handleProtocolEvent receives gateway webhook callbacks and feeds them into
// the session's event channel. The fan-out consumer applies them to the store
// and forwards them to subscribers.
func (s *Server) handleProtocolEvent() http.HandlerFunc {
	type wireEvent struct {
		Event     string          `json:"event"`
		Payload   json.RawMessage `json:"payload"`
		Timestamp time.Time       `json:"timestamp"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionId"]
		log := s.logger.WithField(service.LogFieldSession, sessionID)

		if err := validation.ValidateHTTPRequestSize(r, constants.MaxHTTPRequestBytes); err != nil {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}

		client, ok := s.deps.Clients[sessionID]
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		body, err := verifySignature(r, webhookSecret())
		if err != nil {
			log.WithError(err).Warn("Rejected gateway event")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		var wire wireEvent
		if err := json.Unmarshal(body, &wire); err != nil {
			http.Error(w, "invalid event payload", http.StatusBadRequest)
			return
		}
		if wire.Event == "" {
			http.Error(w, "missing event kind", http.StatusBadRequest)
			return
		}
		if wire.Timestamp.IsZero() {
			wire.Timestamp = time.Now()
		}

		client.Ingest(types.Event{
			Kind:      types.EventKind(wire.Event),
			SessionID: sessionID,
			Payload:   wire.Payload,
			Timestamp: wire.Timestamp,
		})

		w.WriteHeader(http.StatusOK)
	}
}

// handleSubscribe upgrades the connection to a WebSocket and streams the
// session's event envelopes until the client goes away. Slow consumers are
// subject to the hub's drop policy before anything reaches the socket.
func (s *Server) handleSubscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionId"]
		log := s.logger.WithField(service.LogFieldSession, sessionID)

		if _, err := s.deps.Registry.Get(sessionID); err != nil {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("WebSocket upgrade failed")
			return
		}

		subscriberID, eventCh := s.deps.Hub.Subscribe(sessionID)
		defer s.deps.Hub.Unsubscribe(sessionID, subscriberID)

		log.WithField("subscriber", subscriberID).Info("Subscriber connected")

		// CloseRead surfaces client disconnects through ctx cancellation.
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case envelope, ok := <-eventCh:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "session closed")
					return
				}
				writeCtx, cancel := context.WithTimeout(ctx, time.Duration(constants.DefaultWebhookTimeoutSec)*time.Second)
				err := wsjson.Write(writeCtx, conn, envelope)
				cancel()
				if err != nil {
					log.WithField("subscriber", subscriberID).WithError(err).Debug("Subscriber write failed")
					conn.Close(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}
}

// handleRegisterMedia records a downloaded attachment path against a message
// so retention and cascade deletes can manage the file. Paths must resolve
// inside the session's media directory.
func (s *Server) handleRegisterMedia() http.HandlerFunc {
	type registerRequest struct {
		MessageID string `json:"messageId"`
		Path      string `json:"path"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionId"]

		session, err := s.deps.Registry.Get(sessionID)
		if err != nil {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validation.ValidateMessageID(req.MessageID); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Paths arrive relative to the session's media directory.
		mediaDir := filepath.Join(s.dataDir, "sessions", sessionID, "media")
		if err := security.ValidateFilePathWithBase(req.Path, mediaDir); err != nil {
			s.logger.WithField(service.LogFieldSession, sessionID).WithError(err).Warn("Rejected media path")
			http.Error(w, "invalid media path", http.StatusBadRequest)
			return
		}

		session.Store.RegisterMedia(req.MessageID, filepath.Join(mediaDir, req.Path))
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleEnqueueJob accepts one outbound job for the durable queue. The body
// carries the enqueue request minus the session id, which comes from the
// path.
func (s *Server) handleEnqueueJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionId"]

		if err := validation.ValidateHTTPRequestSize(r, constants.MaxHTTPRequestBytes); err != nil {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		if _, err := s.deps.Registry.Get(sessionID); err != nil {
			s.writeError(w, err)
			return
		}

		var req models.EnqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		req.SessionID = sessionID

		if err := validation.ValidateChatID(req.ChatID); err != nil {
			s.writeError(w, err)
			return
		}

		job, err := s.deps.Queue.Enqueue(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(job); err != nil {
			s.logger.WithError(err).Error("Failed to encode job response")
		}
	}
}

func (s *Server) handleJobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.deps.Queue.GetStatus(r.Context(), mux.Vars(r)["jobId"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, status)
	}
}

func (s *Server) handleStartBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateHTTPRequestSize(r, constants.MaxHTTPRequestBytes); err != nil {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}

		var req models.BulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		req.SessionID = mux.Vars(r)["sessionId"]

		campaignID, err := s.deps.Bulk.Start(&req)
		if err != nil {
			s.writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(map[string]string{"campaignId": campaignID}); err != nil {
			s.logger.WithError(err).Error("Failed to encode campaign response")
		}
	}
}

func (s *Server) handleListBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["sessionId"]
		if _, err := s.deps.Registry.Get(sessionID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, s.deps.Bulk.ListBySession(sessionID))
	}
}

func (s *Server) handleBulkStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign, err := s.deps.Bulk.GetStatus(mux.Vars(r)["campaignId"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, campaign)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Messages in the
// taxonomy are already safe to expose.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeSessionNotFound, apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}
