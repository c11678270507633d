package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dmrelay/internal/constants"
	"dmrelay/internal/middleware"
	"dmrelay/internal/models"
	"dmrelay/internal/service"
	"dmrelay/internal/tracing"
	"dmrelay/pkg/slackapi"
	slacktypes "dmrelay/pkg/slackapi/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

type Server struct {
	router        *mux.Router
	logger        *logrus.Logger
	aggregator    *service.Aggregator
	signingSecret string
	port          int
	server        *http.Server
}

func NewServer(aggregator *service.Aggregator, cfg *models.Config, logger *logrus.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		aggregator:    aggregator,
		signingSecret: cfg.Slack.SigningSecret,
		port:          cfg.Server.Port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Slack Events API: message add/edit/delete intake
	s.router.HandleFunc("/slack/events", s.handleEvents()).Methods(http.MethodPost)

	// Interactive callbacks (the original mounted these under /actions)
	s.router.HandleFunc("/actions", s.handleActions()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.Warnf("Failed to write health response: %v", err)
		}
	}
}

// verifiedBody reads the request body and checks the Slack signature
// headers against the app signing secret.
func (s *Server) verifiedBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, constants.DefaultWebhookMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature verifier: %w", err)
	}
	if _, err := verifier.Write(body); err != nil {
		return nil, fmt.Errorf("failed to hash request body: %w", err)
	}
	if err := verifier.Ensure(); err != nil {
		return nil, fmt.Errorf("signature mismatch: %w", err)
	}

	return body, nil
}

func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestInfo := tracing.GetRequestInfo(r.Context())

		body, err := s.verifiedBody(r)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: requestInfo.RequestID,
				"error":                   err,
			}).Warn("Rejected events request")
			http.Error(w, "invalid request", http.StatusUnauthorized)
			return
		}

		envelope, err := slackapi.ParseEventEnvelope(body)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		switch envelope.Type {
		case slackapi.EnvelopeURLVerification:
			w.Header().Set("Content-Type", "text/plain")
			if _, err := w.Write([]byte(envelope.Challenge)); err != nil {
				s.logger.Warnf("Failed to write challenge response: %v", err)
			}

		case slackapi.EnvelopeEventCallback:
			ev, err := slackapi.ParseMessageEvent(envelope.Event)
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					service.LogFieldRequestID: requestInfo.RequestID,
					"error":                   err,
				}).Warn("Failed to parse message event")
				w.WriteHeader(http.StatusOK)
				return
			}
			if ev != nil {
				s.dispatchMessageEvent(r.Context(), ev)
			}
			w.WriteHeader(http.StatusOK)

		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}

// dispatchMessageEvent applies the queue mutation synchronously so events
// for the same user are processed in delivery order; the aggregator defers
// all outbound calls to the background.
func (s *Server) dispatchMessageEvent(ctx context.Context, ev *slacktypes.MessageEvent) {
	switch {
	case ev.DeletedTS != "":
		s.aggregator.HandleMessageDeleted(ctx, ev)
	case ev.Edited:
		s.aggregator.HandleMessageEdited(ctx, ev)
	default:
		s.aggregator.HandleMessageAdded(ctx, ev)
	}
}

func (s *Server) handleActions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestInfo := tracing.GetRequestInfo(r.Context())

		body, err := s.verifiedBody(r)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: requestInfo.RequestID,
				"error":                   err,
			}).Warn("Rejected actions request")
			http.Error(w, "invalid request", http.StatusUnauthorized)
			return
		}

		callback, err := parseInteractionCallback(body)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		decision, ok := decisionFromCallback(callback)
		if !ok {
			w.WriteHeader(http.StatusOK)
			return
		}

		resp := s.aggregator.ResolveDecision(r.Context(), decision)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"replace_original": true,
			"text":             resp.Text,
		}); err != nil {
			s.logger.Warnf("Failed to write callback response: %v", err)
		}
	}
}

// parseInteractionCallback decodes the form-encoded interaction payload.
func parseInteractionCallback(body []byte) (*slack.InteractionCallback, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form body: %w", err)
	}
	payload := values.Get("payload")
	if payload == "" {
		return nil, fmt.Errorf("missing payload field")
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interaction callback: %w", err)
	}
	return &callback, nil
}

// decisionFromCallback extracts the confirm/cancel decision, ignoring
// callbacks for other blocks.
func decisionFromCallback(callback *slack.InteractionCallback) (service.Decision, bool) {
	if callback.Type != slack.InteractionTypeBlockActions {
		return service.Decision{}, false
	}
	for _, action := range callback.ActionCallback.BlockActions {
		if action.BlockID != service.DecisionBlockID {
			continue
		}
		return service.Decision{
			UserID:      callback.User.ID,
			Action:      action.Value,
			ResponseURL: callback.ResponseURL,
		}, true
	}
	return service.Decision{}, false
}
