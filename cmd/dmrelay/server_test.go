package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"dmrelay/internal/models"
	"dmrelay/internal/service"
	"dmrelay/pkg/slackapi/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

type stubMessenger struct {
	mu     sync.Mutex
	posted []string
}

func (s *stubMessenger) PostMessage(ctx context.Context, channelID string, msg types.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted = append(s.posted, channelID)
	return fmt.Sprintf("%d.000000", len(s.posted)), nil
}

func (s *stubMessenger) DeleteMessage(ctx context.Context, channelID, messageTS string) error {
	return nil
}

func (s *stubMessenger) RespondViaResponseURL(ctx context.Context, responseURL, text string) error {
	return nil
}

type stubRelocator struct{}

func (s *stubRelocator) RelocateAll(ctx context.Context, files []models.FileRef) map[string]types.UploadedFile {
	return map[string]types.UploadedFile{}
}

func newTestServer(t *testing.T) (*Server, *service.RequestStore) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := service.NewRequestStore()
	aggregator := service.NewAggregator(store, &stubMessenger{}, &stubRelocator{}, service.AggregatorConfig{
		BotUserID:           "UBOT",
		NotificationChannel: "CNOTIFY",
		MaxPendingItems:     10,
		ResyncDelay:         10 * time.Millisecond,
	}, logger)

	cfg := &models.Config{
		NotificationChannel: "CNOTIFY",
	}
	cfg.Slack.SigningSecret = testSigningSecret
	cfg.Server.Port = 0

	return NewServer(aggregator, cfg, logger), store
}

// signedRequest builds a POST with valid Slack signature headers.
func signedRequest(t *testing.T, path, contentType string, body []byte) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	base := fmt.Sprintf("v0:%s:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte(base))

	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func eventCallbackBody(t *testing.T, event string) []byte {
	t.Helper()
	return []byte(fmt.Sprintf(`{"type":"event_callback","event_id":"Ev1","event":%s}`, event))
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload, "uptime_ms")
}

func TestServer_EventsRejectsBadSignature(t *testing.T) {
	server, _ := newTestServer(t)

	body := []byte(`{"type":"url_verification","challenge":"abc"}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_EventsURLVerification(t *testing.T) {
	server, _ := newTestServer(t)

	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", rec.Body.String())
}

func TestServer_EventsInvalidPayload(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/slack/events", "application/json", []byte(`{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_EventsMessageAdded(t *testing.T) {
	server, store := newTestServer(t)

	event := `{"type":"message","user":"U1","channel":"D1","channel_type":"im","text":"need help","ts":"1.0"}`
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/slack/events", "application/json", eventCallbackBody(t, event)))

	require.Equal(t, http.StatusOK, rec.Code)

	queue, ok := store.Snapshot("U1")
	require.True(t, ok)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, "need help", queue.Items[0].Text)
}

func TestServer_EventsMessageEditedAndDeleted(t *testing.T) {
	server, store := newTestServer(t)

	post := func(event string) {
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, signedRequest(t, "/slack/events", "application/json", eventCallbackBody(t, event)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	post(`{"type":"message","user":"U1","channel":"D1","channel_type":"im","text":"one","ts":"1.0"}`)
	post(`{"type":"message","user":"U1","channel":"D1","channel_type":"im","text":"two","ts":"2.0"}`)
	post(`{"type":"message","subtype":"message_changed","channel":"D1","channel_type":"im","ts":"3.0",
		"message":{"type":"message","user":"U1","text":"one, edited","ts":"1.0","edited":{"user":"U1","ts":"3.0"}}}`)
	post(`{"type":"message","subtype":"message_deleted","channel":"D1","channel_type":"im","ts":"4.0","deleted_ts":"2.0",
		"previous_message":{"type":"message","user":"U1","ts":"2.0"}}`)

	queue, ok := store.Snapshot("U1")
	require.True(t, ok)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, "one, edited", queue.Items[0].Text)
}

func TestServer_EventsIgnoresUnknownEnvelope(t *testing.T) {
	server, _ := newTestServer(t)

	body := []byte(`{"type":"app_rate_limited"}`)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/slack/events", "application/json", body))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func actionsBody(t *testing.T, blockID, value string) []byte {
	t.Helper()

	payload := fmt.Sprintf(`{
		"type": "block_actions",
		"user": {"id": "U1"},
		"response_url": "https://hooks.example.com/r1",
		"actions": [{"type": "button", "block_id": %q, "action_id": %q, "value": %q}]
	}`, blockID, value, value)

	form := url.Values{"payload": {payload}}
	return []byte(form.Encode())
}

func TestServer_ActionsCancel(t *testing.T) {
	server, store := newTestServer(t)
	store.Append("U1", "D1", models.PendingItem{MessageTS: "1.0", Text: "hello"})

	body := actionsBody(t, service.DecisionBlockID, service.ActionCancel)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/actions", "application/x-www-form-urlencoded", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ReplaceOriginal bool   `json:"replace_original"`
		Text            string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ReplaceOriginal)
	assert.Equal(t, "Request canceled.", resp.Text)

	_, ok := store.Snapshot("U1")
	assert.False(t, ok)
}

func TestServer_ActionsSubmit(t *testing.T) {
	server, store := newTestServer(t)
	store.Append("U1", "D1", models.PendingItem{MessageTS: "1.0", Text: "hello"})

	body := actionsBody(t, service.DecisionBlockID, service.ActionSubmit)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/actions", "application/x-www-form-urlencoded", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sending your request...")

	require.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestServer_ActionsUnknownRequest(t *testing.T) {
	server, _ := newTestServer(t)

	body := actionsBody(t, service.DecisionBlockID, service.ActionSubmit)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/actions", "application/x-www-form-urlencoded", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request not found")
}

func TestServer_ActionsIgnoresOtherBlocks(t *testing.T) {
	server, _ := newTestServer(t)

	body := actionsBody(t, "some_other_block", "click")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, signedRequest(t, "/actions", "application/x-www-form-urlencoded", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestServer_ActionsRejectsBadSignature(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/actions", bytes.NewReader(actionsBody(t, service.DecisionBlockID, service.ActionCancel)))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
