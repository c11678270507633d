package service

import (
	"context"
	"fmt"
	"time"

	apperrors "dmrelay/internal/errors"
	"dmrelay/internal/metrics"
	"dmrelay/internal/models"
	"dmrelay/internal/privacy"
	"dmrelay/internal/tracing"
	"dmrelay/pkg/slackapi/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Messenger is the outbound messaging surface of the Slack client.
type Messenger interface {
	PostMessage(ctx context.Context, channelID string, msg types.Message) (string, error)
	DeleteMessage(ctx context.Context, channelID, messageTS string) error
	RespondViaResponseURL(ctx context.Context, responseURL, text string) error
}

// FileRelocator re-hosts files into the notification channel.
type FileRelocator interface {
	RelocateAll(ctx context.Context, files []models.FileRef) map[string]types.UploadedFile
}

// Decision is a user's choice delivered through the interactive callback.
type Decision struct {
	UserID      string
	Action      string
	ResponseURL string
}

// CallbackResponse is the synchronous reply to an interactive callback; it
// replaces the message the buttons were attached to.
type CallbackResponse struct {
	Text string
}

// User-facing copy.
const (
	msgSending       = "Sending your request..."
	msgSent          = "Thanks, office team was notified"
	msgCanceled      = "Request canceled."
	msgForwardFailed = "Couldn't deliver your request. It will be shown again shortly."
)

// Aggregator wires the inbound event stream and the interactive callback
// channel to the request store, the preview renderer and the file
// relocator. Queue mutations happen synchronously in event order; all
// outbound messaging happens asynchronously afterwards.
type Aggregator struct {
	store     *RequestStore
	messenger Messenger
	relocator FileRelocator
	logger    *apperrors.Logger

	botUserID           string
	notificationChannel string
	maxItems            int
	resyncDelay         time.Duration
}

// AggregatorConfig configures the aggregator.
type AggregatorConfig struct {
	BotUserID           string
	NotificationChannel string
	MaxPendingItems     int
	ResyncDelay         time.Duration
}

// NewAggregator creates the orchestrator.
func NewAggregator(store *RequestStore, messenger Messenger, relocator FileRelocator, cfg AggregatorConfig, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		store:               store,
		messenger:           messenger,
		relocator:           relocator,
		logger:              apperrors.WrapLogger(logger),
		botUserID:           cfg.BotUserID,
		notificationChannel: cfg.NotificationChannel,
		maxItems:            cfg.MaxPendingItems,
		resyncDelay:         cfg.ResyncDelay,
	}
}

// HandleMessageAdded processes a new direct message. Events carrying an
// edit marker, thread replies, the bot's own messages and messages outside
// DM channels are ignored. The queue mutation is applied before this
// returns; the preview resync runs in the background.
func (a *Aggregator) HandleMessageAdded(ctx context.Context, ev *types.MessageEvent) {
	if ev.Edited || ev.ThreadTS != "" || !ev.IsDirectMessage() {
		return
	}
	if ev.BotID != "" || ev.UserID == "" || ev.UserID == a.botUserID {
		return
	}

	token := a.store.Append(ev.UserID, ev.ChannelID, toPendingItem(ev))
	metrics.IncrementCounter("request_items_added_total", nil, "Pending items added")

	a.logger.WithFields(logrus.Fields{
		LogFieldUserID:    privacy.MaskUserID(ev.UserID),
		LogFieldMessageTS: privacy.MaskMessageTS(ev.MessageTS),
		LogFieldItemCount: len(token.Items),
	}).Debug("Pending item added")

	go a.resync(context.WithoutCancel(ctx), token)
}

// HandleMessageEdited replaces the matching pending item in place with the
// post-edit content. A no-op when the user has no queue or the message is
// not part of it.
func (a *Aggregator) HandleMessageEdited(ctx context.Context, ev *types.MessageEvent) {
	if !ev.IsDirectMessage() || ev.BotID != "" || ev.UserID == "" || ev.UserID == a.botUserID {
		return
	}

	token, ok := a.store.ApplyEdit(ev.UserID, toPendingItem(ev))
	if !ok {
		return
	}
	metrics.IncrementCounter("request_items_edited_total", nil, "Pending items edited in place")

	go a.resync(context.WithoutCancel(ctx), token)
}

// HandleMessageDeleted removes the matching pending item, or cancels the
// whole request when the user deleted the live preview message.
func (a *Aggregator) HandleMessageDeleted(ctx context.Context, ev *types.MessageEvent) {
	if !ev.IsDirectMessage() || ev.DeletedTS == "" {
		return
	}

	// Deleting the bot's preview reports the bot as the author; resolve
	// the queue owner through the DM channel instead.
	userID := ev.UserID
	if userID == "" || userID == a.botUserID {
		owner, ok := a.store.LookupUserByChannel(ev.ChannelID)
		if !ok {
			return
		}
		userID = owner
	}

	token, result := a.store.Remove(userID, ev.DeletedTS)
	switch result {
	case RemoveCancel:
		metrics.IncrementCounter("requests_canceled_total", map[string]string{"via": "preview_delete"}, "Requests canceled")
		a.logger.WithFields(logrus.Fields{
			LogFieldUserID: privacy.MaskUserID(userID),
		}).Info("User deleted the preview message, request canceled")
	case RemoveItem:
		metrics.IncrementCounter("request_items_removed_total", nil, "Pending items removed")
		go a.resync(context.WithoutCancel(ctx), token)
	}
}

// ResolveDecision handles a confirm/cancel callback and returns the
// synchronous replacement for the preview message. On submit the forward
// runs in the background while the user immediately sees an interim
// sending indicator.
func (a *Aggregator) ResolveDecision(ctx context.Context, decision Decision) CallbackResponse {
	queue, ok := a.store.Snapshot(decision.UserID)
	if !ok {
		err := apperrors.NewRequestNotFoundError(decision.UserID)
		a.logger.WithFields(logrus.Fields{
			LogFieldUserID: privacy.MaskUserID(decision.UserID),
			LogFieldAction: decision.Action,
		}).Info("Callback for unknown request")
		return CallbackResponse{Text: apperrors.GetUserMessage(err)}
	}

	switch decision.Action {
	case ActionCancel:
		a.store.Discard(decision.UserID)
		metrics.IncrementCounter("requests_canceled_total", map[string]string{"via": "button"}, "Requests canceled")
		a.logger.WithFields(logrus.Fields{
			LogFieldUserID:    privacy.MaskUserID(decision.UserID),
			LogFieldItemCount: len(queue.Items),
		}).Info("Request canceled")
		return CallbackResponse{Text: msgCanceled}

	case ActionSubmit:
		go a.forward(context.WithoutCancel(ctx), decision)
		return CallbackResponse{Text: msgSending}
	}

	a.logger.WithFields(logrus.Fields{
		LogFieldAction: decision.Action,
	}).Warn("Unknown callback action")
	return CallbackResponse{Text: apperrors.GetUserMessage(nil)}
}

// resync realigns the live preview with the queue state captured in the
// token: delete the old preview, then, unless the queue drained, send a
// fresh one and record its timestamp. A stale send (a newer resync has
// started meanwhile) removes its own message so at most one preview is
// ever live.
func (a *Aggregator) resync(ctx context.Context, token ResyncToken) {
	ctx, span := tracing.StartSpan(ctx, "preview_resync",
		attribute.Int("resync.item_count", len(token.Items)),
	)
	defer span.End()
	start := time.Now()

	if token.OldTS != "" {
		if err := a.messenger.DeleteMessage(ctx, token.ChannelID, token.OldTS); err != nil {
			a.logger.LogWarn(apperrors.NewDeleteError(token.ChannelID, token.OldTS, err), "Failed to delete stale preview")
		}
	}

	if len(token.Items) == 0 {
		return
	}

	preview := RenderPreview(token.Items, a.maxItems)
	previewTS, err := a.messenger.PostMessage(ctx, token.ChannelID, preview)
	if err != nil {
		// The user has no preview until their next message event triggers
		// another resync; queue state stays intact.
		a.logger.LogError(apperrors.NewSendError(token.ChannelID, err), "Failed to send preview", logrus.Fields{
			LogFieldUserID:    privacy.MaskUserID(token.UserID),
			LogFieldResyncSeq: token.Seq,
		})
		return
	}

	if !a.store.CommitPreview(token, previewTS) {
		// A newer resync owns the preview now; withdraw ours.
		if err := a.messenger.DeleteMessage(ctx, token.ChannelID, previewTS); err != nil {
			a.logger.LogWarn(apperrors.NewDeleteError(token.ChannelID, previewTS, err), "Failed to withdraw superseded preview")
		}
		return
	}

	metrics.RecordTimer("preview_resync_duration", time.Since(start), nil, "Preview resync duration")
}

// forward delivers the aggregated request to the notification channel:
// re-host all files, render the final body with the relocated names, post
// it with the requester attribution, acknowledge the callback, and retire
// the queue. Individual file failures only drop their lines.
func (a *Aggregator) forward(ctx context.Context, decision Decision) {
	ctx, span := tracing.StartSpan(ctx, "request_forward")
	defer span.End()
	start := time.Now()

	queue, ok := a.store.Snapshot(decision.UserID)
	if !ok {
		// Canceled between callback and forward.
		return
	}

	files := queue.Files()
	relocated := a.relocator.RelocateAll(ctx, files)

	body := RenderItems(queue.Items, RelocatedResolver(relocated))
	text := fmt.Sprintf("<@%s> &gt; %s", queue.UserID, body)

	if _, err := a.messenger.PostMessage(ctx, a.notificationChannel, types.Message{Text: text}); err != nil {
		fwdErr := apperrors.NewForwardError(decision.UserID, err)
		tracing.RecordError(ctx, fwdErr)
		metrics.IncrementCounter("request_forward_failures_total", nil, "Failed forwards")
		a.logger.LogError(fwdErr, "Failed to forward request", logrus.Fields{
			LogFieldUserID:    privacy.MaskUserID(decision.UserID),
			LogFieldItemCount: len(queue.Items),
			LogFieldFileCount: len(files),
		})

		if err := a.messenger.RespondViaResponseURL(ctx, decision.ResponseURL, apperrors.GetUserMessage(fwdErr)); err != nil {
			a.logger.LogWarn(apperrors.Wrap(err, apperrors.ErrCodeSlackSend, "failed to deliver failure notice"), "Failed to notify user of forward failure")
		}

		// Show the pending request again so the user can retry.
		select {
		case <-time.After(a.resyncDelay):
		case <-ctx.Done():
			return
		}
		if token, ok := a.store.Refresh(decision.UserID); ok {
			a.resync(ctx, token)
		}
		return
	}

	if err := a.messenger.RespondViaResponseURL(ctx, decision.ResponseURL, msgSent); err != nil {
		a.logger.LogWarn(apperrors.Wrap(err, apperrors.ErrCodeSlackSend, "failed to deliver success notice"), "Failed to acknowledge submit")
	}

	a.store.Discard(decision.UserID)

	metrics.IncrementCounter("requests_forwarded_total", nil, "Requests forwarded to the notification channel")
	metrics.RecordTimer("request_forward_duration", time.Since(start), nil, "Forward duration")
	a.logger.WithFields(logrus.Fields{
		LogFieldUserID:    privacy.MaskUserID(decision.UserID),
		LogFieldItemCount: len(queue.Items),
		LogFieldFileCount: len(files),
		LogFieldDuration:  time.Since(start).Milliseconds(),
	}).Info("Request forwarded")
}

func toPendingItem(ev *types.MessageEvent) models.PendingItem {
	item := models.PendingItem{
		MessageTS: ev.MessageTS,
		Text:      ev.Text,
	}
	for _, f := range ev.Files {
		item.Files = append(item.Files, models.FileRef{
			ID:          f.ID,
			Name:        f.Name,
			Mimetype:    f.Mimetype,
			DownloadURL: f.DownloadURL(),
		})
	}
	return item
}
