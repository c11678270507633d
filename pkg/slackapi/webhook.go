package slackapi

import (
	"encoding/json"
	"fmt"

	"dmrelay/pkg/slackapi/types"
)

// Events API message subtypes the relay cares about.
const (
	SubTypeMessageChanged = "message_changed"
	SubTypeMessageDeleted = "message_deleted"
	SubTypeFileShare      = "file_share"
)

// EventEnvelope is the outer payload of an Events API request.
type EventEnvelope struct {
	Token     string          `json:"token"`
	Type      string          `json:"type"`
	Challenge string          `json:"challenge"`
	EventID   string          `json:"event_id"`
	TeamID    string          `json:"team_id"`
	Event     json.RawMessage `json:"event"`
}

// Envelope types.
const (
	EnvelopeURLVerification = "url_verification"
	EnvelopeEventCallback   = "event_callback"
)

// ParseEventEnvelope decodes the outer Events API payload.
func ParseEventEnvelope(body []byte) (*EventEnvelope, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	return &envelope, nil
}

// rawMessageEvent mirrors the wire shape of a message event, including the
// nested message objects used by the changed/deleted subtypes.
type rawMessageEvent struct {
	Type        string          `json:"type"`
	SubType     string          `json:"subtype"`
	User        string          `json:"user"`
	BotID       string          `json:"bot_id"`
	Channel     string          `json:"channel"`
	ChannelType string          `json:"channel_type"`
	Text        string          `json:"text"`
	TS          string          `json:"ts"`
	ThreadTS    string          `json:"thread_ts"`
	DeletedTS   string          `json:"deleted_ts"`
	Files       []types.FileRef `json:"files"`
	Edited      *struct {
		User string `json:"user"`
		TS   string `json:"ts"`
	} `json:"edited"`
	Message         *rawMessageEvent `json:"message"`
	PreviousMessage *rawMessageEvent `json:"previous_message"`
}

// ParseMessageEvent decodes and normalizes an inner message event. For
// message_changed the returned event carries the post-edit content under
// the edited message's own timestamp; for message_deleted it carries the
// deleted timestamp. Returns nil for message events the relay does not
// handle (other subtypes).
func ParseMessageEvent(raw json.RawMessage) (*types.MessageEvent, error) {
	var ev rawMessageEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message event: %w", err)
	}
	if ev.Type != "message" {
		return nil, nil
	}

	switch ev.SubType {
	case "", SubTypeFileShare:
		return &types.MessageEvent{
			ChannelID:   ev.Channel,
			ChannelType: ev.ChannelType,
			UserID:      ev.User,
			BotID:       ev.BotID,
			MessageTS:   ev.TS,
			ThreadTS:    ev.ThreadTS,
			Text:        ev.Text,
			Files:       ev.Files,
			Edited:      ev.Edited != nil,
		}, nil

	case SubTypeMessageChanged:
		if ev.Message == nil {
			return nil, fmt.Errorf("message_changed event without inner message")
		}
		return &types.MessageEvent{
			ChannelID:   ev.Channel,
			ChannelType: ev.ChannelType,
			UserID:      ev.Message.User,
			BotID:       ev.Message.BotID,
			MessageTS:   ev.Message.TS,
			ThreadTS:    ev.Message.ThreadTS,
			Text:        ev.Message.Text,
			Files:       ev.Message.Files,
			Edited:      true,
		}, nil

	case SubTypeMessageDeleted:
		deletedTS := ev.DeletedTS
		if deletedTS == "" && ev.PreviousMessage != nil {
			deletedTS = ev.PreviousMessage.TS
		}
		userID := ""
		if ev.PreviousMessage != nil {
			userID = ev.PreviousMessage.User
		}
		return &types.MessageEvent{
			ChannelID:   ev.Channel,
			ChannelType: ev.ChannelType,
			UserID:      userID,
			MessageTS:   ev.TS,
			DeletedTS:   deletedTS,
		}, nil
	}

	return nil, nil
}
