package types

import (
	"github.com/slack-go/slack"
)

// Message is an outbound chat message: plain text plus optional Block Kit
// layout. When Blocks is set, Text doubles as the notification fallback.
type Message struct {
	Text   string
	Blocks []slack.Block
}

// FileUpload carries the bytes and metadata for re-hosting one file.
type FileUpload struct {
	Name     string
	Mimetype string
	Data     []byte
}

// UploadedFile describes a file after it has been re-hosted in the
// destination channel. ThreadTS is the timestamp of the share message the
// upload produced; it is empty when Slack has not materialized the share
// yet.
type UploadedFile struct {
	ID        string
	Title     string
	Permalink string
	ThreadTS  string
}

// FileRef is the inbound view of an attached file, as delivered by the
// Events API.
type FileRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Mimetype    string `json:"mimetype"`
	URLPrivate  string `json:"url_private"`
	URLDownload string `json:"url_private_download"`
}

// DownloadURL returns the usable download URL of the file.
func (f FileRef) DownloadURL() string {
	if f.URLDownload != "" {
		return f.URLDownload
	}
	return f.URLPrivate
}

// MessageEvent is a normalized inbound message event. Exactly one of the
// three kinds applies: plain add (SubType empty or file_share), edit
// (message_changed, with the post-edit content), or delete
// (message_deleted, with DeletedTS set).
type MessageEvent struct {
	ChannelID   string
	ChannelType string
	UserID      string
	BotID       string
	MessageTS   string
	ThreadTS    string
	Text        string
	Files       []FileRef
	Edited      bool
	DeletedTS   string
}

// IsDirectMessage reports whether the event arrived on a one-to-one DM
// channel with the bot.
func (e *MessageEvent) IsDirectMessage() bool {
	if e.ChannelType != "" {
		return e.ChannelType == "im"
	}
	// Events API omits channel_type on some subtypes; DM channel IDs
	// start with "D".
	return len(e.ChannelID) > 0 && e.ChannelID[0] == 'D'
}
