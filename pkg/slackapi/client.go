package slackapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"dmrelay/pkg/slackapi/types"

	"github.com/slack-go/slack"
)

// Client wraps the Slack Web API with the narrow surface the relay needs:
// posting and deleting messages, re-hosting files, and answering
// interaction response URLs.
type Client struct {
	api *slack.Client
}

// ClientConfig configures the Slack Web API client. APIURL overrides the
// Web API base URL; leave empty outside tests.
type ClientConfig struct {
	BotToken string
	APIURL   string
	Timeout  time.Duration
}

// NewClient creates a Slack Web API client.
func NewClient(cfg ClientConfig) *Client {
	opts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Client{
		api: slack.New(cfg.BotToken, opts...),
	}
}

// AuthTest resolves the bot's own identity and verifies the token.
func (c *Client) AuthTest(ctx context.Context) (*slack.AuthTestResponse, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth test failed: %w", err)
	}
	return resp, nil
}

// PostMessage sends a message to a channel and returns its timestamp.
func (c *Client) PostMessage(ctx context.Context, channelID string, msg types.Message) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	return ts, nil
}

// DeleteMessage removes one of the bot's own messages.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageTS string) error {
	if _, _, err := c.api.DeleteMessageContext(ctx, channelID, messageTS); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// RespondViaResponseURL replaces the message an interaction originated
// from, using the callback's response URL.
func (c *Client) RespondViaResponseURL(ctx context.Context, responseURL, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, "",
		slack.MsgOptionReplaceOriginal(responseURL),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("failed to respond via response URL: %w", err)
	}
	return nil
}

// FetchFile downloads a Slack-hosted file's bytes. The url_private
// endpoints require the bot token, which the underlying client supplies.
func (c *Client) FetchFile(ctx context.Context, downloadURL string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.api.GetFileContext(ctx, downloadURL, &buf); err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	return buf.Bytes(), nil
}

// UploadFile re-hosts a file in the given channel, threading it under
// threadTS when non-empty. The returned UploadedFile carries the share
// timestamp so the first upload of a batch can anchor the rest.
func (c *Client) UploadFile(ctx context.Context, channelID, threadTS string, file types.FileUpload) (*types.UploadedFile, error) {
	summary, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:         channelID,
		ThreadTimestamp: threadTS,
		Filename:        file.Name,
		Title:           file.Name,
		FileSize:        len(file.Data),
		Reader:          bytes.NewReader(file.Data),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	uploaded := &types.UploadedFile{
		ID:    summary.ID,
		Title: summary.Title,
	}

	// The upload response carries no permalink or share info; fetch them.
	info, _, _, err := c.api.GetFileInfoContext(ctx, summary.ID, 0, 0)
	if err != nil {
		return uploaded, nil
	}
	uploaded.Permalink = info.Permalink
	if uploaded.Title == "" {
		uploaded.Title = info.Title
	}
	// Private channels and groups report the share under Private.
	shares := info.Shares.Public[channelID]
	if len(shares) == 0 {
		shares = info.Shares.Private[channelID]
	}
	if len(shares) > 0 {
		uploaded.ThreadTS = shares[0].Ts
	}

	return uploaded, nil
}
