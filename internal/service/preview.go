package service

import (
	"fmt"
	"strings"

	"dmrelay/internal/models"
	"dmrelay/pkg/slackapi/types"

	"github.com/slack-go/slack"
)

// Interactive control identifiers. The actions endpoint routes callbacks
// carrying this block ID back to the aggregator.
const (
	DecisionBlockID = "request_decision"
	ActionSubmit    = "submit"
	ActionCancel    = "cancel"
)

// FileNameResolver maps a file reference to the title and link rendered
// for it. Returning ok=false drops the file's line.
type FileNameResolver func(file models.FileRef) (title, link string, ok bool)

// IdentityResolver renders a file under its original name and hosted URL.
// Used for the preview, before any re-hosting has happened.
func IdentityResolver(file models.FileRef) (string, string, bool) {
	return file.Name, file.DownloadURL, true
}

// RelocatedResolver renders files under their re-hosted identity, dropping
// files that failed to relocate.
func RelocatedResolver(relocated map[string]types.UploadedFile) FileNameResolver {
	return func(file models.FileRef) (string, string, bool) {
		up, ok := relocated[file.ID]
		if !ok {
			return "", "", false
		}
		return up.Title, up.Permalink, true
	}
}

// RenderItems produces the itemized request body: each item's text in
// arrival order, followed by one "title: link" line per attached file.
func RenderItems(items []models.PendingItem, resolver FileNameResolver) string {
	var b strings.Builder
	for _, item := range items {
		if item.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(item.Text)
		}
		for _, file := range item.Files {
			title, link, ok := resolver(file)
			if !ok {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: %s", title, link)
		}
	}
	return b.String()
}

// RenderPreview produces the preview message for the pending request:
// the itemized body plus the Send/Cancel controls, or a bare warning when
// the request has grown past maxItems.
func RenderPreview(items []models.PendingItem, maxItems int) types.Message {
	if len(items) > maxItems {
		return types.Message{
			Text: fmt.Sprintf(
				"You have more than %d pending messages. Please delete some before sending the request.",
				maxItems,
			),
		}
	}

	body := "Your pending request:\n" + RenderItems(items, IdentityResolver)

	return types.Message{
		Text: body,
		Blocks: []slack.Block{
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, body, false, false),
				nil, nil,
			),
			slack.NewActionBlock(
				DecisionBlockID,
				slack.NewButtonBlockElement(
					ActionSubmit, ActionSubmit,
					slack.NewTextBlockObject(slack.PlainTextType, "Send request", false, false),
				).WithStyle(slack.StylePrimary),
				slack.NewButtonBlockElement(
					ActionCancel, ActionCancel,
					slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
				).WithStyle(slack.StyleDanger),
			),
		},
	}
}
