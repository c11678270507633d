package models

// FileRef is a reference to a file hosted by the chat platform, attached to
// an inbound direct message. The relay only cares about these fields; the
// rest of the platform's file object is opaque.
type FileRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Mimetype    string `json:"mimetype"`
	DownloadURL string `json:"downloadUrl"`
}

// PendingItem is one inbound direct message that is part of a pending
// request. Identity is the platform-assigned message timestamp, which stays
// stable across edits of the same message.
type PendingItem struct {
	MessageTS string    `json:"messageTs"`
	Text      string    `json:"text"`
	Files     []FileRef `json:"files,omitempty"`
}

// RequestQueue aggregates one user's pending request: the DM channel it is
// being assembled on, the items in arrival order, and the timestamp of the
// preview message currently shown to the user (empty when none is live).
type RequestQueue struct {
	UserID    string        `json:"userId"`
	ChannelID string        `json:"channelId"`
	Items     []PendingItem `json:"items"`
	PreviewTS string        `json:"previewTs,omitempty"`
}

// Files returns all file references across the queue's items, flattened in
// item order.
func (q *RequestQueue) Files() []FileRef {
	var files []FileRef
	for _, item := range q.Items {
		files = append(files, item.Files...)
	}
	return files
}
