package service

import (
	"sync"

	"dmrelay/internal/models"
)

// RemoveResult describes the outcome of a Remove call.
type RemoveResult int

const (
	// RemoveNoQueue means the user had no pending request.
	RemoveNoQueue RemoveResult = iota
	// RemoveNotFound means no pending item matched the timestamp.
	RemoveNotFound
	// RemoveItem means a pending item was removed.
	RemoveItem
	// RemoveCancel means the user deleted the live preview message, which
	// cancels the whole request.
	RemoveCancel
)

// ResyncToken is the snapshot a mutation hands to the preview resync. It
// captures the queue state at mutation time plus the sequence number the
// resync must present when recording the new preview timestamp.
type ResyncToken struct {
	UserID    string
	ChannelID string
	Seq       uint64
	OldTS     string
	Items     []models.PendingItem
}

type queueState struct {
	queue models.RequestQueue
	// seq increments on every mutation; a resync may only record its
	// preview timestamp while it still holds the latest seq.
	seq uint64
}

// RequestStore is the process-wide keyed store of pending requests. All
// request state is in memory and reset on process start.
type RequestStore struct {
	mu     sync.Mutex
	queues map[string]*queueState
}

// NewRequestStore creates an empty store.
func NewRequestStore() *RequestStore {
	return &RequestStore{
		queues: make(map[string]*queueState),
	}
}

// Append adds a pending item to the user's queue, creating the queue if
// absent, and returns the resync token for the mutation.
func (s *RequestStore) Append(userID, channelID string, item models.PendingItem) ResyncToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[userID]
	if !ok {
		qs = &queueState{
			queue: models.RequestQueue{UserID: userID, ChannelID: channelID},
		}
		s.queues[userID] = qs
	}
	qs.queue.Items = append(qs.queue.Items, item)

	return s.tokenLocked(userID, qs)
}

// ApplyEdit replaces the item with the matching message timestamp in
// place, preserving its position. Returns false (no token) when the user
// has no queue or no item matches.
func (s *RequestStore) ApplyEdit(userID string, item models.PendingItem) (ResyncToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[userID]
	if !ok {
		return ResyncToken{}, false
	}

	for i := range qs.queue.Items {
		if qs.queue.Items[i].MessageTS == item.MessageTS {
			qs.queue.Items[i] = item
			return s.tokenLocked(userID, qs), true
		}
	}
	return ResyncToken{}, false
}

// Remove handles a message deletion. Deleting the live preview message
// cancels the request outright; deleting a pending item removes it without
// reordering the survivors.
func (s *RequestStore) Remove(userID, messageTS string) (ResyncToken, RemoveResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[userID]
	if !ok {
		return ResyncToken{}, RemoveNoQueue
	}

	if qs.queue.PreviewTS != "" && messageTS == qs.queue.PreviewTS {
		delete(s.queues, userID)
		return ResyncToken{}, RemoveCancel
	}

	for i := range qs.queue.Items {
		if qs.queue.Items[i].MessageTS == messageTS {
			qs.queue.Items = append(qs.queue.Items[:i], qs.queue.Items[i+1:]...)
			return s.tokenLocked(userID, qs), RemoveItem
		}
	}
	return ResyncToken{}, RemoveNotFound
}

// Refresh bumps the resync sequence without changing items, so the
// current state can be re-rendered (used after a failed forward).
func (s *RequestStore) Refresh(userID string) (ResyncToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[userID]
	if !ok {
		return ResyncToken{}, false
	}
	return s.tokenLocked(userID, qs), true
}

// CommitPreview records the timestamp of a freshly sent preview message,
// but only if no newer resync has started since the token was issued.
// Returns false when the send is stale and the caller should remove the
// message it just sent.
func (s *RequestStore) CommitPreview(token ResyncToken, previewTS string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[token.UserID]
	if !ok || qs.seq != token.Seq {
		return false
	}
	qs.queue.PreviewTS = previewTS
	return true
}

// Snapshot returns a copy of the user's queue.
func (s *RequestStore) Snapshot(userID string) (models.RequestQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[userID]
	if !ok {
		return models.RequestQueue{}, false
	}
	return copyQueue(&qs.queue), true
}

// Discard removes the user's queue and returns its final state.
func (s *RequestStore) Discard(userID string) (models.RequestQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, ok := s.queues[userID]
	if !ok {
		return models.RequestQueue{}, false
	}
	delete(s.queues, userID)
	return copyQueue(&qs.queue), true
}

// LookupUserByChannel resolves the owner of the queue assembled on the
// given DM channel. Deletion events for the bot's own preview message do
// not carry the requesting user's id, only the channel.
func (s *RequestStore) LookupUserByChannel(channelID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, qs := range s.queues {
		if qs.queue.ChannelID == channelID {
			return userID, true
		}
	}
	return "", false
}

// Len returns the number of pending requests.
func (s *RequestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// tokenLocked builds the resync token for the current mutation: bump the
// sequence, capture the old preview timestamp and clear it immediately so
// a concurrent resync cannot double-delete, and discard the queue when it
// has drained.
func (s *RequestStore) tokenLocked(userID string, qs *queueState) ResyncToken {
	qs.seq++
	token := ResyncToken{
		UserID:    userID,
		ChannelID: qs.queue.ChannelID,
		Seq:       qs.seq,
		OldTS:     qs.queue.PreviewTS,
		Items:     copyItems(qs.queue.Items),
	}
	qs.queue.PreviewTS = ""

	if len(qs.queue.Items) == 0 {
		delete(s.queues, userID)
	}
	return token
}

func copyQueue(q *models.RequestQueue) models.RequestQueue {
	out := *q
	out.Items = copyItems(q.Items)
	return out
}

func copyItems(items []models.PendingItem) []models.PendingItem {
	if items == nil {
		return nil
	}
	out := make([]models.PendingItem, len(items))
	copy(out, items)
	return out
}
