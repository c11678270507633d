package service

import (
	"context"
	"io"
	"sync"

	"dmrelay/internal/models"
	"dmrelay/pkg/slackapi/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// Mock messenger
type mockMessenger struct {
	mock.Mock
	mu sync.Mutex
	// posted records PostMessage calls in order: channelID -> messages
	posted  []postedMessage
	deleted []deletedMessage
}

type postedMessage struct {
	channelID string
	msg       types.Message
}

type deletedMessage struct {
	channelID string
	messageTS string
}

func (m *mockMessenger) PostMessage(ctx context.Context, channelID string, msg types.Message) (string, error) {
	m.mu.Lock()
	m.posted = append(m.posted, postedMessage{channelID: channelID, msg: msg})
	m.mu.Unlock()

	args := m.Called(ctx, channelID, msg)
	return args.String(0), args.Error(1)
}

func (m *mockMessenger) DeleteMessage(ctx context.Context, channelID, messageTS string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, deletedMessage{channelID: channelID, messageTS: messageTS})
	m.mu.Unlock()

	args := m.Called(ctx, channelID, messageTS)
	return args.Error(0)
}

func (m *mockMessenger) RespondViaResponseURL(ctx context.Context, responseURL, text string) error {
	args := m.Called(ctx, responseURL, text)
	return args.Error(0)
}

func (m *mockMessenger) postedTo(channelID string) []types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var msgs []types.Message
	for _, p := range m.posted {
		if p.channelID == channelID {
			msgs = append(msgs, p.msg)
		}
	}
	return msgs
}

func (m *mockMessenger) deletedFrom(channelID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ts []string
	for _, d := range m.deleted {
		if d.channelID == channelID {
			ts = append(ts, d.messageTS)
		}
	}
	return ts
}

// Mock file transfer
type mockFileTransfer struct {
	mock.Mock
	mu      sync.Mutex
	uploads []uploadCall
}

type uploadCall struct {
	channelID string
	threadTS  string
	file      types.FileUpload
}

func (m *mockFileTransfer) FetchFile(ctx context.Context, downloadURL string) ([]byte, error) {
	args := m.Called(ctx, downloadURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockFileTransfer) UploadFile(ctx context.Context, channelID, threadTS string, file types.FileUpload) (*types.UploadedFile, error) {
	m.mu.Lock()
	m.uploads = append(m.uploads, uploadCall{channelID: channelID, threadTS: threadTS, file: file})
	m.mu.Unlock()

	args := m.Called(ctx, channelID, threadTS, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UploadedFile), args.Error(1)
}

func (m *mockFileTransfer) uploadCalls() []uploadCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]uploadCall, len(m.uploads))
	copy(calls, m.uploads)
	return calls
}

// Mock relocator
type mockRelocator struct {
	mock.Mock
}

func (m *mockRelocator) RelocateAll(ctx context.Context, files []models.FileRef) map[string]types.UploadedFile {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return map[string]types.UploadedFile{}
	}
	return args.Get(0).(map[string]types.UploadedFile)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
