package service

import (
	"context"
	"sync"

	apperrors "dmrelay/internal/errors"
	"dmrelay/internal/metrics"
	"dmrelay/internal/models"
	"dmrelay/internal/privacy"
	"dmrelay/pkg/slackapi/types"

	"github.com/sirupsen/logrus"
)

// FileTransfer is the outbound file surface of the Slack client.
type FileTransfer interface {
	FetchFile(ctx context.Context, downloadURL string) ([]byte, error)
	UploadFile(ctx context.Context, channelID, threadTS string, file types.FileUpload) (*types.UploadedFile, error)
}

// Relocator re-hosts remotely held files into the notification channel.
// The first file it ever successfully relocates establishes a share
// thread; every later upload, across all requests, lands in that thread so
// forwarded files group together. The anchor lives for the process
// lifetime.
type Relocator struct {
	transfer  FileTransfer
	channelID string
	logger    *apperrors.Logger

	mu       sync.Mutex
	anchorTS string
}

// NewRelocator creates a relocator targeting the given channel.
func NewRelocator(transfer FileTransfer, channelID string, logger *logrus.Logger) *Relocator {
	return &Relocator{
		transfer:  transfer,
		channelID: channelID,
		logger:    apperrors.WrapLogger(logger),
	}
}

// RelocateAll re-hosts the given files and returns a map from original
// file ID to its relocated handle. Files that fail to fetch or upload are
// logged and omitted; one file's failure never aborts its siblings.
//
// Until the share-thread anchor exists, files are relocated one at a time
// so the anchor-establishing upload fully completes before any dependent
// upload reads it. Once the anchor is set the rest of the batch runs
// concurrently.
func (r *Relocator) RelocateAll(ctx context.Context, files []models.FileRef) map[string]types.UploadedFile {
	result := make(map[string]types.UploadedFile)
	if len(files) == 0 {
		return result
	}

	idx := 0
	anchor := r.anchorTimestamp()
	for idx < len(files) && anchor == "" {
		file := files[idx]
		idx++

		uploaded, err := r.relocate(ctx, file, "")
		if err != nil {
			r.logFailure(err, file)
			continue
		}
		result[file.ID] = *uploaded
		anchor = r.establishAnchor(uploaded.ThreadTS)
	}

	var wg sync.WaitGroup
	var resultMu sync.Mutex
	for _, file := range files[idx:] {
		wg.Add(1)
		go func(file models.FileRef) {
			defer wg.Done()

			uploaded, err := r.relocate(ctx, file, anchor)
			if err != nil {
				r.logFailure(err, file)
				return
			}
			resultMu.Lock()
			result[file.ID] = *uploaded
			resultMu.Unlock()
		}(file)
	}
	wg.Wait()

	return result
}

func (r *Relocator) relocate(ctx context.Context, file models.FileRef, threadTS string) (*types.UploadedFile, error) {
	data, err := r.transfer.FetchFile(ctx, file.DownloadURL)
	if err != nil {
		metrics.IncrementCounter("file_relocation_failures_total", map[string]string{"stage": "fetch"}, "File relocation failures")
		return nil, apperrors.NewFileFetchError(file.ID, err)
	}

	uploaded, err := r.transfer.UploadFile(ctx, r.channelID, threadTS, types.FileUpload{
		Name:     file.Name,
		Mimetype: file.Mimetype,
		Data:     data,
	})
	if err != nil {
		metrics.IncrementCounter("file_relocation_failures_total", map[string]string{"stage": "upload"}, "File relocation failures")
		return nil, apperrors.NewFileUploadError(file.Name, err)
	}

	metrics.IncrementCounter("files_relocated_total", nil, "Files re-hosted in the notification channel")
	return uploaded, nil
}

func (r *Relocator) anchorTimestamp() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.anchorTS
}

// establishAnchor stores the share-thread anchor if none is set yet and
// returns the effective anchor. The anchor is set at most once.
func (r *Relocator) establishAnchor(threadTS string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.anchorTS == "" && threadTS != "" {
		r.anchorTS = threadTS
		r.logger.WithFields(logrus.Fields{
			LogFieldThreadTS:  privacy.MaskMessageTS(threadTS),
			LogFieldComponent: "relocator",
		}).Info("Share thread anchor established")
	}
	return r.anchorTS
}

func (r *Relocator) logFailure(err error, file models.FileRef) {
	r.logger.LogWarn(err, "File relocation failed", logrus.Fields{
		LogFieldFileID:   file.ID,
		LogFieldFileName: file.Name,
		LogFieldURL:      privacy.MaskURL(file.DownloadURL),
	})
}
