// Package spool processes dictation files dropped into a local folder,
// bypassing the relational database entirely. Useful for ad-hoc files
// and for exercising the extraction/transcription path in isolation.
package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"dictascribe/internal/srencoder"
	"dictascribe/internal/statusstore"
	"dictascribe/internal/transcriber"
)

// settleDelay gives a copy-in-progress time to finish before the file is
// parsed.
const settleDelay = 500 * time.Millisecond

type Extractor interface {
	Extract(ctx context.Context, dcmPath string) (string, error)
}

// Watcher runs the spool-folder loop: an initial scan of existing files,
// then fsnotify events for new arrivals. Processed files move to the
// processed folder so a restart never re-transcribes them.
type Watcher struct {
	folder     string
	processed  string
	extractor  Extractor
	transcribe transcriber.Transcriber
	encoder    srencoder.Encoder
	status     statusstore.Store
	log        *logrus.Entry
}

func NewWatcher(
	folder, processed string,
	extractor Extractor,
	tr transcriber.Transcriber,
	encoder srencoder.Encoder,
	status statusstore.Store,
	log *logrus.Entry,
) *Watcher {
	return &Watcher{
		folder:     folder,
		processed:  processed,
		extractor:  extractor,
		transcribe: tr,
		encoder:    encoder,
		status:     status,
		log:        log,
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.folder, 0o755); err != nil {
		return fmt.Errorf("create spool folder: %w", err)
	}
	if err := os.MkdirAll(w.processed, 0o755); err != nil {
		return fmt.Errorf("create processed folder: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.folder); err != nil {
		return fmt.Errorf("watch spool folder: %w", err)
	}

	w.log.WithField("folder", w.folder).Info("spool watching started")

	// Files that were already waiting when we started.
	entries, err := os.ReadDir(w.folder)
	if err != nil {
		return fmt.Errorf("scan spool folder: %w", err)
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil
		}
		if entry.IsDir() || !isDictationFile(entry.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(w.folder, entry.Name()))
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("spool watching stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isDictationFile(filepath.Base(event.Name)) {
				continue
			}
			time.Sleep(settleDelay)
			if _, err := os.Stat(event.Name); err != nil {
				continue // moved or deleted before we got to it
			}
			w.process(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("spool watcher error")
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	key := spoolKey(path)
	log := w.log.WithField("file", filepath.Base(path))
	log.Info("processing spooled file")

	w.setStatus(ctx, key, statusstore.StatusUpdate{
		Status:    statusstore.StatusProcessingAudio,
		DicomPath: path,
	})

	audioPath, err := w.extractor.Extract(ctx, path)
	if err != nil {
		log.WithError(err).Error("spool audio extraction failed")
		w.setStatus(ctx, key, statusstore.StatusUpdate{
			Status:       statusstore.StatusError,
			ErrorMessage: fmt.Sprintf("Audio extraction failed: %v", err),
		})
		return
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			log.WithError(err).Warn("failed to delete temporary audio file")
		}
	}()

	w.setStatus(ctx, key, statusstore.StatusUpdate{Status: statusstore.StatusTranscribing})
	res, err := w.transcribe.Transcribe(ctx, path, audioPath)
	if err != nil || res == nil {
		log.WithError(err).Error("spool transcription failed")
		w.setStatus(ctx, key, statusstore.StatusUpdate{
			Status:       statusstore.StatusError,
			ErrorMessage: "No transcription generated",
		})
		return
	}

	rec := statusstore.TranscriptionRecord{
		StudyKey:   key,
		Reading:    res.Reading,
		Conclusion: res.Conclusion,
	}

	if w.encoder != nil {
		srPath, err := w.encoder.Encode(ctx, *res, path)
		if err != nil {
			log.WithError(err).Error("spool SR encapsulation failed")
		} else {
			rec.SRPath = srPath
		}
	}

	if err := w.status.SaveResult(ctx, rec); err != nil {
		log.WithError(err).Error("failed to save spool result")
	}
	w.setStatus(ctx, key, statusstore.StatusUpdate{Status: statusstore.StatusProcessingComplete})

	dest := filepath.Join(w.processed, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		log.WithError(err).Warn("failed to move processed file")
		return
	}
	log.WithField("dest", dest).Info("spooled file processed")
}

func (w *Watcher) setStatus(ctx context.Context, key string, upd statusstore.StatusUpdate) {
	if err := w.status.UpsertStatus(ctx, key, upd); err != nil {
		w.log.WithError(err).Error("failed to update spool status")
	}
}

// isDictationFile accepts .dcm and extensionless names; anything else in
// the folder is ignored.
func isDictationFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".dcm" || ext == ""
}

// spoolKey is a synthetic study key for files with no database identity.
func spoolKey(path string) string {
	base := filepath.Base(path)
	return "spool:" + strings.TrimSuffix(base, filepath.Ext(base))
}
