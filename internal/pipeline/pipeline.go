// Package pipeline drives one study through locate -> authenticate ->
// extract -> transcribe -> persist -> optional SR encode -> optional
// legacy write, recording progress in the status store at every step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dictascribe/internal/audio"
	"dictascribe/internal/locator"
	"dictascribe/internal/relational"
	"dictascribe/internal/share"
	"dictascribe/internal/srencoder"
	"dictascribe/internal/statusstore"
	"dictascribe/internal/transcriber"
)

// maxErrorMessageLen bounds the human-readable message persisted with an
// error status.
const maxErrorMessageLen = 200

type Locator interface {
	Locate(ctx context.Context, studyKey string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, dcmPath string) (string, error)
}

// ReportWriter is the legacy write-back; its failure never overrides an
// already-persisted transcription.
type ReportWriter interface {
	Write(ctx context.Context, studyKey, reading, conclusion string) error
}

// Options are the feature toggles and share credentials for one
// orchestrator instance.
type Options struct {
	EncapsulateSR     bool
	StoreLegacyReport bool
	PrintOutput       bool
	ShareCreds        share.Credentials
}

type Orchestrator struct {
	locator     Locator
	connector   share.Connector
	extractor   Extractor
	transcriber transcriber.Transcriber
	status      statusstore.Store
	encoder     srencoder.Encoder
	legacy      ReportWriter
	opts        Options
	log         *logrus.Entry
}

func New(
	loc Locator,
	connector share.Connector,
	extractor Extractor,
	tr transcriber.Transcriber,
	status statusstore.Store,
	encoder srencoder.Encoder,
	legacy ReportWriter,
	opts Options,
	log *logrus.Entry,
) *Orchestrator {
	return &Orchestrator{
		locator:     loc,
		connector:   connector,
		extractor:   extractor,
		transcriber: tr,
		status:      status,
		encoder:     encoder,
		legacy:      legacy,
		opts:        opts,
		log:         log,
	}
}

// Process runs the full pipeline for one study. It never panics out and
// never lets a stage failure escape unrecorded: every failure ends as an
// error status document. The returned error exists for the single-study
// command's exit code; the monitor only logs it.
func (o *Orchestrator) Process(ctx context.Context, studyKey string) (err error) {
	log := o.log.WithFields(logrus.Fields{
		"study_key": studyKey,
		"run_id":    uuid.NewString(),
	})
	log.Info("pipeline starting")

	var audioPath string
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("pipeline panicked")
			o.setError(ctx, studyKey, fmt.Sprintf("pipeline failed: %v", r))
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if audioPath != "" {
			if rmErr := os.Remove(audioPath); rmErr != nil {
				log.WithError(rmErr).Warn("failed to delete temporary audio file")
			}
		}
	}()

	// Stage 1: resolve the dictation file path.
	o.setStatus(ctx, studyKey, statusstore.StatusUpdate{Status: statusstore.StatusProcessingQuery})
	dcmPath, err := o.locator.Locate(ctx, studyKey)
	if err != nil {
		msg := fmt.Sprintf("Failed to retrieve a valid DICOM path for study %s: %v", studyKey, err)
		if errors.Is(err, relational.ErrNotFound) {
			msg = fmt.Sprintf("No dictation record chain for study %s: %v", studyKey, err)
		}
		log.WithError(err).Error("work location failed")
		o.setError(ctx, studyKey, msg)
		return err
	}

	// Stage 2: authenticate to the share when the path needs it.
	if locator.IsUNC(dcmPath) {
		creds := o.opts.ShareCreds
		if creds.Username != "" && creds.Password != "" {
			if err := o.connector.Connect(ctx, dcmPath, creds); err != nil {
				log.WithError(err).Error("network share authentication failed")
				o.setError(ctx, studyKey, fmt.Sprintf("Failed to authenticate to network share for path: %s", dcmPath))
				return err
			}
		} else {
			log.WithField("path", dcmPath).
				Warn("UNC path but no share credentials configured, proceeding without explicit authentication")
		}
	}

	// Stage 3: extract audio.
	o.setStatus(ctx, studyKey, statusstore.StatusUpdate{
		Status:    statusstore.StatusProcessingAudio,
		DicomPath: dcmPath,
	})
	audioPath, err = o.extractor.Extract(ctx, dcmPath)
	if err != nil {
		log.WithError(err).Error("audio extraction failed")
		o.setError(ctx, studyKey, extractionMessage(err, dcmPath))
		return err
	}

	// Stage 4: transcribe.
	o.setStatus(ctx, studyKey, statusstore.StatusUpdate{Status: statusstore.StatusTranscribing})
	res, err := o.transcriber.Transcribe(ctx, dcmPath, audioPath)
	if err != nil || res == nil {
		log.WithError(err).Warn("no transcription was generated")
		o.setError(ctx, studyKey, "No transcription generated")
		if err == nil {
			err = transcriber.ErrService
		}
		return err
	}

	// Stage 5: persist the result before any optional stage runs.
	if err := o.status.SaveResult(ctx, statusstore.TranscriptionRecord{
		StudyKey:   studyKey,
		Reading:    res.Reading,
		Conclusion: res.Conclusion,
	}); err != nil {
		log.WithError(err).Error("failed to save transcription result")
	}
	o.setStatus(ctx, studyKey, statusstore.StatusUpdate{Status: statusstore.StatusProcessingComplete})

	// Stage 6: optional Enhanced SR encoding. Failure is terminal for
	// status but the persisted result from stage 5 is retained, and the
	// legacy stage below still runs: the two optional stages are
	// independent of each other.
	var encErr error
	if o.opts.EncapsulateSR && o.encoder != nil {
		var srPath string
		srPath, encErr = o.encoder.Encode(ctx, *res, dcmPath)
		if encErr != nil {
			log.WithError(encErr).Error("SR encapsulation failed")
			o.setError(ctx, studyKey, fmt.Sprintf("SR encapsulation failed: %v", encErr))
		} else {
			if err := o.status.SaveResult(ctx, statusstore.TranscriptionRecord{
				StudyKey:   studyKey,
				Reading:    res.Reading,
				Conclusion: res.Conclusion,
				SRPath:     srPath,
			}); err != nil {
				log.WithError(err).Error("failed to save SR-enriched result")
			}
			o.setStatus(ctx, studyKey, statusstore.StatusUpdate{Status: statusstore.StatusCompleteSR})
		}
	}

	// Stage 7: optional legacy write-back, best effort only. Requires a
	// persisted transcription, not a successful SR stage.
	if o.opts.StoreLegacyReport && o.legacy != nil {
		if legErr := o.legacy.Write(ctx, studyKey, res.Reading, res.Conclusion); legErr != nil {
			log.WithError(legErr).Error("legacy report storage failed")
		}
	}

	if o.opts.PrintOutput {
		fmt.Println(res.Raw)
	}

	if encErr != nil {
		return encErr
	}
	log.Info("pipeline finished")
	return nil
}

// extractionMessage maps extractor failure classes to persisted messages.
func extractionMessage(err error, dcmPath string) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("File not found: %s", dcmPath)
	case errors.Is(err, audio.ErrUnavailable):
		return fmt.Sprintf("Unable to access file: %s", dcmPath)
	case errors.Is(err, audio.ErrMalformed):
		return fmt.Sprintf("Audio extraction failed, malformed waveform: %v", err)
	default:
		return fmt.Sprintf("Audio extraction failed for DICOM file: %s", dcmPath)
	}
}

// setStatus records a transition; status tracking is best-effort, so a
// store failure is logged and never interrupts the pipeline.
func (o *Orchestrator) setStatus(ctx context.Context, studyKey string, upd statusstore.StatusUpdate) {
	if err := o.status.UpsertStatus(ctx, studyKey, upd); err != nil {
		o.log.WithField("study_key", studyKey).WithError(err).Error("failed to update study status")
	}
}

func (o *Orchestrator) setError(ctx context.Context, studyKey, message string) {
	o.setStatus(ctx, studyKey, statusstore.StatusUpdate{
		Status:       statusstore.StatusError,
		ErrorMessage: Truncate(message, maxErrorMessageLen),
	})
}

// Truncate bounds a message without splitting the rune at the cut point.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
