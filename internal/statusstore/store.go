// Package statusstore tracks per-study pipeline progress and transcription
// results in a document store, keyed by study key.
package statusstore

import (
	"context"
	"time"
)

type Status string

const (
	StatusReceived           Status = "received"
	StatusProcessingQuery    Status = "processing_query"
	StatusProcessingAudio    Status = "processing_audio"
	StatusTranscribing       Status = "transcribing"
	StatusProcessingComplete Status = "processing_complete"
	StatusCompleteSR         Status = "processing_complete_sr"
	StatusError              Status = "error"
)

// StudyStatus is the one-per-study progress document. It is upserted on
// every transition and never deleted, so the dashboard keeps history.
type StudyStatus struct {
	StudyKey      string    `bson:"study_key" json:"study_key"`
	Status        Status    `bson:"status" json:"status"`
	DicomPath     string    `bson:"dicom_path,omitempty" json:"dicom_path,omitempty"`
	ErrorMessage  string    `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ReceivedAt    time.Time `bson:"received_timestamp" json:"received_timestamp"`
	LastUpdatedAt time.Time `bson:"last_updated_timestamp" json:"last_updated_timestamp"`
}

// TranscriptionRecord is the append-only transcription result document;
// multiple records per study are allowed and the most recent wins.
type TranscriptionRecord struct {
	StudyKey      string    `bson:"study_key" json:"study_key"`
	Reading       string    `bson:"reading" json:"reading"`
	Conclusion    string    `bson:"conclusion" json:"conclusion"`
	SRPath        string    `bson:"sr_path,omitempty" json:"sr_path,omitempty"`
	TranscribedAt time.Time `bson:"transcription_timestamp" json:"transcription_timestamp"`
}

// StatusUpdate carries the optional fields of a transition. DicomPath is
// only written when non-empty; ErrorMessage is written when non-empty and
// cleared when the new status is not error.
type StatusUpdate struct {
	Status       Status
	ErrorMessage string
	DicomPath    string
}

type Store interface {
	// UpsertStatus applies a transition: creates the status document on
	// first sight (stamping received_timestamp) and updates it after.
	UpsertStatus(ctx context.Context, studyKey string, upd StatusUpdate) error

	// SaveResult appends a transcription record.
	SaveResult(ctx context.Context, rec TranscriptionRecord) error

	// ListStatuses returns all status documents, most recent first.
	ListStatuses(ctx context.Context) ([]StudyStatus, error)

	// GetStatus fetches one status document, or nil if the study was
	// never seen.
	GetStatus(ctx context.Context, studyKey string) (*StudyStatus, error)

	// LatestResult returns the most recent transcription record for a
	// study, or nil.
	LatestResult(ctx context.Context, studyKey string) (*TranscriptionRecord, error)

	Close(ctx context.Context) error
}
