// Package relational is the query surface over the RIS/PACS Oracle schema:
// the eligibility poll and the report -> dictation -> storage join chain
// that resolves a study to its dictation DICOM file.
package relational

import (
	"context"
	"errors"
)

// ErrNotFound reports a broken join chain: a required row is absent for
// the key being resolved.
var ErrNotFound = errors.New("record not found")

// Report is the TREPORT row relevant to transcription.
type Report struct {
	Key    int64
	Status int
}

// Dictation is the TDICTATION row pointing at the dictation file.
type Dictation struct {
	PathName   string
	FileName   string
	StorageKey int64
}

// StudyInfo carries the TSTUDY linkage fields stamped onto legacy writes.
type StudyInfo struct {
	InstitutionKey int64
	SrcPatientID   string
}

type Store interface {
	// FindEligibleStudies returns study keys whose STUDYSTAT marks them
	// ready for transcription, in query order.
	FindEligibleStudies(ctx context.Context, statusCode int) ([]string, error)

	// FindReportByStudy resolves a study key to its report row.
	FindReportByStudy(ctx context.Context, studyKey string) (Report, error)

	// FindDictationByReport resolves a report key to the dictation file
	// reference.
	FindDictationByReport(ctx context.Context, reportKey int64) (Dictation, error)

	// FindStorageLocation resolves a storage key to its share folder name.
	FindStorageLocation(ctx context.Context, storageKey int64) (string, error)

	Close() error
}
