package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	go_ora "github.com/sijms/go-ora/v2"

	"dictascribe/internal/config"
)

// OracleStore implements Store against the PACS Oracle schema. The
// underlying pool is held open for the lifetime of the monitor loop.
type OracleStore struct {
	db *sql.DB
}

func NewOracleStore(cfg config.OracleConfig) (*OracleStore, error) {
	url := go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.ServiceName, cfg.Username, cfg.Password, nil)
	db, err := sql.Open("oracle", url)
	if err != nil {
		return nil, fmt.Errorf("open oracle connection: %w", err)
	}
	return &OracleStore{db: db}, nil
}

// Ping verifies connectivity; the monitor refuses to start without it.
func (s *OracleStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *OracleStore) FindEligibleStudies(ctx context.Context, statusCode int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT STUDY_KEY FROM TSTUDY WHERE STUDYSTAT = :1", statusCode)
	if err != nil {
		return nil, fmt.Errorf("query eligible studies: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan study key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *OracleStore) FindReportByStudy(ctx context.Context, studyKey string) (Report, error) {
	var r Report
	err := s.db.QueryRowContext(ctx,
		"SELECT REPORT_KEY, REPORT_STAT FROM TREPORT WHERE STUDY_KEY = :1", studyKey).
		Scan(&r.Key, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("report for study %s: %w", studyKey, ErrNotFound)
	}
	if err != nil {
		return Report{}, fmt.Errorf("query report for study %s: %w", studyKey, err)
	}
	return r, nil
}

func (s *OracleStore) FindDictationByReport(ctx context.Context, reportKey int64) (Dictation, error) {
	var d Dictation
	err := s.db.QueryRowContext(ctx,
		"SELECT PATHNAME, FILENAME, LSTORAGE_KEY FROM TDICTATION WHERE REPORT_KEY = :1", reportKey).
		Scan(&d.PathName, &d.FileName, &d.StorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Dictation{}, fmt.Errorf("dictation for report %d: %w", reportKey, ErrNotFound)
	}
	if err != nil {
		return Dictation{}, fmt.Errorf("query dictation for report %d: %w", reportKey, err)
	}
	return d, nil
}

func (s *OracleStore) FindStorageLocation(ctx context.Context, storageKey int64) (string, error) {
	var shareFolder string
	err := s.db.QueryRowContext(ctx,
		"SELECT SHARE_FOLDER FROM TSTORAGE WHERE STORAGE_KEY = :1", storageKey).
		Scan(&shareFolder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("storage location %d: %w", storageKey, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query storage location %d: %w", storageKey, err)
	}
	return shareFolder, nil
}

// FindStudyInfo fetches the institution and patient linkage used by the
// legacy report writer.
func (s *OracleStore) FindStudyInfo(ctx context.Context, studyKey string) (StudyInfo, error) {
	var info StudyInfo
	err := s.db.QueryRowContext(ctx,
		"SELECT INSTITUTION_KEY, SRC_PATIENT_ID FROM TSTUDY WHERE STUDY_KEY = :1", studyKey).
		Scan(&info.InstitutionKey, &info.SrcPatientID)
	if errors.Is(err, sql.ErrNoRows) {
		return StudyInfo{}, fmt.Errorf("study %s: %w", studyKey, ErrNotFound)
	}
	if err != nil {
		return StudyInfo{}, fmt.Errorf("query study info %s: %w", studyKey, err)
	}
	return info, nil
}

func (s *OracleStore) Close() error {
	return s.db.Close()
}
