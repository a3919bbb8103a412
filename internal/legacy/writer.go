// Package legacy writes a finished transcription back into the PACS
// relational schema so downstream clinical systems see the report.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sirupsen/logrus"

	"dictascribe/internal/config"
	"dictascribe/internal/relational"
)

// completeStatus is the REPORT_STAT/STUDYSTAT code the external schema
// uses for "report complete". It mirrors an existing contract and is not
// a tunable.
const completeStatus = 4010

const reportTypePreliminary = "P"

// Writer performs the write-back as one transaction: text insert, report
// status function, and status column updates commit together or not at
// all, so the external schema is never left half-updated.
type Writer struct {
	cfg           config.OracleConfig
	dictateDocKey int
	log           *logrus.Entry
}

func NewWriter(cfg config.OracleConfig, dictateDocKey int, log *logrus.Entry) *Writer {
	return &Writer{cfg: cfg, dictateDocKey: dictateDocKey, log: log}
}

// Write stores the report. It opens and closes its own connection; the
// monitor's polling connection is never borrowed for writes.
func (w *Writer) Write(ctx context.Context, studyKey string, reading, conclusion string) error {
	url := go_ora.BuildUrl(w.cfg.Host, w.cfg.Port, w.cfg.ServiceName, w.cfg.Username, w.cfg.Password, nil)
	db, err := sql.Open("oracle", url)
	if err != nil {
		return fmt.Errorf("open oracle connection: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var reportKey int64
	err = tx.QueryRowContext(ctx,
		"SELECT REPORT_KEY FROM TREPORT WHERE STUDY_KEY = :1", studyKey).Scan(&reportKey)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("report for study %s: %w", studyKey, relational.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query report key: %w", err)
	}

	reportDate := time.Now().Format("20060102150405")

	var textKey int64
	err = tx.QueryRowContext(ctx,
		"SELECT DEB_TREPORT.F_GET_TEXTKEY(:1, :2) FROM DUAL", studyKey, reportTypePreliminary).Scan(&textKey)
	if err != nil {
		return fmt.Errorf("generate report text key: %w", err)
	}

	var insertResult int64
	_, err = tx.ExecContext(ctx,
		"BEGIN :1 := DEB_TREPORT.F_INSERT_TEXT(:2, :3, :4, :5, :6, :7, :8); END;",
		sql.Out{Dest: &insertResult}, reportKey, completeStatus, w.dictateDocKey,
		reportDate, reading, conclusion, reportTypePreliminary)
	if err != nil {
		return fmt.Errorf("insert report text: %w", err)
	}

	var institutionKey int64
	var srcPatientID string
	err = tx.QueryRowContext(ctx,
		"SELECT INSTITUTION_KEY, SRC_PATIENT_ID FROM TSTUDY WHERE STUDY_KEY = :1", studyKey).
		Scan(&institutionKey, &srcPatientID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("study %s: %w", studyKey, relational.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query study linkage: %w", err)
	}

	var updateResult int64
	_, err = tx.ExecContext(ctx,
		"BEGIN :1 := DEB_TREPORT.F_UPDATE(:2, :3, :4, :5, :6, :7, :8, :9, :10, :11, :12, :13, :14, :15, :16, :17, :18, :19); END;",
		sql.Out{Dest: &updateResult},
		institutionKey,        // V_INSTITUTION_KEY
		srcPatientID,          // V_PATIENT_ID
		w.cfg.Host,            // V_HOSTIP
		"",                    // V_COMMENT
		reportKey,             // V_REPORT_KEY
		studyKey,              // V_STUDY_KEY
		completeStatus,        // V_REPORT_STAT
		w.dictateDocKey,       // V_DICTATE_DOC_KEY
		nil,                   // V_DICTATE_DATE
		w.dictateDocKey,       // V_READ_DOC_KEY
		reportDate,            // V_READ_DATE
		nil,                   // V_CONFIRM_DOC_KEY
		nil,                   // V_CONFIRM_DATE
		reportTypePreliminary, // V_REPORT_TYPE
		nil,                   // V_DRAFT_DOC_KEY
		nil,                   // V_DRAFT_DATE
		nil,                   // V_STT
		nil,                   // V_READ_OPERATOR
	)
	if err != nil {
		return fmt.Errorf("update report status function: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE TREPORT SET REPORT_STAT = :1 WHERE REPORT_KEY = :2", completeStatus, reportKey); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE TSTUDY SET STUDYSTAT = :1 WHERE STUDY_KEY = :2", completeStatus, studyKey); err != nil {
		return fmt.Errorf("update study status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report write: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"study_key":  studyKey,
		"report_key": reportKey,
		"text_key":   textKey,
	}).Info("legacy report stored")
	return nil
}
