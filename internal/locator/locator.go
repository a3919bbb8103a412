// Package locator resolves a study key to the filesystem path of its
// dictation DICOM file via the report -> dictation -> storage join chain.
package locator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"dictascribe/internal/relational"
)

type Locator struct {
	store relational.Store
	host  string // share server; the PACS DB host also exports the shares
	log   *logrus.Entry
}

func New(store relational.Store, host string, log *logrus.Entry) *Locator {
	return &Locator{store: store, host: host, log: log}
}

// Locate builds the UNC path to the dictation file. It deliberately does
// not check that the file exists: on a network share that check is only
// meaningful after authentication, which is the orchestrator's job.
func (l *Locator) Locate(ctx context.Context, studyKey string) (string, error) {
	report, err := l.store.FindReportByStudy(ctx, studyKey)
	if err != nil {
		return "", err
	}

	dictation, err := l.store.FindDictationByReport(ctx, report.Key)
	if err != nil {
		return "", err
	}

	shareFolder, err := l.store.FindStorageLocation(ctx, dictation.StorageKey)
	if err != nil {
		return "", err
	}

	path := JoinUNC(l.host, shareFolder, dictation.PathName, dictation.FileName)
	l.log.WithFields(logrus.Fields{
		"study_key": studyKey,
		"path":      path,
	}).Info("constructed dictation file path")
	return path, nil
}

// JoinUNC assembles \\host\share\...\file from the join results. The
// share root may itself be a full UNC root or an absolute local path, in
// which case the host is not prepended. filepath.Join is unusable here:
// the service may run off-Windows while the paths stay Windows UNC.
func JoinUNC(host, shareFolder string, parts ...string) string {
	root := shareFolder
	sep := `\`
	switch {
	case strings.HasPrefix(shareFolder, "/"):
		sep = "/" // share mounted locally
	case !strings.HasPrefix(shareFolder, `\\`):
		root = fmt.Sprintf(`\\%s\%s`, host, shareFolder)
	}

	segments := []string{strings.TrimRight(root, `\/`)}
	for _, p := range parts {
		if sep == `\` {
			p = strings.ReplaceAll(p, "/", `\`)
		}
		p = strings.Trim(p, `\/`)
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, sep)
}

// IsUNC reports whether the path addresses a network share.
func IsUNC(path string) bool {
	return strings.HasPrefix(path, `\\`)
}
