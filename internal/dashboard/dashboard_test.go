package dashboard

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"dictascribe/internal/statusstore"
	"dictascribe/internal/testutil"
)

func seededServer(t *testing.T) *Server {
	t.Helper()
	store := statusstore.NewMemoryStore()
	ctx := context.Background()
	_ = store.UpsertStatus(ctx, "100", statusstore.StatusUpdate{Status: statusstore.StatusProcessingComplete})
	_ = store.UpsertStatus(ctx, "200", statusstore.StatusUpdate{
		Status:       statusstore.StatusError,
		ErrorMessage: "No transcription generated",
	})
	return NewServer(store, "127.0.0.1:0", testutil.SilentLogger())
}

func TestHandleIndex(t *testing.T) {
	srv := seededServer(t)
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"100", "200", "processing_complete", "No transcription generated"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHandleIndexRejectsOtherPaths(t *testing.T) {
	srv := seededServer(t)
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest("GET", "/favicon.ico", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleStudies(t *testing.T) {
	srv := seededServer(t)
	rec := httptest.NewRecorder()
	srv.handleStudies(rec, httptest.NewRequest("GET", "/api/studies", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var studies []statusstore.StudyStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &studies); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(studies) != 2 {
		t.Fatalf("studies = %d, want 2", len(studies))
	}
	byKey := map[string]statusstore.StudyStatus{}
	for _, st := range studies {
		byKey[st.StudyKey] = st
	}
	if byKey["200"].ErrorMessage != "No transcription generated" {
		t.Errorf("error message = %q", byKey["200"].ErrorMessage)
	}
}
