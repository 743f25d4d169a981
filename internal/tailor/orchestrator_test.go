package tailor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"tailorcv/internal/database"
	"tailorcv/internal/errcode"
	"tailorcv/internal/resume"
)

type fakeBlobStore struct {
	uploaded map[string][]byte
	fail     bool
}

func (s *fakeBlobStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if s.fail {
		return nil, errors.New("storage down")
	}
	if s.uploaded == nil {
		s.uploaded = map[string][]byte{}
	}
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

type fakeModel struct {
	response string
	err      error
	gotText  string
}

func (m *fakeModel) GenerateTailoredResume(_ context.Context, _ uint, cvText, _, _ string) (string, error) {
	m.gotText = cvText
	return m.response, m.err
}

type fakePersister struct {
	created   *resume.ResumeData
	photoKey  string
	cvKeySet  string
	createErr error
	cvKeyErr  error
}

func (p *fakePersister) Create(_ context.Context, _ uint, data resume.ResumeData, photoKey, _ string) (*database.Resume, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = &data
	p.photoKey = photoKey
	r := &database.Resume{Title: data.Title}
	r.ID = 42
	return r, nil
}

func (p *fakePersister) SetCVFileKey(_ context.Context, _, _ uint, key string) error {
	if p.cvKeyErr != nil {
		return p.cvKeyErr
	}
	p.cvKeySet = key
	return nil
}

type fakeNotifier struct {
	statuses       []string
	codes          []int
	correlationIDs []string
}

func (n *fakeNotifier) GenerationStatus(_ context.Context, _ uint, status string, _ uint, errCode int, correlationID string) {
	n.statuses = append(n.statuses, status)
	n.codes = append(n.codes, errCode)
	n.correlationIDs = append(n.correlationIDs, correlationID)
}

func newTestOrchestrator(store *fakeBlobStore, model *fakeModel, persister *fakePersister, notifier *fakeNotifier) *Service {
	return NewService(store, nil, model, persister, notifier, slog.Default())
}

func TestGenerate_PreAnalyzedTextHappyPath(t *testing.T) {
	store := &fakeBlobStore{}
	model := &fakeModel{response: validPayload}
	persister := &fakePersister{}
	notifier := &fakeNotifier{}
	svc := newTestOrchestrator(store, model, persister, notifier)

	id, err := svc.Generate(context.Background(), 7, GenerateInput{
		PreAnalyzedText: "plain cv text",
		JobDescription:  "Backend engineer at Acme",
		CorrelationID:   "req-123",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id != 42 {
		t.Fatalf("resume id = %d, want 42", id)
	}
	if model.gotText != "plain cv text" {
		t.Fatalf("model got %q, want the pre-analyzed text", model.gotText)
	}
	if persister.created.Title != "Acme Backend Engineer Resume" {
		t.Fatalf("derived title = %q", persister.created.Title)
	}
	if persister.created.JobDescription != "Backend engineer at Acme" {
		t.Fatalf("job description not stamped: %q", persister.created.JobDescription)
	}

	wantStatuses := []string{"generation_started", "generation_completed"}
	if len(notifier.statuses) != 2 || notifier.statuses[0] != wantStatuses[0] || notifier.statuses[1] != wantStatuses[1] {
		t.Fatalf("statuses = %v, want %v", notifier.statuses, wantStatuses)
	}
	for i, got := range notifier.correlationIDs {
		if got != "req-123" {
			t.Fatalf("correlation id on notification %d = %q, want req-123", i, got)
		}
	}
}

func TestGenerate_StoresUploadsBeforeModel(t *testing.T) {
	store := &fakeBlobStore{}
	model := &fakeModel{response: validPayload}
	persister := &fakePersister{}
	notifier := &fakeNotifier{}
	svc := newTestOrchestrator(store, model, persister, notifier)

	_, err := svc.Generate(context.Background(), 7, GenerateInput{
		CVData:          []byte("%PDF-..."),
		CVMIMEType:      "application/pdf",
		PreAnalyzedText: "already extracted",
		JobDescription:  "jd",
		PhotoData:       []byte{0xff, 0xd8},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var gotCV, gotPhoto bool
	for key := range store.uploaded {
		if strings.HasPrefix(key, "user-cv/7/") && strings.HasSuffix(key, ".pdf") {
			gotCV = true
		}
		if strings.HasPrefix(key, "user-photos/7/") && strings.HasSuffix(key, ".jpg") {
			gotPhoto = true
		}
	}
	if !gotCV || !gotPhoto {
		t.Fatalf("uploads missing, keys: %v", keys(store.uploaded))
	}
	if persister.cvKeySet == "" {
		t.Fatal("cv file key not persisted on the row")
	}
	if persister.photoKey == "" {
		t.Fatal("photo key not passed to create")
	}
}

func TestGenerate_StorageFailureAborts(t *testing.T) {
	store := &fakeBlobStore{fail: true}
	model := &fakeModel{response: validPayload}
	persister := &fakePersister{}
	notifier := &fakeNotifier{}
	svc := newTestOrchestrator(store, model, persister, notifier)

	_, err := svc.Generate(context.Background(), 7, GenerateInput{
		CVData:          []byte("x"),
		CVMIMEType:      "application/pdf",
		PreAnalyzedText: "text",
		JobDescription:  "jd",
	})
	if err == nil {
		t.Fatal("expected storage failure to abort")
	}
	if persister.created != nil {
		t.Fatal("resume created despite storage failure")
	}
	if last := notifier.statuses[len(notifier.statuses)-1]; last != "generation_failed" {
		t.Fatalf("last status = %q, want generation_failed", last)
	}
}

func TestGenerate_ModelGarbageFailsWithoutRow(t *testing.T) {
	store := &fakeBlobStore{}
	model := &fakeModel{response: "I cannot produce that."}
	persister := &fakePersister{}
	notifier := &fakeNotifier{}
	svc := newTestOrchestrator(store, model, persister, notifier)

	_, err := svc.Generate(context.Background(), 7, GenerateInput{
		PreAnalyzedText: "text",
		JobDescription:  "jd",
	})
	if !errors.Is(err, errcode.ErrResumeParsingFailed) {
		t.Fatalf("expected parsing failure, got %v", err)
	}
	if persister.created != nil {
		t.Fatal("resume created from garbage output")
	}
	if last := notifier.codes[len(notifier.codes)-1]; last != errcode.ResumeParsingFailed {
		t.Fatalf("failure code = %d, want %d", last, errcode.ResumeParsingFailed)
	}
}

func TestGenerate_CVKeyWriteFailureIsNotFatal(t *testing.T) {
	store := &fakeBlobStore{}
	model := &fakeModel{response: validPayload}
	persister := &fakePersister{cvKeyErr: errors.New("column write failed")}
	notifier := &fakeNotifier{}
	svc := newTestOrchestrator(store, model, persister, notifier)

	id, err := svc.Generate(context.Background(), 7, GenerateInput{
		CVData:          []byte("x"),
		CVMIMEType:      "application/pdf",
		PreAnalyzedText: "text",
		JobDescription:  "jd",
	})
	if err != nil {
		t.Fatalf("generate should tolerate cv key failure: %v", err)
	}
	if id != 42 {
		t.Fatalf("resume id = %d, want 42", id)
	}
	if last := notifier.statuses[len(notifier.statuses)-1]; last != "generation_completed" {
		t.Fatalf("last status = %q, want generation_completed", last)
	}
}

func TestGenerate_MissingInputs(t *testing.T) {
	svc := newTestOrchestrator(&fakeBlobStore{}, &fakeModel{}, &fakePersister{}, &fakeNotifier{})

	if _, err := svc.Generate(context.Background(), 7, GenerateInput{JobDescription: "jd"}); err == nil {
		t.Fatal("expected error with no cv data")
	}
	if _, err := svc.Generate(context.Background(), 7, GenerateInput{PreAnalyzedText: "text"}); err == nil {
		t.Fatal("expected error with no job description")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
