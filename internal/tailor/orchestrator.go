package tailor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"tailorcv/internal/database"
	"tailorcv/internal/errcode"
	"tailorcv/internal/extract"
	"tailorcv/internal/resume"
)

// BlobStore is the slice of the storage client the orchestrator needs.
type BlobStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// Model is the tailoring slice of the LLM client.
type Model interface {
	GenerateTailoredResume(ctx context.Context, userID uint, cvText, jobDescription, additionalInfo string) (string, error)
}

// Persister is the slice of the resume service the orchestrator writes
// through.
type Persister interface {
	Create(ctx context.Context, userID uint, data resume.ResumeData, photoKey, cvKey string) (*database.Resume, error)
	SetCVFileKey(ctx context.Context, userID, id uint, key string) error
}

// Notifier pushes generation progress to the owner's websocket channel.
// Best-effort: notification failures never affect the pipeline.
type Notifier interface {
	GenerationStatus(ctx context.Context, userID uint, status string, resumeID uint, errCode int, correlationID string)
}

// GenerateInput carries everything a generation request may include.
// PreAnalyzedText short-circuits extraction when the client already ran it
// through a separate round-trip. CorrelationID rides along so progress
// pushes can be tied back to the originating request.
type GenerateInput struct {
	CVData          []byte
	CVMIMEType      string
	JobDescription  string
	AdditionalInfo  string
	PhotoData       []byte
	PreAnalyzedText string
	CorrelationID   string
}

// Service sequences extraction, the tailoring model call, JSON recovery and
// persistence for AI-generated resumes.
type Service struct {
	storage   BlobStore
	extractor *extract.Extractor
	model     Model
	persister Persister
	notifier  Notifier
	logger    *slog.Logger
}

// NewService wires the orchestrator.
func NewService(storage BlobStore, extractor *extract.Extractor, model Model, persister Persister, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		storage:   storage,
		extractor: extractor,
		model:     model,
		persister: persister,
		notifier:  notifier,
		logger:    logger,
	}
}

// Generate runs the full tailoring pipeline and returns the new resume id.
// The raw upload is persisted before anything else so it survives a
// downstream failure; any extraction/model failure aborts with no resume
// row created.
func (s *Service) Generate(ctx context.Context, userID uint, input GenerateInput) (uint, error) {
	if len(input.CVData) == 0 && input.PreAnalyzedText == "" {
		return 0, fmt.Errorf("%w: empty cv upload", errcode.ErrEmptyExtraction)
	}
	if strings.TrimSpace(input.JobDescription) == "" {
		return 0, fmt.Errorf("job description is required")
	}

	s.notifier.GenerationStatus(ctx, userID, "generation_started", 0, errcode.OK, input.CorrelationID)

	cvKey, photoKey, err := s.storeUploads(ctx, userID, input)
	if err != nil {
		s.notifier.GenerationStatus(ctx, userID, "generation_failed", 0, errcode.Code(err), input.CorrelationID)
		return 0, err
	}

	cvText := input.PreAnalyzedText
	if cvText == "" {
		cvText, err = s.extractor.Extract(ctx, userID, input.CVData, input.CVMIMEType, input.JobDescription, input.AdditionalInfo)
		if err != nil {
			s.notifier.GenerationStatus(ctx, userID, "generation_failed", 0, errcode.Code(err), input.CorrelationID)
			return 0, err
		}
	}

	raw, err := s.model.GenerateTailoredResume(ctx, userID, cvText, input.JobDescription, input.AdditionalInfo)
	if err != nil {
		s.notifier.GenerationStatus(ctx, userID, "generation_failed", 0, errcode.Code(err), input.CorrelationID)
		return 0, err
	}

	data, err := ParseGeneratedResume(raw)
	if err != nil {
		s.logger.Error("resume parsing failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.Int("raw_len", len(raw)),
			slog.Any("error", err),
		)
		s.notifier.GenerationStatus(ctx, userID, "generation_failed", 0, errcode.Code(err), input.CorrelationID)
		return 0, err
	}

	data.Title = DeriveTitle(data)
	data.JobDescription = input.JobDescription

	created, err := s.persister.Create(ctx, userID, *data, photoKey, "")
	if err != nil {
		s.notifier.GenerationStatus(ctx, userID, "generation_failed", 0, errcode.Code(err), input.CorrelationID)
		return 0, err
	}

	// 行已创建成功；CV Key 属于辅助元数据，写失败只记日志。
	if cvKey != "" {
		if err := s.persister.SetCVFileKey(ctx, userID, created.ID, cvKey); err != nil {
			s.logger.Warn("persist cv file key failed",
				slog.Uint64("resume_id", uint64(created.ID)),
				slog.Any("error", err),
			)
		}
	}

	s.notifier.GenerationStatus(ctx, userID, "generation_completed", created.ID, errcode.OK, input.CorrelationID)
	return created.ID, nil
}

// storeUploads persists the original CV and the optional photo to blob
// storage before generation so the raw upload is never lost.
func (s *Service) storeUploads(ctx context.Context, userID uint, input GenerateInput) (cvKey, photoKey string, err error) {
	if len(input.CVData) > 0 {
		cvKey = fmt.Sprintf("user-cv/%d/%s%s", userID, uuid.NewString(), extensionFor(input.CVMIMEType))
		if _, err := s.storage.UploadFile(ctx, cvKey, bytes.NewReader(input.CVData), int64(len(input.CVData)), input.CVMIMEType); err != nil {
			return "", "", fmt.Errorf("store cv upload: %w", err)
		}
	}

	if len(input.PhotoData) > 0 {
		photoKey = fmt.Sprintf("user-photos/%d/%s.jpg", userID, uuid.NewString())
		if _, err := s.storage.UploadFile(ctx, photoKey, bytes.NewReader(input.PhotoData), int64(len(input.PhotoData)), "image/jpeg"); err != nil {
			return "", "", fmt.Errorf("store photo upload: %w", err)
		}
	}

	return cvKey, photoKey, nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "pdf"):
		return ".pdf"
	case strings.Contains(mimeType, "png"):
		return ".png"
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return ".jpg"
	default:
		return ""
	}
}
