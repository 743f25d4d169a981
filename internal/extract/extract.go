package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"tailorcv/internal/errcode"
)

// Accepted MIME types at the extraction stage. DOCX is accepted at the
// upload boundary but has no extraction path yet, so it lands in the
// default branch here.
const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// minPDFTextLen guards against scanned or garbage PDFs whose text layer is
// effectively empty.
const minPDFTextLen = 100

// VisionAnalyzer transcribes an image-based CV. Satisfied by the LLM client.
type VisionAnalyzer interface {
	AnalyzeImage(ctx context.Context, userID uint, imageData []byte, mimeType, jobDescription, additionalInfo string) (string, error)
}

// Extractor turns an uploaded document into plain text. PDFs are read
// locally page by page; images are delegated to the vision model.
type Extractor struct {
	vision VisionAnalyzer
}

// NewExtractor returns an Extractor backed by the given vision analyzer.
func NewExtractor(vision VisionAnalyzer) *Extractor {
	return &Extractor{vision: vision}
}

// Extract returns the plain text of the uploaded file. Pure transform aside
// from the network call the image path performs.
func (e *Extractor) Extract(ctx context.Context, userID uint, data []byte, mimeType, jobDescription, additionalInfo string) (string, error) {
	switch normalizeMIME(mimeType) {
	case MIMEPDF:
		return extractPDF(data)
	case MIMEPNG, MIMEJPEG:
		return e.vision.AnalyzeImage(ctx, userID, data, normalizeMIME(mimeType), jobDescription, additionalInfo)
	default:
		return "", fmt.Errorf("%w: %s", errcode.ErrUnsupportedFileType, mimeType)
	}
}

func extractPDF(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		pageText, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", n+1, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}

	result := strings.TrimSpace(b.String())
	if len(result) < minPDFTextLen {
		return "", fmt.Errorf("%w: pdf text layer too short (%d chars)", errcode.ErrEmptyExtraction, len(result))
	}
	return result, nil
}

// normalizeMIME strips parameters like "; charset=binary" and lowercases.
// image/jpg is folded into image/jpeg, browsers still send it.
func normalizeMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "image/jpg" {
		mt = MIMEJPEG
	}
	return mt
}
