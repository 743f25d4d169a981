package tailor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"tailorcv/internal/errcode"
	"tailorcv/internal/resume"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseGeneratedResume parses the model's response into the resume schema.
// Direct parsing is tried first; on failure the first fenced code block and
// then the outermost {...} span are extracted and retried. Garbage with no
// JSON-like span fails with ResumeParsingFailed.
func ParseGeneratedResume(raw string) (*resume.ResumeData, error) {
	candidates := []string{strings.TrimSpace(raw)}
	if fenced := extractFencedBlock(raw); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if span := extractBraceSpan(raw); span != "" {
		candidates = append(candidates, span)
	}

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		var data resume.ResumeData
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			lastErr = err
			continue
		}
		if data.Title == "" && data.FirstName == "" && len(data.WorkExperiences) == 0 {
			lastErr = fmt.Errorf("parsed object carries no resume fields")
			continue
		}
		return &data, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", errcode.ErrResumeParsingFailed, lastErr)
	}
	return nil, errcode.ErrResumeParsingFailed
}

func extractFencedBlock(s string) string {
	m := fencedBlockPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractBraceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

// DeriveTitle composes "{Company} {Role} Resume". Structured company/role
// fields from the model are preferred; the token-splitting fallback exists
// for responses that only carry a composed title.
func DeriveTitle(data *resume.ResumeData) string {
	company := strings.TrimSpace(data.Company)
	role := strings.TrimSpace(data.Role)

	if company == "" && role == "" {
		company, role = splitComposedTitle(data.Title)
	}

	parts := make([]string, 0, 3)
	if company != "" {
		parts = append(parts, company)
	}
	if role != "" {
		parts = append(parts, role)
	}
	if len(parts) == 0 {
		if t := strings.TrimSpace(data.Title); t != "" {
			return t
		}
		return "Tailored Resume"
	}
	parts = append(parts, "Resume")
	return strings.Join(parts, " ")
}

// splitComposedTitle is the legacy heuristic: the trailing token is the
// literal "Resume", the role is at most the 3 tokens before it, the rest is
// the company. Known-brittle for longer role names; structured fields above
// are the primary path.
func splitComposedTitle(title string) (company, role string) {
	tokens := strings.Fields(strings.TrimSpace(title))
	if len(tokens) == 0 {
		return "", ""
	}

	if strings.EqualFold(tokens[len(tokens)-1], "resume") {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return "", ""
	}

	roleTokens := 3
	if roleTokens > len(tokens)-1 {
		roleTokens = len(tokens) - 1
	}
	if roleTokens <= 0 {
		return "", tokens[0]
	}

	company = strings.Join(tokens[:len(tokens)-roleTokens], " ")
	role = strings.Join(tokens[len(tokens)-roleTokens:], " ")
	return company, role
}
