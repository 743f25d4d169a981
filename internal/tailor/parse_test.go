package tailor

import (
	"errors"
	"testing"

	"tailorcv/internal/errcode"
	"tailorcv/internal/resume"
)

const validPayload = `{
	"title": "Acme Backend Engineer Resume",
	"company": "Acme",
	"role": "Backend Engineer",
	"firstName": "Ada",
	"lastName": "Lovelace",
	"summary": "Engineer.",
	"skills": ["Go"],
	"workExperiences": [
		{"position": "Engineer", "company": "Acme", "startDate": "2020-01-01", "endDate": null, "description": "APIs"}
	],
	"educations": []
}`

func TestParseGeneratedResume_PlainJSON(t *testing.T) {
	data, err := ParseGeneratedResume(validPayload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if data.Company != "Acme" || data.Role != "Backend Engineer" {
		t.Fatalf("structured fields lost: %+v", data)
	}
	if len(data.WorkExperiences) != 1 {
		t.Fatalf("experiences = %d, want 1", len(data.WorkExperiences))
	}
}

func TestParseGeneratedResume_FencedBlock(t *testing.T) {
	raw := "Here is your tailored resume:\n```json\n" + validPayload + "\n```\nGood luck!"
	data, err := ParseGeneratedResume(raw)
	if err != nil {
		t.Fatalf("parse fenced: %v", err)
	}
	if data.Title != "Acme Backend Engineer Resume" {
		t.Fatalf("title = %q", data.Title)
	}
}

func TestParseGeneratedResume_UnlabelledFence(t *testing.T) {
	raw := "```\n" + validPayload + "\n```"
	if _, err := ParseGeneratedResume(raw); err != nil {
		t.Fatalf("parse unlabelled fence: %v", err)
	}
}

func TestParseGeneratedResume_BraceSpan(t *testing.T) {
	raw := "Sure! " + validPayload + " Let me know if you need changes."
	if _, err := ParseGeneratedResume(raw); err != nil {
		t.Fatalf("parse brace span: %v", err)
	}
}

func TestParseGeneratedResume_Garbage(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", "{broken json"} {
		_, err := ParseGeneratedResume(raw)
		if !errors.Is(err, errcode.ErrResumeParsingFailed) {
			t.Fatalf("raw %q: expected parsing failure, got %v", raw, err)
		}
	}
}

func TestParseGeneratedResume_EmptyObjectRejected(t *testing.T) {
	_, err := ParseGeneratedResume(`{"unrelated": true}`)
	if !errors.Is(err, errcode.ErrResumeParsingFailed) {
		t.Fatalf("expected parsing failure for field-less object, got %v", err)
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		data resume.ResumeData
		want string
	}{
		{
			name: "structured fields preferred",
			data: resume.ResumeData{Title: "ignored", Company: "Acme", Role: "Backend Engineer"},
			want: "Acme Backend Engineer Resume",
		},
		{
			name: "company only",
			data: resume.ResumeData{Company: "Acme"},
			want: "Acme Resume",
		},
		{
			name: "fallback splits composed title",
			data: resume.ResumeData{Title: "Acme Corp Senior Backend Engineer Resume"},
			want: "Acme Corp Senior Backend Engineer Resume",
		},
		{
			name: "fallback with short title",
			data: resume.ResumeData{Title: "Acme Engineer"},
			want: "Acme Engineer Resume",
		},
		{
			name: "empty input",
			data: resume.ResumeData{},
			want: "Tailored Resume",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(&tt.data); got != tt.want {
				t.Fatalf("DeriveTitle(%+v) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}
