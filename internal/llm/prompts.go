package llm

import (
	"fmt"
	"strings"
)

// tailorSystemPrompt encodes the tailoring contract. The model must return a
// single JSON object; structured company/role fields are required so the
// server does not have to re-parse them out of the composed title.
const tailorSystemPrompt = `You are an expert resume writer and career coach.
You rewrite a candidate's resume so it targets one specific job description.

Rules:
- Output a SINGLE JSON object and nothing else. No markdown, no commentary.
- The object must match this schema exactly:
  {
    "title": string,           // "{Company} {Role} Resume"
    "company": string,         // company name parsed from the job description
    "role": string,            // role name parsed from the job description
    "summary": string,
    "firstName": string, "lastName": string, "jobTitle": string,
    "city": string, "country": string, "email": string, "phone": string,
    "workExperiences": [{"position": string, "company": string,
      "startDate": string|null, "endDate": string|null, "description": string}],
    "educations": [{"degree": string, "school": string,
      "startDate": string|null, "endDate": string|null, "description": string}],
    "skills": [string],
    "analysis": {"matchingPoints": [string], "prioritizedSkills": [string], "reason": string}
  }
- Filter out resume content irrelevant to the target job. Aim for roughly
  65% original content and 35% rephrased-for-relevance content.
- NEVER invent employers, dates, credentials or achievements that are not
  present in the source resume.
- "skills" must contain at least 15-20 entries. Prioritize skills that match
  the job description, then include transferable skills.
- All date fields are ISO "YYYY-MM-DD" or null. Never use placeholders like
  "present" or "N/A".`

func tailorUserPrompt(cvText, jobDescription, additionalInfo string) string {
	var b strings.Builder
	b.WriteString("Job description:\n")
	b.WriteString(jobDescription)
	b.WriteString("\n\nCandidate resume (extracted text):\n")
	b.WriteString(cvText)
	if strings.TrimSpace(additionalInfo) != "" {
		b.WriteString("\n\nAdditional information from the candidate:\n")
		b.WriteString(additionalInfo)
	}
	return b.String()
}

func visionTranscribePrompt(jobDescription, additionalInfo string) string {
	var b strings.Builder
	b.WriteString(`Transcribe literally EVERYTHING you can read in this resume image:
every name, date, bullet point, address, skill and line item, even entries
that look irrelevant. Preserve the reading order. Output plain text only.`)
	if strings.TrimSpace(jobDescription) != "" {
		b.WriteString("\n\nThe transcription will later be tailored against this job description:\n")
		b.WriteString(jobDescription)
	}
	if strings.TrimSpace(additionalInfo) != "" {
		b.WriteString("\n\nAdditional context:\n")
		b.WriteString(additionalInfo)
	}
	return b.String()
}

func coverLetterPrompt(resumeData, jobDescription, additionalInfo string) string {
	prompt := fmt.Sprintf(`Write a concise, professional cover letter (3-4 paragraphs)
for the following candidate and job. Do not fabricate experience.

Job description:
%s

Candidate resume data:
%s`, jobDescription, resumeData)
	if strings.TrimSpace(additionalInfo) != "" {
		prompt += "\n\nAdditional information:\n" + additionalInfo
	}
	return prompt
}

func hrMessagePrompt(resumeData, jobDescription, recruiterName, additionalInfo string) string {
	greeting := "the recruiter"
	if strings.TrimSpace(recruiterName) != "" {
		greeting = recruiterName
	}
	prompt := fmt.Sprintf(`Write a short, friendly first-contact message (under 120 words)
from the candidate to %s about the role below. No subject line.

Job description:
%s

Candidate resume data:
%s`, greeting, jobDescription, resumeData)
	if strings.TrimSpace(additionalInfo) != "" {
		prompt += "\n\nAdditional information:\n" + additionalInfo
	}
	return prompt
}
