package resume

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"tailorcv/internal/database"
)

// ResumeData is the structured resume payload. The AI tailoring schema and
// the manual save endpoint both bind to it.
type ResumeData struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	Summary     string `json:"summary"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	JobTitle    string `json:"jobTitle"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`

	Color       string `json:"color,omitempty"`
	BorderStyle string `json:"borderStyle,omitempty"`
	Template    string `json:"template,omitempty"`

	JobDescription string `json:"jobDescription,omitempty"`

	WorkExperiences []ExperienceData `json:"workExperiences"`
	Educations      []EducationData  `json:"educations"`
	Skills          []string         `json:"skills"`
	Analysis        *AnalysisData    `json:"analysis,omitempty"`
}

// ExperienceData mirrors one work experience entry. Dates are ISO
// YYYY-MM-DD strings or null; anything unparseable is coerced to null.
type ExperienceData struct {
	Position    string  `json:"position"`
	Company     string  `json:"company"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Description string  `json:"description"`
}

// EducationData mirrors one education entry.
type EducationData struct {
	Degree      string  `json:"degree"`
	School      string  `json:"school"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Description string  `json:"description"`
}

// AnalysisData carries the model's job-match explanation.
type AnalysisData struct {
	MatchingPoints    []string `json:"matchingPoints"`
	PrioritizedSkills []string `json:"prioritizedSkills"`
	Reason            string   `json:"reason"`
}

// parseDate coerces an ISO date string to a time. Invalid or placeholder
// values become nil rather than aborting the whole create.
func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func toJSONArray(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(data)
}

func fromJSONArray(data datatypes.JSON) []string {
	if len(data) == 0 {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return []string{}
	}
	return values
}

func encodeIDs(ids []uint) datatypes.JSON {
	if ids == nil {
		ids = []uint{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(data)
}

func decodeIDs(data datatypes.JSON) []uint {
	if len(data) == 0 {
		return []uint{}
	}
	var ids []uint
	if err := json.Unmarshal(data, &ids); err != nil {
		return []uint{}
	}
	return ids
}

// DataFromModel converts a stored resume (with preloaded children) back to
// the wire payload, dates normalized to YYYY-MM-DD or null.
func DataFromModel(m *database.Resume) ResumeData {
	data := ResumeData{
		Title:          m.Title,
		Description:    m.Description,
		Summary:        m.Summary,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		JobTitle:       m.JobTitle,
		City:           m.City,
		Country:        m.Country,
		Email:          m.Email,
		Phone:          m.Phone,
		Color:          m.Color,
		BorderStyle:    m.BorderStyle,
		Template:       m.Template,
		JobDescription: m.JobDescription,
		Skills:         fromJSONArray(m.Skills),
	}

	for _, exp := range m.WorkExperiences {
		data.WorkExperiences = append(data.WorkExperiences, ExperienceData{
			Position:    exp.Position,
			Company:     exp.Company,
			StartDate:   formatDate(exp.StartDate),
			EndDate:     formatDate(exp.EndDate),
			Description: exp.Description,
		})
	}
	for _, edu := range m.Educations {
		data.Educations = append(data.Educations, EducationData{
			Degree:      edu.Degree,
			School:      edu.School,
			StartDate:   formatDate(edu.StartDate),
			EndDate:     formatDate(edu.EndDate),
			Description: edu.Description,
		})
	}

	matching := fromJSONArray(m.MatchingPoints)
	prioritized := fromJSONArray(m.PrioritizedSkills)
	if len(matching) > 0 || len(prioritized) > 0 || m.AnalysisReason != nil {
		analysis := &AnalysisData{
			MatchingPoints:    matching,
			PrioritizedSkills: prioritized,
		}
		if m.AnalysisReason != nil {
			analysis.Reason = *m.AnalysisReason
		}
		data.Analysis = analysis
	}

	return data
}
