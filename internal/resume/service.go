package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"tailorcv/internal/database"
	"tailorcv/internal/errcode"
)

// Gate is the quota gate consulted before any resume row is written.
type Gate interface {
	IncrementResumeCount(ctx context.Context, userID uint) (bool, error)
}

// BlobCleanup removes stored objects after a resume is deleted. The
// production implementation enqueues background tasks so a missing blob or a
// slow storage node cannot block the delete.
type BlobCleanup interface {
	Remove(ctx context.Context, objectKeys ...string) error
}

// Service implements resume persistence: create with title dedup, wholesale
// child replacement on update, duplication and cascading delete.
type Service struct {
	db      *gorm.DB
	gate    Gate
	cleanup BlobCleanup
	logger  *slog.Logger
}

// NewService constructs the persistence service.
func NewService(db *gorm.DB, gate Gate, cleanup BlobCleanup, logger *slog.Logger) *Service {
	return &Service{db: db, gate: gate, cleanup: cleanup, logger: logger}
}

// Create writes the resume row and its children in one transaction. The
// quota gate runs first so QuotaExceeded surfaces before anything is
// written; the candidate title is deduplicated against the owner's titles.
func (s *Service) Create(ctx context.Context, userID uint, data ResumeData, photoKey, cvKey string) (*database.Resume, error) {
	ok, err := s.gate.IncrementResumeCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("quota gate: %w", err)
	}
	if !ok {
		return nil, errcode.ErrResumeQuotaExceeded
	}

	titles, err := s.ownerTitles(ctx, userID)
	if err != nil {
		return nil, err
	}

	model := s.buildModel(userID, data)
	model.Title = NextTitle(titles, data.Title)
	model.PhotoKey = photoKey
	model.CVFileKey = cvKey

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, fmt.Errorf("create resume: %w", err)
	}
	return model, nil
}

// Update overwrites the resume's scalar fields and replaces its children
// wholesale (delete-all-then-recreate, never patched in place). A nil
// photoKey/cvKey leaves the stored key untouched.
func (s *Service) Update(ctx context.Context, userID, id uint, data ResumeData, photoKey, cvKey *string) (*database.Resume, error) {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"title":           data.Title,
		"description":     data.Description,
		"first_name":      data.FirstName,
		"last_name":       data.LastName,
		"job_title":       data.JobTitle,
		"city":            data.City,
		"country":         data.Country,
		"phone":           data.Phone,
		"email":           data.Email,
		"summary":         data.Summary,
		"color":           data.Color,
		"border_style":    data.BorderStyle,
		"template":        data.Template,
		"job_description": data.JobDescription,
		"skills":          toJSONArray(data.Skills),
	}
	if data.Analysis != nil {
		updates["matching_points"] = toJSONArray(data.Analysis.MatchingPoints)
		updates["prioritized_skills"] = toJSONArray(data.Analysis.PrioritizedSkills)
		updates["analysis_reason"] = data.Analysis.Reason
	}
	if photoKey != nil {
		updates["photo_key"] = *photoKey
	}
	if cvKey != nil {
		updates["cv_file_key"] = *cvKey
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Resume{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update resume: %w", err)
		}
		if err := tx.Unscoped().Where("resume_id = ?", existing.ID).Delete(&database.WorkExperience{}).Error; err != nil {
			return fmt.Errorf("clear work experiences: %w", err)
		}
		if err := tx.Unscoped().Where("resume_id = ?", existing.ID).Delete(&database.Education{}).Error; err != nil {
			return fmt.Errorf("clear educations: %w", err)
		}
		experiences := buildExperiences(existing.ID, data.WorkExperiences)
		if len(experiences) > 0 {
			if err := tx.Create(&experiences).Error; err != nil {
				return fmt.Errorf("create work experiences: %w", err)
			}
		}
		educations := buildEducations(existing.ID, data.Educations)
		if len(educations) > 0 {
			if err := tx.Create(&educations).Error; err != nil {
				return fmt.Errorf("create educations: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, id)
}

// Duplicate copies a resume's scalars and children (ids/timestamps
// stripped), applies the "(Copy)" suffix and adds the new id to every group
// that contained the original.
func (s *Service) Duplicate(ctx context.Context, userID, id uint) (*database.Resume, error) {
	original, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.gate.IncrementResumeCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("quota gate: %w", err)
	}
	if !ok {
		return nil, errcode.ErrResumeQuotaExceeded
	}

	titles, err := s.ownerTitles(ctx, userID)
	if err != nil {
		return nil, err
	}

	copyModel := &database.Resume{
		UserID:            userID,
		Title:             NextCopyTitle(titles, original.Title),
		Description:       original.Description,
		FirstName:         original.FirstName,
		LastName:          original.LastName,
		JobTitle:          original.JobTitle,
		City:              original.City,
		Country:           original.Country,
		Phone:             original.Phone,
		Email:             original.Email,
		Summary:           original.Summary,
		Color:             original.Color,
		BorderStyle:       original.BorderStyle,
		Template:          original.Template,
		JobDescription:    original.JobDescription,
		Skills:            original.Skills,
		MatchingPoints:    original.MatchingPoints,
		PrioritizedSkills: original.PrioritizedSkills,
		AnalysisReason:    original.AnalysisReason,
	}
	for _, exp := range original.WorkExperiences {
		copyModel.WorkExperiences = append(copyModel.WorkExperiences, database.WorkExperience{
			Position:    exp.Position,
			Company:     exp.Company,
			StartDate:   exp.StartDate,
			EndDate:     exp.EndDate,
			Description: exp.Description,
			SortOrder:   exp.SortOrder,
		})
	}
	for _, edu := range original.Educations {
		copyModel.Educations = append(copyModel.Educations, database.Education{
			Degree:      edu.Degree,
			School:      edu.School,
			StartDate:   edu.StartDate,
			EndDate:     edu.EndDate,
			Description: edu.Description,
			SortOrder:   edu.SortOrder,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(copyModel).Error; err != nil {
			return fmt.Errorf("create duplicate: %w", err)
		}
		return s.addToGroupsContaining(tx, userID, original.ID, copyModel.ID)
	})
	if err != nil {
		return nil, err
	}
	return copyModel, nil
}

// Delete strips the resume's id out of every group, removes the row and its
// children, then hands the stored blobs to the cleanup queue. A missing
// blob is not an error.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.removeFromGroups(tx, userID, existing.ID); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("resume_id = ?", existing.ID).Delete(&database.WorkExperience{}).Error; err != nil {
			return fmt.Errorf("delete work experiences: %w", err)
		}
		if err := tx.Unscoped().Where("resume_id = ?", existing.ID).Delete(&database.Education{}).Error; err != nil {
			return fmt.Errorf("delete educations: %w", err)
		}
		if err := tx.Delete(&database.Resume{}, existing.ID).Error; err != nil {
			return fmt.Errorf("delete resume: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	keys := make([]string, 0, 2)
	if existing.PhotoKey != "" {
		keys = append(keys, existing.PhotoKey)
	}
	if existing.CVFileKey != "" {
		keys = append(keys, existing.CVFileKey)
	}
	if len(keys) > 0 {
		if err := s.cleanup.Remove(ctx, keys...); err != nil {
			// 行已删除，积压的对象由后台任务重试清理。
			s.logger.Warn("enqueue blob cleanup failed",
				slog.Uint64("resume_id", uint64(id)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// Get loads a resume owned by userID with children ordered stably.
func (s *Service) Get(ctx context.Context, userID, id uint) (*database.Resume, error) {
	var model database.Resume
	err := s.db.WithContext(ctx).
		Preload("WorkExperiences", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Educations", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.ErrNotFound
		}
		return nil, fmt.Errorf("query resume: %w", err)
	}
	return &model, nil
}

// List returns the owner's resumes, newest first, without children.
func (s *Service) List(ctx context.Context, userID uint) ([]database.Resume, error) {
	var resumes []database.Resume
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&resumes).Error; err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return resumes, nil
}

// SetJobDescription updates the job-description sub-resource.
func (s *Service) SetJobDescription(ctx context.Context, userID, id uint, jobDescription string) error {
	return s.updateColumn(ctx, userID, id, "job_description", jobDescription)
}

// ClearJobDescription empties the job-description sub-resource.
func (s *Service) ClearJobDescription(ctx context.Context, userID, id uint) error {
	return s.updateColumn(ctx, userID, id, "job_description", "")
}

// SetCVFileKey records where the original upload landed. Callers treat a
// failure here as non-critical: the resume row is already good.
func (s *Service) SetCVFileKey(ctx context.Context, userID, id uint, key string) error {
	return s.updateColumn(ctx, userID, id, "cv_file_key", key)
}

// SetPhotoKey points the resume at a processed photo object.
func (s *Service) SetPhotoKey(ctx context.Context, userID, id uint, key string) error {
	return s.updateColumn(ctx, userID, id, "photo_key", key)
}

func (s *Service) updateColumn(ctx context.Context, userID, id uint, column string, value any) error {
	result := s.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update(column, value)
	if result.Error != nil {
		return fmt.Errorf("update %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return errcode.ErrNotFound
	}
	return nil
}

func (s *Service) ownerTitles(ctx context.Context, userID uint) ([]string, error) {
	var titles []string
	if err := s.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("user_id = ?", userID).
		Pluck("title", &titles).Error; err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	return titles, nil
}

func (s *Service) buildModel(userID uint, data ResumeData) *database.Resume {
	model := &database.Resume{
		UserID:          userID,
		Title:           data.Title,
		Description:     data.Description,
		FirstName:       data.FirstName,
		LastName:        data.LastName,
		JobTitle:        data.JobTitle,
		City:            data.City,
		Country:         data.Country,
		Phone:           data.Phone,
		Email:           data.Email,
		Summary:         data.Summary,
		Color:           data.Color,
		BorderStyle:     data.BorderStyle,
		Template:        data.Template,
		JobDescription:  data.JobDescription,
		Skills:          toJSONArray(data.Skills),
		WorkExperiences: buildExperiences(0, data.WorkExperiences),
		Educations:      buildEducations(0, data.Educations),
	}
	if data.Analysis != nil {
		model.MatchingPoints = toJSONArray(data.Analysis.MatchingPoints)
		model.PrioritizedSkills = toJSONArray(data.Analysis.PrioritizedSkills)
		if data.Analysis.Reason != "" {
			reason := data.Analysis.Reason
			model.AnalysisReason = &reason
		}
	}
	return model
}

func buildExperiences(resumeID uint, items []ExperienceData) []database.WorkExperience {
	out := make([]database.WorkExperience, 0, len(items))
	for i, item := range items {
		out = append(out, database.WorkExperience{
			ResumeID:    resumeID,
			Position:    item.Position,
			Company:     item.Company,
			StartDate:   parseDate(item.StartDate),
			EndDate:     parseDate(item.EndDate),
			Description: item.Description,
			SortOrder:   i,
		})
	}
	return out
}

func buildEducations(resumeID uint, items []EducationData) []database.Education {
	out := make([]database.Education, 0, len(items))
	for i, item := range items {
		out = append(out, database.Education{
			ResumeID:    resumeID,
			Degree:      item.Degree,
			School:      item.School,
			StartDate:   parseDate(item.StartDate),
			EndDate:     parseDate(item.EndDate),
			Description: item.Description,
			SortOrder:   i,
		})
	}
	return out
}
