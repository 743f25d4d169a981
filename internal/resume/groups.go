package resume

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tailorcv/internal/database"
	"tailorcv/internal/errcode"
)

// GroupData is the wire shape of a resume group.
type GroupData struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	ResumeIDs []uint `json:"resumeIds"`
}

// CreateGroup creates a named bucket of resume ids. Referential integrity
// of the id list is not hard-enforced; deletes filter ids out explicitly.
func (s *Service) CreateGroup(ctx context.Context, userID uint, name string, resumeIDs []uint) (*database.ResumeGroup, error) {
	group := &database.ResumeGroup{
		UserID:    userID,
		Name:      name,
		ResumeIDs: encodeIDs(resumeIDs),
	}
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return group, nil
}

// ListGroups returns the owner's groups.
func (s *Service) ListGroups(ctx context.Context, userID uint) ([]GroupData, error) {
	var groups []database.ResumeGroup
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	out := make([]GroupData, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupData{ID: g.ID, Name: g.Name, ResumeIDs: decodeIDs(g.ResumeIDs)})
	}
	return out, nil
}

// UpdateGroup overwrites the group's name and id list.
func (s *Service) UpdateGroup(ctx context.Context, userID, groupID uint, name string, resumeIDs []uint) error {
	result := s.db.WithContext(ctx).
		Model(&database.ResumeGroup{}).
		Where("id = ? AND user_id = ?", groupID, userID).
		Updates(map[string]any{
			"name":       name,
			"resume_ids": encodeIDs(resumeIDs),
		})
	if result.Error != nil {
		return fmt.Errorf("update group: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errcode.ErrNotFound
	}
	return nil
}

// DeleteGroup removes the bucket only, never the resumes it references.
func (s *Service) DeleteGroup(ctx context.Context, userID, groupID uint) error {
	var group database.ResumeGroup
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", groupID, userID).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errcode.ErrNotFound
		}
		return fmt.Errorf("query group: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&group).Error; err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// removeFromGroups strips resumeID out of every group owned by userID.
func (s *Service) removeFromGroups(tx *gorm.DB, userID, resumeID uint) error {
	var groups []database.ResumeGroup
	if err := tx.Where("user_id = ?", userID).Find(&groups).Error; err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	for i := range groups {
		ids := decodeIDs(groups[i].ResumeIDs)
		filtered := make([]uint, 0, len(ids))
		for _, id := range ids {
			if id != resumeID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == len(ids) {
			continue
		}
		if err := tx.Model(&groups[i]).Update("resume_ids", encodeIDs(filtered)).Error; err != nil {
			return fmt.Errorf("update group %d: %w", groups[i].ID, err)
		}
	}
	return nil
}

// addToGroupsContaining appends newID to every group that references
// originalID, used by Duplicate.
func (s *Service) addToGroupsContaining(tx *gorm.DB, userID, originalID, newID uint) error {
	var groups []database.ResumeGroup
	if err := tx.Where("user_id = ?", userID).Find(&groups).Error; err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	for i := range groups {
		ids := decodeIDs(groups[i].ResumeIDs)
		contains := false
		for _, id := range ids {
			if id == originalID {
				contains = true
				break
			}
		}
		if !contains {
			continue
		}
		ids = append(ids, newID)
		if err := tx.Model(&groups[i]).Update("resume_ids", encodeIDs(ids)).Error; err != nil {
			return fmt.Errorf("update group %d: %w", groups[i].ID, err)
		}
	}
	return nil
}
