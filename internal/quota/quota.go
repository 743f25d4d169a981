package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tailorcv/internal/database"
)

// Gate enforces free-tier usage limits. Premium subscribers bypass the gate
// entirely: no counters are read or written for them.
type Gate struct {
	db               *gorm.DB
	maxResumes       int
	maxAIGenerations int
}

// Usage is the snapshot returned to the client.
type Usage struct {
	ResumeCount       int    `json:"resume_count"`
	AIGenerationCount int    `json:"ai_generation_count"`
	Plan              string `json:"plan"`
}

// NewGate constructs the gate with the deployment's free-tier limits.
func NewGate(db *gorm.DB, maxResumes, maxAIGenerations int) *Gate {
	return &Gate{db: db, maxResumes: maxResumes, maxAIGenerations: maxAIGenerations}
}

// CanCreateResume reports whether a resume create would pass, without
// mutating anything.
func (g *Gate) CanCreateResume(ctx context.Context, userID uint) (bool, error) {
	premium, err := g.isPremium(ctx, userID)
	if err != nil {
		return false, err
	}
	if premium {
		return true, nil
	}

	usage, err := g.ensureRow(ctx, userID)
	if err != nil {
		return false, err
	}
	return usage.ResumeCount < g.maxResumes, nil
}

// IncrementResumeCount bumps the resume counter if the limit allows.
// Check and increment are one conditional UPDATE, atomic per row, so two
// concurrent requests cannot both slip past the last free slot.
func (g *Gate) IncrementResumeCount(ctx context.Context, userID uint) (bool, error) {
	return g.increment(ctx, userID, "resume_count", g.maxResumes)
}

// IncrementAIGenerationCount bumps the AI-generation counter if the limit
// allows.
func (g *Gate) IncrementAIGenerationCount(ctx context.Context, userID uint) (bool, error) {
	return g.increment(ctx, userID, "ai_generation_count", g.maxAIGenerations)
}

func (g *Gate) increment(ctx context.Context, userID uint, column string, limit int) (bool, error) {
	premium, err := g.isPremium(ctx, userID)
	if err != nil {
		return false, err
	}
	if premium {
		return true, nil
	}

	if _, err := g.ensureRow(ctx, userID); err != nil {
		return false, err
	}

	result := g.db.WithContext(ctx).
		Model(&database.UserUsage{}).
		Where(fmt.Sprintf("user_id = ? AND %s < ?", column), userID, limit).
		UpdateColumn(column, gorm.Expr(fmt.Sprintf("%s + 1", column)))
	if result.Error != nil {
		return false, fmt.Errorf("increment %s: %w", column, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Snapshot returns the current counters and effective plan. The resume
// counter is reconciled against the true row count on read, since
// best-effort increments can drift.
func (g *Gate) Snapshot(ctx context.Context, userID uint) (Usage, error) {
	plan := database.PlanFree
	premium, err := g.isPremium(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	if premium {
		plan = database.PlanPremium
	}

	usage, err := g.ensureRow(ctx, userID)
	if err != nil {
		return Usage{}, err
	}

	var actual int64
	if err := g.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("user_id = ?", userID).
		Count(&actual).Error; err != nil {
		return Usage{}, fmt.Errorf("count resumes: %w", err)
	}

	if int(actual) != usage.ResumeCount {
		if err := g.db.WithContext(ctx).
			Model(&database.UserUsage{}).
			Where("user_id = ?", userID).
			UpdateColumn("resume_count", int(actual)).Error; err != nil {
			return Usage{}, fmt.Errorf("reconcile resume count: %w", err)
		}
		usage.ResumeCount = int(actual)
	}

	return Usage{
		ResumeCount:       usage.ResumeCount,
		AIGenerationCount: usage.AIGenerationCount,
		Plan:              plan,
	}, nil
}

// ensureRow lazily creates the zeroed usage row on first read.
func (g *Gate) ensureRow(ctx context.Context, userID uint) (*database.UserUsage, error) {
	row := &database.UserUsage{UserID: userID}
	if err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, fmt.Errorf("ensure usage row: %w", err)
	}

	var usage database.UserUsage
	if err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&usage).Error; err != nil {
		return nil, fmt.Errorf("load usage row: %w", err)
	}
	return &usage, nil
}

func (g *Gate) isPremium(ctx context.Context, userID uint) (bool, error) {
	var sub database.UserSubscription
	err := g.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load subscription: %w", err)
	}
	return sub.IsPremium(time.Now()), nil
}
