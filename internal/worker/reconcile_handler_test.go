package worker

import (
	"context"
	"log/slog"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tailorcv/internal/database"
	"tailorcv/internal/tasks"
)

func newReconcileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func usageCount(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var usage database.UserUsage
	if err := db.Where("user_id = ?", userID).First(&usage).Error; err != nil {
		t.Fatalf("load usage row: %v", err)
	}
	return usage.ResumeCount
}

func TestUsageReconcile_SingleUserFixesDrift(t *testing.T) {
	db := newReconcileTestDB(t)
	if err := db.Create(&database.Resume{UserID: 1, Title: "A"}).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	if err := db.Create(&database.UserUsage{UserID: 1, ResumeCount: 5}).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	task, err := tasks.NewUsageReconcileTask(1)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	h := NewUsageReconcileHandler(db, slog.Default())
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	if got := usageCount(t, db, 1); got != 1 {
		t.Fatalf("resume_count = %d, want 1", got)
	}
}

func TestUsageReconcile_AllUsersSweep(t *testing.T) {
	db := newReconcileTestDB(t)
	if err := db.Create(&database.Resume{UserID: 1, Title: "A"}).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	seed := []database.UserUsage{
		{UserID: 1, ResumeCount: 9},
		{UserID: 2, ResumeCount: 3},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}

	task, err := tasks.NewUsageReconcileTask(0)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	h := NewUsageReconcileHandler(db, slog.Default())
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	if got := usageCount(t, db, 1); got != 1 {
		t.Fatalf("user 1 resume_count = %d, want 1", got)
	}
	if got := usageCount(t, db, 2); got != 0 {
		t.Fatalf("user 2 resume_count = %d, want 0", got)
	}
}
