package quota

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tailorcv/internal/database"
)

func newTestGate(t *testing.T, maxResumes, maxAI int) (*Gate, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGate(db, maxResumes, maxAI), db
}

func TestIncrementResumeCount_StopsAtLimit(t *testing.T) {
	gate, _ := newTestGate(t, 3, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := gate.IncrementResumeCount(ctx, 1)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("increment %d denied below limit", i)
		}
	}

	ok, err := gate.IncrementResumeCount(ctx, 1)
	if err != nil {
		t.Fatalf("increment past limit: %v", err)
	}
	if ok {
		t.Fatal("fourth increment allowed past limit of 3")
	}

	usage, err := gate.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// Snapshot 会把简历计数与真实行数对账，测试里没有简历行。
	if usage.AIGenerationCount != 0 {
		t.Fatalf("ai count = %d, want 0", usage.AIGenerationCount)
	}
}

func TestIncrementAIGenerationCount_IndependentOfResumes(t *testing.T) {
	gate, _ := newTestGate(t, 1, 2)
	ctx := context.Background()

	if ok, _ := gate.IncrementResumeCount(ctx, 1); !ok {
		t.Fatal("first resume increment denied")
	}
	if ok, _ := gate.IncrementResumeCount(ctx, 1); ok {
		t.Fatal("resume limit not enforced")
	}

	// 简历额度用尽不影响 AI 生成额度。
	for i := 0; i < 2; i++ {
		ok, err := gate.IncrementAIGenerationCount(ctx, 1)
		if err != nil {
			t.Fatalf("ai increment %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("ai increment %d denied below limit", i)
		}
	}
	if ok, _ := gate.IncrementAIGenerationCount(ctx, 1); ok {
		t.Fatal("ai limit not enforced")
	}
}

func TestPremiumBypassesLimits(t *testing.T) {
	gate, db := newTestGate(t, 1, 1)
	ctx := context.Background()

	sub := database.UserSubscription{
		UserID:           1,
		Plan:             database.PlanPremium,
		CurrentPeriodEnd: time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	for i := 0; i < 5; i++ {
		ok, err := gate.IncrementResumeCount(ctx, 1)
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("premium increment %d denied", i)
		}
	}

	// 旁路不落计数。
	var usage database.UserUsage
	err := db.Where("user_id = ?", 1).First(&usage).Error
	if err == nil && usage.ResumeCount != 0 {
		t.Fatalf("premium user accrued counters: %d", usage.ResumeCount)
	}
}

func TestExpiredPremiumCountsAsFree(t *testing.T) {
	gate, db := newTestGate(t, 1, 1)
	ctx := context.Background()

	sub := database.UserSubscription{
		UserID:           1,
		Plan:             database.PlanPremium,
		CurrentPeriodEnd: time.Now().Add(-time.Hour),
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	if ok, _ := gate.IncrementResumeCount(ctx, 1); !ok {
		t.Fatal("first increment denied for expired premium")
	}
	if ok, _ := gate.IncrementResumeCount(ctx, 1); ok {
		t.Fatal("expired premium bypassed the limit")
	}

	usage, err := gate.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if usage.Plan != database.PlanFree {
		t.Fatalf("plan = %q, want %q", usage.Plan, database.PlanFree)
	}
}

func TestSnapshot_ReconcilesResumeCount(t *testing.T) {
	gate, db := newTestGate(t, 10, 10)
	ctx := context.Background()

	// 计数器声称 5，但真实只有 1 份简历。
	if err := db.Create(&database.UserUsage{UserID: 1, ResumeCount: 5}).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}
	if err := db.Create(&database.Resume{UserID: 1, Title: "T"}).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}

	usage, err := gate.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if usage.ResumeCount != 1 {
		t.Fatalf("resume count = %d, want reconciled 1", usage.ResumeCount)
	}

	var row database.UserUsage
	if err := db.Where("user_id = ?", 1).First(&row).Error; err != nil {
		t.Fatalf("load usage row: %v", err)
	}
	if row.ResumeCount != 1 {
		t.Fatalf("stored count = %d, want 1", row.ResumeCount)
	}
}
