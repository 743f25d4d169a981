package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tailorcv/internal/database"
)

const testSecret = "whsec_test"

func newTestProcessor(t *testing.T) (*Processor, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	p := NewProcessor(db, nil, testSecret, slog.Default())
	return p, db
}

func signPayload(secret string, timestamp time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature_Valid(t *testing.T) {
	p, _ := newTestProcessor(t)
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	header := signPayload(testSecret, time.Now(), payload)
	if err := p.VerifySignature(payload, header); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	p, _ := newTestProcessor(t)
	payload := []byte(`{"id":"evt_1"}`)
	good := signPayload(testSecret, time.Now(), payload)

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{"missing header", payload, ""},
		{"wrong secret", payload, signPayload("whsec_other", time.Now(), payload)},
		{"tampered payload", []byte(`{"id":"evt_2"}`), good},
		{"stale timestamp", payload, signPayload(testSecret, time.Now().Add(-time.Hour), payload)},
		{"future timestamp", payload, signPayload(testSecret, time.Now().Add(time.Hour), payload)},
		{"malformed header", payload, "t=abc,v1=zz"},
		{"no v1 entry", payload, fmt.Sprintf("t=%d", time.Now().Unix())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.VerifySignature(tt.payload, tt.header)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestVerifySignature_AcceptsExtraV1Candidates(t *testing.T) {
	p, _ := newTestProcessor(t)
	payload := []byte(`{"id":"evt_1"}`)

	good := signPayload(testSecret, time.Now(), payload)
	// 密钥轮换期间，提供方会同时带上新旧两个签名。
	header := good + ",v1=" + hex.EncodeToString(make([]byte, 32))
	if err := p.VerifySignature(payload, header); err != nil {
		t.Fatalf("VerifySignature with extra candidate: %v", err)
	}
}

func TestHandleEvent_CheckoutCompleted(t *testing.T) {
	p, db := newTestProcessor(t)
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"client_reference_id": "7",
			"customer": "cus_123",
			"subscription": "sub_456"
		}}
	}`)

	if err := p.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	var sub database.UserSubscription
	if err := db.Where("user_id = ?", 7).First(&sub).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if sub.Plan != database.PlanPremium {
		t.Fatalf("plan = %q, want premium", sub.Plan)
	}
	if sub.CustomerID != "cus_123" || sub.SubscriptionID != "sub_456" {
		t.Fatalf("provider ids not stored: %q %q", sub.CustomerID, sub.SubscriptionID)
	}
	if !sub.IsPremium(time.Now()) {
		t.Fatal("subscription not effective immediately after checkout")
	}
}

func TestHandleEvent_SubscriptionLifecycle(t *testing.T) {
	p, db := newTestProcessor(t)
	ctx := context.Background()

	checkout := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"client_reference_id": "7", "customer": "cus_1", "subscription": "sub_1"}}
	}`)
	if err := p.HandleEvent(ctx, checkout); err != nil {
		t.Fatalf("checkout event: %v", err)
	}

	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	updated := []byte(fmt.Sprintf(`{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"status": "active",
			"cancel_at_period_end": true,
			"current_period_end": %d,
			"items": {"data": [{"price": {"id": "price_1"}}]}
		}}
	}`, periodEnd))
	if err := p.HandleEvent(ctx, updated); err != nil {
		t.Fatalf("updated event: %v", err)
	}

	var sub database.UserSubscription
	if err := db.Where("user_id = ?", 7).First(&sub).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if !sub.CancelAtPeriodEnd {
		t.Fatal("cancel_at_period_end not applied")
	}
	if sub.PriceID != "price_1" {
		t.Fatalf("price id = %q", sub.PriceID)
	}
	if sub.CurrentPeriodEnd.Unix() != periodEnd {
		t.Fatalf("period end = %v, want unix %d", sub.CurrentPeriodEnd, periodEnd)
	}

	deleted := []byte(`{
		"id": "evt_3",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1"}}
	}`)
	if err := p.HandleEvent(ctx, deleted); err != nil {
		t.Fatalf("deleted event: %v", err)
	}

	if err := db.Where("user_id = ?", 7).First(&sub).Error; err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if sub.Plan != database.PlanFree {
		t.Fatalf("plan after delete = %q, want free", sub.Plan)
	}
}

func TestHandleEvent_InactiveStatusDowngrades(t *testing.T) {
	p, db := newTestProcessor(t)
	ctx := context.Background()

	if err := db.Create(&database.UserSubscription{
		UserID:         7,
		Plan:           database.PlanPremium,
		SubscriptionID: "sub_1",
	}).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_1", "status": "past_due"}}
	}`)
	if err := p.HandleEvent(ctx, payload); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	var sub database.UserSubscription
	if err := db.Where("subscription_id = ?", "sub_1").First(&sub).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if sub.Plan != database.PlanFree {
		t.Fatalf("plan = %q, want free for past_due", sub.Plan)
	}
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	p, _ := newTestProcessor(t)

	payload := []byte(`{"id": "evt_1", "type": "invoice.paid", "data": {"object": {}}}`)
	if err := p.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("unknown event should be acknowledged, got %v", err)
	}
}

func TestHandleEvent_UnknownSubscriptionUpdateIsAccepted(t *testing.T) {
	p, _ := newTestProcessor(t)

	// 乱序到达：updated 先于 checkout。吞掉并等提供方重发。
	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {"id": "sub_unknown", "status": "active"}}
	}`)
	if err := p.HandleEvent(context.Background(), payload); err != nil {
		t.Fatalf("handle event: %v", err)
	}
}
