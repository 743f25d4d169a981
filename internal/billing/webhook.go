package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tailorcv/internal/database"
)

// Tolerance for the webhook timestamp; events older than this are rejected to
// blunt replay of captured payloads.
const signatureTolerance = 5 * time.Minute

const eventDedupTTL = 24 * time.Hour

var (
	// ErrInvalidSignature covers a missing, malformed, stale, or mismatched
	// signature header.
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
)

// Processor verifies and applies provider webhook events. Events mutate the
// user_subscriptions table; unknown event types are acknowledged and ignored
// so the provider does not retry them forever.
type Processor struct {
	db     *gorm.DB
	rdb    *redis.Client
	secret string
	logger *slog.Logger
	now    func() time.Time
}

func NewProcessor(db *gorm.DB, rdb *redis.Client, webhookSecret string, logger *slog.Logger) *Processor {
	return &Processor{
		db:     db,
		rdb:    rdb,
		secret: webhookSecret,
		logger: logger,
		now:    time.Now,
	}
}

// VerifySignature checks the provider's signature header against the raw
// payload. The header format is "t=<unix>,v1=<hex-hmac>[,v1=...]"; the HMAC
// is SHA-256 over "<t>.<payload>" keyed with the endpoint secret.
func (p *Processor) VerifySignature(payload []byte, header string) error {
	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := p.now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(p.secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, decodeErr := hex.DecodeString(candidate)
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrInvalidSignature)
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: header missing", ErrInvalidSignature)
	}

	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			timestamp = parsed
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: header incomplete", ErrInvalidSignature)
	}
	return timestamp, candidates, nil
}

// HandleEvent applies one verified event payload. Events are deduplicated by
// id in Redis so provider retries cannot double-apply.
func (p *Processor) HandleEvent(ctx context.Context, payload []byte) error {
	event := gjson.ParseBytes(payload)
	eventID := event.Get("id").String()
	eventType := event.Get("type").String()
	object := event.Get("data.object")

	if eventID != "" && p.rdb != nil {
		fresh, err := p.rdb.SetNX(ctx, "billing:event:"+eventID, 1, eventDedupTTL).Result()
		if err != nil {
			// 去重失败只记录，不拒收事件；重复应用下面的 upsert 是幂等的。
			p.logger.Warn("billing event dedup check failed", "event_id", eventID, "error", err)
		} else if !fresh {
			p.logger.Info("billing event already processed", "event_id", eventID, "type", eventType)
			return nil
		}
	}

	switch eventType {
	case "checkout.session.completed":
		return p.applyCheckoutCompleted(ctx, object)
	case "customer.subscription.updated":
		return p.applySubscriptionUpdated(ctx, object)
	case "customer.subscription.deleted":
		return p.applySubscriptionDeleted(ctx, object)
	default:
		p.logger.Info("ignoring billing event", "type", eventType)
		return nil
	}
}

// applyCheckoutCompleted records the customer/subscription ids and flips the
// user to premium. The exact period end arrives with the subsequent
// subscription.updated event; until then a conservative end is stored so the
// user is not premium forever on a single event.
func (p *Processor) applyCheckoutCompleted(ctx context.Context, object gjson.Result) error {
	userID64, err := strconv.ParseUint(object.Get("client_reference_id").String(), 10, 64)
	if err != nil {
		return fmt.Errorf("checkout.session.completed: bad client_reference_id: %w", err)
	}

	sub := database.UserSubscription{
		UserID:           uint(userID64),
		Plan:             database.PlanPremium,
		CustomerID:       object.Get("customer").String(),
		SubscriptionID:   object.Get("subscription").String(),
		CurrentPeriodEnd: p.now().Add(31 * 24 * time.Hour),
	}

	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan", "customer_id", "subscription_id", "updated_at",
		}),
	}).Create(&sub).Error
}

func (p *Processor) applySubscriptionUpdated(ctx context.Context, object gjson.Result) error {
	subscriptionID := object.Get("id").String()
	if subscriptionID == "" {
		return fmt.Errorf("customer.subscription.updated: missing subscription id")
	}

	plan := database.PlanFree
	switch object.Get("status").String() {
	case "active", "trialing":
		plan = database.PlanPremium
	}

	updates := map[string]any{
		"plan":                 plan,
		"cancel_at_period_end": object.Get("cancel_at_period_end").Bool(),
	}
	if periodEnd := object.Get("current_period_end").Int(); periodEnd > 0 {
		updates["current_period_end"] = time.Unix(periodEnd, 0)
	}
	if priceID := object.Get("items.data.0.price.id").String(); priceID != "" {
		updates["price_id"] = priceID
	}

	result := p.db.WithContext(ctx).
		Model(&database.UserSubscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 订阅行可能还未由 checkout 事件写入；乱序到达时记录并丢弃,
		// 提供方稍后重发的 updated 事件会补上。
		p.logger.Warn("subscription update for unknown subscription", "subscription_id", subscriptionID)
	}
	return nil
}

func (p *Processor) applySubscriptionDeleted(ctx context.Context, object gjson.Result) error {
	subscriptionID := object.Get("id").String()
	if subscriptionID == "" {
		return fmt.Errorf("customer.subscription.deleted: missing subscription id")
	}

	return p.db.WithContext(ctx).
		Model(&database.UserSubscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"plan":                 database.PlanFree,
			"cancel_at_period_end": false,
		}).Error
}
