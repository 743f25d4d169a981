package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"tailorcv/internal/config"
)

const apiBaseURL = "https://api.stripe.com"

// Client talks to the payment provider's REST API. Only two calls exist:
// checkout-session and portal-session creation; everything else arrives via
// webhook.
type Client struct {
	http       *resty.Client
	priceID    string
	appBaseURL string
}

// NewClient builds the provider client from config.
func NewClient(cfg config.BillingConfig, appBaseURL string) *Client {
	httpClient := resty.New().
		SetBaseURL(apiBaseURL).
		SetBasicAuth(cfg.SecretKey, "")

	return &Client{
		http:       httpClient,
		priceID:    cfg.PriceID,
		appBaseURL: appBaseURL,
	}
}

// CreateCheckoutSession starts a subscription checkout for the user and
// returns the hosted payment page URL. The user id rides along as
// client_reference_id so the webhook can attribute the purchase.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID uint) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"mode":                       "subscription",
			"line_items[0][price]":       c.priceID,
			"line_items[0][quantity]":    "1",
			"client_reference_id":        strconv.FormatUint(uint64(userID), 10),
			"success_url":                c.appBaseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
			"cancel_url":                 c.appBaseURL + "/billing/cancel",
			"allow_promotion_codes":      "true",
			"billing_address_collection": "auto",
		}).
		Post("/v1/checkout/sessions")
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create checkout session: provider returned %d", resp.StatusCode())
	}

	url := gjson.GetBytes(resp.Body(), "url").String()
	if url == "" {
		return "", fmt.Errorf("create checkout session: response carries no url")
	}
	return url, nil
}

// CreatePortalSession opens the billing self-service portal for an existing
// customer.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("create portal session: customer id is empty")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"customer":   customerID,
			"return_url": c.appBaseURL + "/settings/billing",
		}).
		Post("/v1/billing_portal/sessions")
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create portal session: provider returned %d", resp.StatusCode())
	}

	url := gjson.GetBytes(resp.Body(), "url").String()
	if url == "" {
		return "", fmt.Errorf("create portal session: response carries no url")
	}
	return url, nil
}
