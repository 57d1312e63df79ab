package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/stillherehq/stillhere-backend/internal/models"
)

// PricingTier is one row of the public pricing table.
type PricingTier struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PriceCents     int    `json:"price_cents"`
	PostsLimit     int    `json:"posts_limit"`
	PlatformsLimit int    `json:"platforms_limit"`
}

// PricingTiers is ordered cheapest first. Limits here drive plan enforcement,
// so changing them changes what the middleware allows.
var PricingTiers = []PricingTier{
	{ID: "free", Name: "Free", PriceCents: 0, PostsLimit: 3, PlatformsLimit: 1},
	{ID: "starter", Name: "Starter", PriceCents: 2900, PostsLimit: 12, PlatformsLimit: 3},
	{ID: "pro", Name: "Pro", PriceCents: 7900, PostsLimit: 30, PlatformsLimit: 10},
	{ID: "agency", Name: "Agency", PriceCents: 19900, PostsLimit: 100, PlatformsLimit: 10},
}

func tierByID(id string) (PricingTier, bool) {
	for _, t := range PricingTiers {
		if t.ID == id {
			return t, true
		}
	}
	return PricingTier{}, false
}

var stripeClient *client.API

func initStripe() {
	if stripeClient != nil {
		return
	}
	secretKey := os.Getenv("STRIPE_SECRET_KEY")
	if secretKey == "" {
		log.Printf("[Billing] STRIPE_SECRET_KEY not set, Stripe features disabled")
		return
	}
	stripeClient = &client.API{}
	stripeClient.Init(secretKey, nil)
}

func (h *Handler) GetPricingTiers(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, PricingTiers)
}

// GetSubscriptionForUser returns the current plan and usage. Users who never
// completed onboarding have no row and read as the free tier.
func (h *Handler) GetSubscriptionForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	var sub models.Subscription
	err := h.db.QueryRow(`
		SELECT id, user_id, tier, posts_limit, platforms_limit, current_month_posts, billing_cycle_start, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID).Scan(
		&sub.ID, &sub.UserID, &sub.Tier, &sub.PostsLimit, &sub.PlatformsLimit,
		&sub.CurrentMonthPosts, &sub.BillingCycleStart, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		free, _ := tierByID("free")
		writeJSON(w, http.StatusOK, map[string]any{
			"tier":                "free",
			"posts_limit":         free.PostsLimit,
			"platforms_limit":     free.PlatformsLimit,
			"current_month_posts": 0,
		})
		return
	}
	if err != nil {
		log.Printf("[Billing][Subscription] query error userId=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type checkoutRequest struct {
	Tier       string `json:"tier"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CreateCheckoutSessionForUser starts a Stripe Checkout session for a paid
// tier. The tier id rides in session metadata so the webhook can apply the
// upgrade once payment settles.
func (h *Handler) CreateCheckoutSessionForUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	initStripe()
	if stripeClient == nil {
		writeError(w, http.StatusServiceUnavailable, "Stripe not configured")
		return
	}

	userID := pathVar(r, "userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	tier, ok := tierByID(req.Tier)
	if !ok || tier.ID == "free" {
		writeError(w, http.StatusBadRequest, "invalid tier")
		return
	}
	if req.SuccessURL == "" {
		req.SuccessURL = os.Getenv("BILLING_SUCCESS_URL")
	}
	if req.CancelURL == "" {
		req.CancelURL = os.Getenv("BILLING_CANCEL_URL")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(int64(tier.PriceCents)),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(tier.Name + " plan"),
					},
				},
			},
		},
	}
	params.AddMetadata("tier", tier.ID)
	params.AddMetadata("user_id", userID)

	session, err := stripeClient.CheckoutSessions.New(params)
	if err != nil {
		log.Printf("[Billing][Checkout] session error userId=%s tier=%s err=%v", userID, tier.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	log.Printf("[Billing][Checkout] ok userId=%s tier=%s sessionId=%s", userID, tier.ID, session.ID)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": session.ID, "url": session.URL})
}

// StripeWebhook applies checkout completions and subscription cancellations
// to the stored plan.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Billing][Webhook] read error: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var event stripe.Event
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if webhookSecret != "" {
		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			writeError(w, http.StatusBadRequest, "Missing signature")
			return
		}
		event, err = webhook.ConstructEvent(payload, sig, webhookSecret)
		if err != nil {
			log.Printf("[Billing][Webhook] signature verification error: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
	} else {
		log.Printf("[Billing][Webhook] STRIPE_WEBHOOK_SECRET not set, skipping signature verification")
		if err := json.Unmarshal(payload, &event); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	h.processStripeEvent(event)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) processStripeEvent(event stripe.Event) {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("[Billing][Webhook] session unmarshal error: %v", err)
			return
		}
		userID := session.ClientReferenceID
		if userID == "" {
			userID = session.Metadata["user_id"]
		}
		h.applyTier(userID, session.Metadata["tier"])
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Printf("[Billing][Webhook] subscription unmarshal error: %v", err)
			return
		}
		h.applyTier(sub.Metadata["user_id"], "free")
	default:
		log.Printf("[Billing][Webhook] unhandled event type: %s", event.Type)
	}
}

// applyTier upserts the subscription row to a tier's limits and resets the
// billing cycle. Monthly usage carries over within the same cycle.
func (h *Handler) applyTier(userID, tierID string) {
	if userID == "" {
		log.Printf("[Billing][ApplyTier] missing userId tier=%s", tierID)
		return
	}
	tier, ok := tierByID(tierID)
	if !ok {
		log.Printf("[Billing][ApplyTier] unknown tier userId=%s tier=%s", userID, tierID)
		return
	}
	_, err := h.db.Exec(`
		INSERT INTO subscriptions (id, user_id, tier, posts_limit, platforms_limit, current_month_posts, billing_cycle_start, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			tier                = $3,
			posts_limit         = $4,
			platforms_limit     = $5,
			billing_cycle_start = NOW(),
			updated_at          = NOW()
	`, fmt.Sprintf("sub_%d", time.Now().UTC().UnixNano()), userID, tier.ID, tier.PostsLimit, tier.PlatformsLimit)
	if err != nil {
		log.Printf("[Billing][ApplyTier] upsert error userId=%s tier=%s err=%v", userID, tier.ID, err)
		return
	}
	log.Printf("[Billing][ApplyTier] ok userId=%s tier=%s", userID, tier.ID)

	queueURL := "/dashboard?tab=billing"
	h.createNotification(userID, "update", "Plan updated",
		fmt.Sprintf("Your plan is now %s", tier.Name), &queueURL)
}
