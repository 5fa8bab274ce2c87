package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/hitoshi/planauth/internal/model"
)

// StripeClient はStripe APIへの呼び出しをまとめる。
type StripeClient struct {
	sc *stripe.Client
}

// NewStripeClient はStripeClientを生成する。
func NewStripeClient(apiKey string) *StripeClient {
	return &StripeClient{sc: stripe.NewClient(apiKey)}
}

// CreateCustomer はStripeに顧客を作成し、顧客IDを返す。
func (c *StripeClient) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(email),
		Metadata: map[string]string{"userId": userID},
	}
	customer, err := c.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return customer.ID, nil
}

// PlanForProduct は商品メタデータの"plan"からプランを解決する。
// 商品が存在しない場合はErrUnknownProductを返す。
func (c *StripeClient) PlanForProduct(ctx context.Context, productID string) (model.Plan, error) {
	product, err := c.sc.V1Products.Retrieve(ctx, productID, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return "", ErrUnknownProduct
		}
		return "", fmt.Errorf("failed to retrieve stripe product: %w", err)
	}
	return planFromMetadata(product.Metadata)
}

// CreateCheckoutSession は月額サブスクリプションのCheckoutセッションを作成し、URLを返す。
// 商品メタデータにplanを含めるため、Webhookで商品からプランを解決できる。
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	metadata := map[string]string{
		"plan":   string(req.Offer.Plan),
		"userId": req.UserID,
	}
	params := &stripe.CheckoutSessionCreateParams{
		Customer: stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(Currency),
					UnitAmount: stripe.Int64(req.Offer.UnitAmount),
					Recurring: &stripe.CheckoutSessionCreateLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Offer.Name),
						Description: stripe.String(req.Offer.Description),
						Metadata:    metadata,
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata:   metadata,
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.ReturnURL),
		CancelURL:  stripe.String(req.ReturnURL),
	}

	session, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session.URL, nil
}

// WebhookVerifier はStripe-Signatureヘッダーを検証し、イベントを取り出す。
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier はWebhookVerifierを生成する。
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify は署名を検証し、Eventに変換する。
// 署名がない、または不正な場合はBadRequest種別のエラーを返す。
func (v *WebhookVerifier) Verify(payload []byte, signature string) (Event, error) {
	if signature == "" {
		return Event{}, model.NewInvalidSignatureError()
	}

	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, model.NewInvalidSignatureError()
	}

	return EventFromStripe(stripeEvent)
}

// EventFromStripe はstripe.Eventを変換する。サブスクリプション以外のイベントは種別のみを持つ。
func EventFromStripe(ev stripe.Event) (Event, error) {
	eventType := string(ev.Type)
	if !strings.HasPrefix(eventType, "customer.subscription.") || ev.Data == nil {
		return Event{ID: ev.ID, Type: eventType}, nil
	}
	return parseSubscriptionEvent(ev.ID, eventType, ev.Data.Raw)
}

var (
	_ PlanLookup             = (*StripeClient)(nil)
	_ CheckoutSessionCreator = (*StripeClient)(nil)
)
