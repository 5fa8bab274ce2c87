package billing

import (
	"context"

	"github.com/hitoshi/planauth/internal/model"
)

// Currency はCheckoutの通貨。
const Currency = "eur"

// PlanOffer は購入可能なプランと月額料金（最小通貨単位）。
type PlanOffer struct {
	Plan        model.Plan
	Name        string
	Description string
	UnitAmount  int64
}

var offers = map[model.Plan]PlanOffer{
	model.PlanPremium: {
		Plan:        model.PlanPremium,
		Name:        "Plan PREMIUM",
		Description: "Plan PREMIUM description",
		UnitAmount:  1000,
	},
	model.PlanPro: {
		Plan:        model.PlanPro,
		Name:        "Plan PRO",
		Description: "Plan PRO description",
		UnitAmount:  2000,
	},
}

// OfferFor はプラン名から購入可能なプランを返す。FREEや未知の値はBadRequest種別のエラーになる。
func OfferFor(planName string) (PlanOffer, error) {
	plan, ok := model.ParsePlan(planName)
	if !ok {
		return PlanOffer{}, model.NewInvalidPlanError(planName)
	}
	offer, ok := offers[plan]
	if !ok {
		return PlanOffer{}, model.NewInvalidPlanError(planName)
	}
	return offer, nil
}

// CheckoutRequest はCheckoutセッション作成の入力。
type CheckoutRequest struct {
	CustomerID string
	UserID     string
	Offer      PlanOffer
	ReturnURL  string
}

// CheckoutSessionCreator はCheckoutセッションを作成し、遷移先URLを返す。
type CheckoutSessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// Checkout はユーザーのプラン購入を開始する。
type Checkout struct {
	creator   CheckoutSessionCreator
	returnURL string
}

// NewCheckout はCheckoutを生成する。returnURLは決済完了・キャンセル後の戻り先。
func NewCheckout(creator CheckoutSessionCreator, returnURL string) *Checkout {
	return &Checkout{creator: creator, returnURL: returnURL}
}

// Start はユーザーの顧客IDでCheckoutセッションを作成し、URLを返す。
func (c *Checkout) Start(ctx context.Context, user *model.User, planName string) (string, error) {
	offer, err := OfferFor(planName)
	if err != nil {
		return "", err
	}
	return c.creator.CreateCheckoutSession(ctx, CheckoutRequest{
		CustomerID: user.StripeCustomerID,
		UserID:     user.ID,
		Offer:      offer,
		ReturnURL:  c.returnURL,
	})
}
