package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/planauth/internal/model"
)

// ErrUnknownProduct は商品IDに対応する有料プランが見つからない場合のエラー。
var ErrUnknownProduct = errors.New("unknown product")

// PlanLookup は商品IDを有料プランに変換する。
type PlanLookup interface {
	PlanForProduct(ctx context.Context, productID string) (model.Plan, error)
}

// StaticLookup は設定で与えた商品ID→プランの対応表。
type StaticLookup map[string]model.Plan

// ParseStaticLookup は "prod_a:PREMIUM,prod_b:PRO" 形式の文字列を解析する。
func ParseStaticLookup(s string) (StaticLookup, error) {
	lookup := make(StaticLookup)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		productID, planName, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(productID) == "" {
			return nil, fmt.Errorf("invalid product mapping %q", pair)
		}
		plan, ok := model.ParsePlan(strings.TrimSpace(planName))
		if !ok || !plan.IsPaid() {
			return nil, fmt.Errorf("invalid plan %q for product %s", planName, productID)
		}
		lookup[strings.TrimSpace(productID)] = plan
	}
	return lookup, nil
}

// PlanForProduct は対応表からプランを返す。
func (l StaticLookup) PlanForProduct(_ context.Context, productID string) (model.Plan, error) {
	if plan, ok := l[productID]; ok {
		return plan, nil
	}
	return "", ErrUnknownProduct
}

// ChainLookup は先頭から順に問い合わせ、ErrUnknownProduct以外の結果を返す。
type ChainLookup []PlanLookup

// PlanForProduct は最初に解決できたプランを返す。
func (c ChainLookup) PlanForProduct(ctx context.Context, productID string) (model.Plan, error) {
	for _, l := range c {
		plan, err := l.PlanForProduct(ctx, productID)
		if errors.Is(err, ErrUnknownProduct) {
			continue
		}
		return plan, err
	}
	return "", ErrUnknownProduct
}

// planFromMetadata は商品メタデータの"plan"を有料プランとして解釈する。
func planFromMetadata(metadata map[string]string) (model.Plan, error) {
	plan, ok := model.ParsePlan(metadata["plan"])
	if !ok || !plan.IsPaid() {
		return "", ErrUnknownProduct
	}
	return plan, nil
}

var (
	_ PlanLookup = StaticLookup(nil)
	_ PlanLookup = ChainLookup(nil)
)
