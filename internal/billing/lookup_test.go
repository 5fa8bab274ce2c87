package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/planauth/internal/model"
)

func TestParseStaticLookup(t *testing.T) {
	lookup, err := ParseStaticLookup(" prod_a:PREMIUM, prod_b:PRO ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lookup) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lookup))
	}
	if lookup["prod_a"] != model.PlanPremium || lookup["prod_b"] != model.PlanPro {
		t.Errorf("unexpected lookup: %v", lookup)
	}
}

func TestParseStaticLookup_Empty(t *testing.T) {
	lookup, err := ParseStaticLookup("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lookup) != 0 {
		t.Errorf("expected empty lookup, got %v", lookup)
	}
}

func TestParseStaticLookup_Invalid(t *testing.T) {
	for _, input := range []string{"prod_a", ":PRO", "prod_a:FREE", "prod_a:GOLD"} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseStaticLookup(input); err == nil {
				t.Errorf("expected error for %q", input)
			}
		})
	}
}

type stubLookup struct {
	plan model.Plan
	err  error
}

func (s stubLookup) PlanForProduct(context.Context, string) (model.Plan, error) {
	return s.plan, s.err
}

func TestChainLookup(t *testing.T) {
	ctx := context.Background()

	chain := ChainLookup{StaticLookup{"prod_a": model.PlanPremium}, stubLookup{plan: model.PlanPro}}
	if plan, err := chain.PlanForProduct(ctx, "prod_a"); err != nil || plan != model.PlanPremium {
		t.Errorf("expected PREMIUM from first lookup, got %s, %v", plan, err)
	}
	if plan, err := chain.PlanForProduct(ctx, "prod_x"); err != nil || plan != model.PlanPro {
		t.Errorf("expected PRO from fallback, got %s, %v", plan, err)
	}

	failing := ChainLookup{StaticLookup{}, stubLookup{err: errors.New("api down")}}
	if _, err := failing.PlanForProduct(ctx, "prod_x"); err == nil || errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected non-unknown error to propagate, got %v", err)
	}

	if _, err := (ChainLookup{}).PlanForProduct(ctx, "prod_x"); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestPlanFromMetadata(t *testing.T) {
	if plan, err := planFromMetadata(map[string]string{"plan": "PRO"}); err != nil || plan != model.PlanPro {
		t.Errorf("expected PRO, got %s, %v", plan, err)
	}
	for _, md := range []map[string]string{nil, {"plan": "FREE"}, {"plan": "pro"}} {
		if _, err := planFromMetadata(md); !errors.Is(err, ErrUnknownProduct) {
			t.Errorf("expected ErrUnknownProduct for %v, got %v", md, err)
		}
	}
}
