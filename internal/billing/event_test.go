package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"
)

func TestParseSubscriptionEvent_ItemPeriods(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"created": 1704067200,
		"items": {"data": [{
			"current_period_start": 1706745600,
			"current_period_end": 1709251200,
			"price": {"product": "prod_pro"}
		}]}
	}`)

	ev, err := parseSubscriptionEvent("evt_1", EventSubscriptionUpdated, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.CustomerID != "cus_1" {
		t.Errorf("expected customer cus_1, got %q", ev.CustomerID)
	}
	if ev.Status != StatusActive {
		t.Errorf("expected status active, got %q", ev.Status)
	}
	if ev.ProductID != "prod_pro" {
		t.Errorf("expected product prod_pro, got %q", ev.ProductID)
	}
	if !ev.CreatedAt.Equal(time.Unix(1704067200, 0)) {
		t.Errorf("unexpected CreatedAt: %v", ev.CreatedAt)
	}
	if !ev.CurrentPeriodStart.Equal(time.Unix(1706745600, 0)) {
		t.Errorf("unexpected CurrentPeriodStart: %v", ev.CurrentPeriodStart)
	}
	if !ev.CurrentPeriodEnd.Equal(time.Unix(1709251200, 0)) {
		t.Errorf("unexpected CurrentPeriodEnd: %v", ev.CurrentPeriodEnd)
	}
}

func TestParseSubscriptionEvent_TopLevelPeriodsAndExpandedObjects(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_1",
		"customer": {"id": "cus_2", "object": "customer"},
		"status": "active",
		"created": 100,
		"current_period_start": 200,
		"current_period_end": 300,
		"items": {"data": [{
			"current_period_start": 999,
			"current_period_end": 999,
			"plan": {"product": {"id": "prod_premium"}}
		}]}
	}`)

	ev, err := parseSubscriptionEvent("evt_2", EventSubscriptionUpdated, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.CustomerID != "cus_2" {
		t.Errorf("expected customer cus_2, got %q", ev.CustomerID)
	}
	if ev.ProductID != "prod_premium" {
		t.Errorf("expected product prod_premium, got %q", ev.ProductID)
	}
	if ev.CurrentPeriodStart.Unix() != 200 || ev.CurrentPeriodEnd.Unix() != 300 {
		t.Errorf("expected top-level periods to win, got %v - %v", ev.CurrentPeriodStart, ev.CurrentPeriodEnd)
	}
}

func TestParseSubscriptionEvent_MissingFieldsAreZero(t *testing.T) {
	ev, err := parseSubscriptionEvent("evt_3", EventSubscriptionDeleted, json.RawMessage(`{"customer": null, "status": "canceled"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.CustomerID != "" || ev.ProductID != "" {
		t.Errorf("expected empty ids, got %+v", ev)
	}
	if !ev.CreatedAt.IsZero() || !ev.CurrentPeriodEnd.IsZero() {
		t.Errorf("expected zero times, got %+v", ev)
	}
}

func TestParseSubscriptionEvent_InvalidJSON(t *testing.T) {
	if _, err := parseSubscriptionEvent("evt", EventSubscriptionUpdated, json.RawMessage(`{"customer": 1}`)); err == nil {
		t.Error("expected error for invalid payload")
	}
}

func TestEventFromStripe_NonSubscriptionEvent(t *testing.T) {
	ev, err := EventFromStripe(stripe.Event{
		ID:   "evt_4",
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"customer": "cus_1"}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ID != "evt_4" || ev.Type != "invoice.paid" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.CustomerID != "" {
		t.Errorf("expected payload not to be parsed, got customer %q", ev.CustomerID)
	}
}
