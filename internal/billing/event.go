// Package billing は課金プロバイダーのイベントをユーザーのプラン状態に反映する。
package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// 処理対象のイベント種別。
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// サブスクリプションの状態。
const (
	StatusActive            = "active"
	StatusCanceled          = "canceled"
	StatusIncompleteExpired = "incomplete_expired"
	StatusUnpaid            = "unpaid"
	StatusPastDue           = "past_due"
	StatusPaused            = "paused"
)

// downgradeStatuses はFREEへ戻す状態の集合。
var downgradeStatuses = map[string]bool{
	StatusCanceled:          true,
	StatusIncompleteExpired: true,
	StatusUnpaid:            true,
	StatusPastDue:           true,
	StatusPaused:            true,
}

// Event は署名検証済みの課金イベント。
// 時刻はすべてイベントのペイロードから取り、ローカルでは計算しない。
type Event struct {
	ID                 string
	Type               string
	CustomerID         string
	Status             string
	ProductID          string
	CreatedAt          time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// expandableID はIDの文字列と展開済みオブジェクトの両方を受け付ける。
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type subscriptionItem struct {
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	Price              *struct {
		Product expandableID `json:"product"`
	} `json:"price"`
	Plan *struct {
		Product expandableID `json:"product"`
	} `json:"plan"`
}

// subscriptionPayload はサブスクリプションイベントのdata.objectのうち使用する項目。
// 新しいAPIバージョンでは期間がitems側にのみ存在する。
type subscriptionPayload struct {
	ID                 string       `json:"id"`
	Customer           expandableID `json:"customer"`
	Status             string       `json:"status"`
	Created            int64        `json:"created"`
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	Items              struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

// parseSubscriptionEvent はdata.objectのJSONからEventを組み立てる。
func parseSubscriptionEvent(id, eventType string, raw json.RawMessage) (Event, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Event{}, fmt.Errorf("failed to parse subscription payload: %w", err)
	}

	ev := Event{
		ID:         id,
		Type:       eventType,
		CustomerID: string(sub.Customer),
		Status:     sub.Status,
		CreatedAt:  unixTime(sub.Created),
	}

	periodStart, periodEnd := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if periodStart == 0 {
			periodStart = item.CurrentPeriodStart
		}
		if periodEnd == 0 {
			periodEnd = item.CurrentPeriodEnd
		}
		switch {
		case item.Price != nil && item.Price.Product != "":
			ev.ProductID = string(item.Price.Product)
		case item.Plan != nil:
			ev.ProductID = string(item.Plan.Product)
		}
	}
	ev.CurrentPeriodStart = unixTime(periodStart)
	ev.CurrentPeriodEnd = unixTime(periodEnd)

	return ev, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
