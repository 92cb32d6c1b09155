package notify

import (
	"encoding/json"
	"time"
)

type DeliveryFailure struct {
	SubscriberID int64  `json:"subscriber_id"`
	Reason       string `json:"reason"`
	Attempts     int    `json:"attempts"`
}

// FanoutReport aggregates one broadcast. Failures is unordered.
type FanoutReport struct {
	RunID     string            `json:"run_id"`
	EventID   uint64            `json:"event_id,omitempty"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Attempts  int               `json:"attempts"`
	Failures  []DeliveryFailure `json:"failures,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration_ns"`
}

func (r FanoutReport) JSON() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}
