package pricing

import "time"

// Outcome classifies what a sweep did with one item.
type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeMismatched  Outcome = "mismatched"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeUpdated     Outcome = "updated"
	OutcomeWriteFailed Outcome = "write_failed"
)

// NotificationStatus records whether a drop announcement went out.
type NotificationStatus string

const (
	NotificationNone      NotificationStatus = ""
	NotificationSent      NotificationStatus = "sent"
	NotificationDuplicate NotificationStatus = "duplicate"
	NotificationFailed    NotificationStatus = "failed"
)

// ItemResult is the per-item record of a sweep.
type ItemResult struct {
	ItemID       string             `json:"item_id"`
	Title        string             `json:"title"`
	StoredPrice  string             `json:"stored_price"`
	FetchedPrice string             `json:"fetched_price,omitempty"`
	Outcome      Outcome            `json:"outcome"`
	Notification NotificationStatus `json:"notification,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Report summarizes a sweep.
type Report struct {
	RunID        string       `json:"run_id"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Items        int          `json:"items"`
	Checked      int          `json:"checked"`
	Skipped      int          `json:"skipped"`
	Mismatched   int          `json:"mismatched"`
	Notified     int          `json:"notified"`
	Duplicates   int          `json:"duplicates"`
	NotifyFailed int          `json:"notify_failed"`
	Updated      int          `json:"updated"`
	WriteFailed  int          `json:"write_failed"`
	Results      []ItemResult `json:"results,omitempty"`
}

// Duration is the wall time the sweep took.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) add(result ItemResult) {
	if result.Outcome != OutcomeSkipped {
		r.Checked++
	}
	switch result.Outcome {
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeMismatched:
		r.Mismatched++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeWriteFailed:
		r.WriteFailed++
	}
	switch result.Notification {
	case NotificationSent:
		r.Notified++
	case NotificationDuplicate:
		r.Duplicates++
	case NotificationFailed:
		r.NotifyFailed++
	}
}
