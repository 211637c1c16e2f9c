package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a tracked product in a transport-friendly format.
type Item struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Price           string   `json:"price"`
	PrimaryBookID   string   `json:"primaryBookId,omitempty"`
	SecondaryBookID string   `json:"secondaryBookId,omitempty"`
	Subscribers     []string `json:"subscribers"`
}

// Tracker lists the items one subscriber follows.
type Tracker struct {
	SubscriberID string   `json:"subscriberId"`
	Items        []string `json:"items"`
}

// ItemListResponse wraps the item listing.
type ItemListResponse struct {
	Items []Item `json:"items"`
}

// TrackerListResponse wraps the tracker listing.
type TrackerListResponse struct {
	Trackers []Tracker `json:"trackers"`
}

// TrackRequest is the body of a track webhook.
type TrackRequest struct {
	Item       string `json:"item"`
	Subscriber string `json:"subscriber"`
}

// TrackResponse acknowledges a new subscription.
type TrackResponse struct {
	ItemID     string `json:"itemId"`
	Subscriber string `json:"subscriber"`
}

// UnfollowRequest is the body of an unfollow webhook.
type UnfollowRequest struct {
	Subscriber string `json:"subscriber"`
}

// SweepAccepted is returned when a sweep has been started in the background.
type SweepAccepted struct {
	RunID string `json:"runId"`
}

// SweepSummary carries the counters of a finished sweep.
type SweepSummary struct {
	RunID        string `json:"runId"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	DurationMS   int64  `json:"durationMs"`
	Items        int    `json:"items"`
	Checked      int    `json:"checked"`
	Skipped      int    `json:"skipped"`
	Mismatched   int    `json:"mismatched"`
	Notified     int    `json:"notified"`
	Duplicates   int    `json:"duplicates"`
	NotifyFailed int    `json:"notifyFailed"`
	Updated      int    `json:"updated"`
	WriteFailed  int    `json:"writeFailed"`
	Error        string `json:"error,omitempty"`
}

// RepairSummary carries the counters of a repair pass.
type RepairSummary struct {
	TrackerLinksAdded int      `json:"trackerLinksAdded"`
	TrackersCreated   int      `json:"trackersCreated"`
	DanglingDropped   int      `json:"danglingDropped"`
	StaleLinksDropped int      `json:"staleLinksDropped"`
	ItemsDeleted      int      `json:"itemsDeleted"`
	TrackersDeleted   int      `json:"trackersDeleted"`
	DocumentsWritten  int      `json:"documentsWritten"`
	Unreadable        []string `json:"unreadable,omitempty"`
	Failures          []string `json:"failures,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// ItemFailure names an item an unfollow could not release.
type ItemFailure struct {
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
}

// UnfollowResponse reports what an unfollow did.
type UnfollowResponse struct {
	SubscriberID string        `json:"subscriberId"`
	Found        bool          `json:"found"`
	Released     []string      `json:"released"`
	Deleted      []string      `json:"deleted"`
	Failed       []ItemFailure `json:"failed,omitempty"`
}

// DaemonStatus aggregates runtime information about the daemon.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StoreDriver   string         `json:"storeDriver"`
	LockFilePath  string         `json:"lockFilePath"`
	SweepLockPath string         `json:"sweepLockPath"`
	SweepInFlight bool           `json:"sweepInFlight"`
	NextSweepAt   string         `json:"nextSweepAt,omitempty"`
	LastSweep     *SweepSummary  `json:"lastSweep,omitempty"`
	LastRepair    *RepairSummary `json:"lastRepair,omitempty"`
	Items         int            `json:"items"`
	Trackers      int            `json:"trackers"`
	StoreError    string         `json:"storeError,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
