package model

// ClickEvent records one successful resolution of a short code.
type ClickEvent struct {
	ID              string `json:"id"`
	OwnerID         int64  `json:"owner_id"`
	TimestampMillis int64  `json:"timestamp_millis"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
