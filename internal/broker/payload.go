package broker

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// CapturePayload is the body of an extraction job.
type CapturePayload struct {
	QueueItemID uuid.UUID `json:"queueItemId"`
	DeviceID    string    `json:"deviceId"`
	URL         string    `json:"url"`
}

func (p CapturePayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

func DecodeCapture(data []byte) (CapturePayload, error) {
	var p CapturePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode capture payload: %w", err)
	}
	if p.QueueItemID == uuid.Nil {
		return p, fmt.Errorf("decode capture payload: missing queueItemId")
	}
	return p, nil
}
