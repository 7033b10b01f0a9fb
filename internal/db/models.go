package db

import (
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/haul/pkg/utils/language"
)

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "PENDING"
	QueueStatusProcessing QueueStatus = "PROCESSING"
	QueueStatusCompleted  QueueStatus = "COMPLETED"
	QueueStatusFailed     QueueStatus = "FAILED"
)

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusCompleted, QueueStatusFailed:
		return true
	}
	return false
}

type Device struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type QueueItem struct {
	ID        uuid.UUID    `json:"id"`
	DeviceID  string       `json:"deviceId"`
	URL       string       `json:"url"`
	Language  language.Tag `json:"language"`
	Status    QueueStatus  `json:"status"`
	LastError *string      `json:"lastError,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// QueueItemWithDevice is a queue item joined with its owning device row.
type QueueItemWithDevice struct {
	QueueItem
	Device Device `json:"device"`
}

type Category struct {
	ID          uuid.UUID `json:"id"`
	DeviceID    string    `json:"deviceId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Product struct {
	ID               uuid.UUID `json:"id"`
	CategoryID       uuid.UUID `json:"categoryId"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Icon             *string   `json:"icon,omitempty"`
	MentionedContent string    `json:"mentionedContent"`
	TiktokURL        string    `json:"tiktokUrl"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
