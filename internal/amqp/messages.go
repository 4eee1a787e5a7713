package amqp

import (
	"encoding/json"
	"time"
)

// CategorySyncMessage announces newly seen custom category tags to the
// worker. It carries the tag names only; the worker owns the ledger write
// and the queue bookkeeping.
type CategorySyncMessage struct {
	Tags      []string  `json:"tags"`
	Timestamp time.Time `json:"timestamp"`
}

func NewCategorySyncMessage(tags []string) *CategorySyncMessage {
	return &CategorySyncMessage{
		Tags:      tags,
		Timestamp: time.Now(),
	}
}

func (m *CategorySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CategorySyncMessageFromJSON(data []byte) (*CategorySyncMessage, error) {
	var msg CategorySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
