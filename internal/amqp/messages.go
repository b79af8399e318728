package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// InvalidationMessage announces that an instance changed one resource.
// Receivers refresh their own copy; the message carries no data.
type InvalidationMessage struct {
	Resource  string    `json:"resource"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidationMessage creates a message stamped with the current time.
func NewInvalidationMessage(resource, origin string) *InvalidationMessage {
	return &InvalidationMessage{
		Resource:  resource,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON decodes and checks a message.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Resource == "" {
		return nil, errors.New("invalidation message without resource")
	}
	return &msg, nil
}
