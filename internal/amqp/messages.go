package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseSyncMessage tells the worker that an expense row needs mirroring.
// It deliberately carries only the id and version; the worker reads the
// current row from the database, so a stale message can never overwrite
// fresher data.
type ExpenseSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseSyncMessage(id string, version int64) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AchievementUnlockedMessage is broadcast when the analytics run unlocks a
// new badge. External consumers (notification bots and the like) subscribe
// to the events queue; nothing in this process consumes it.
type AchievementUnlockedMessage struct {
	AchievementID string    `json:"achievement_id"`
	Title         string    `json:"title"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

func NewAchievementUnlockedMessage(id, title string, unlockedAt time.Time) *AchievementUnlockedMessage {
	return &AchievementUnlockedMessage{
		AchievementID: id,
		Title:         title,
		UnlockedAt:    unlockedAt,
	}
}

func (m *AchievementUnlockedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AchievementUnlockedMessageFromJSON(data []byte) (*AchievementUnlockedMessage, error) {
	var msg AchievementUnlockedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
