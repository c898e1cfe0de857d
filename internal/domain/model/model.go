// Package model contains domain models passed between layers.
package model

import "time"

// ConnectionState is the broker session state.
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string { return string(s) }

// Connected reports whether s is StateConnected.
func (s ConnectionState) Connected() bool { return s == StateConnected }

// InboundMessage is a broker delivery, independent of the transport.
type InboundMessage struct {
	Topic     string
	Payload   []byte
	QoS       byte
	Retained  bool
	MessageID uint16
}

// ScoreEvent is a validated score received from the broker. Immutable once built.
type ScoreEvent struct {
	Username   string    `json:"username"`
	Score      float64   `json:"score"`
	Topic      string    `json:"topic"`
	QoS        byte      `json:"qos"`
	Retained   bool      `json:"retain"`
	MessageID  uint16    `json:"messageId"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Record converts the event into its persisted form. ID and Date are left
// for the store to fill.
func (e ScoreEvent) Record() ScoreRecord {
	return ScoreRecord{
		Topic:     e.Topic,
		Payload:   ScorePayload{Username: e.Username, Score: e.Score},
		QoS:       int(e.QoS),
		Retain:    e.Retained,
		MessageID: int(e.MessageID),
	}
}

// ScorePayload is the body of a score message.
type ScorePayload struct {
	Username string  `json:"username" bson:"username"`
	Score    float64 `json:"score" bson:"score"`
}

// ScoreRecord is the persisted form of a score. Duplicates are allowed.
type ScoreRecord struct {
	ID        string       `json:"_id" bson:"_id"`
	Topic     string       `json:"topic" bson:"topic"`
	Payload   ScorePayload `json:"payload" bson:"payload"`
	QoS       int          `json:"qos" bson:"qos"`
	Retain    bool         `json:"retain" bson:"retain"`
	MessageID int          `json:"messageId" bson:"messageId"`
	Date      time.Time    `json:"date" bson:"date"`
}

// StartAction is the only command action.
const StartAction = "start"

// StartCommand asks the game to start a session for a player. Never stored.
type StartCommand struct {
	Action   string `json:"action"`
	Username string `json:"username"`
}

// NewStartCommand builds a start command for username.
func NewStartCommand(username string) StartCommand {
	return StartCommand{Action: StartAction, Username: username}
}

// LegacyReading is the last numeric value seen on the legacy topic.
type LegacyReading struct {
	Value      float64   `json:"value"`
	Raw        string    `json:"raw"`
	Topic      string    `json:"topic"`
	ReceivedAt time.Time `json:"receivedAt"`
}
