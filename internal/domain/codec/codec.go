// Package codec decodes broker payloads into typed messages and encodes
// outbound commands. The payload format is selected by topic, never sniffed.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/simon-relay/internal/domain/model"
)

// Sentinel decode errors.
var (
	ErrUnroutedTopic    = errors.New("no format registered for topic")
	ErrMalformedPayload = errors.New("malformed score payload")
	ErrNotNumeric       = errors.New("legacy payload is not numeric")
)

// Kind names a payload format.
type Kind string

const (
	KindStructuredScore Kind = "structured_score"
	KindLegacyNumeric   Kind = "legacy_numeric"
)

// Message is the decoded variant: StructuredScore or LegacyNumeric.
type Message interface {
	Kind() Kind
	isMessage()
}

// StructuredScore is a JSON {username, score} payload.
type StructuredScore struct {
	Username string
	Score    float64
}

func (StructuredScore) Kind() Kind { return KindStructuredScore }
func (StructuredScore) isMessage() {}

// LegacyNumeric is a bare numeric string payload.
type LegacyNumeric struct {
	Value float64
	Raw   string
}

func (LegacyNumeric) Kind() Kind { return KindLegacyNumeric }
func (LegacyNumeric) isMessage() {}

// Decoder routes topics to payload formats.
type Decoder struct {
	routes map[string]Kind
}

// NewDecoder returns a decoder with no routes.
func NewDecoder() *Decoder {
	return &Decoder{routes: make(map[string]Kind)}
}

// Route binds topic to kind. Later calls replace earlier ones.
func (d *Decoder) Route(topic string, kind Kind) *Decoder {
	d.routes[topic] = kind
	return d
}

// KindFor returns the format registered for topic.
func (d *Decoder) KindFor(topic string) (Kind, bool) {
	k, ok := d.routes[topic]
	return k, ok
}

// Decode parses payload according to the format bound to topic.
func (d *Decoder) Decode(topic string, payload []byte) (Message, error) {
	kind, ok := d.routes[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnroutedTopic, topic)
	}
	switch kind {
	case KindStructuredScore:
		return DecodeScore(payload)
	case KindLegacyNumeric:
		return DecodeLegacy(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnroutedTopic, topic)
	}
}

// DecodeScore requires a JSON object with a string username and a numeric
// score. Keys match exactly; encoding/json's case-insensitive field matching
// would let {"USERNAME":...} through.
func DecodeScore(payload []byte) (StructuredScore, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return StructuredScore{}, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return StructuredScore{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	var s StructuredScore
	if err := field(fields, "username", &s.Username); err != nil {
		return StructuredScore{}, err
	}
	if err := field(fields, "score", &s.Score); err != nil {
		return StructuredScore{}, err
	}
	return s, nil
}

func field(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing %s", ErrMalformedPayload, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, key, err)
	}
	return nil
}

// DecodeLegacy accepts payloads whose trimmed text parses as a finite number.
func DecodeLegacy(payload []byte) (LegacyNumeric, error) {
	raw := strings.TrimSpace(string(payload))
	if raw == "" {
		return LegacyNumeric{}, fmt.Errorf("%w: empty", ErrNotNumeric)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return LegacyNumeric{}, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return LegacyNumeric{Value: v, Raw: raw}, nil
}

// EncodeStart renders a start command as JSON.
func EncodeStart(cmd model.StartCommand) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode start command: %w", err)
	}
	return b, nil
}

// EncodeScore renders a score payload as JSON.
func EncodeScore(p model.ScorePayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode score: %w", err)
	}
	return b, nil
}
