// Package relay moves messages between the broker, the state container and
// the persistence queue, and publishes commands on behalf of HTTP callers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/simon-relay/internal/adapters/broker"
	"github.com/okian/simon-relay/internal/domain/codec"
	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/internal/state"
	"github.com/okian/simon-relay/pkg/logger"
	"github.com/okian/simon-relay/pkg/metrics"
)

// Fixed payloads of the legacy endpoints.
const (
	LegacyStartPayload = "start"
	TestMessagePayload = "Hello MQTT"
)

// Publisher is the outbound half of the broker connection.
type Publisher interface {
	Connected() bool
	Publish(ctx context.Context, topic string, payload []byte, opts broker.PublishOptions) error
}

// Sink accepts score events for persistence. Enqueue must not block.
type Sink interface {
	Enqueue(ctx context.Context, e model.ScoreEvent) bool
}

// PublishResult reports the outcome of one outbound publish. Err is nil on
// success and otherwise wraps ErrEmptyUsername, ErrDisconnected or the
// transport error.
type PublishResult struct {
	Topic   string
	Payload []byte
	Err     error
}

// OK reports whether the publish succeeded.
func (r PublishResult) OK() bool { return r.Err == nil }

// Relay is safe for concurrent use.
type Relay struct {
	pub     Publisher
	state   *state.Container
	sink    Sink
	decoder *codec.Decoder
	topics  Topics
	qos     byte
	legacy  bool
	log     logger.Logger
	now     func() time.Time
}

// New builds a relay publishing through pub and recording into st.
func New(pub Publisher, st *state.Container, opts ...Option) *Relay {
	r := &Relay{
		pub:    pub,
		state:  st,
		topics: DefaultTopics(),
		legacy: true,
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.decoder = codec.NewDecoder().Route(r.topics.Score, codec.KindStructuredScore)
	if r.legacy && r.topics.Legacy != r.topics.Score {
		r.decoder.Route(r.topics.Legacy, codec.KindLegacyNumeric)
	}
	return r
}

// Topics returns the topics the relay wants delivered to HandleMessage.
func (r *Relay) Topics() []string {
	out := []string{r.topics.Score}
	if _, ok := r.decoder.KindFor(r.topics.Legacy); ok {
		out = append(out, r.topics.Legacy)
	}
	return out
}

// QoS returns the QoS used for subscriptions and publishes.
func (r *Relay) QoS() byte { return r.qos }

// HandleMessage decodes msg and applies it. Invalid messages are logged and
// dropped; nothing is returned to the broker.
func (r *Relay) HandleMessage(ctx context.Context, msg model.InboundMessage) {
	decoded, err := r.decoder.Decode(msg.Topic, msg.Payload)
	switch {
	case errors.Is(err, codec.ErrUnroutedTopic):
		metrics.RecordMessageDropped("unrouted")
		r.log.Debug(ctx, "ignoring message on unrouted topic", logger.String("topic", msg.Topic))
		return
	case errors.Is(err, codec.ErrNotNumeric):
		metrics.RecordMessageDropped("not_numeric")
		r.log.Debug(ctx, "ignoring non-numeric legacy message",
			logger.String("topic", msg.Topic),
			logger.String("payload", string(msg.Payload)))
		return
	case err != nil:
		metrics.RecordMessageDropped("malformed")
		r.log.Warn(ctx, "discarding invalid score message",
			logger.String("topic", msg.Topic),
			logger.String("payload", string(msg.Payload)),
			logger.Error(err))
		return
	}

	metrics.RecordMessageReceived(msg.Topic, string(decoded.Kind()))
	switch m := decoded.(type) {
	case codec.StructuredScore:
		r.handleScore(ctx, msg, m)
	case codec.LegacyNumeric:
		r.state.RecordLegacy(model.LegacyReading{
			Value:      m.Value,
			Raw:        m.Raw,
			Topic:      msg.Topic,
			ReceivedAt: r.now(),
		})
		r.log.Debug(ctx, "legacy score updated", logger.Float64("value", m.Value))
	}
}

func (r *Relay) handleScore(ctx context.Context, msg model.InboundMessage, s codec.StructuredScore) {
	e := model.ScoreEvent{
		Username:   s.Username,
		Score:      s.Score,
		Topic:      msg.Topic,
		QoS:        msg.QoS,
		Retained:   msg.Retained,
		MessageID:  msg.MessageID,
		ReceivedAt: r.now(),
	}
	r.state.RecordScore(e)

	fields := []logger.Field{logger.String("username", e.Username), logger.Float64("score", e.Score)}
	if r.sink == nil {
		r.log.Info(ctx, "score received", fields...)
		return
	}
	if !r.sink.Enqueue(ctx, e) {
		r.log.Error(ctx, "score not queued for persistence", fields...)
		return
	}
	r.log.Debug(ctx, "score queued for persistence", fields...)
}

// StartSession publishes a start command for username to the start topic.
func (r *Relay) StartSession(ctx context.Context, username string) PublishResult {
	username = strings.TrimSpace(username)
	if username == "" {
		return PublishResult{Topic: r.topics.Start, Err: ErrEmptyUsername}
	}
	payload, err := codec.EncodeStart(model.NewStartCommand(username))
	if err != nil {
		return PublishResult{Topic: r.topics.Start, Err: err}
	}
	return r.publish(ctx, r.topics.Start, payload)
}

// PublishLegacyStart publishes the bare "start" string to the legacy topic.
func (r *Relay) PublishLegacyStart(ctx context.Context) PublishResult {
	return r.publish(ctx, r.topics.Legacy, []byte(LegacyStartPayload))
}

// PublishTestMessage publishes "Hello MQTT" to the legacy topic.
func (r *Relay) PublishTestMessage(ctx context.Context) PublishResult {
	return r.publish(ctx, r.topics.Legacy, []byte(TestMessagePayload))
}

func (r *Relay) publish(ctx context.Context, topic string, payload []byte) PublishResult {
	res := PublishResult{Topic: topic, Payload: payload}
	if !r.pub.Connected() {
		metrics.RecordPublishRejected(topic)
		res.Err = ErrDisconnected
		r.log.Warn(ctx, "publish refused while disconnected", logger.String("topic", topic))
		return res
	}

	err := r.pub.Publish(ctx, topic, payload, broker.PublishOptions{QoS: r.qos})
	switch {
	case errors.Is(err, broker.ErrNotConnected):
		res.Err = fmt.Errorf("%w: %w", ErrDisconnected, err)
	case err != nil:
		res.Err = err
	}
	if res.Err != nil {
		r.log.Error(ctx, "publish failed", logger.String("topic", topic), logger.Error(res.Err))
		return res
	}
	r.log.Info(ctx, "published", logger.String("topic", topic), logger.String("payload", string(payload)))
	return res
}
