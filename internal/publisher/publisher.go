package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/pricewatch/tracker/internal/metrics"
	"github.com/pricewatch/tracker/pkg/model"
)

// jetStream is the slice of nats.JetStreamContext the publisher needs.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher wraps a NATS connection and publishes canonical tracker events.
type Publisher struct {
	logger        *zap.Logger
	js            jetStream
	subjectPrefix string
	service       string
}

// New creates a new Publisher with JetStream enabled.
func New(logger *zap.Logger, nc *nats.Conn, subjectPrefix, service string) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		logger:        logger,
		js:            js,
		subjectPrefix: subjectPrefix,
		service:       service,
	}, nil
}

// ObservationRecorded emits an event after a scan appends a price observation.
func (p *Publisher) ObservationRecorded(ctx context.Context, evt model.ObservationRecordedEvent) {
	p.publish(ctx, p.subjectPrefix+".observation.v1", "observation_recorded", evt)
}

// PolicyApplied emits an event after an apply-to-products pass completes.
func (p *Publisher) PolicyApplied(ctx context.Context, evt model.PolicyAppliedEvent) {
	p.publish(ctx, p.subjectPrefix+".policy_applied.v1", "policy_applied", evt)
}

// publish serializes and publishes an event envelope. Publish failures are
// logged and counted but never propagate: eventing is best-effort and must
// not fail the write that triggered it.
func (p *Publisher) publish(_ context.Context, subject, eventType string, payload any) {
	env := model.Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		CorrelationID: uuid.New(),
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.String("event_type", eventType),
			zap.Error(err))
		metrics.IncError("publisher", "marshal_failed")
		return
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{eventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", eventType),
			zap.Error(err))
		metrics.IncNATSMessage(subject, "error")
		return
	}

	metrics.IncNATSMessage(subject, "ok")
}
