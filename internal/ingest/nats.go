package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"providence/internal/config"
	"providence/internal/domain"
	"providence/internal/intake"
)

// NATSSubscriber consumes alert batches via a JetStream queue consumer.
// Params: NATS connection and one queue subscription per configured worker,
// all members of the same deliver group feeding the processor.
// Returns: NATS intake lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber creates a JetStream queue consumer for alert intake.
// Params: base context for message processing, ingest NATS config, and
// the batch processor.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(ctx context.Context, cfg config.NATSIngestConfig, processor AlertProcessor, logger *slog.Logger) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
	}
	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	handler := func(message *nats.Msg) {
		messages, decodeErr := domain.DecodeAlertBatch(message.Data)
		if decodeErr != nil {
			if logger != nil {
				logger.Warn("nats intake decode failed", "subject", message.Subject, "error", decodeErr.Error())
			}
			// Malformed payloads never become valid; drop them.
			subscriber.ackMessage(message, "decode")
			return
		}
		outcomes := processor.ProcessBatch(ctx, messages)
		if retryable(outcomes) {
			if logger != nil {
				logger.Error("nats intake persistence failure", "subject", message.Subject, "batch", len(messages))
			}
			subscriber.nackMessage(message, nackDelay)
			return
		}
		subscriber.ackMessage(message, "processed")
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	for worker := 0; worker < workers; worker++ {
		sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, handler, subOpts...)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
		}
		subscriber.subs = append(subscriber.subs, sub)
	}
	return subscriber, nil
}

// retryable reports whether a batch hit a transient store failure.
// Params: per-message outcomes of one batch.
// Returns: true when redelivery can succeed; schema rejects are final.
func retryable(outcomes []domain.Outcome) bool {
	for _, outcome := range outcomes {
		if outcome.Status == domain.OutcomeRejected && outcome.Reason == intake.ReasonPersistenceFailure {
			return true
		}
	}
	return false
}

// ackMessage acknowledges a processed or poison message and logs ack failures.
// Params: JetStream message and short reason.
// Returns: none.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil && s.logger != nil {
		s.logger.Warn("nats intake ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver a message and logs nack failures.
// Params: JetStream message and optional delay.
// Returns: none.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("nats intake nack failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close stops every worker subscription and closes the connection.
// Params: none.
// Returns: first drain error.
func (s *NATSSubscriber) Close() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.nc.Close()
	return firstErr
}
