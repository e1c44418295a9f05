// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/goccy/go-json"

	"github.com/tomtom215/auditcore/internal/audit"
)

// SubscriberConfig configures the durable JetStream subscription that feeds
// audit events into the Reliable Event Processor.
type SubscriberConfig struct {
	URL              string
	Topic            string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	StreamName       string
}

// DefaultSubscriberConfig returns production defaults for url/topic.
func DefaultSubscriberConfig(url, topic string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		Topic:            topic,
		DurableName:      "audit-processor",
		QueueGroup:       "audit-processors",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// Subscriber wraps a Watermill NATS JetStream subscriber for durable,
// queue-grouped consumption of audit events across multiple processor
// instances.
type Subscriber struct {
	subscriber message.Subscriber
	config     SubscriberConfig
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable JetStream subscriber from cfg.
func NewSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("subscriber reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}

	// StreamName is required when the topic carries a wildcard (e.g.
	// "audit.events.>"), since NATS stream names cannot themselves
	// contain wildcards and AutoProvision would try to create one named
	// after the subject.
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub, config: cfg, logger: logger}, nil
}

// Close shuts down the underlying subscriber connection.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}

// unmarshalEvent decodes a message payload into an audit.Event.
func unmarshalEvent(payload []byte) (audit.Event, error) {
	var event audit.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal audit event: %w", err)
	}
	return event, nil
}

// IngestPump is a Runner: it subscribes to the configured topic and
// submits every decoded message to the Processor, acking once the
// Processor reports the job durably persisted or durably dead-lettered,
// and nacking otherwise so JetStream redelivers. It satisfies
// internal/supervisor/services.Runner without that package needing to
// import eventprocessor.
//
// handle blocks on the job's completion channel, so it runs each message
// in its own goroutine (bounded in practice by the subscription's
// MaxAckPending) rather than serializing the pump loop behind processing.
type IngestPump struct {
	sub       *Subscriber
	processor *Processor
	topic     string

	cancel  context.CancelFunc
	done    chan struct{}
	inFlight sync.WaitGroup
}

// NewIngestPump pairs a Subscriber with the Processor it feeds.
func NewIngestPump(sub *Subscriber, processor *Processor) *IngestPump {
	return &IngestPump{sub: sub, processor: processor, topic: sub.config.Topic}
}

// Start implements services.Runner: it subscribes and begins pumping
// messages into the Processor in a background goroutine.
func (p *IngestPump) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	messages, err := p.sub.subscriber.Subscribe(runCtx, p.topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", p.topic, err)
	}

	go p.pump(runCtx, messages)
	return nil
}

func (p *IngestPump) pump(ctx context.Context, messages <-chan *message.Message) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			p.inFlight.Add(1)
			go func() {
				defer p.inFlight.Done()
				p.handle(ctx, msg)
			}()
		}
	}
}

// handle decodes msg and submits it to the Processor, then blocks until
// the Processor reports the job's terminal outcome before acking. This
// ordering matters: acking as soon as Submit enqueues the job (rather than
// once it is durably persisted or dead-lettered) would let an in-flight
// event vanish with no redelivery if the process crashes before a worker
// drains it.
func (p *IngestPump) handle(ctx context.Context, msg *message.Message) {
	event, err := unmarshalEvent(msg.Payload)
	if err != nil {
		// Malformed payloads can never succeed on redelivery; ack to drop
		// them rather than filling the stream with poison messages. The
		// Dead-Letter Handler only sees events that decoded successfully.
		msg.Ack()
		return
	}

	done, err := p.processor.Submit(ctx, event, msg.UUID, p.sub.config.Topic)
	if err != nil {
		msg.Nack()
		return
	}

	select {
	case outcome := <-done:
		if outcome != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	case <-ctx.Done():
		msg.Nack()
	}
}

// Shutdown implements services.Runner: it cancels the pump, waits (up to
// the context deadline) for the Subscribe loop to exit, and then for any
// in-flight handle calls to finish acking/nacking their message.
func (p *IngestPump) Shutdown(ctx context.Context) {
	if p.cancel == nil {
		return
	}
	p.cancel()
	if p.done != nil {
		select {
		case <-p.done:
		case <-ctx.Done():
		}
	}

	inFlightDone := make(chan struct{})
	go func() {
		p.inFlight.Wait()
		close(inFlightDone)
	}()
	select {
	case <-inFlightDone:
	case <-ctx.Done():
	}

	_ = p.sub.Close()
}
