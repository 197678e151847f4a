// Package sensorbus is the kiosk's client for the external messaging bus
// shared with the temperature sensor, the door relay and the announcer.
// Topics are plain strings; payloads are plain strings. The bus is treated
// as advisory infrastructure: in-loop failures are reported to the caller
// but must never take the process down.
package sensorbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName  = "SENSORS"
	subjectBase = "sensors"
)

// Message is one bus payload with the broker-side receive timestamp.
type Message struct {
	Body      string
	Timestamp time.Time
}

type Bus struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	opTimeout time.Duration
	consumers map[string]jetstream.Consumer
}

// Connect dials the bus. A broker that cannot be reached within the
// operation timeout is a startup failure; the caller decides whether that
// is fatal.
func Connect(url string, opTimeout time.Duration) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(opTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Bus{
		nc:        nc,
		js:        js,
		opTimeout: opTimeout,
		consumers: make(map[string]jetstream.Consumer),
	}, nil
}

// EnsureStream creates the sensor stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle broker startup delay.
func (b *Bus) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{subjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Hour,
		MaxMsgs:     100000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Description: "Kiosk sensor and announcer topics",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := b.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured sensor stream", "name", streamName)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", streamName, err, maxAttempts)
		}
		slog.Warn("ensure sensor stream (retrying...)", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// Publish sends one payload to a topic. Fire-and-forget from the loop's
// perspective: the error only says whether the broker accepted it.
func (b *Bus) Publish(ctx context.Context, topic, payload string) error {
	opCtx, cancel := context.WithTimeout(ctx, b.opTimeout)
	defer cancel()

	subject := fmt.Sprintf("%s.%s", subjectBase, topic)
	if _, err := b.js.Publish(opCtx, subject, []byte(payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// ReadLatest drains the pending backlog of a topic and returns it in
// arrival order; the last element is the newest. An empty backlog returns
// an empty slice, not an error.
func (b *Bus) ReadLatest(ctx context.Context, topic string) ([]Message, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.opTimeout)
	defer cancel()

	cons, err := b.consumer(opCtx, topic)
	if err != nil {
		return nil, err
	}

	var out []Message
	for {
		batch, err := cons.Fetch(64, jetstream.FetchMaxWait(250*time.Millisecond))
		if err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return nil, fmt.Errorf("fetch %s backlog: %w", topic, err)
		}

		n := 0
		for msg := range batch.Messages() {
			meta, err := msg.Metadata()
			ts := time.Now()
			if err == nil {
				ts = meta.Timestamp
			}
			out = append(out, Message{Body: string(msg.Data()), Timestamp: ts})
			_ = msg.Ack()
			n++
		}
		if batch.Error() != nil && len(out) == 0 {
			return nil, fmt.Errorf("fetch %s backlog: %w", topic, batch.Error())
		}
		if n == 0 {
			return out, nil
		}
	}
}

func (b *Bus) consumer(ctx context.Context, topic string) (jetstream.Consumer, error) {
	if c, ok := b.consumers[topic]; ok {
		return c, nil
	}

	stream, err := b.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", streamName, err)
	}

	name := "kiosk-" + topic
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		FilterSubject: fmt.Sprintf("%s.%s", subjectBase, topic),
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", name, err)
	}

	b.consumers[topic] = cons
	return cons, nil
}

func (b *Bus) Ping() error {
	if !b.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (b *Bus) Close() {
	b.nc.Close()
}
