package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Publisher must not block the caller on the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// Noop drops everything. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}
func (Noop) Close() error                   { return nil }

// KafkaPublisher queues messages on a buffered channel and writes them from one
// goroutine. A full queue drops the message with a warning.
type KafkaPublisher struct {
	w      *kafka.Writer
	prefix string
	inbox  chan kafka.Message
	done   chan struct{}
	once   sync.Once
	log    logrus.FieldLogger
}

func NewKafkaPublisher(brokers []string, topicPrefix string, buf int, log logrus.FieldLogger) *KafkaPublisher {
	if buf <= 0 {
		buf = 256
	}
	p := &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
		prefix: topicPrefix,
		inbox:  make(chan kafka.Message, buf),
		done:   make(chan struct{}),
		log:    log.WithField("module", "notify"),
	}
	go p.loop()
	return p
}

func (p *KafkaPublisher) topic(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

func (p *KafkaPublisher) Publish(_ context.Context, ev Event) {
	b, err := json.Marshal(ev.Envelope)
	if err != nil {
		p.log.WithError(err).WithField("event_type", ev.Envelope.EventType).Error("encode event")
		return
	}
	msg := kafka.Message{
		Topic: p.topic(ev.Topic),
		Key:   []byte(ev.Key),
		Value: b,
		Time:  ev.Envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(ev.Envelope.EventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	select {
	case p.inbox <- msg:
	default:
		p.log.WithFields(logrus.Fields{
			"event_type": ev.Envelope.EventType,
			"event_id":   ev.Envelope.EventID,
		}).Warn("notification queue full, dropping event")
	}
}

func (p *KafkaPublisher) loop() {
	defer close(p.done)
	for m := range p.inbox {
		if err := p.w.WriteMessages(context.Background(), m); err != nil {
			p.log.WithError(err).WithField("topic", m.Topic).Warn("publish failed")
		}
	}
}

// Close flushes what is queued and closes the writer. Publish must not be
// called after Close.
func (p *KafkaPublisher) Close() error {
	p.once.Do(func() { close(p.inbox) })
	<-p.done
	return p.w.Close()
}
