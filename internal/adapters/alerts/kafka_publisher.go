package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"school-transport-service/internal/domain"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisher fans alerts out to a Kafka topic, keyed by driver so one
// driver's alerts stay ordered within a partition.
//
// Publish only hands the message to the producer's buffer. Delivery results
// are logged by a background goroutine, and alerts are dropped when the
// buffer is full.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(producer sarama.AsyncProducer, topic string) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		done:     make(chan struct{}),
	}
	go p.drain()
	return p
}

// NewKafkaPublisherFromBrokers dials brokers with acks from all in-sync
// replicas and bounded retries.
func NewKafkaPublisherFromBrokers(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 10 * time.Second
	cfg.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: create producer: %w", err)
	}

	log.Printf("kafka publisher ready: brokers=%v topic=%s", brokers, topic)
	return NewKafkaPublisher(producer, topic), nil
}

// Publish enqueues alert without waiting for the broker.
func (p *KafkaPublisher) Publish(ctx context.Context, alert domain.Alert) {
	b, err := json.Marshal(alert)
	if err != nil {
		log.Printf("alert publish failed: alert_id=%s err=%v", alert.ID, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(alert.DriverID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("alert_type"), Value: []byte(alert.Type)},
		},
		Metadata: alert.ID,
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Printf("alert publish dropped: alert_id=%s topic=%s reason=publisher closed", alert.ID, p.topic)
		return
	}

	select {
	case p.producer.Input() <- msg:
	default:
		log.Printf("alert publish dropped: alert_id=%s topic=%s reason=producer buffer full", alert.ID, p.topic)
	}
}

// drain logs delivery results until the producer closes both channels.
func (p *KafkaPublisher) drain() {
	defer close(p.done)

	successes, errs := p.producer.Successes(), p.producer.Errors()
	for successes != nil || errs != nil {
		select {
		case msg, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			log.Printf("alert published: alert_id=%v partition=%d offset=%d", msg.Metadata, msg.Partition, msg.Offset)
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("alert publish failed: alert_id=%v topic=%s err=%v", perr.Msg.Metadata, p.topic, perr.Err)
		}
	}
}

// Close flushes buffered alerts and waits for their delivery results.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.producer.AsyncClose()
	<-p.done
	return nil
}
