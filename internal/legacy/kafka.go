package legacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tidwall/gjson"

	"surveybox/internal/kafkatopic"
	"surveybox/internal/model"
)

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource reads both tables from topics where each record is keyed by
// event id and carries the event JSON. Every partition of a topic is read
// until no message arrives within the idle timeout; the last record per key
// wins and an empty value deletes the key.
type KafkaSource struct {
	prodTopic  string
	testTopic  string
	idle       time.Duration
	partitions func(ctx context.Context, topic string) ([]int, error)
	newReader  func(topic string, partition int) kafkaMessageReader
}

func NewKafkaSource(brokers []string, prodTopic, testTopic string, idle time.Duration) *KafkaSource {
	if idle <= 0 {
		idle = 10 * time.Second
	}
	return &KafkaSource{
		prodTopic: prodTopic,
		testTopic: testTopic,
		idle:      idle,
		partitions: func(ctx context.Context, topic string) ([]int, error) {
			return kafkatopic.Partitions(ctx, brokers, topic)
		},
		newReader: func(topic string, partition int) kafkaMessageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: partition,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
	}
}

// NewKafkaSourceWith is only for tests to inject partition metadata and fake readers.
func NewKafkaSourceWith(prodTopic, testTopic string, idle time.Duration,
	partitions func(ctx context.Context, topic string) ([]int, error),
	newReader func(topic string, partition int) kafkaMessageReader) *KafkaSource {
	return &KafkaSource{prodTopic: prodTopic, testTopic: testTopic, idle: idle, partitions: partitions, newReader: newReader}
}

func (k *KafkaSource) Read(ctx context.Context) (Tables, error) {
	prod, err := k.topic(ctx, k.prodTopic)
	if err != nil {
		return Tables{}, err
	}
	test, err := k.topic(ctx, k.testTopic)
	if err != nil {
		return Tables{}, err
	}
	return Tables{Prod: prod, Test: test}, nil
}

// topic merges all partitions. Records for one key share a partition, so
// per-partition order is enough for last-record-wins.
func (k *KafkaSource) topic(ctx context.Context, topic string) (map[string]model.LegacyEvent, error) {
	parts, err := k.partitions(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.LegacyEvent)
	for _, p := range parts {
		if err := k.partition(ctx, topic, p, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (k *KafkaSource) partition(ctx context.Context, topic string, partition int, out map[string]model.LegacyEvent) error {
	r := k.newReader(topic, partition)
	defer r.Close()

	for {
		mctx, cancel := context.WithTimeout(ctx, k.idle)
		m, err := r.ReadMessage(mctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read %s/%d: %w", topic, partition, err)
		}
		id := string(m.Key)
		if id == "" {
			return fmt.Errorf("read %s/%d: message at offset %d has no key", topic, partition, m.Offset)
		}
		if len(m.Value) == 0 {
			delete(out, id)
			continue
		}
		if !gjson.ValidBytes(m.Value) {
			return fmt.Errorf("read %s/%d: event %s is not valid JSON", topic, partition, id)
		}
		ev, err := parseEvent(id, gjson.ParseBytes(m.Value))
		if err != nil {
			return fmt.Errorf("read %s/%d: %w", topic, partition, err)
		}
		out[id] = ev
	}
}
