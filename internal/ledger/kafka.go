package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"surveybox/internal/kafkatopic"
)

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaLedger keeps entries on a compacted topic keyed by window key. Every
// partition of the topic is scanned once, on first use, until it goes idle.
type KafkaLedger struct {
	writer     kafkaMessageWriter
	partitions func(ctx context.Context) ([]int, error)
	newReader  func(partition int) kafkaMessageReader
	idle       time.Duration

	once    sync.Once
	loadErr error
	mu      sync.Mutex
	keys    map[string]struct{}
}

// NewKafkaLedger creates a Kafka-backed ledger.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaLedger(bootstrap string, topic string) *KafkaLedger {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaLedger{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		partitions: func(ctx context.Context) ([]int, error) {
			return kafkatopic.Partitions(ctx, brokers, topic)
		},
		newReader: func(partition int) kafkaMessageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: partition,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
		idle: 10 * time.Second,
	}
}

// NewKafkaLedgerWith is only for tests to inject a fake writer, partition
// metadata and readers.
func NewKafkaLedgerWith(w kafkaMessageWriter, partitions func(ctx context.Context) ([]int, error), newReader func(partition int) kafkaMessageReader, idle time.Duration) *KafkaLedger {
	return &KafkaLedger{writer: w, partitions: partitions, newReader: newReader, idle: idle}
}

func (k *KafkaLedger) load(ctx context.Context) error {
	k.once.Do(func() {
		parts, err := k.partitions(ctx)
		if err != nil {
			k.loadErr = fmt.Errorf("ledger topic: %w", err)
			return
		}
		// The hash balancer keeps every record of a key on one partition.
		keys := make(map[string]struct{})
		for _, p := range parts {
			if err := k.scan(ctx, p, keys); err != nil {
				k.loadErr = err
				return
			}
		}
		k.mu.Lock()
		k.keys = keys
		k.mu.Unlock()
	})
	return k.loadErr
}

func (k *KafkaLedger) scan(ctx context.Context, partition int, keys map[string]struct{}) error {
	r := k.newReader(partition)
	defer r.Close()
	for {
		mctx, cancel := context.WithTimeout(ctx, k.idle)
		m, err := r.ReadMessage(mctx)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read ledger partition %d: %w", partition, err)
		}
		if len(m.Value) == 0 {
			delete(keys, string(m.Key))
			continue
		}
		keys[string(m.Key)] = struct{}{}
	}
}

func (k *KafkaLedger) Has(ctx context.Context, key string) (bool, error) {
	if err := k.load(ctx); err != nil {
		return false, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.keys[key]
	return ok, nil
}

func (k *KafkaLedger) Mark(ctx context.Context, e Entry) error {
	if err := k.load(ctx); err != nil {
		return err
	}
	if e.MigratedAt == 0 {
		e.MigratedAt = NowUnix()
	}
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.Key), Value: b}); err != nil {
		return fmt.Errorf("publish ledger entry: %w", err)
	}
	k.mu.Lock()
	k.keys[e.Key] = struct{}{}
	k.mu.Unlock()
	return nil
}
