// Package kafkatopic looks up topic metadata for the readers that scan a
// whole topic.
package kafkatopic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/segmentio/kafka-go"
)

// Partitions returns the sorted partition ids of topic, asking each broker
// in turn until one answers.
func Partitions(ctx context.Context, brokers []string, topic string) ([]int, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	var lastErr error
	for _, b := range brokers {
		ids, err := partitionsFrom(ctx, b, topic)
		if err != nil {
			lastErr = err
			continue
		}
		return ids, nil
	}
	return nil, fmt.Errorf("read partitions of %s: %w", topic, lastErr)
}

func partitionsFrom(ctx context.Context, broker string, topic string) ([]int, error) {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	ps, err := conn.ReadPartitions(topic)
	if err != nil {
		return nil, err
	}
	return IDs(topic, ps)
}

// IDs extracts the sorted partition ids of topic from a metadata answer.
func IDs(topic string, ps []kafka.Partition) ([]int, error) {
	var ids []int
	for _, p := range ps {
		if p.Topic == topic {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("topic %s has no partitions", topic)
	}
	sort.Ints(ids)
	return ids, nil
}
