package kafkatopic

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	ids, err := IDs("ledger", []kafka.Partition{
		{Topic: "ledger", ID: 2},
		{Topic: "other", ID: 7},
		{Topic: "ledger", ID: 0},
		{Topic: "ledger", ID: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, ids)

	_, err = IDs("missing", []kafka.Partition{{Topic: "ledger", ID: 0}})
	assert.ErrorContains(t, err, "no partitions")
}

func TestPartitions_NoBrokers(t *testing.T) {
	_, err := Partitions(context.Background(), nil, "ledger")
	assert.Error(t, err)
}
