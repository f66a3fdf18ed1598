package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSelectsNopWithoutBrokers(t *testing.T) {
	pub := New(nil, "marketplace_events")
	_, ok := pub.(NopPublisher)
	require.True(t, ok)
	require.NoError(t, pub.Publish(context.Background(), NewEvent(TypeOrderCreated, 1, nil)))
	require.NoError(t, pub.Close())

	_, ok = New([]string{"localhost:9092"}, "marketplace_events").(*KafkaPublisher)
	require.True(t, ok)
}

func TestNewEventKeyAndID(t *testing.T) {
	ev := NewEvent(TypeLedgerOperation, 42, map[string]string{"asset": "BRL"})
	require.Equal(t, "42", ev.Key)
	require.Equal(t, TypeLedgerOperation, ev.Type)
	require.NotEmpty(t, ev.ID)
	require.False(t, ev.OccurredAt.IsZero())
}

func TestEmitRecordsInMemory(t *testing.T) {
	mem := &MemoryPublisher{}
	Emit(mem, NewEvent(TypeOrderCreated, 7, nil))
	Emit(nil, NewEvent(TypeOrderCreated, 8, nil))
	got := mem.Events()
	require.Len(t, got, 1)
	require.Equal(t, "7", got[0].Key)
}
