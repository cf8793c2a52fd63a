package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "uploads", map[string]string{"run_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "uploads", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "uploads", msgs[0].Topic)
	assert.JSONEq(t, `{"run_id":"r1"}`, string(msgs[0].Data))
	assert.Equal(t, `"payload"`, string(msgs[1].Data))

	msgs[0].Topic = "modified"
	assert.Equal(t, "uploads", pub.Messages()[0].Topic)
}

func TestPublisherRejectsBadInput(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "", "payload")
	require.Error(t, err)

	_, err = pub.Publish(context.Background(), "uploads", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal payload")
	assert.Empty(t, pub.Messages())
}

func TestPublisherFailure(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailWith(assert.AnError)
	_, err := pub.Publish(context.Background(), "uploads", "payload")
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, pub.Messages())
}
