package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/leadflow/pkg/channels/gochannel"
	"github.com/dukex/leadflow/pkg/events"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(nil))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)

	var mu sync.Mutex

	var received []*events.JobStarted

	err = bus.Handle(events.JobStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.JobStarted)
		require.True(t, ok)

		mu.Lock()
		received = append(received, started)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.JobStarted{
		BaseEvent: events.BaseEvent{
			ID:         "evt-1",
			Type:       events.JobStartedEvent,
			Timestamp:  time.Now().UTC(),
			JobID:      "job-1",
			WorkflowID: "wf-1",
		},
		TotalBlocks: 3,
	}

	require.NoError(t, bus.Publish(t.Context(), "job-1", event))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "job-1", received[0].JobID)
	assert.Equal(t, 3, received[0].TotalBlocks)
}

func TestWatermillEventBus_UnhandledEventTypeIsIgnored(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(nil))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered: publishing must not block or error.
	event := events.JobCancelled{
		BaseEvent: events.BaseEvent{ID: "evt-2", Type: events.JobCancelledEvent},
	}
	require.NoError(t, bus.Publish(t.Context(), "job-2", event))
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	bus := &WatermillEventBus{}

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
