package relay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/logger"
)

func drain(v *Viewer) []string {
	var lines []string
	for {
		select {
		case line := <-v.C:
			lines = append(lines, string(line))
		default:
			return lines
		}
	}
}

func TestRelayFanOut(t *testing.T) {
	service := NewRelayService(DefaultBufferSize, logger.NoOpLogFactory)

	producer, err := service.OpenProducer("amd64-1")
	require.NoError(t, err)

	viewerA, err := service.Subscribe("amd64-1")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		producer.Publish([]byte(fmt.Sprintf("L%d", i)))
	}

	// A late joiner replays the buffered suffix before live lines
	viewerB, err := service.Subscribe("amd64-1")
	require.NoError(t, err)

	for i := 6; i <= 10; i++ {
		producer.Publish([]byte(fmt.Sprintf("L%d", i)))
	}

	require.Equal(t, []string{"L1", "L2", "L3", "L4", "L5", "L6", "L7", "L8", "L9", "L10"}, drain(viewerA))
	require.Equal(t, []string{"L1", "L2", "L3", "L4", "L5", "L6", "L7", "L8", "L9", "L10"}, drain(viewerB))

	// Dropping B must not affect A
	service.Unsubscribe("amd64-1", viewerB)
	producer.Publish([]byte("L11"))
	require.Equal(t, []string{"L11"}, drain(viewerA))
	require.Empty(t, drain(viewerB))
}

func TestRelayBufferOverflowDiscardsOldestHalf(t *testing.T) {
	service := NewRelayService(10, logger.NoOpLogFactory)

	producer, err := service.OpenProducer("amd64-1")
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		producer.Publish([]byte(fmt.Sprintf("L%d", i)))
	}

	// The 11th line evicts the oldest half of the ring
	producer.Publish([]byte("L11"))
	viewer, err := service.Subscribe("amd64-1")
	require.NoError(t, err)
	require.Equal(t, []string{"L6", "L7", "L8", "L9", "L10", "L11"}, drain(viewer))
}

func TestRelaySlowViewerIsDropped(t *testing.T) {
	service := NewRelayService(DefaultBufferSize, logger.NoOpLogFactory)
	service.viewerQueueSize = 2

	producer, err := service.OpenProducer("amd64-1")
	require.NoError(t, err)
	slow, err := service.Subscribe("amd64-1")
	require.NoError(t, err)

	producer.Publish([]byte("L1"))
	producer.Publish([]byte("L2"))
	// Subscribing after the replay buffer has content sizes this viewer's
	// queue with headroom beyond the snapshot, so it can absorb L3 while the
	// slow viewer's full queue cannot.
	fast, err := service.Subscribe("amd64-1")
	require.NoError(t, err)
	// The slow viewer's queue is full; this line drops it
	producer.Publish([]byte("L3"))

	select {
	case reason := <-slow.Closed:
		require.Equal(t, CloseReasonSlow, reason)
	default:
		t.Fatal("expected slow viewer to be closed")
	}
	require.Equal(t, []string{"L1", "L2", "L3"}, drain(fast))

	// The producer is unaffected and keeps streaming to the fast viewer
	producer.Publish([]byte("L4"))
	require.Equal(t, []string{"L4"}, drain(fast))
}

func TestRelayProducerReplacement(t *testing.T) {
	service := NewRelayService(DefaultBufferSize, logger.NoOpLogFactory)

	first, err := service.OpenProducer("amd64-1")
	require.NoError(t, err)
	first.Publish([]byte("L1"))

	second, err := service.OpenProducer("amd64-1")
	require.NoError(t, err)

	select {
	case reason := <-first.Closed():
		require.Equal(t, CloseReasonReplaced, reason)
	default:
		t.Fatal("expected first producer to be closed")
	}

	// Lines from the displaced producer are dropped; the buffer carries over
	first.Publish([]byte("stale"))
	second.Publish([]byte("L2"))
	viewer, err := service.Subscribe("amd64-1")
	require.NoError(t, err)
	require.Equal(t, []string{"L1", "L2"}, drain(viewer))
}

func TestRelayProducerCloseClosesViewers(t *testing.T) {
	service := NewRelayService(DefaultBufferSize, logger.NoOpLogFactory)

	producer, err := service.OpenProducer("amd64-1")
	require.NoError(t, err)
	viewer, err := service.Subscribe("amd64-1")
	require.NoError(t, err)

	producer.Publish([]byte("L1"))
	producer.Close()

	select {
	case reason := <-viewer.Closed:
		require.Equal(t, CloseReasonProducerGone, reason)
	default:
		t.Fatal("expected viewer to be closed")
	}

	// The stream is gone; a fresh subscription sees an empty buffer
	fresh, err := service.Subscribe("amd64-1")
	require.NoError(t, err)
	require.Empty(t, drain(fresh))
}
