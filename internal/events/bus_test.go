package events

import (
	"context"
	"testing"
	"time"

	ferrors "git.home.luguber.info/inful/audiohub/internal/foundation/errors"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[SourceStatus](b, 1)
	defer unsubscribe()

	evt := SourceStatus{Source: "spotify", Payload: map[string]any{"is_playing": true}}
	require.NoError(t, b.Publish(context.Background(), evt))

	select {
	case got := <-ch:
		require.Equal(t, "spotify", got.Source)
		require.Equal(t, true, got.Payload["is_playing"])
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_TypedSubscriptionsAreIsolated(t *testing.T) {
	b := NewBus()
	defer b.Close()

	seekCh, unsubSeek := Subscribe[Seek](b, 1)
	defer unsubSeek()
	statusCh, unsubStatus := Subscribe[SourceStatus](b, 1)
	defer unsubStatus()

	require.NoError(t, b.Publish(context.Background(), Seek{Source: "spotify", PositionMS: 15000}))

	select {
	case got := <-seekCh:
		require.EqualValues(t, 15000, got.PositionMS)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for seek event")
	}

	select {
	case got := <-statusCh:
		t.Fatalf("status subscriber received unexpected event: %+v", got)
	default:
	}
}

func TestBus_PublishBackpressure(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[StateChanged](b, 0) // unbuffered; no receiver => blocks
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, StateChanged{State: "none"})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, ferrors.CategoryRuntime, classified.Category())
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubscribe := Subscribe[SourceStatus](b, 1)
	require.Equal(t, 1, SubscriberCount[SourceStatus](b))

	unsubscribe()
	require.Zero(t, SubscriberCount[SourceStatus](b))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[SourceStatus](b, 1)
	b.Close()

	// Channel must be closed on bus close.
	_, ok := <-ch
	require.False(t, ok)

	err := b.Publish(context.Background(), SourceStatus{Source: "radio"})
	require.Error(t, err)
}
