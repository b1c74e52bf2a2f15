package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestVoteEventBusLocalDelivery(t *testing.T) {
	bus := NewVoteEventBus(VoteEventBusConfig{}, testLogger())

	first, cancelFirst := bus.Subscribe()
	second, cancelSecond := bus.Subscribe()
	defer cancelSecond()

	event := VoteEvent{PhotoID: "p1", Action: "VOTE", TotalScore: 4, VoteCount: 1, Average: "4.00"}
	bus.Publish(context.Background(), event)

	require.Equal(t, event, <-first)
	require.Equal(t, event, <-second)

	cancelFirst()
	cancelFirst()
	_, open := <-first
	require.False(t, open)

	bus.Publish(context.Background(), event)
	require.Equal(t, event, <-second)
}

func TestVoteEventBusDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewVoteEventBus(VoteEventBusConfig{}, testLogger())
	events, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < voteEventBufferSize+10; i++ {
		bus.Publish(context.Background(), VoteEvent{PhotoID: "p1", TotalScore: i})
	}
	require.Len(t, events, voteEventBufferSize)
}

func TestVoteEventBusAcrossInstancesViaRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newBus := func() (VoteEventBus, *redis.Client) {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		bus := NewVoteEventBus(VoteEventBusConfig{Redis: client, RedisChannel: "contest:votes"}, testLogger())
		bus.Start(ctx)
		return bus, client
	}

	publisher, publisherClient := newBus()
	defer publisherClient.Close()
	listener, listenerClient := newBus()
	defer listenerClient.Close()

	require.Eventually(t, func() bool {
		return server.PubSubNumSub("contest:votes")["contest:votes"] == 2
	}, 2*time.Second, 10*time.Millisecond)

	local, cancelLocal := publisher.Subscribe()
	defer cancelLocal()
	remote, cancelRemote := listener.Subscribe()
	defer cancelRemote()

	invalidated := make(chan string, 1)
	listener.OnEvent(func(_ context.Context, event VoteEvent) {
		invalidated <- event.PhotoID
	})

	event := VoteEvent{PhotoID: "p9", Action: "UPDATE_VOTE", TotalScore: 7, VoteCount: 2, Average: "3.50", At: time.Now().UTC().Truncate(time.Second)}
	publisher.Publish(ctx, event)

	select {
	case got := <-remote:
		require.Equal(t, event.PhotoID, got.PhotoID)
		require.Equal(t, event.Average, got.Average)
		require.True(t, event.At.Equal(got.At))
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not receive the event")
	}
	require.Equal(t, "p9", <-invalidated)

	require.Equal(t, event, <-local)
	select {
	case dup := <-local:
		t.Fatalf("publisher received its own event twice: %+v", dup)
	case <-time.After(100 * time.Millisecond):
	}
}
