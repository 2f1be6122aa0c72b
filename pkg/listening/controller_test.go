package listening

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/apperror"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu     sync.Mutex
	events []CaptureEvent
}

func (r *recordingSink) Emit(_ context.Context, ev CaptureEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.UserID == userID {
			n++
		}
	}
	return n
}

func fastConfig() Config {
	return Config{Interval: 5 * time.Millisecond, StopTimeout: time.Second}
}

func TestStartEmitsUntilStopped(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, fastConfig(), logger.NewNop())

	assert.True(t, c.Start("alice"))
	assert.Equal(t, Listening, c.State("alice"))

	assert.Eventually(t, func() bool { return sink.count("alice") >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop(context.Background(), "alice"))
	assert.Equal(t, Idle, c.State("alice"))

	stopped := sink.count("alice")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, sink.count("alice"))

	sink.mu.Lock()
	for i, ev := range sink.events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	sink.mu.Unlock()
}

func TestDoubleStartRunsOneLoop(t *testing.T) {
	c := NewController(&recordingSink{}, fastConfig(), logger.NewNop())

	assert.True(t, c.Start("alice"))
	assert.False(t, c.Start("alice"))
	assert.Equal(t, []string{"alice"}, c.Active())

	require.NoError(t, c.Stop(context.Background(), "alice"))
}

func TestStopOnIdleUserIsNoop(t *testing.T) {
	c := NewController(&recordingSink{}, fastConfig(), logger.NewNop())

	assert.NoError(t, c.Stop(context.Background(), "nobody"))
	assert.Equal(t, Idle, c.State("nobody"))
	assert.Empty(t, c.Active())
}

func TestUsersAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	c := NewController(sink, fastConfig(), logger.NewNop())

	c.Start("alice")
	c.Start("bob")
	assert.Equal(t, []string{"alice", "bob"}, c.Active())

	require.NoError(t, c.Stop(context.Background(), "alice"))
	assert.Equal(t, Idle, c.State("alice"))
	assert.Equal(t, Listening, c.State("bob"))

	before := sink.count("bob")
	assert.Eventually(t, func() bool { return sink.count("bob") > before }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Empty(t, c.Active())
}

func TestStopTimesOutOnStuckLoop(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	sink := SinkFunc(func(context.Context, CaptureEvent) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	c := NewController(sink, Config{Interval: 5 * time.Millisecond, StopTimeout: 30 * time.Millisecond}, logger.NewNop())
	c.Start("alice")
	<-entered

	err := c.Stop(context.Background(), "alice")
	assert.ErrorIs(t, err, apperror.ErrStopTimeout)
	assert.Equal(t, Idle, c.State("alice"))

	// a fresh loop can be started after the forced drop
	assert.True(t, c.Start("alice"))

	close(release)
	require.NoError(t, c.Stop(context.Background(), "alice"))

	// let the orphaned loop observe its cancellation before goleak runs
	time.Sleep(20 * time.Millisecond)
}

func TestStopHonoursContext(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	sink := SinkFunc(func(context.Context, CaptureEvent) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	c := NewController(sink, Config{Interval: 5 * time.Millisecond, StopTimeout: time.Minute}, logger.NewNop())
	c.Start("alice")
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Stop(ctx, "alice")
	assert.ErrorIs(t, err, apperror.ErrStopTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), time.Minute.String())

	close(release)
	time.Sleep(20 * time.Millisecond)
}

func TestWatermillSinkRoundTrip(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := pubsub.Subscribe(ctx, "capture.events")
	require.NoError(t, err)

	sink := NewWatermillSink(pubsub, "capture.events")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, sink.Emit(context.Background(), CaptureEvent{UserID: "alice", Seq: 7, At: at}))

	select {
	case msg := <-messages:
		ev, err := DecodeCaptureEvent(msg)
		require.NoError(t, err)
		msg.Ack()
		assert.Equal(t, CaptureEvent{UserID: "alice", Seq: 7, At: at}, ev)
		assert.Equal(t, "alice", msg.Metadata.Get("user_id"))
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
