package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pot-code/coursegate/internal/infrastructure/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestHub_DeliversToLearnerOnly(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	mine, unsubscribe := hub.Subscribe("u1")
	defer unsubscribe()
	other, unsubscribeOther := hub.Subscribe("u2")
	defer unsubscribeOther()

	hub.Publish(ctx, LessonUnlocked("u1", "c1", "l2"))

	got := recvEvent(t, mine, time.Second)
	assert.Equal(t, KindLessonUnlocked, got.Kind)
	assert.Equal(t, "l2", got.LessonID)
	assert.Len(t, other, 0)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe("u1")
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	hub.Publish(context.Background(), QuizUnlocked("u1", "c1"))
}

func TestHub_DropsWhenSubscriberLags(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe("u1")
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(context.Background(), PointsAwarded("u1", 10, (i+1)*10))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBus_ForwardsThroughPubSub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	bus := NewBus(driver.NewMemoryKV(), "coursegate.events", hub)
	require.NoError(t, bus.StartForwarder(ctx))

	ch, unsubscribe := hub.Subscribe("u1")
	defer unsubscribe()
	bus.Publish(ctx, QuizResult("u1", "c1", 1, 2))

	got := recvEvent(t, ch, time.Second)
	assert.Equal(t, KindQuizResult, got.Kind)
	assert.Equal(t, 1, got.Score)
	assert.Equal(t, 2, got.Total)
}

type brokenPubSub struct{}

func (brokenPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return errors.New("connection refused")
}

func (brokenPubSub) Subscribe(ctx context.Context, channel string, onMessage func(payload []byte)) error {
	return errors.New("connection refused")
}

func TestBus_FallsBackToLocalDelivery(t *testing.T) {
	hub := NewHub()
	bus := NewBus(brokenPubSub{}, "coursegate.events", hub)
	assert.Error(t, bus.StartForwarder(context.Background()))

	ch, unsubscribe := hub.Subscribe("u1")
	defer unsubscribe()
	bus.Publish(context.Background(), LessonCompleted("u1", "c1", "l1"))

	assert.Equal(t, KindLessonCompleted, recvEvent(t, ch, time.Second).Kind)
}

func TestRecorder(t *testing.T) {
	r := new(Recorder)
	r.Publish(context.Background(), LessonCompleted("u1", "c1", "l1"))
	r.Publish(context.Background(), LessonUnlocked("u1", "c1", "l2"))
	assert.Equal(t, []Kind{KindLessonCompleted, KindLessonUnlocked}, r.Kinds())
	r.Reset()
	assert.Empty(t, r.Events())
}
