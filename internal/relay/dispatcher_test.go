package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"door-access-backend/internal/model"
)

// mockPulseSender records the URLs it was asked to hit.
type mockPulseSender struct {
	mu   sync.Mutex
	urls []string
	done chan struct{}
	err  error
}

func (m *mockPulseSender) Send(ctx context.Context, url string) error {
	m.mu.Lock()
	m.urls = append(m.urls, url)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.err
}

func (m *mockPulseSender) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.urls...)
}

func testDoor() *model.Door {
	return &model.Door{
		ID:         1,
		DoorNumber: 2,
		Name:       "Back Entrance",
		Board:      model.Board{ID: 1, Name: "Main Building", Address: "192.168.1.50"},
	}
}

func TestDispatcher_PulseHitsBoardEndpoint(t *testing.T) {
	sender := &mockPulseSender{done: make(chan struct{}, 1)}
	d := NewDispatcher(1, time.Second)
	d.sender = sender

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Pulse(testDoor())

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the pulse")
	}
	require.Len(t, sender.sent(), 1)
	assert.Equal(t, "http://192.168.1.50/relay/2/pulse", sender.sent()[0])
}

func TestDispatcher_SendFailureIsSwallowed(t *testing.T) {
	sender := &mockPulseSender{done: make(chan struct{}, 2), err: context.DeadlineExceeded}
	d := NewDispatcher(1, time.Second)
	d.sender = sender

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// A failing board must not wedge the worker.
	d.Pulse(testDoor())
	d.Pulse(testDoor())

	for i := 0; i < 2; i++ {
		select {
		case <-sender.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped after a send failure")
		}
	}
}

func TestDispatcher_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	d := NewDispatcher(1, time.Second)
	// Not started: the queue fills and further pulses are dropped.

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Pulse(testDoor())
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Pulse blocked on a full queue")
	}
	assert.Len(t, d.jobs, cap(d.jobs))
}
