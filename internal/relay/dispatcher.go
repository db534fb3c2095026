package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"door-access-backend/internal/model"
)

// PulseSender performs the HTTP call that pulses a relay on a board.
type PulseSender interface {
	Send(ctx context.Context, url string) error
}

// HTTPSender is the real implementation of PulseSender.
type HTTPSender struct {
	Client *http.Client
}

// Send POSTs to the board's pulse endpoint and drains the response.
func (s *HTTPSender) Send(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("board returned status %d", resp.StatusCode)
	}
	return nil
}

type job struct {
	address    string
	doorNumber int
	doorName   string
}

// Dispatcher manages a pool of workers that pulse relays. Pulsing is a
// best-effort side effect of a grant: failures are logged and never affect
// the decision, and a full queue drops the job rather than blocking.
type Dispatcher struct {
	size    int
	jobs    chan job
	timeout time.Duration
	sender  PulseSender
}

// NewDispatcher creates a dispatcher with the given pool size and per-pulse
// timeout.
func NewDispatcher(size int, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		size:    size,
		jobs:    make(chan job, size*4),
		timeout: timeout,
		sender:  &HTTPSender{Client: &http.Client{Timeout: timeout}},
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		go d.worker(ctx, i)
	}
}

// Pulse enqueues a relay pulse for the door. Never blocks.
func (d *Dispatcher) Pulse(door *model.Door) {
	j := job{address: door.Board.Address, doorNumber: door.DoorNumber, doorName: door.Name}
	select {
	case d.jobs <- j:
	default:
		log.Printf("relay queue full, dropping pulse for door %q on %s", j.doorName, j.address)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	log.Printf("relay worker %d started", id)
	for {
		select {
		case j := <-d.jobs:
			d.send(ctx, j)
		case <-ctx.Done():
			log.Printf("relay worker %d shutting down", id)
			return
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, j job) {
	url := fmt.Sprintf("http://%s/relay/%d/pulse", j.address, j.doorNumber)
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.sender.Send(sendCtx, url); err != nil {
		log.Printf("failed to pulse door %q on %s: %v", j.doorName, j.address, err)
		return
	}
	log.Printf("pulsed door %q on %s", j.doorName, j.address)
}
