package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/bundloor/pkg/manager"
)

// EventType represents the type of event being streamed.
type EventType string

const (
	EventTypeSubmission EventType = "submission"
	EventTypeHealth     EventType = "health"
)

// StreamEvent is a wrapper for all event types sent to clients.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Data      any       `json:"data"`
}

// SubmissionStreamEvent is sent for each per-builder submission outcome.
type SubmissionStreamEvent struct {
	Builder     string `json:"builder"`
	BlockNumber uint64 `json:"block_number"`
	BundleHash  string `json:"bundle_hash"`
	Success     bool   `json:"success"`
	LatencyMs   int64  `json:"latency_ms"`
	Attempts    int    `json:"attempts"`
	Error       string `json:"error,omitempty"`
}

// EventStreamManager relays manager events to SSE clients.
type EventStreamManager struct {
	manager *manager.Manager
	log     logrus.FieldLogger

	mu      sync.RWMutex
	clients map[chan *StreamEvent]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEventStreamManager creates a new event stream manager.
func NewEventStreamManager(mgr *manager.Manager, log logrus.FieldLogger) *EventStreamManager {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventStreamManager{
		manager: mgr,
		log:     log.WithField("component", "event-stream"),
		clients: make(map[chan *StreamEvent]struct{}, 8),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins relaying submission events.
func (m *EventStreamManager) Start() {
	sub := m.manager.SubscribeSubmissions(64)

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer sub.Unsubscribe()

		for {
			select {
			case <-m.ctx.Done():
				return

			case event := <-sub.Channel():
				m.handleSubmission(event)
			}
		}
	}()
}

// Stop stops the relay and disconnects all clients.
func (m *EventStreamManager) Stop() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.clients {
		delete(m.clients, ch)
		close(ch)
	}
}

// AddClient adds a new SSE client.
func (m *EventStreamManager) AddClient(ch chan *StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[ch] = struct{}{}
}

// RemoveClient removes an SSE client.
func (m *EventStreamManager) RemoveClient(ch chan *StreamEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[ch]; ok {
		delete(m.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (m *EventStreamManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.clients)
}

// Broadcast sends an event to all clients. Slow clients miss events.
func (m *EventStreamManager) Broadcast(event *StreamEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for ch := range m.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// BroadcastHealth sends a health sweep result.
func (m *EventStreamManager) BroadcastHealth(plan manager.Plan) {
	m.Broadcast(&StreamEvent{
		Type:      EventTypeHealth,
		Timestamp: time.Now().UnixMilli(),
		Data:      plan,
	})
}

func (m *EventStreamManager) handleSubmission(event *manager.SubmissionEvent) {
	m.Broadcast(&StreamEvent{
		Type:      EventTypeSubmission,
		Timestamp: event.Timestamp.UnixMilli(),
		Data: SubmissionStreamEvent{
			Builder:     event.Builder,
			BlockNumber: event.BlockNumber,
			BundleHash:  event.BundleHash,
			Success:     event.Result.Success,
			LatencyMs:   event.Result.Latency.Milliseconds(),
			Attempts:    event.Result.Attempts,
			Error:       event.Result.Error,
		},
	})
}

// EventStream streams events to the client as server-sent events.
func (h *APIHandler) EventStream(w http.ResponseWriter, r *http.Request) {
	if h.eventStreamMgr == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientCh := make(chan *StreamEvent, 32)

	h.eventStreamMgr.AddClient(clientCh)
	defer h.eventStreamMgr.RemoveClient(clientCh)

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-clientCh:
			if !ok {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
