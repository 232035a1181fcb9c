package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/orbisplace/orbis-api/models"
)

type recorderStub struct {
	mu    sync.Mutex
	types []string
}

func (r *recorderStub) TeamEventPublished(eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
}

func startHub(t *testing.T, rec EventRecorder) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func testClient(hub *Hub, room string, buffer int) *Client {
	return &Client{hub: hub, send: make(chan []byte, buffer), room: room}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestPublishTeamEventReachesOnlyTeamRoom(t *testing.T) {
	rec := &recorderStub{}
	hub, _ := startHub(t, rec)

	member := testClient(hub, TeamRoom("t1"), 4)
	other := testClient(hub, TeamRoom("t2"), 4)
	hub.Register(member)
	hub.Register(other)
	waitFor(t, func() bool { return hub.ClientCount(TeamRoom("t1")) == 1 && hub.ClientCount(TeamRoom("t2")) == 1 })

	hub.PublishTeamEvent(models.TeamEvent{Type: models.TeamEventMemberAdded, TeamID: "t1", ActorID: "alice"})

	msg := receive(t, member)
	if msg.Type != string(models.TeamEventMemberAdded) || msg.RoomID != "team:t1" {
		t.Errorf("message = %+v", msg)
	}
	select {
	case <-other.send:
		t.Error("event leaked into another team room")
	case <-time.After(50 * time.Millisecond):
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.types) != 1 || rec.types[0] != string(models.TeamEventMemberAdded) {
		t.Errorf("recorded = %v", rec.types)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	hub, _ := startHub(t, nil)
	c := testClient(hub, TeamRoom("t1"), 1)
	hub.Register(c)
	waitFor(t, func() bool { return hub.ClientCount(TeamRoom("t1")) == 1 })

	hub.Unregister(c)
	waitFor(t, func() bool { return hub.ClientCount(TeamRoom("t1")) == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel still open")
	}
	hub.Unregister(c)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t, nil)
	slow := testClient(hub, TeamRoom("t1"), 1)
	hub.Register(slow)
	waitFor(t, func() bool { return hub.ClientCount(TeamRoom("t1")) == 1 })

	for i := 0; i < 3; i++ {
		hub.BroadcastToRoom(TeamRoom("t1"), Message{Type: "ping"})
	}
	waitFor(t, func() bool { return hub.ClientCount(TeamRoom("t1")) == 0 })
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	hub, cancel := startHub(t, nil)
	c := testClient(hub, TeamRoom("t1"), 1)
	hub.Register(c)
	waitFor(t, func() bool { return hub.ClientCount(TeamRoom("t1")) == 1 })

	cancel()
	<-hub.done
	if hub.ClientCount(TeamRoom("t1")) != 0 {
		t.Error("clients kept after shutdown")
	}

	done := make(chan struct{})
	go func() {
		hub.PublishTeamEvent(models.TeamEvent{Type: models.TeamEventUpdated, TeamID: "t1"})
		if hub.Register(testClient(hub, "x", 1)) {
			t.Error("register succeeded on a stopped hub")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after shutdown")
	}
}
