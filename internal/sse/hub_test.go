package sse

import (
	"testing"

	"go.uber.org/zap"
)

func TestHubSendToSession(t *testing.T) {
	h := NewHub(zap.NewNop())

	a := &Client{ID: "c1", SessionID: "sess-1", Events: make(chan Event, 4)}
	b := &Client{ID: "c2", SessionID: "sess-2", Events: make(chan Event, 4)}
	h.Register(a)
	h.Register(b)

	h.SendToSession("sess-1", Event{EventType: "page_state", Data: "{}"})

	select {
	case ev := <-a.Events:
		if ev.EventType != "page_state" {
			t.Errorf("Unexpected event type %q", ev.EventType)
		}
	default:
		t.Fatal("Expected event for sess-1 connection")
	}

	select {
	case ev := <-b.Events:
		t.Fatalf("Other session must not receive the event, got %+v", ev)
	default:
	}
}

func TestHubMultipleConnectionsPerSession(t *testing.T) {
	h := NewHub(zap.NewNop())

	a := &Client{ID: "c1", SessionID: "sess-1", Events: make(chan Event, 4)}
	b := &Client{ID: "c2", SessionID: "sess-1", Events: make(chan Event, 4)}
	h.Register(a)
	h.Register(b)

	h.SendToSession("sess-1", Event{EventType: "page_state"})

	for _, c := range []*Client{a, b} {
		select {
		case <-c.Events:
		default:
			t.Errorf("Connection %s missed the broadcast", c.ID)
		}
	}
}

// 缓冲满的连接跳过事件而不是阻塞发送方
func TestHubFullBufferSkips(t *testing.T) {
	h := NewHub(zap.NewNop())

	c := &Client{ID: "c1", SessionID: "sess-1", Events: make(chan Event, 1)}
	h.Register(c)

	h.SendToSession("sess-1", Event{Data: "1"})
	h.SendToSession("sess-1", Event{Data: "2"}) // 必须立即返回

	ev := <-c.Events
	if ev.Data != "1" {
		t.Errorf("Expected first event kept, got %q", ev.Data)
	}
	select {
	case ev := <-c.Events:
		t.Fatalf("Second event should have been dropped, got %+v", ev)
	default:
	}
}

func TestHubUnregister(t *testing.T) {
	h := NewHub(zap.NewNop())

	c := &Client{ID: "c1", SessionID: "sess-1", Events: make(chan Event, 1)}
	h.Register(c)
	if h.ConnectionCount() != 1 {
		t.Fatalf("Expected 1 connection, got %d", h.ConnectionCount())
	}

	h.Unregister("c1")
	if h.ConnectionCount() != 0 {
		t.Errorf("Expected 0 connections, got %d", h.ConnectionCount())
	}

	// channel已关闭
	if _, ok := <-c.Events; ok {
		t.Error("Expected closed events channel")
	}

	// 重复注销不panic
	h.Unregister("c1")
}
