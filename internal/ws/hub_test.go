package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestSubscriber(remote string) (*subscriber, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscriber{
		remote: remote,
		send:   make(chan Message, sendBuffer),
		evict:  cancel,
	}, ctx
}

func TestHub_AddAndRemove(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, _ := newTestSubscriber("10.0.0.1:50001")
	b, _ := newTestSubscriber("10.0.0.2:50002")

	hub.add(a, nil)
	hub.add(b, nil)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}

	hub.remove(a)
	hub.remove(a)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
	if _, ok := <-a.send; ok {
		t.Error("removed subscriber queue still open")
	}
}

func TestHub_RemoveUnknownLeavesQueueOpen(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s, _ := newTestSubscriber("10.0.0.1:50001")

	hub.remove(s)

	select {
	case _, ok := <-s.send:
		if !ok {
			t.Error("queue closed for a subscriber that was never added")
		}
	default:
	}
}

func TestHub_BroadcastSequence(t *testing.T) {
	hub := NewHub(zap.NewNop())
	early, _ := newTestSubscriber("10.0.0.1:50001")
	hub.add(early, nil)

	for _, topic := range []string{"print_started", "data updated"} {
		hub.Broadcast(Message{Type: MessagePrinterEvent, Serial: serial, Event: topic})
	}

	late, _ := newTestSubscriber("10.0.0.2:50002")
	hub.add(late, &Message{Type: MessageHello, Serial: serial})
	hub.Broadcast(Message{Type: MessagePrinterEvent, Serial: serial, Event: "print_finished"})

	for i, want := range []uint64{1, 2, 3} {
		if got := (<-early.send).Seq; got != want {
			t.Errorf("early message %d seq = %d, want %d", i, got, want)
		}
	}

	hello := <-late.send
	if hello.Type != MessageHello || hello.Seq != 2 {
		t.Errorf("hello = {%s seq %d}, want {%s seq 2}", hello.Type, hello.Seq, MessageHello)
	}
	next := <-late.send
	if next.Event != "print_finished" || next.Seq != 3 {
		t.Errorf("after hello = {%s seq %d}, want {print_finished seq 3}", next.Event, next.Seq)
	}
}

func TestHub_EvictsSlowSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow, slowCtx := newTestSubscriber("10.0.0.1:50001")
	fast, fastCtx := newTestSubscriber("10.0.0.2:50002")
	hub.add(slow, nil)
	hub.add(fast, nil)

	for i := 0; i < sendBuffer; i++ {
		hub.Broadcast(Message{Type: MessagePrinterEvent, Event: "data updated"})
		<-fast.send
	}
	hub.Broadcast(Message{Type: MessagePrinterEvent, Event: "print_failed"})

	if slowCtx.Err() == nil {
		t.Error("slow subscriber not evicted")
	}
	if fastCtx.Err() != nil {
		t.Error("fast subscriber evicted")
	}
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
	if got := (<-fast.send).Event; got != "print_failed" {
		t.Errorf("fast subscriber got %q, want print_failed", got)
	}

	drained := 0
	for range slow.send {
		drained++
	}
	if drained != sendBuffer {
		t.Errorf("slow subscriber queued %d, want %d before eviction", drained, sendBuffer)
	}

	// The handler removes the subscriber again once its read loop ends.
	hub.remove(slow)
}

func TestHub_ConcurrentUse(t *testing.T) {
	hub := NewHub(zap.NewNop())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s, _ := newTestSubscriber(fmt.Sprintf("10.0.1.%d:1", id))
			hub.add(s, &Message{Type: MessageHello})
			done := make(chan struct{})
			go func() {
				for range s.send {
				}
				close(done)
			}()
			time.Sleep(5 * time.Millisecond)
			hub.remove(s)
			<-done
		}(i)
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(pct int) {
			defer wg.Done()
			hub.Broadcast(Message{Type: MessagePrinterEvent, Event: "data updated", Data: StatusData{Percent: pct}})
		}(i)
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
	hub.mu.Lock()
	seq := hub.seq
	hub.mu.Unlock()
	if seq != 100 {
		t.Errorf("seq = %d, want 100", seq)
	}
}
