package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cjeanneret/ScoutCam/internal/calibration"
)

// receive decodes the next event on ch or fails after a second.
func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", msg, err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return StatusEvent{}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast("warn", "hello")

	evt := receive(t, ch)
	if evt.Msg != "hello" {
		t.Errorf("msg = %q, want \"hello\"", evt.Msg)
	}
	if evt.Level != "warn" {
		t.Errorf("level = %q, want \"warn\"", evt.Level)
	}
	if evt.Kind != KindLog {
		t.Errorf("kind = %q, want %q", evt.Kind, KindLog)
	}
	if evt.Time == "" {
		t.Error("event should have a timestamp")
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	if n := b.Clients(); n != 2 {
		t.Errorf("Clients() = %d, want 2", n)
	}

	b.BroadcastMsg("multi")

	for i, ch := range []<-chan string{ch1, ch2} {
		if evt := receive(t, ch); evt.Msg != "multi" {
			t.Errorf("subscriber %d: msg = %q, want \"multi\"", i, evt.Msg)
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if n := b.Clients(); n != 0 {
		t.Errorf("Clients() = %d, want 0", n)
	}

	// Broadcasting after unsubscribe must not panic.
	b.BroadcastMsg("after unsub")
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer; i++ {
		b.BroadcastMsg("fill")
	}
	b.BroadcastMsg("overflow")

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}
	if count != subscriberBuffer {
		t.Errorf("expected %d buffered messages, got %d", subscriberBuffer, count)
	}
}

func TestCalibrationListener(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	store := calibration.NewStore(nil)
	store.OnChange(CalibrationListener(b))

	if _, err := store.SetMultiplier(1.02, "tele"); err != nil {
		t.Fatal(err)
	}
	evt := receive(t, ch)
	if evt.Kind != KindCalibration {
		t.Errorf("kind = %q, want %q", evt.Kind, KindCalibration)
	}
	if evt.Msg != "tele = 1.0200" {
		t.Errorf("msg = %q", evt.Msg)
	}
	data, ok := evt.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v, want an object", evt.Data)
	}
	if data["role"] != "tele" || data["multiplier"] != 1.02 {
		t.Errorf("data = %v", data)
	}

	store.ResetMultiplier("tele")
	if evt := receive(t, ch); evt.Msg != "tele reset" {
		t.Errorf("msg = %q, want \"tele reset\"", evt.Msg)
	}

	store.ResetAll(nil) // nothing left to reset
	if _, err := store.SetMultiplier(0.97, "main"); err != nil {
		t.Fatal(err)
	}
	if evt := receive(t, ch); evt.Msg != "main = 0.9700" {
		t.Errorf("msg = %q, want the set event first", evt.Msg)
	}
	store.ResetAll(nil)
	if evt := receive(t, ch); evt.Msg != "all modules reset" {
		t.Errorf("msg = %q, want \"all modules reset\"", evt.Msg)
	}
}

func TestBroadcastWriter_Write(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	line := "  [ScoutCam] trimmed message  \n"
	n, err := w.Write([]byte(line))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != len(line) {
		t.Errorf("n = %d, want %d", n, len(line))
	}

	if evt := receive(t, ch); evt.Msg != "[ScoutCam] trimmed message" {
		t.Errorf("msg = %q, want \"[ScoutCam] trimmed message\"", evt.Msg)
	}
}

func TestBroadcastWriter_EmptyWriteIgnored(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	w.Write([]byte("   \n"))

	select {
	case <-ch:
		t.Error("expected no message for whitespace-only write")
	case <-time.After(50 * time.Millisecond):
	}
}
