package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/wagate/internal/clock"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	got := map[string][]string{}
	for _, id := range []string{"a", "b"} {
		id := id
		b.Subscribe(id, func(ev Event) {
			mu.Lock()
			got[id] = append(got[id], ev.Name)
			mu.Unlock()
		})
	}

	b.Broadcast(Event{Name: "qr"})
	b.Unsubscribe("b")
	b.Broadcast(Event{Name: "ready"})

	if len(got["a"]) != 2 || got["a"][1] != "ready" {
		t.Errorf("a received %v", got["a"])
	}
	if len(got["b"]) != 1 {
		t.Errorf("b received %v after unsubscribe", got["b"])
	}
	if b.Count() != 1 {
		t.Errorf("Count = %d", b.Count())
	}
}

func TestBroadcastSurvivesPanickingSubscriber(t *testing.T) {
	b := New()
	b.Subscribe("bad", func(Event) { panic("boom") })
	delivered := false
	b.Subscribe("good", func(Event) { delivered = true })

	b.Broadcast(Event{Name: "ready"})
	if !delivered {
		t.Error("healthy subscriber missed the event")
	}
}

func TestDedupeCache(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewDedupeCache(time.Minute, 3, clk)

	if d.IsDuplicate("m1") {
		t.Fatal("first sight reported duplicate")
	}
	if !d.IsDuplicate("m1") {
		t.Fatal("second sight not reported duplicate")
	}

	clk.Advance(61 * time.Second)
	if d.IsDuplicate("m1") {
		t.Error("expired entry reported duplicate")
	}

	d.IsDuplicate("m2")
	d.IsDuplicate("m3")
	d.IsDuplicate("m4")
	if d.Len() > 3 {
		t.Errorf("Len = %d, want <= 3", d.Len())
	}
}
