package ndp

import "testing"

func TestTORQueueStrictPriority(t *testing.T) {
	q := newTORQueue()
	q.push(NetworkPacket{Pkt: []byte("data1"), Priority: 1})
	q.push(NetworkPacket{Pkt: []byte("ctrl1"), Priority: 0})
	q.push(NetworkPacket{Pkt: []byte("data2"), Priority: 1})

	want := []string{"ctrl1", "data1", "data2"}
	for i, w := range want {
		if q.len() == 0 {
			t.Fatalf("queue emptied early at index %d", i)
		}
		got := string(q.pop().Pkt)
		if got != w {
			t.Errorf("pop %d: got %q, want %q", i, got, w)
		}
	}
	if q.len() != 0 {
		t.Errorf("expected empty queue, got len=%d", q.len())
	}
}

func TestTORQueueFIFOWithinClass(t *testing.T) {
	q := newTORQueue()
	for _, s := range []string{"a", "b", "c", "d"} {
		q.push(NetworkPacket{Pkt: []byte(s), Priority: 1})
	}
	var got []string
	for q.len() > 0 {
		got = append(got, string(q.pop().Pkt))
	}
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTORQueueInterleavedPriority(t *testing.T) {
	q := newTORQueue()
	q.push(NetworkPacket{Pkt: []byte("ctrl1"), Priority: 0})
	q.push(NetworkPacket{Pkt: []byte("data1"), Priority: 1})
	q.push(NetworkPacket{Pkt: []byte("ctrl2"), Priority: 0})
	q.push(NetworkPacket{Pkt: []byte("data2"), Priority: 1})

	want := []string{"ctrl1", "ctrl2", "data1", "data2"}
	for i, w := range want {
		got := string(q.pop().Pkt)
		if got != w {
			t.Errorf("pop %d: got %q, want %q", i, got, w)
		}
	}
}
