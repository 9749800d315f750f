package sockets

import (
	"testing"
)

type fakeSocket struct {
	closed int
}

func (f *fakeSocket) WriteJSON(any) error          { return nil }
func (f *fakeSocket) ReadJSON(any) error           { return nil }
func (f *fakeSocket) ReadMessage() ([]byte, error) { return nil, nil }
func (f *fakeSocket) RemoteAddr() string           { return "127.0.0.1:1" }
func (f *fakeSocket) Close() error {
	f.closed++
	return nil
}

func TestSocketPoolReplacesAndCloses(t *testing.T) {
	pool := NewSocketPool()
	first, second := &fakeSocket{}, &fakeSocket{}

	pool.Add("a", first)
	pool.Add("a", second)
	if first.closed != 1 {
		t.Errorf("replaced socket closed %d times, want 1", first.closed)
	}
	if pool.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pool.Len())
	}

	pool.Release("a", second)
	if second.closed != 1 {
		t.Errorf("socket closed %d times, want 1", second.closed)
	}
	if pool.Len() != 0 {
		t.Error("socket still present after Release")
	}
}

func TestSocketPoolReleaseKeepsReplacement(t *testing.T) {
	pool := NewSocketPool()
	stale, current := &fakeSocket{}, &fakeSocket{}

	pool.Add("admin", stale)
	pool.Add("admin", current)
	pool.Release("admin", stale)

	if current.closed != 0 {
		t.Errorf("replacement closed %d times, want 0", current.closed)
	}
	if pool.Len() != 1 {
		t.Fatal("stale release removed the replacement")
	}
	pool.Release("admin", current)
	if current.closed != 1 || pool.Len() != 0 {
		t.Errorf("replacement closed %d times, len = %d", current.closed, pool.Len())
	}
}

func TestSocketPoolClose(t *testing.T) {
	pool := NewSocketPool()
	a, b := &fakeSocket{}, &fakeSocket{}
	pool.Add("a", a)
	pool.Add("b", b)

	pool.Close()
	if a.closed != 1 || b.closed != 1 || pool.Len() != 0 {
		t.Errorf("closed = %d/%d, len = %d", a.closed, b.closed, pool.Len())
	}
}
