package ws

import (
	"context"
	"testing"
	"time"

	"triple-triad-server/game"
	"triple-triad-server/matchmaking"
)

func newTestHub(t *testing.T, ctx context.Context) *Hub {
	t.Helper()
	cat := game.DefaultCatalog()
	d, err := game.NewDealer(cat)
	if err != nil {
		t.Fatal(err)
	}
	return NewHub(ctx, matchmaking.NewRegistry(cat, d, nil, nil), nil)
}

// within fails the test if fn does not return before the deadline.
func within(t *testing.T, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s blocked after shutdown", what)
	}
}

func TestHubRegisterAndUnregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newTestHub(t, ctx)
	go h.Run()

	c := &Client{Hub: h, Send: make(chan []byte, 1)}
	if !h.register(c) {
		t.Fatal("register should succeed while the hub runs")
	}
	h.unregister(c)

	// Unregister closes Send once Run has processed it.
	select {
	case _, ok := <-c.Send:
		if ok {
			t.Error("expected Send to be closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send was not closed")
	}
}

func TestHubSendsDoNotBlockAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newTestHub(t, ctx)
	go h.Run()
	cancel()

	res, err := h.Registry.CreateMatch(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	c := &Client{Hub: h, Send: make(chan []byte, 4)}
	if err := h.Registry.Subscribe(res.Match.ID, c); err != nil {
		t.Fatal(err)
	}

	within(t, "register", func() {
		// Run may still pick it up if it has not seen ctx yet; either way it returns.
		h.register(c)
	})
	within(t, "unregister", func() { h.unregister(c) })

	// A detached client no longer receives events.
	if _, err := h.Registry.PlayCard(context.Background(), res.Match.ID, "alice", res.Hand[0].ID, 0, 0); err != nil {
		t.Fatal(err)
	}
	select {
	case msg, ok := <-c.Send:
		if ok {
			t.Errorf("unexpected message after unregister: %s", msg)
		}
	default:
	}
}
