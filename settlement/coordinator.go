/*
coordinator.go - Per-client serialization

PURPOSE:
  Guarantees that at most one mutation-plus-reconciliation sequence runs for
  a given client at a time. Different clients proceed in parallel.

DESIGN:
  Each active client owns a one-slot channel used as a token. Acquire blocks
  on the channel or on ctx, so a cancelled caller stops waiting without
  leaking the token. Entries are reference counted and removed once no
  goroutine holds or awaits them; the map never grows with the number of
  clients ever seen.

  The token is released with defer, so a panic or an error inside the
  critical section never leaves the client locked.
*/
package settlement

import (
	"context"
	"sync"
	"time"
)

type clientToken struct {
	ch   chan struct{}
	refs int
}

// Coordinator serializes work per client.
type Coordinator struct {
	mu      sync.Mutex
	clients map[ClientID]*clientToken
}

func NewCoordinator() *Coordinator {
	return &Coordinator{clients: make(map[ClientID]*clientToken)}
}

// WithClientLock runs fn while holding the token for clientID.
func (c *Coordinator) WithClientLock(ctx context.Context, clientID ClientID, fn func(context.Context) error) error {
	tok := c.ref(clientID)
	defer c.unref(clientID, tok)

	waitStart := time.Now()
	select {
	case tok.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	ClientLockWait.Observe(time.Since(waitStart).Seconds())
	defer func() { <-tok.ch }()

	return fn(ctx)
}

// Active returns the number of clients currently held or awaited.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *Coordinator) ref(id ClientID) *clientToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients == nil {
		c.clients = make(map[ClientID]*clientToken)
	}
	tok, ok := c.clients[id]
	if !ok {
		tok = &clientToken{ch: make(chan struct{}, 1)}
		c.clients[id] = tok
		ClientLocksHeld.Inc()
	}
	tok.refs++
	return tok
}

func (c *Coordinator) unref(id ClientID, tok *clientToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok.refs--
	if tok.refs == 0 {
		delete(c.clients, id)
		ClientLocksHeld.Dec()
	}
}
