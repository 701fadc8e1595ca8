package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays canned replies in order. It is used for offline
// runs and tests.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []string
	next     int
	requests []Request
}

// NewScriptedClient returns a client that serves replies in order.
func NewScriptedClient(replies ...string) *ScriptedClient {
	return &ScriptedClient{replies: append([]string(nil), replies...)}
}

// Complete implements Client.
func (c *ScriptedClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.next >= len(c.replies) {
		return "", fmt.Errorf("scripted client exhausted after %d replies", len(c.replies))
	}
	reply := c.replies[c.next]
	c.next++
	return reply, nil
}

// Requests returns a copy of every request received so far.
func (c *ScriptedClient) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}
