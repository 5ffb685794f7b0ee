package realtime

import (
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/stretchr/testify/require"
)

// fakeConn is a dashboard socket: it replays the frames a browser sends and
// records what the hub writes back.
type fakeConn struct {
	mu       sync.Mutex
	incoming []frame
	written  []frame
	closes   int
}

type frame struct {
	kind    int
	payload []byte
	err     error
}

// newFakeConn queues text frames from the browser; reads end with io.EOF.
func newFakeConn(messages ...string) *fakeConn {
	c := &fakeConn{}
	for _, m := range messages {
		c.incoming = append(c.incoming, frame{kind: websocket.TextMessage, payload: []byte(m)})
	}
	return c
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, frame{kind: messageType, payload: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.incoming) == 0 {
		return 0, nil, io.EOF
	}
	next := c.incoming[0]
	c.incoming = c.incoming[1:]
	return next.kind, append([]byte(nil), next.payload...), next.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) writtenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func (c *fakeConn) writtenFrame(i int) frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written[i]
}

func (c *fakeConn) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.incoming)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// events decodes every text frame written so far as a session event.
func (c *fakeConn) events(t *testing.T) []EventPayload {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []EventPayload
	for _, f := range c.written {
		if f.kind != websocket.TextMessage {
			continue
		}
		var payload EventPayload
		require.NoError(t, json.Unmarshal(f.payload, &payload))
		out = append(out, payload)
	}
	return out
}
