package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/usenocturne/btmanager/bluetooth"
)

const eventBuffer = 64

// Client is the host side of the bridge. It implements bluetooth.Invoker;
// concurrent invocations share one connection and are matched to their
// responses by request id.
type Client struct {
	conn *websocket.Conn
	out  *peer
	log  logrus.FieldLogger

	mu      sync.Mutex
	pending map[string]chan WebSocketEvent
	err     error

	events chan bluetooth.BluetoothChange
	done   chan struct{}
}

func Dial(ctx context.Context, url string, logger logrus.FieldLogger) (*Client, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		out:     &peer{conn: conn},
		log:     logger,
		pending: make(map[string]chan WebSocketEvent),
		events:  make(chan bluetooth.BluetoothChange, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

// Events delivers changes broadcast by the daemon. The channel is closed
// when the connection ends. Changes are dropped while the buffer is full.
func (c *Client) Events() <-chan bluetooth.BluetoothChange {
	return c.events
}

func (c *Client) Invoke(ctx context.Context, cmd string, args interface{}, result interface{}) error {
	req := Request{ID: uuid.NewString(), Cmd: cmd}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode %s arguments: %w", cmd, err)
		}
		req.Args = raw
	}

	ch := make(chan WebSocketEvent, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.out.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return &RemoteError{Command: cmd, Message: resp.Error}
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", cmd, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closeErr()
	}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)

	for {
		var msg WebSocketEvent
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			c.mu.Unlock()
			return
		}

		switch msg.Type {
		case MESSAGE_RESPONSE:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- msg:
				default:
				}
			}
		case MESSAGE_CHANGE:
			var change bluetooth.BluetoothChange
			if err := json.Unmarshal(msg.Payload, &change); err != nil {
				c.log.WithError(err).Warn("Dropping undecodable bluetooth change")
				continue
			}
			select {
			case c.events <- change:
			default:
				c.log.WithField("change", change.ChangeType.String()).Warn("Event buffer full, dropping change")
			}
		default:
			c.log.WithField("type", msg.Type).Debug("Ignoring unknown message")
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()

	c.out.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.out.writeMu.Unlock()

	return c.conn.Close()
}
