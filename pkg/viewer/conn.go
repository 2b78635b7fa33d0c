package viewer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aura-webinar/seminar-portal/internal/realtime"
)

const handshakeTimeout = 10 * time.Second

// Conn is one channel subscription opened with Dial.
type Conn struct {
	ClientID string
	Topic    string

	ws *websocket.Conn
	wm sync.Mutex
}

// Dial subscribes to topic on the server at baseURL (http, https, ws or wss) and waits for
// the subscribed acknowledgement.
func Dial(ctx context.Context, baseURL, topic, token string) (*Conn, error) {
	u, err := channelURL(baseURL, topic, token)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", topic, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", topic, err)
	}
	c := &Conn{Topic: topic, ws: ws}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	msg, err := c.Read()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("await subscribed: %w", err)
	}
	if msg.Event != realtime.EventSubscribed {
		_ = ws.Close()
		return nil, fmt.Errorf("await subscribed: got %q", msg.Event)
	}
	var sub realtime.Subscribed
	if err := decode(msg, &sub); err != nil {
		_ = ws.Close()
		return nil, err
	}
	_ = ws.SetReadDeadline(time.Time{})
	c.ClientID = sub.ClientID
	return c, nil
}

func channelURL(baseURL, topic, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("topic", topic)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Conn) write(event string) error {
	c.wm.Lock()
	defer c.wm.Unlock()
	return c.ws.WriteJSON(realtime.WSMessage{Event: event})
}

// Track joins the topic's presence set.
func (c *Conn) Track() error { return c.write(realtime.EventTrack) }

// Untrack leaves the presence set but keeps the subscription.
func (c *Conn) Untrack() error { return c.write(realtime.EventUntrack) }

// Read returns the next event from the server.
func (c *Conn) Read() (realtime.WSMessage, error) {
	var msg realtime.WSMessage
	err := c.ws.ReadJSON(&msg)
	return msg, err
}

// SetReadDeadline bounds the next Read.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

// Run reads events into p until ctx is done or the connection fails. onEvent, if set,
// is called after each event has been applied. Events that cannot be decoded are dropped.
func (c *Conn) Run(ctx context.Context, p *Projection, onEvent func(realtime.WSMessage)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.ws.Close()
		case <-stop:
		}
	}()
	for {
		msg, err := c.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := p.Apply(msg); err != nil {
			continue
		}
		if onEvent != nil {
			onEvent(msg)
		}
	}
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.wm.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wm.Unlock()
	return c.ws.Close()
}
