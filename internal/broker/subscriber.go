package broker

import (
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Subscriber is one open websocket client. ServiceID need not be unique;
// duplicates are permitted on connect, and lookups by id match the first
// subscriber registered with that id (spec §4.1, Design Note
// "Subscriber lookup by service_id" — preserved as observed rather than
// deduplicated, since it is unclear whether the source's behavior here
// is intentional).
type Subscriber struct {
	ServiceID     string
	Sink          subscriberSink
	Subscriptions []string // uppercased topics, in subscribe order
}

// subscriberSink is the write half of a subscriber connection. *Sink is
// the production implementation (a real websocket connection); tests
// substitute a fake to exercise the dispatch pass without a socket.
type subscriberSink interface {
	SendBinary(payload []byte) bool
	SendPong(payload []byte)
	Close() error
}

// HasSubscription reports whether the subscriber is subscribed to topic,
// compared case-insensitively (topics are canonicalized to uppercase at
// subscribe-time and at lookup).
func (s *Subscriber) HasSubscription(topic string) bool {
	want := strings.ToUpper(topic)
	for _, t := range s.Subscriptions {
		if t == want {
			return true
		}
	}
	return false
}

// Sink is the write half of a subscriber's websocket connection,
// exclusively owned by the manager once a subscriber is connected. It
// mirrors the teacher's Client.send channel (internal/websocket/hub.go)
// but carries binary Exchange payloads and control frames instead of
// generic broadcast JSON.
type Sink struct {
	conn      *websocket.Conn
	send      chan outboundFrame
	done      chan struct{}
	closeOnce sync.Once
}

type outboundFrame struct {
	messageType int
	payload     []byte
}

// NewSink wraps a websocket connection as a Sink and starts its write
// pump. The caller owns reading inbound frames (see ServeConnection).
func NewSink(conn *websocket.Conn) *Sink {
	s := &Sink{
		conn: conn,
		send: make(chan outboundFrame, 256),
		done: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// SendBinary attempts a non-blocking binary send of the exact bytes
// given. It returns false if the sink's outbound buffer is full or the
// sink has been closed — the manager treats this as a SinkSend failure
// and evicts the subscriber (spec §4.1 step 4).
func (s *Sink) SendBinary(payload []byte) bool {
	select {
	case s.send <- outboundFrame{messageType: websocket.BinaryMessage, payload: payload}:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// SendPong attempts a best-effort Pong reply (spec §4.1 "pong").
func (s *Sink) SendPong(payload []byte) {
	select {
	case s.send <- outboundFrame{messageType: websocket.PongMessage, payload: payload}:
	case <-s.done:
	default:
	}
}

// Close half-closes the sink: stops the write pump and closes the
// underlying connection. Idempotent and safe to call concurrently from
// both the write pump (on a send error) and the manager's eviction/close
// path — sync.Once guards against the double close(s.done) panic that a
// bare select/default race would otherwise permit.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Sink) writePump() {
	for {
		select {
		case frame := <-s.send:
			if err := s.conn.WriteMessage(frame.messageType, frame.payload); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
