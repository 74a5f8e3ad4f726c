package broker

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/meshgate/platform/internal/logging"
)

// controlMessage is the JSON shape of inbound text frames (spec §6):
// {"Connect":"<service_id>"} or {"Subscribe":"<topic>"}.
type controlMessage struct {
	Connect   *string `json:"Connect,omitempty"`
	Subscribe *string `json:"Subscribe,omitempty"`
}

// ServeConnection reads frames from an accepted websocket connection and
// demultiplexes them into ExchangeManager commands, grounded on the
// teacher's Client.readPump (internal/websocket/hub.go) but adapted to
// this protocol's control/binary split instead of generic JSON
// broadcasts. The first text frame must be a Connect message; subsequent
// frames are Subscribe (text), publish (binary), Ping, or Close.
func ServeConnection(ctx context.Context, manager *ExchangeManager, conn *websocket.Conn) {
	log := logging.Broker()
	sink := NewSink(conn)

	var serviceID string
	var connected bool

	conn.SetPingHandler(func(payload string) error {
		if connected {
			manager.Pong(ctx, serviceID, []byte(payload))
		}
		return nil
	})
	conn.SetCloseHandler(func(code int, text string) error {
		if connected {
			manager.CloseConnection(ctx, serviceID)
		}
		return nil
	})

	defer func() {
		if connected {
			manager.CloseConnection(ctx, serviceID)
		} else {
			sink.Close()
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Warn().Err(err).Msg("malformed control frame, closing connection")
				return
			}
			switch {
			case msg.Connect != nil && !connected:
				serviceID = *msg.Connect
				connected = true
				manager.Connect(ctx, serviceID, sink)
			case msg.Subscribe != nil && connected:
				manager.Subscribe(ctx, serviceID, *msg.Subscribe)
			default:
				log.Warn().Msg("control frame received out of sequence, closing connection")
				return
			}
		case websocket.BinaryMessage:
			if !connected {
				log.Warn().Msg("publish before connect, closing connection")
				return
			}
			if err := manager.Publish(ctx, data); err != nil {
				log.Error().Err(err).Msg("publish failed")
			}
		}
	}
}
