package broker

import (
	"context"
	"strings"

	"github.com/meshgate/platform/internal/apperr"
	"github.com/meshgate/platform/internal/logging"
)

// ExchangeManager is the single authority over the subscriber registry
// and the journal (spec §4.1). It replaces the "global singleton with
// internal locking" pattern named in Design Note "Shared mutable broker
// state" with a message-passing actor: one goroutine (Run) owns all
// state and receives commands over a bounded channel, grounded on the
// teacher's internal/websocket/agent_hub.go AgentHub.Run() select-loop.
// There is no mutex anywhere in this type; every mutation happens inside
// the single goroutine that reads from cmds.
type ExchangeManager struct {
	journal     *Journal
	subscribers []*Subscriber // ordered: first-match-by-id semantics preserved
	cmds        chan command
}

// NewExchangeManager constructs a manager around an already-open journal.
// bufSize bounds the command channel (a small constant is enough: each
// command does O(1) to O(N) in-memory work and never blocks on I/O
// except the journal, which is itself in-memory until Sync).
func NewExchangeManager(j *Journal, bufSize int) *ExchangeManager {
	return &ExchangeManager{
		journal: j,
		cmds:    make(chan command, bufSize),
	}
}

type command interface{ isCommand() }

type connectCmd struct {
	serviceID string
	sink      subscriberSink
}
type subscribeCmd struct {
	serviceID string
	topic     string
}
type publishCmd struct {
	payload []byte
	resp    chan error
}
type pongCmd struct {
	serviceID string
	payload   []byte
}
type closeCmd struct {
	serviceID string
}
type tickCmd struct{}
type syncCmd struct {
	resp chan error
}

func (connectCmd) isCommand()   {}
func (subscribeCmd) isCommand() {}
func (publishCmd) isCommand()   {}
func (pongCmd) isCommand()      {}
func (closeCmd) isCommand()     {}
func (tickCmd) isCommand()      {}
func (syncCmd) isCommand()      {}

// Run drives the actor loop until ctx is cancelled. It is meant to be
// the only goroutine that ever touches m.subscribers or m.journal's
// logical contents.
func (m *ExchangeManager) Run(ctx context.Context) {
	log := logging.Dispatch()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.cmds:
			switch cmd := c.(type) {
			case connectCmd:
				m.handleConnect(cmd)
			case subscribeCmd:
				m.handleSubscribe(cmd)
			case publishCmd:
				cmd.resp <- m.handlePublish(cmd)
			case pongCmd:
				m.handlePong(cmd)
			case closeCmd:
				m.handleClose(cmd)
			case tickCmd:
				if err := m.handleTick(); err != nil {
					log.Error().Err(err).Msg("dispatch pass failed")
				}
			case syncCmd:
				cmd.resp <- m.journal.Flush()
			}
		}
	}
}

// Connect registers a new subscriber. No check for duplicate service_id
// (spec §4.1 "connect"): the source accepts duplicates and later lookups
// match the first.
func (m *ExchangeManager) Connect(ctx context.Context, serviceID string, sink subscriberSink) {
	select {
	case m.cmds <- connectCmd{serviceID: serviceID, sink: sink}:
	case <-ctx.Done():
	}
}

// Subscribe appends topic (uppercased) to the first subscriber matching
// serviceID. Missing id is logged, not an error.
func (m *ExchangeManager) Subscribe(ctx context.Context, serviceID, topic string) {
	select {
	case m.cmds <- subscribeCmd{serviceID: serviceID, topic: strings.ToUpper(topic)}:
	case <-ctx.Done():
	}
}

// Publish appends the already-serialized exchange to the journal. It
// does not deserialize; the dispatcher decodes lazily on the next tick.
func (m *ExchangeManager) Publish(ctx context.Context, payload []byte) error {
	resp := make(chan error, 1)
	select {
	case m.cmds <- publishCmd{payload: payload, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pong sends a best-effort Pong frame to the named subscriber.
func (m *ExchangeManager) Pong(ctx context.Context, serviceID string, payload []byte) {
	select {
	case m.cmds <- pongCmd{serviceID: serviceID, payload: payload}:
	case <-ctx.Done():
	}
}

// CloseConnection removes the first subscriber with the id and
// half-closes its sink. Idempotent.
func (m *ExchangeManager) CloseConnection(ctx context.Context, serviceID string) {
	select {
	case m.cmds <- closeCmd{serviceID: serviceID}:
	case <-ctx.Done():
	}
}

// Tick requests one dispatch pass.
func (m *ExchangeManager) Tick(ctx context.Context) {
	select {
	case m.cmds <- tickCmd{}:
	case <-ctx.Done():
	}
}

// SyncNow requests a flush of the journal to disk.
func (m *ExchangeManager) SyncNow(ctx context.Context) error {
	resp := make(chan error, 1)
	select {
	case m.cmds <- syncCmd{resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ExchangeManager) handleConnect(cmd connectCmd) {
	m.subscribers = append(m.subscribers, &Subscriber{ServiceID: cmd.serviceID, Sink: cmd.sink})
}

func (m *ExchangeManager) handleSubscribe(cmd subscribeCmd) {
	sub := m.findFirst(cmd.serviceID)
	if sub == nil {
		logging.Dispatch().Info().Str("service_id", cmd.serviceID).Msg("subscribe for unknown service_id, ignoring")
		return
	}
	sub.Subscriptions = append(sub.Subscriptions, cmd.topic)
}

func (m *ExchangeManager) handlePublish(cmd publishCmd) error {
	if err := m.journal.Append(cmd.payload); err != nil {
		return apperr.Wrap(apperr.CodeJournalWrite, "append exchange to journal", err)
	}
	return nil
}

func (m *ExchangeManager) handlePong(cmd pongCmd) {
	sub := m.findFirst(cmd.serviceID)
	if sub == nil {
		return
	}
	sub.Sink.SendPong(cmd.payload)
}

func (m *ExchangeManager) handleClose(cmd closeCmd) {
	for i, sub := range m.subscribers {
		if sub.ServiceID == cmd.serviceID {
			sub.Sink.Close()
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

// handleTick is the dispatch pass: spec §4.1 "Dispatch pass (the core
// algorithm)".
func (m *ExchangeManager) handleTick() error {
	log := logging.Dispatch()
	entries := m.journal.Iter()
	if len(entries) == 0 {
		return nil
	}

	survivors := make([][]byte, 0, len(entries))
	// Evicted subscribers are tracked by pointer identity, not ServiceID:
	// duplicate service_ids are permitted on connect (spec §4.1
	// "connect"), so a failed send on one subscriber must not skip or
	// evict a healthy subscriber sharing the same id.
	evict := make(map[*Subscriber]bool)

	for _, raw := range entries {
		ex, err := DecodeExchange(raw)
		if err != nil {
			return apperr.Wrap(apperr.CodeDecode, "decode journal entry", err)
		}

		consumed := false
		for _, sub := range m.subscribers {
			if evict[sub] {
				continue
			}
			if !sub.HasSubscription(ex.Topic) {
				continue
			}
			if sub.Sink.SendBinary(raw) {
				consumed = true
			} else {
				evict[sub] = true
				log.Warn().Str("service_id", sub.ServiceID).Msg("sink send failed, evicting subscriber")
			}
		}

		if !consumed {
			survivors = append(survivors, raw)
		}
	}

	m.journal.AppendAll(survivors)

	if len(evict) > 0 {
		kept := m.subscribers[:0]
		for _, sub := range m.subscribers {
			if evict[sub] {
				sub.Sink.Close()
				continue
			}
			kept = append(kept, sub)
		}
		m.subscribers = kept
	}

	return nil
}

// findFirst returns the first subscriber registered with serviceID, or
// nil. Linear scan, intentionally: preserves the source's first-match
// lookup semantics even though a map would be faster (Design Note
// "Subscriber lookup by service_id").
func (m *ExchangeManager) findFirst(serviceID string) *Subscriber {
	for _, sub := range m.subscribers {
		if sub.ServiceID == serviceID {
			return sub
		}
	}
	return nil
}
