package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink is an in-process stand-in for a websocket connection, used so
// the dispatch pass can be exercised without a real socket.
type fakeSink struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
	closed   bool
}

func (f *fakeSink) SendBinary(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.fail {
		return false
	}
	cp := append([]byte(nil), payload...)
	f.received = append(f.received, cp)
	return true
}

func (f *fakeSink) SendPong(payload []byte) {}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) all() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.received))
	copy(out, f.received)
	return out
}

func newTestManager(t *testing.T) (context.Context, *ExchangeManager) {
	t.Helper()
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	m := NewExchangeManager(j, 64)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return ctx, m
}

func TestDeliveryToMatchingSubscriber(t *testing.T) {
	ctx, m := newTestManager(t)

	sink := &fakeSink{}
	m.Connect(ctx, "sub", sink)
	m.Subscribe(ctx, "sub", "animal")
	time.Sleep(10 * time.Millisecond)

	ex := NewExchange("Animal", "artcoded", nil, []byte("Hello World"))
	payload := ex.Encode()
	require.NoError(t, m.Publish(ctx, payload))

	m.Tick(ctx)
	time.Sleep(10 * time.Millisecond)

	received := sink.all()
	require.Len(t, received, 1)
	assert.Equal(t, payload, received[0])
}

func TestRetentionWithNoMatchingSubscriber(t *testing.T) {
	ctx, m := newTestManager(t)

	ex := NewExchange("X", "", nil, []byte("orphan"))
	require.NoError(t, m.Publish(ctx, ex.Encode()))

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}
	time.Sleep(10 * time.Millisecond)

	// No subscriber ever existed, so the entry must still be pending.
	assert.Len(t, m.journal.Iter(), 1)
}

func TestTopicCaseInsensitivity(t *testing.T) {
	ctx, m := newTestManager(t)

	sink := &fakeSink{}
	m.Connect(ctx, "sub", sink)
	m.Subscribe(ctx, "sub", "Animal")
	time.Sleep(10 * time.Millisecond)

	for _, topic := range []string{"animal", "ANIMAL", "aNiMaL"} {
		require.NoError(t, m.Publish(ctx, NewExchange(topic, "", nil, []byte(topic)).Encode()))
	}
	m.Tick(ctx)
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, sink.all(), 3)
}

func TestFIFOPerTopicPerSubscriber(t *testing.T) {
	ctx, m := newTestManager(t)

	sink := &fakeSink{}
	m.Connect(ctx, "sub", sink)
	m.Subscribe(ctx, "sub", "topic")
	time.Sleep(10 * time.Millisecond)

	e1 := NewExchange("topic", "", nil, []byte("first"))
	e2 := NewExchange("topic", "", nil, []byte("second"))
	require.NoError(t, m.Publish(ctx, e1.Encode()))
	require.NoError(t, m.Publish(ctx, e2.Encode()))

	m.Tick(ctx)
	time.Sleep(10 * time.Millisecond)

	received := sink.all()
	require.Len(t, received, 2)
	decoded0, err := DecodeExchange(received[0])
	require.NoError(t, err)
	decoded1, err := DecodeExchange(received[1])
	require.NoError(t, err)
	assert.Equal(t, "first", string(decoded0.Message))
	assert.Equal(t, "second", string(decoded1.Message))
}

func TestIsolationOfFailedSubscriber(t *testing.T) {
	ctx, m := newTestManager(t)

	good := &fakeSink{}
	bad := &fakeSink{fail: true}
	m.Connect(ctx, "good", good)
	m.Connect(ctx, "bad", bad)
	m.Subscribe(ctx, "good", "topic")
	m.Subscribe(ctx, "bad", "topic")
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, m.Publish(ctx, NewExchange("topic", "", nil, []byte("msg")).Encode()))
	m.Tick(ctx)
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, good.all(), 1)
	// The exchange was consumed (by "good"), so it must not remain pending
	// even though "bad" failed to receive it.
	assert.Empty(t, m.journal.Iter())
}

func TestSubscribeToUnknownServiceIDIsNotAnError(t *testing.T) {
	ctx, m := newTestManager(t)
	m.Subscribe(ctx, "ghost", "topic")
	time.Sleep(10 * time.Millisecond)
	// No panic, no observable error channel: success is silence.
}

func TestFirstMatchOnDuplicateServiceID(t *testing.T) {
	ctx, m := newTestManager(t)

	first := &fakeSink{}
	second := &fakeSink{}
	m.Connect(ctx, "dup", first)
	m.Connect(ctx, "dup", second)
	m.Subscribe(ctx, "dup", "topic")
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, m.Publish(ctx, NewExchange("topic", "", nil, []byte("x")).Encode()))
	m.Tick(ctx)
	time.Sleep(10 * time.Millisecond)

	// Subscribe matched the first-registered subscriber only.
	assert.Len(t, first.all(), 1)
	assert.Empty(t, second.all())
}
