package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/realtime"
	"github.com/dmitrijs2005/keybud/internal/server/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type push struct {
	connID string
	event  string
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
	err    error
}

func (f *fakePusher) SendToConnection(_ context.Context, connID, event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushes = append(f.pushes, push{connID: connID, event: event})
	return nil
}

func (f *fakePusher) BroadcastToConnections(ctx context.Context, ids []string, event string, payload any) error {
	for _, id := range ids {
		if err := f.SendToConnection(ctx, id, event, payload); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	store    kv.Store
	sessions *registry.Registry
	pusher   *fakePusher
	n        *Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	sessions := registry.NewAuth(store, logging.Discard())
	pusher := &fakePusher{}
	return &fixture{
		store:    store,
		sessions: sessions,
		pusher:   pusher,
		n:        New(store, sessions, pusher, logging.Discard(), 0),
	}
}

func TestMintAndConsumeNonce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	nonce, err := f.n.MintNonce(ctx, "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	v, ok, err := f.store.Get(ctx, "auth:nonce:"+nonce)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sess-1", v)

	sessionID, ok := f.n.ConsumeNonce(ctx, nonce)
	require.True(t, ok)
	assert.Equal(t, "sess-1", sessionID)

	_, ok = f.n.ConsumeNonce(ctx, nonce)
	assert.False(t, ok, "nonce is single use")

	_, ok = f.n.ConsumeNonce(ctx, "")
	assert.False(t, ok)
}

func TestMintNonce_Unique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.n.MintNonce(ctx, "s")
	require.NoError(t, err)
	b, err := f.n.MintNonce(ctx, "s")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestComplete_DeliversOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.sessions.Bind(ctx, "sock-1", "sess-1")
	nonce, err := f.n.MintNonce(ctx, "sess-1")
	require.NoError(t, err)

	assert.True(t, f.n.Complete(ctx, nonce))
	assert.Equal(t, []push{{connID: "sock-1", event: realtime.EventSessionComplete}}, f.pusher.pushes)

	_, ok := f.sessions.ResolveByCorrelation(ctx, "sess-1")
	assert.False(t, ok)
	_, ok = f.sessions.ResolveByConnection(ctx, "sock-1")
	assert.False(t, ok)

	// A second attempt for the same session finds no binding.
	assert.False(t, f.n.NotifyCompleted(ctx, "sess-1"))
	assert.False(t, f.n.Complete(ctx, nonce))
	assert.Len(t, f.pusher.pushes, 1)
}

func TestNotifyCompleted_NoSocket(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.n.NotifyCompleted(context.Background(), "never-registered"))
	assert.Empty(t, f.pusher.pushes)
}

func TestNotifyCompleted_DisconnectedBeforeCallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.sessions.Bind(ctx, "sock-1", "sess-1")
	f.sessions.Release(ctx, "sock-1")

	assert.False(t, f.n.NotifyCompleted(ctx, "sess-1"))
}

func TestNotifyCompleted_LastRegistrationWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.sessions.Bind(ctx, "sock-old", "sess-1")
	f.sessions.Bind(ctx, "sock-new", "sess-1")

	require.True(t, f.n.NotifyCompleted(ctx, "sess-1"))
	assert.Equal(t, "sock-new", f.pusher.pushes[0].connID)
}

func TestNotifyCompleted_PushFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.pusher.err = errors.New("socket gone")

	f.sessions.Bind(ctx, "sock-1", "sess-1")

	assert.False(t, f.n.NotifyCompleted(ctx, "sess-1"))
}

func TestNotifyCompleted_SocketOnOtherInstance(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := kv.NewRedisStore(ctx, kv.RedisOptions{Addr: mr.Addr(), DefaultTTL: 300 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// Both instances share the store; only the first holds the socket.
	holding := &fakePusher{}
	first := New(store, registry.NewAuth(store, logging.Discard()), holding, logging.Discard(), 0)
	second := New(store, registry.NewAuth(store, logging.Discard()), realtime.NewHub(realtime.NamespaceAuth), logging.Discard(), 0)

	registry.NewAuth(store, logging.Discard()).Bind(ctx, "sock-1", "sess-1")

	assert.False(t, second.NotifyCompleted(ctx, "sess-1"))
	assert.True(t, mr.Exists("auth:session:sess-1"), "binding kept for the holding instance")

	require.True(t, first.NotifyCompleted(ctx, "sess-1"))
	assert.Equal(t, []push{{connID: "sock-1", event: realtime.EventSessionComplete}}, holding.pushes)
}

func TestNonceExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := kv.NewRedisStore(ctx, kv.RedisOptions{Addr: mr.Addr(), DefaultTTL: 300 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n := New(store, registry.NewAuth(store, logging.Discard()), &fakePusher{}, logging.Discard(), 0)

	nonce, err := n.MintNonce(ctx, "sess")
	require.NoError(t, err)

	mr.FastForward(301 * time.Second)

	_, ok := n.ConsumeNonce(ctx, nonce)
	assert.False(t, ok)
}

func TestStoreDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store, err := kv.NewRedisStore(ctx, kv.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n := New(store, registry.NewAuth(store, logging.Discard()), &fakePusher{}, logging.Discard(), 0)
	mr.Close()

	_, err = n.MintNonce(ctx, "sess")
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		assert.False(t, n.Complete(ctx, "whatever"))
		assert.False(t, n.NotifyCompleted(ctx, "sess"))
	})
}
