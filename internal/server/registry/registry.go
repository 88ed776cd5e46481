// Package registry keeps the bidirectional binding between a live socket
// connection and a correlation id (login session or user) in the shared
// key-value store.
//
// Every method is best-effort: store failures are logged and reported as
// "no binding", never returned. Entries are either TTL-bounded or rewritten
// on the next subscription, so a half-applied bind or release heals itself.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/kv"
	"github.com/dmitrijs2005/keybud/internal/server/metrics"
)

// mgetChunkSize bounds the number of keys sent in one MGET.
const mgetChunkSize = 100

// Namespaces and correlation kinds of the two registries the server runs.
const (
	AuthNamespace    = "auth"
	SessionKind      = "session"
	MessageNamespace = "message"
	UserKind         = "user"
)

// Registry maps connection ids to correlation ids and back.
type Registry struct {
	store     kv.Store
	logger    logging.Logger
	namespace string
	kind      string
	ttl       time.Duration
}

// New builds a registry whose keys are "<namespace>:socket:<conn>" and
// "<namespace>:<kind>:<corr>". ttl follows kv.Store.Set conventions.
func New(store kv.Store, logger logging.Logger, namespace, kind string, ttl time.Duration) *Registry {
	return &Registry{
		store:     store,
		logger:    logger.With("module", "registry", "namespace", namespace),
		namespace: namespace,
		kind:      kind,
		ttl:       ttl,
	}
}

// NewAuth returns the login-session registry. Bindings use the store default
// TTL so an abandoned login tab expires on its own.
func NewAuth(store kv.Store, logger logging.Logger) *Registry {
	return New(store, logger, AuthNamespace, SessionKind, 0)
}

// NewMessage returns the user registry used by fan-out. Bindings persist
// until the socket disconnects or the user subscribes again.
func NewMessage(store kv.Store, logger logging.Logger) *Registry {
	return New(store, logger, MessageNamespace, UserKind, kv.NoExpiry)
}

// Namespace returns the key prefix of this registry.
func (r *Registry) Namespace() string { return r.namespace }

func (r *Registry) connectionKey(connID string) string {
	return fmt.Sprintf("%s:socket:%s", r.namespace, connID)
}

func (r *Registry) correlationKey(corrID string) string {
	return fmt.Sprintf("%s:%s:%s", r.namespace, r.kind, corrID)
}

// Bind writes the forward and reverse entries. A repeated Bind overwrites
// both (last write wins). Rebinding a connection to another id first drops
// the reverse entry of its previous id, so a connection never owns more
// than one pair.
func (r *Registry) Bind(ctx context.Context, connID, corrID string) {
	if prev, ok := r.ResolveByConnection(ctx, connID); ok && prev != corrID {
		r.dropReverseIfOwned(ctx, connID, prev)
	}

	if err := r.store.Set(ctx, r.connectionKey(connID), corrID, r.ttl); err != nil {
		r.writeFailed(ctx, "bind forward", err, "socket_id", connID)
		return
	}
	if err := r.store.Set(ctx, r.correlationKey(corrID), connID, r.ttl); err != nil {
		// The forward entry stays behind until it expires or is rebound.
		r.writeFailed(ctx, "bind reverse", err, r.kind+"_id", corrID)
		return
	}
	r.logger.Debug(ctx, "connection bound", "socket_id", connID, r.kind+"_id", corrID)
}

// ResolveByConnection returns the correlation id bound to connID.
func (r *Registry) ResolveByConnection(ctx context.Context, connID string) (string, bool) {
	return r.lookup(ctx, r.connectionKey(connID))
}

// ResolveByCorrelation returns the connection id bound to corrID.
func (r *Registry) ResolveByCorrelation(ctx context.Context, corrID string) (string, bool) {
	return r.lookup(ctx, r.correlationKey(corrID))
}

// ResolveManyByCorrelation resolves corrIDs with batched MGETs. The result
// holds only ids that have a live connection. A failed batch is logged and
// its ids are treated as unbound; the other batches are still returned.
func (r *Registry) ResolveManyByCorrelation(ctx context.Context, corrIDs []string) map[string]string {
	out := make(map[string]string, len(corrIDs))

	for start := 0; start < len(corrIDs); start += mgetChunkSize {
		end := min(start+mgetChunkSize, len(corrIDs))
		chunk := corrIDs[start:end]

		keys := make([]string, len(chunk))
		for i, id := range chunk {
			keys[i] = r.correlationKey(id)
		}

		values, err := r.store.MGet(ctx, keys)
		if err != nil {
			r.logger.Warn(ctx, "registry batch lookup failed", "error", err, "batch_size", len(keys))
			metrics.RecordRegistryLookup(r.namespace, metrics.OutcomeError)
			continue
		}

		for i, v := range values {
			if i >= len(chunk) {
				break
			}
			if v.Found && v.String != "" {
				out[chunk[i]] = v.String
				metrics.RecordRegistryLookup(r.namespace, metrics.OutcomeHit)
			} else {
				metrics.RecordRegistryLookup(r.namespace, metrics.OutcomeMiss)
			}
		}
	}

	return out
}

// Release removes the binding of connID in both directions. The reverse
// entry is only removed while it still points at connID, so a release from a
// stale socket does not unbind a newer subscription of the same id.
func (r *Registry) Release(ctx context.Context, connID string) {
	corrID, ok := r.ResolveByConnection(ctx, connID)

	if _, err := r.store.Del(ctx, r.connectionKey(connID)); err != nil {
		r.writeFailed(ctx, "release forward", err, "socket_id", connID)
	}
	if !ok {
		return
	}

	if r.dropReverseIfOwned(ctx, connID, corrID) {
		r.logger.Debug(ctx, "connection released", "socket_id", connID, r.kind+"_id", corrID)
	}
}

// dropReverseIfOwned deletes the reverse entry of corrID while it still
// points at connID and reports whether it did.
func (r *Registry) dropReverseIfOwned(ctx context.Context, connID, corrID string) bool {
	current, found := r.ResolveByCorrelation(ctx, corrID)
	if found && current != connID {
		r.logger.Debug(ctx, "reverse entry rebound, keeping it", r.kind+"_id", corrID, "socket_id", current)
		return false
	}
	if _, err := r.store.Del(ctx, r.correlationKey(corrID)); err != nil {
		r.writeFailed(ctx, "release reverse", err, r.kind+"_id", corrID)
		return false
	}
	return true
}

// ReleaseCorrelation removes the binding starting from the correlation side.
func (r *Registry) ReleaseCorrelation(ctx context.Context, corrID string) {
	connID, ok := r.ResolveByCorrelation(ctx, corrID)

	if _, err := r.store.Del(ctx, r.correlationKey(corrID)); err != nil {
		r.writeFailed(ctx, "release reverse", err, r.kind+"_id", corrID)
	}
	if !ok {
		return
	}
	// The connection may have been rebound to another id meanwhile.
	if current, found := r.ResolveByConnection(ctx, connID); found && current != corrID {
		return
	}
	if _, err := r.store.Del(ctx, r.connectionKey(connID)); err != nil {
		r.writeFailed(ctx, "release forward", err, "socket_id", connID)
	}
}

func (r *Registry) lookup(ctx context.Context, key string) (string, bool) {
	v, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn(ctx, "registry lookup failed", "key", key, "error", err)
		metrics.RecordRegistryLookup(r.namespace, metrics.OutcomeError)
		return "", false
	}
	if !ok || v == "" {
		metrics.RecordRegistryLookup(r.namespace, metrics.OutcomeMiss)
		return "", false
	}
	metrics.RecordRegistryLookup(r.namespace, metrics.OutcomeHit)
	return v, true
}

func (r *Registry) writeFailed(ctx context.Context, op string, err error, args ...any) {
	metrics.RecordRegistryWriteError(r.namespace)
	r.logger.Warn(ctx, "registry "+op+" failed", append(args, "error", err)...)
}
