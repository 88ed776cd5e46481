// Package fanout pushes newly created messages to the live sockets of a
// conversation's members.
//
// Delivery is at most once: members without a bound socket are skipped,
// failed pushes are logged and never retried. Offline members see the
// message on their next page load.
package fanout

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/keybud/internal/logging"
	"github.com/dmitrijs2005/keybud/internal/server/metrics"
	"github.com/dmitrijs2005/keybud/internal/server/models"
	"github.com/dmitrijs2005/keybud/internal/server/realtime"
	"go.uber.org/multierr"
)

// Resolver maps user ids to connection ids. Unbound users are omitted.
type Resolver interface {
	ResolveManyByCorrelation(ctx context.Context, corrIDs []string) map[string]string
}

type Dispatcher struct {
	resolver Resolver
	pusher   realtime.Pusher
	logger   logging.Logger
}

func NewDispatcher(resolver Resolver, pusher realtime.Pusher, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		pusher:   pusher,
		logger:   logger.With("module", "fanout"),
	}
}

// NotifyNewMessage pushes msg to every member with a live socket. It never
// fails; the push runs to completion even if ctx is cancelled, since the
// message is already stored.
func (d *Dispatcher) NotifyNewMessage(ctx context.Context, msg *models.Message, memberIDs []int64) {
	ctx = context.WithoutCancel(ctx)

	if len(memberIDs) == 0 {
		return
	}

	corrIDs := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		corrIDs[i] = strconv.FormatInt(id, 10)
	}

	resolved := d.resolver.ResolveManyByCorrelation(ctx, corrIDs)
	metrics.RecordDeliveries(metrics.OutcomeMiss, len(corrIDs)-len(resolved))
	if len(resolved) == 0 {
		d.logger.Debug(ctx, "no live recipients", "message_id", msg.ID, "conversation_id", msg.ConversationID)
		return
	}

	connIDs := make([]string, 0, len(resolved))
	for _, corr := range corrIDs {
		if conn, ok := resolved[corr]; ok {
			connIDs = append(connIDs, conn)
		}
	}

	err := d.pusher.BroadcastToConnections(ctx, connIDs, realtime.EventNewMessage, msg)
	failed := len(multierr.Errors(err))
	metrics.RecordDeliveries(metrics.OutcomeFailure, failed)
	metrics.RecordDeliveries(metrics.OutcomeSuccess, len(connIDs)-failed)

	if err != nil {
		d.logger.Warn(ctx, "new message push partially failed",
			"message_id", msg.ID, "conversation_id", msg.ConversationID,
			"recipients", len(connIDs), "failed", failed, "error", err)
		return
	}
	d.logger.Debug(ctx, "new message pushed", "message_id", msg.ID, "recipients", len(connIDs))
}
