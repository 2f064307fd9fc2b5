package fills

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Handler receives one on-chain fill for a registered order.
type Handler func(ev *types.FillEvent)

// Router fans the account-wide fill stream out to per-order handlers.
// Events for unregistered orders are counted and dropped — the REST poll
// remains the authoritative fallback.
type Router struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler // lower-case order hash
}

// NewRouter creates a fill router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register routes events for an order hash to a handler.
func (r *Router) Register(orderHash string, h Handler) {
	r.mu.Lock()
	r.handlers[strings.ToLower(orderHash)] = h
	r.mu.Unlock()
}

// Unregister stops routing for an order hash.
func (r *Router) Unregister(orderHash string) {
	r.mu.Lock()
	delete(r.handlers, strings.ToLower(orderHash))
	r.mu.Unlock()
}

// Run consumes the stream until it closes or the context ends.
func (r *Router) Run(ctx context.Context, events <-chan types.FillEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(&ev)
		}
	}
}

func (r *Router) dispatch(ev *types.FillEvent) {
	r.mu.RLock()
	h, ok := r.handlers[strings.ToLower(ev.OrderHash)]
	r.mu.RUnlock()

	if !ok {
		UnroutedEventsTotal.Inc()
		r.logger.Debug("fill-event-unrouted", zap.String("order-hash", ev.OrderHash))
		return
	}
	h(ev)
}
