package webhook

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	stripeclient "github.com/fatflowers/craftbill/internal/platform/stripe"
	"github.com/fatflowers/craftbill/pkg/types"
)

// HandlerFunc applies one event inside tx. It must be safe to re-run.
type HandlerFunc func(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) error

// Router is the event type -> handler dispatch table.
type Router struct {
	routes map[types.EventType]HandlerFunc
}

// NewRouter builds the dispatch table and fails unless every handled event
// type has exactly one route and no route is left undeclared.
func NewRouter(h *Handlers) (*Router, error) {
	return newRouter(h.Routes())
}

func newRouter(routes map[types.EventType]HandlerFunc) (*Router, error) {
	var missing, extra []string
	for _, t := range types.HandledEventTypes {
		if fn, ok := routes[t]; !ok || fn == nil {
			missing = append(missing, string(t))
		}
	}
	declared := make(map[types.EventType]struct{}, len(types.HandledEventTypes))
	for _, t := range types.HandledEventTypes {
		declared[t] = struct{}{}
	}
	for t := range routes {
		if _, ok := declared[t]; !ok {
			extra = append(extra, string(t))
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		return nil, fmt.Errorf("webhook router incomplete: missing=[%s] undeclared=[%s]",
			strings.Join(missing, ","), strings.Join(extra, ","))
	}
	return &Router{routes: routes}, nil
}

// Dispatch runs the handler for ev. handled is false for event types without
// a route; those are acknowledged without mutation.
func (r *Router) Dispatch(ctx context.Context, tx *gorm.DB, ev *stripeclient.Event) (handled bool, err error) {
	fn, ok := r.routes[ev.Type]
	if !ok {
		return false, nil
	}
	if err := fn(ctx, tx, ev); err != nil {
		return true, fmt.Errorf("%s: %w", ev.Type, err)
	}
	return true, nil
}

// Handles reports whether t has a route.
func (r *Router) Handles(t types.EventType) bool {
	_, ok := r.routes[t]
	return ok
}
