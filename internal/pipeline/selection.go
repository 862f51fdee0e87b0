package pipeline

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
)

// SelectionHost owns the single selection session. Transitions are
// serialized: each one completes before the next is observed.
type SelectionHost struct {
	mu       sync.Mutex
	selector domain.Selector
	state    domain.SelectionState
	onCommit func(domain.Region)
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewSelectionHost creates a host in the Idle phase. onCommit, if non-nil, is
// called exactly once per committed region, after the state is updated and
// outside the host's lock.
func NewSelectionHost(selector domain.Selector, onCommit func(domain.Region), logger *slog.Logger, metrics *observability.Metrics) *SelectionHost {
	return &SelectionHost{
		selector: selector,
		onCommit: onCommit,
		logger:   logger,
		metrics:  metrics,
	}
}

// State returns the current selection state.
func (h *SelectionHost) State() domain.SelectionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Region returns the live committed region, if any.
func (h *SelectionHost) Region() (domain.Region, bool) {
	s := h.State()
	if s.Region == nil {
		return domain.Region{}, false
	}
	return *s.Region, true
}

// Apply feeds one event through the selector.
func (h *SelectionHost) Apply(e domain.Event) (domain.SelectionState, *domain.Region) {
	state, regions := h.ApplyAll([]domain.Event{e})
	if len(regions) == 0 {
		return state, nil
	}
	return state, &regions[0]
}

// ApplyAll feeds a batch of events in order under one lock and returns the
// final state and every region committed along the way.
func (h *SelectionHost) ApplyAll(events []domain.Event) (domain.SelectionState, []domain.Region) {
	h.mu.Lock()
	var committed []domain.Region
	for _, e := range events {
		before := h.state.Phase
		next, region := h.selector.Reduce(h.state, e)
		h.state = next
		h.metrics.SelectionTransitions.WithLabelValues(e.Kind.String()).Inc()
		if before != next.Phase {
			h.logger.Debug("selection transition", "event", e.Kind.String(), "from", before.String(), "to", next.Phase.String())
		}
		if region != nil {
			committed = append(committed, *region)
		}
	}
	state := h.state
	h.mu.Unlock()

	for _, r := range committed {
		h.metrics.SelectionCommits.Inc()
		h.logger.Info("region committed", "region", r.String(),
			"lat_extent", r.LatExtent(), "lon_extent", r.LonExtent())
		if h.onCommit != nil {
			h.onCommit(r)
		}
	}
	return state, committed
}
