package domain

// Phase is the stage of the region-selection interaction.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhasePreviewing
	PhaseCommitted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhasePreviewing:
		return "previewing"
	case PhaseCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON responses.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Source distinguishes mouse/pointer gestures from touch gestures. Each source
// has its own engagement slot.
type Source int

const (
	SourceMouse Source = iota
	SourceTouch
)

func (s Source) String() string {
	if s == SourceTouch {
		return "touch"
	}
	return "mouse"
}

// EventKind enumerates the inputs the selector understands.
type EventKind int

const (
	// EventEnable turns selection mode on.
	EventEnable EventKind = iota
	// EventCancel abandons the current gesture and leaves selection mode.
	EventCancel
	// EventClear discards the committed region.
	EventClear
	// EventDown is pointer-down or touch-start.
	EventDown
	// EventMove is pointer-move or touch-move.
	EventMove
	// EventUp is pointer-up, touch-end, or a click.
	EventUp
)

func (k EventKind) String() string {
	switch k {
	case EventEnable:
		return "enable"
	case EventCancel:
		return "cancel"
	case EventClear:
		return "clear"
	case EventDown:
		return "down"
	case EventMove:
		return "move"
	case EventUp:
		return "up"
	default:
		return "unknown"
	}
}

// Event is a single input fed to the selector. Point and Source are ignored
// for Enable, Cancel, and Clear.
type Event struct {
	Kind   EventKind
	Source Source
	Point  LatLon
}

// SelectionState is the whole interaction state. It is a value: Reduce never
// mutates its input, and the pointed-to LatLon/Region values are never
// modified after creation.
type SelectionState struct {
	Phase   Phase   `json:"phase"`
	Mouse   *LatLon `json:"mouse_engagement,omitempty"`
	Touch   *LatLon `json:"touch_engagement,omitempty"`
	Preview *Region `json:"preview,omitempty"`
	// Region is the single live committed region, if any.
	Region *Region `json:"region,omitempty"`
}

// ViewportLocked reports whether the map's native pan, zoom, and double-click
// gestures must stay suspended.
func (s SelectionState) ViewportLocked() bool {
	return s.Phase == PhaseSelecting || s.Phase == PhasePreviewing
}

func (s SelectionState) engagement(src Source) *LatLon {
	if src == SourceTouch {
		return s.Touch
	}
	return s.Mouse
}

func (s SelectionState) withEngagement(src Source, p *LatLon) SelectionState {
	if src == SourceTouch {
		s.Touch = p
	} else {
		s.Mouse = p
	}
	return s
}

// Selector turns pointer and touch events into committed regions. MinExtent
// is the smallest side length, in degrees, of any committed region.
type Selector struct {
	MinExtent float64
}

// NewSelector returns a Selector with the given minimum extent.
func NewSelector(minExtent float64) Selector {
	return Selector{MinExtent: minExtent}
}

// Reduce applies one event and returns the next state. The returned region is
// non-nil only on the transition that commits it. Events that make no sense
// in the current phase leave the state unchanged.
func (sel Selector) Reduce(s SelectionState, e Event) (SelectionState, *Region) {
	switch e.Kind {
	case EventEnable:
		if s.ViewportLocked() {
			return s, nil
		}
		return SelectionState{Phase: PhaseSelecting, Region: s.Region}, nil

	case EventCancel:
		if !s.ViewportLocked() {
			return s, nil
		}
		return sel.settle(s.Region), nil

	case EventClear:
		return SelectionState{Phase: PhaseIdle}, nil

	case EventDown:
		if !s.ViewportLocked() {
			return s, nil
		}
		p := e.Point
		preview := SpanRegion(p, p)
		next := s.withEngagement(e.Source, &p)
		next.Phase = PhasePreviewing
		next.Preview = &preview
		return next, nil

	case EventMove:
		anchor := s.engagement(e.Source)
		if s.Phase != PhasePreviewing || anchor == nil {
			return s, nil
		}
		preview := SpanRegion(*anchor, e.Point)
		s.Preview = &preview
		return s, nil

	case EventUp:
		switch {
		case s.Phase == PhasePreviewing && s.engagement(e.Source) != nil:
			return sel.commit(SpanRegion(*s.engagement(e.Source), e.Point))
		case s.Phase == PhaseSelecting:
			// A bare click with no prior engagement selects around the point.
			return sel.commit(SpanRegion(e.Point, e.Point))
		default:
			return s, nil
		}
	}
	return s, nil
}

// ReduceAll folds a sequence of events and returns the final state together
// with every region committed along the way, in order.
func (sel Selector) ReduceAll(s SelectionState, events []Event) (SelectionState, []Region) {
	var committed []Region
	for _, e := range events {
		var r *Region
		s, r = sel.Reduce(s, e)
		if r != nil {
			committed = append(committed, *r)
		}
	}
	return s, committed
}

func (sel Selector) commit(span Region) (SelectionState, *Region) {
	region := span.ExpandToMinExtent(sel.MinExtent)
	state := SelectionState{Phase: PhaseCommitted, Region: &region}
	out := region
	return state, &out
}

// settle leaves selection mode, keeping any previously committed region.
func (sel Selector) settle(region *Region) SelectionState {
	if region != nil {
		return SelectionState{Phase: PhaseCommitted, Region: region}
	}
	return SelectionState{Phase: PhaseIdle}
}
