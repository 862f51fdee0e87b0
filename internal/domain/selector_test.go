package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minExtents = []float64{0.005, 0.01, 0.02}

func pt(lat, lon float64) LatLon { return LatLon{Lat: lat, Lon: lon} }

func down(src Source, p LatLon) Event { return Event{Kind: EventDown, Source: src, Point: p} }
func move(src Source, p LatLon) Event { return Event{Kind: EventMove, Source: src, Point: p} }
func up(src Source, p LatLon) Event   { return Event{Kind: EventUp, Source: src, Point: p} }

var enable = Event{Kind: EventEnable}

func assertRegionInvariant(t *testing.T, r Region, minExtent float64) {
	t.Helper()
	assert.LessOrEqual(t, r.SouthWest.Lat, r.NorthEast.Lat, "lat order %s", r)
	assert.LessOrEqual(t, r.SouthWest.Lon, r.NorthEast.Lon, "lon order %s", r)
	assert.True(t, r.MeetsMinExtent(minExtent), "extent below %g: %s", minExtent, r)
}

func TestSelector_Drag(t *testing.T) {
	sel := NewSelector(0.02)
	s, r := sel.Reduce(SelectionState{}, enable)
	require.Nil(t, r)
	assert.Equal(t, PhaseSelecting, s.Phase)
	assert.True(t, s.ViewportLocked())

	s, r = sel.Reduce(s, down(SourceMouse, pt(10, -70)))
	require.Nil(t, r)
	assert.Equal(t, PhasePreviewing, s.Phase)
	require.NotNil(t, s.Preview)
	assert.Equal(t, Region{SouthWest: pt(10, -70), NorthEast: pt(10, -70)}, *s.Preview)

	// Dragging up-left must still yield a normalized preview.
	s, r = sel.Reduce(s, move(SourceMouse, pt(9, -71)))
	require.Nil(t, r)
	assert.Equal(t, Region{SouthWest: pt(9, -71), NorthEast: pt(10, -70)}, *s.Preview)

	s, r = sel.Reduce(s, up(SourceMouse, pt(11, -72)))
	require.NotNil(t, r)
	assert.Equal(t, Region{SouthWest: pt(10, -72), NorthEast: pt(11, -70)}, *r)
	assert.Equal(t, PhaseCommitted, s.Phase)
	assert.Equal(t, *r, *s.Region)
	assert.Nil(t, s.Preview)
	assert.Nil(t, s.Mouse)
	assert.False(t, s.ViewportLocked())
}

func TestSelector_BareClickAndTapProduceMinimumBox(t *testing.T) {
	for _, minExtent := range minExtents {
		t.Run(fmt.Sprintf("min=%g", minExtent), func(t *testing.T) {
			sel := NewSelector(minExtent)
			p := pt(8.01, -75.99)

			s, _ := sel.Reduce(SelectionState{}, enable)
			_, click := sel.Reduce(s, up(SourceMouse, p))

			s, _ = sel.Reduce(SelectionState{}, enable)
			s, _ = sel.Reduce(s, down(SourceTouch, p))
			_, tap := sel.Reduce(s, up(SourceTouch, p))

			for name, r := range map[string]*Region{"click": click, "tap": tap} {
				require.NotNil(t, r, name)
				assert.InDelta(t, minExtent, r.LatExtent(), 1e-9, name)
				assert.InDelta(t, minExtent, r.LonExtent(), 1e-9, name)
				c := r.Center()
				assert.InDelta(t, p.Lat, c.Lat, 1e-9, name)
				assert.InDelta(t, p.Lon, c.Lon, 1e-9, name)
			}
		})
	}
}

func TestSelector_ClickAtPoleCommitsValidRegion(t *testing.T) {
	sel := NewSelector(0.02)
	for _, p := range []LatLon{pt(90, 0), pt(-90, 179.99), pt(89.999, -45)} {
		s, _ := sel.Reduce(SelectionState{}, enable)
		_, r := sel.Reduce(s, up(SourceMouse, p))
		require.NotNil(t, r, "%v", p)
		assert.NoError(t, r.Validate(0.02), "%v", p)
		assert.True(t, r.Contains(p), "%v", p)
	}
}

func TestSelector_ThinDragExpandsNarrowAxisOnly(t *testing.T) {
	sel := NewSelector(0.02)
	s, _ := sel.Reduce(SelectionState{}, enable)
	s, _ = sel.Reduce(s, down(SourceMouse, pt(10, -70)))
	_, r := sel.Reduce(s, up(SourceMouse, pt(10.001, -69)))

	require.NotNil(t, r)
	assert.InDelta(t, 0.02, r.LatExtent(), 1e-9)
	assert.InDelta(t, 10.0005, r.Center().Lat, 1e-9)
	assert.Equal(t, -70.0, r.SouthWest.Lon)
	assert.Equal(t, -69.0, r.NorthEast.Lon)
}

func TestSelector_IgnoresEventsOutsideSelectionMode(t *testing.T) {
	sel := NewSelector(0.02)
	idle := SelectionState{}

	for _, e := range []Event{down(SourceMouse, pt(1, 1)), move(SourceMouse, pt(2, 2)), up(SourceMouse, pt(3, 3)), {Kind: EventCancel}} {
		s, r := sel.Reduce(idle, e)
		assert.Nil(t, r, e.Kind.String())
		assert.Equal(t, idle, s, e.Kind.String())
	}
}

func TestSelector_SeparateEngagementSlots(t *testing.T) {
	sel := NewSelector(0.02)
	s, _ := sel.Reduce(SelectionState{}, enable)
	s, _ = sel.Reduce(s, down(SourceMouse, pt(10, 10)))

	// A touch move without a touch engagement leaves the mouse preview alone.
	next, r := sel.Reduce(s, move(SourceTouch, pt(50, 50)))
	assert.Nil(t, r)
	assert.Equal(t, s, next)

	// A touch release without a touch engagement does not commit the mouse gesture.
	next, r = sel.Reduce(s, up(SourceTouch, pt(50, 50)))
	assert.Nil(t, r)
	assert.Equal(t, s, next)

	s, _ = sel.Reduce(s, down(SourceTouch, pt(20, 20)))
	require.NotNil(t, s.Mouse)
	require.NotNil(t, s.Touch)
	assert.Equal(t, pt(10, 10), *s.Mouse)

	_, r = sel.Reduce(s, up(SourceMouse, pt(11, 11)))
	require.NotNil(t, r)
	assert.Equal(t, Region{SouthWest: pt(10, 10), NorthEast: pt(11, 11)}, *r)
}

func TestSelector_CancelKeepsCommittedRegion(t *testing.T) {
	sel := NewSelector(0.02)
	s, _ := sel.Reduce(SelectionState{}, enable)
	s, prev := sel.Reduce(s, up(SourceMouse, pt(5, 5)))
	require.NotNil(t, prev)

	s, _ = sel.Reduce(s, enable)
	assert.Equal(t, PhaseSelecting, s.Phase)
	s, _ = sel.Reduce(s, down(SourceMouse, pt(6, 6)))
	s, r := sel.Reduce(s, Event{Kind: EventCancel})

	assert.Nil(t, r)
	assert.Equal(t, PhaseCommitted, s.Phase)
	assert.Equal(t, *prev, *s.Region)
	assert.Nil(t, s.Preview)
	assert.False(t, s.ViewportLocked())

	s, _ = sel.Reduce(SelectionState{}, enable)
	s, _ = sel.Reduce(s, Event{Kind: EventCancel})
	assert.Equal(t, SelectionState{Phase: PhaseIdle}, s)
}

func TestSelector_CommitReplacesAndClearDiscards(t *testing.T) {
	sel := NewSelector(0.02)
	s, committed := sel.ReduceAll(SelectionState{}, []Event{
		enable, up(SourceMouse, pt(1, 1)),
		enable, down(SourceMouse, pt(2, 2)), up(SourceMouse, pt(3, 3)),
	})

	require.Len(t, committed, 2)
	assert.Equal(t, committed[1], *s.Region)

	s, r := sel.Reduce(s, Event{Kind: EventClear})
	assert.Nil(t, r)
	assert.Equal(t, SelectionState{Phase: PhaseIdle}, s)
}

func TestSelector_DoesNotMutateInput(t *testing.T) {
	sel := NewSelector(0.02)
	s, _ := sel.Reduce(SelectionState{}, enable)
	s, _ = sel.Reduce(s, down(SourceMouse, pt(1, 1)))
	before := *s.Preview

	_, _ = sel.Reduce(s, move(SourceMouse, pt(3, 3)))
	assert.Equal(t, before, *s.Preview)
}

func TestSelector_EnableWhileSelectingIsNoop(t *testing.T) {
	sel := NewSelector(0.02)
	s, _ := sel.Reduce(SelectionState{}, enable)
	s, _ = sel.Reduce(s, down(SourceMouse, pt(1, 1)))

	next, r := sel.Reduce(s, enable)
	assert.Nil(t, r)
	assert.Equal(t, s, next)
}

func TestSelector_RandomSequencesKeepInvariant(t *testing.T) {
	kinds := []EventKind{EventEnable, EventCancel, EventClear, EventDown, EventMove, EventUp, EventMove, EventUp}
	for _, minExtent := range minExtents {
		t.Run(fmt.Sprintf("min=%g", minExtent), func(t *testing.T) {
			sel := NewSelector(minExtent)
			rng := rand.New(rand.NewSource(42))
			s := SelectionState{}
			commits := 0
			for range 5000 {
				e := Event{
					Kind:   kinds[rng.Intn(len(kinds))],
					Source: Source(rng.Intn(2)),
					// Small coordinate jitter produces many sub-minimum drags.
					Point: pt(8+rng.Float64()*0.01, -76+rng.Float64()*0.01),
				}
				var r *Region
				s, r = sel.Reduce(s, e)
				if r != nil {
					commits++
					assertRegionInvariant(t, *r, minExtent)
				}
				if s.Preview != nil {
					assert.LessOrEqual(t, s.Preview.SouthWest.Lat, s.Preview.NorthEast.Lat)
					assert.LessOrEqual(t, s.Preview.SouthWest.Lon, s.Preview.NorthEast.Lon)
				}
				if s.Region != nil {
					assertRegionInvariant(t, *s.Region, minExtent)
				}
			}
			assert.Positive(t, commits)
		})
	}
}

func TestPhase_MarshalText(t *testing.T) {
	b, err := PhasePreviewing.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "previewing", string(b))
}
