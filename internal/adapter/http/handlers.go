package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/adapter/store"
	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/pipeline"
	"github.com/couchcryptid/wind-explorer/internal/report"
	"github.com/gorilla/mux"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
	reportTitle     = "Wind Resource Analysis"
)

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/selection", s.handleSelection).Methods(http.MethodGet)
	r.HandleFunc("/selection/region.geojson", s.handleSelectionGeoJSON).Methods(http.MethodGet)
	r.HandleFunc("/selection/events", s.handleSelectionEvents).Methods(http.MethodPost)
	r.HandleFunc("/selection/{action:enable|cancel|clear}", s.handleSelectionAction).Methods(http.MethodPost)

	r.HandleFunc("/analysis", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/analysis/current", s.handleCurrent).Methods(http.MethodGet)
	r.HandleFunc("/analysis/current/charts", s.handleCurrentCharts).Methods(http.MethodGet)
	r.HandleFunc("/analyses", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/analyses/{id}", s.handleLookup).Methods(http.MethodGet)

	r.HandleFunc("/heatmap", s.handleHeatmap).Methods(http.MethodGet)

	r.HandleFunc("/export/xlsx", s.handleExportXLSX).Methods(http.MethodGet)
	r.HandleFunc("/export/pdf", s.handleExportPDF).Methods(http.MethodGet)
}

// --- selection ---

type selectionResponse struct {
	domain.SelectionState
	ViewportLocked bool            `json:"viewport_locked"`
	Committed      []domain.Region `json:"committed,omitempty"`
}

// eventRequest is one pointer or touch input. Kind is enable, cancel, clear,
// down, move, or up; Source is mouse (default) or touch. Pointer kinds
// require lat and lon.
type eventRequest struct {
	Kind   string   `json:"kind"`
	Source string   `json:"source"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
}

type eventsRequest struct {
	Events []eventRequest `json:"events"`
}

var eventKinds = map[string]domain.EventKind{
	"enable": domain.EventEnable,
	"cancel": domain.EventCancel,
	"clear":  domain.EventClear,
	"down":   domain.EventDown,
	"move":   domain.EventMove,
	"up":     domain.EventUp,
	"click":  domain.EventUp,
}

func (e eventRequest) toEvent() (domain.Event, error) {
	kind, ok := eventKinds[strings.ToLower(e.Kind)]
	if !ok {
		return domain.Event{}, &domain.ValidationError{Field: "kind", Reason: "unknown event kind " + e.Kind}
	}
	var src domain.Source
	switch strings.ToLower(e.Source) {
	case "", "mouse", "pointer":
		src = domain.SourceMouse
	case "touch":
		src = domain.SourceTouch
	default:
		return domain.Event{}, &domain.ValidationError{Field: "source", Reason: "unknown event source " + e.Source}
	}
	ev := domain.Event{Kind: kind, Source: src}
	switch kind {
	case domain.EventDown, domain.EventMove, domain.EventUp:
		if e.Lat == nil || e.Lon == nil {
			return domain.Event{}, &domain.ValidationError{Field: "point", Reason: e.Kind + " event needs lat and lon"}
		}
		ev.Point = domain.LatLon{Lat: *e.Lat, Lon: *e.Lon}
	}
	return ev, nil
}

func newSelectionResponse(state domain.SelectionState, committed []domain.Region) selectionResponse {
	return selectionResponse{SelectionState: state, ViewportLocked: state.ViewportLocked(), Committed: committed}
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newSelectionResponse(s.deps.Selection.State(), nil))
}

func (s *Server) handleSelectionGeoJSON(w http.ResponseWriter, _ *http.Request) {
	region, ok := s.deps.Selection.Region()
	if !ok {
		writeError(w, http.StatusNotFound, "no region selected", "")
		return
	}
	body, err := region.GeoJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode region", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck // client may have gone away
}

func (s *Server) handleSelectionAction(w http.ResponseWriter, r *http.Request) {
	kind := eventKinds[mux.Vars(r)["action"]]
	state, committed := s.deps.Selection.ApplyAll([]domain.Event{{Kind: kind}})
	writeJSON(w, http.StatusOK, newSelectionResponse(state, committed))
}

func (s *Server) handleSelectionEvents(w http.ResponseWriter, r *http.Request) {
	var req eventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	events := make([]domain.Event, 0, len(req.Events))
	for _, er := range req.Events {
		e, err := er.toEvent()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event", err.Error())
			return
		}
		events = append(events, e)
	}
	state, committed := s.deps.Selection.ApplyAll(events)
	writeJSON(w, http.StatusOK, newSelectionResponse(state, committed))
}

// --- analysis ---

// analysisRequest mirrors pipeline.Request with an optional region; when it
// is absent the committed selection is used.
type analysisRequest struct {
	Region    *domain.Region `json:"region,omitempty"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
	Height    any            `json:"height,omitempty"`
}

// analysisResponse is an analysis rendered in one speed unit.
type analysisResponse struct {
	ID              string                     `json:"id"`
	Request         domain.AnalysisRequest     `json:"request"`
	CompletedAt     time.Time                  `json:"completed_at"`
	Unit            domain.SpeedUnit           `json:"unit"`
	Schema          domain.Schema              `json:"schema"`
	Sections        []domain.Section           `json:"sections"`
	Statistics      domain.Statistics          `json:"statistics"`
	Weibull         domain.Weibull             `json:"weibull"`
	Turbulence      domain.TurbulenceSummary   `json:"turbulence"`
	Capacity        domain.Capacity            `json:"capacity"`
	CapacityPercent float64                    `json:"capacity_percent"`
	Power           domain.Power               `json:"power"`
	Viability       domain.Viability           `json:"viability"`
	Normalized      *domain.NormalizedAnalysis `json:"normalized"`
}

func newAnalysisResponse(a *domain.Analysis, unit domain.SpeedUnit) analysisResponse {
	n := a.Normalized
	capacity := n.Capacity()
	return analysisResponse{
		ID:              a.ID,
		Request:         a.Request,
		CompletedAt:     a.CompletedAt,
		Unit:            unit,
		Schema:          n.Schema,
		Sections:        n.Populated(),
		Statistics:      n.Statistics(unit),
		Weibull:         n.Weibull(unit),
		Turbulence:      n.TurbulenceSummary(unit),
		Capacity:        capacity,
		CapacityPercent: capacity.Percent(),
		Power:           n.Power(),
		Viability:       n.Viability,
		Normalized:      n,
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analysisRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	req := pipeline.Request{StartDate: body.StartDate, EndDate: body.EndDate}
	if body.Region != nil {
		req.Region = *body.Region
	} else if region, ok := s.deps.Selection.Region(); ok {
		req.Region = region
	} else {
		writeError(w, http.StatusBadRequest, pipeline.UserMessagePrefix, "no region selected")
		return
	}
	if body.Height != nil {
		h, err := domain.ParseHeight(fmt.Sprint(body.Height))
		if err != nil {
			writeError(w, http.StatusBadRequest, pipeline.UserMessage(err), err.Error())
			return
		}
		req.Height = h
	}

	a, err := s.deps.Analyses.Analyze(r.Context(), req)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(a, domain.UnitMS))
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, pipeline.UserMessage(err), err.Error())
	case errors.Is(err, pipeline.ErrAnalysisInProgress):
		writeError(w, http.StatusConflict, pipeline.UserMessage(err), err.Error())
	default:
		writeError(w, http.StatusBadGateway, pipeline.UserMessage(err), err.Error())
	}
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	unit, ok := parseUnit(w, r)
	if !ok {
		return
	}
	a, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(a, unit))
}

func (s *Server) handleCurrentCharts(w http.ResponseWriter, r *http.Request) {
	unit, ok := parseUnit(w, r)
	if !ok {
		return
	}
	a, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, domain.DeriveCharts(a.Normalized, a.Paired, unit))
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	unit, ok := parseUnit(w, r)
	if !ok {
		return
	}
	a, err := s.deps.Analyses.Lookup(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, pipeline.ErrNoAnalysis), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "analysis not found", "")
		return
	case err != nil:
		s.logger.Error("lookup analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup analysis", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(a, unit))
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type historyEntry struct {
	ID          string                 `json:"id"`
	Request     domain.AnalysisRequest `json:"request"`
	CompletedAt time.Time              `json:"completed_at"`
	MeanSpeed   float64                `json:"mean_speed"`
	Viability   string                 `json:"viability"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	unit, ok := parseUnit(w, r)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries := []historyEntry{}
	if s.deps.History != nil {
		analyses, err := s.deps.History.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("list analyses failed", "error", err)
			writeError(w, http.StatusInternalServerError, "list analyses", err.Error())
			return
		}
		for _, a := range analyses {
			entries = append(entries, historyEntry{
				ID:          a.ID,
				Request:     a.Request,
				CompletedAt: a.CompletedAt,
				MeanSpeed:   a.Normalized.Statistics(unit).Mean,
				Viability:   a.Normalized.Viability.Level,
			})
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) current(w http.ResponseWriter) (*domain.Analysis, bool) {
	a, err := s.deps.Analyses.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "no analysis available", "")
		return nil, false
	}
	return a, true
}

func parseUnit(w http.ResponseWriter, r *http.Request) (domain.SpeedUnit, bool) {
	unit, err := domain.ParseSpeedUnit(r.URL.Query().Get("unit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit", err.Error())
		return "", false
	}
	return unit, true
}

// --- heatmap ---

func (s *Server) handleHeatmap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Heatmap.Current())
}

// --- export ---

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", contentTypeXLSX, report.XLSXPrefix,
		func(buf *bytes.Buffer, a *domain.Analysis, rows []report.Row, meta report.Meta) error {
			return report.WriteXLSX(buf, rows, meta)
		})
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "pdf", contentTypePDF, report.PDFPrefix,
		func(buf *bytes.Buffer, a *domain.Analysis, rows []report.Row, meta report.Meta) error {
			charts, err := report.RenderCharts(domain.DeriveCharts(a.Normalized, a.Paired, meta.Unit))
			if err != nil {
				return err
			}
			return report.WritePDF(buf, rows, charts, meta)
		})
}

type renderFunc func(buf *bytes.Buffer, a *domain.Analysis, rows []report.Row, meta report.Meta) error

// export renders the current analysis into memory first so a failure still
// produces a JSON error instead of a truncated attachment.
func (s *Server) export(w http.ResponseWriter, r *http.Request, format, contentType, prefix string, render renderFunc) {
	unit, ok := parseUnit(w, r)
	if !ok {
		return
	}
	a, ok := s.current(w)
	if !ok {
		return
	}

	now := domain.Now()
	meta := report.Meta{
		Title:     reportTitle,
		Region:    a.Region(),
		StartDate: a.Request.StartDate,
		EndDate:   a.Request.EndDate,
		Unit:      unit,
		Generated: now,
	}
	var buf bytes.Buffer
	err := render(&buf, a, report.Rows(a.Normalized, unit), meta)
	switch {
	case errors.Is(err, report.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error(), "")
		return
	case err != nil:
		s.logger.Error("export failed", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	s.metrics.Exports.WithLabelValues(format).Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(prefix, format, now)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client may have gone away
}
