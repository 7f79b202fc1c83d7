package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/pxi/internal/analytics"
	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/domain"
)

const (
	defaultRequestTimeout = 10 * time.Second

	minHistoryDays       = 1
	maxHistoryDays       = 90
	minRegimeHistoryDays = 1
	maxRegimeHistoryDays = 365

	latestCacheKey = "pxi:latest"
)

type healthzResponse struct {
	Status              string  `json:"status"`
	Phase               string  `json:"phase"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	StaleSinceSeconds   float64 `json:"staleSinceSeconds"`
	CPUPercent          float64 `json:"cpuPercent"`
	MemPercent          float64 `json:"memPercent"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	status := "ok"
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthzResponse{Status: "db_unreachable"})
		return
	}

	health := s.state.Health()
	if health.ConsecutiveFailures >= 3 || (health.StaleSince > 0 && !health.LastSuccess.IsZero() && time.Since(health.LastSuccess) > 10*time.Minute) {
		status = "degraded"
	}

	cpuPercent := 0.0
	if pcts, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pcts) > 0 {
		cpuPercent = pcts[0]
	}
	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}

	writeJSON(w, http.StatusOK, healthzResponse{
		Status:              status,
		Phase:               string(health.Phase),
		ConsecutiveFailures: health.ConsecutiveFailures,
		StaleSinceSeconds:   health.StaleSince.Seconds(),
		CPUPercent:          cpuPercent,
		MemPercent:          memPercent,
	})
}

type metricView struct {
	IndicatorID      string   `json:"indicatorId"`
	Label            string   `json:"label"`
	Value            float64  `json:"value"`
	Z                *float64 `json:"z"`
	NormalizedWeight float64  `json:"normalizedWeight"`
	Contribution     float64  `json:"contribution"`
	LowerBound       float64  `json:"lowerBound"`
	UpperBound       float64  `json:"upperBound"`
}

type latestResponse struct {
	CalculatedAt    time.Time           `json:"calculatedAt"`
	RawPxi          float64             `json:"rawPxi"`
	Pxi             float64             `json:"pxi"`
	Regime          domain.Regime       `json:"regime"`
	TotalWeight     float64             `json:"totalWeight"`
	PampCount       int                 `json:"pampCount"`
	StressCount     int                 `json:"stressCount"`
	Metrics         []metricView        `json:"metrics"`
	DiscoveredRegime *discoveredRegimeView `json:"discoveredRegime,omitempty"`
	Alerts          []alertView         `json:"alerts"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	if s.cache != nil {
		var cached latestResponse
		if ok, err := s.cache.Get(latestCacheKey, &cached); err == nil && ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	composite, err := s.store.FetchLatestComposite(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no_data", "no composite has been calculated yet")
		return
	}

	alerts, err := s.store.FetchRecentAlerts(ctx, "", nil, 7)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load alerts")
		return
	}
	unacked := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		if !a.Acknowledged {
			unacked = append(unacked, toAlertView(a))
		}
	}

	resp := latestResponse{
		CalculatedAt: composite.CalculatedAt,
		RawPxi:       composite.RawPxi,
		Pxi:          composite.Pxi,
		Regime:       composite.Regime,
		TotalWeight:  composite.TotalWeight,
		PampCount:    composite.PampCount,
		StressCount:  composite.StressCount,
		Metrics:      toMetricViews(composite.Metrics),
		Alerts:       unacked,
	}

	if dr, err := s.store.FetchLatestRegime(ctx); err == nil {
		v := toDiscoveredRegimeView(dr)
		resp.DiscoveredRegime = &v
	}

	if s.cache != nil {
		_ = s.cache.Set(latestCacheKey, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetricsLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	composite, err := s.store.FetchLatestComposite(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no_data", "no composite has been calculated yet")
		return
	}
	writeJSON(w, http.StatusOK, toMetricViews(composite.Metrics))
}

func toMetricViews(contribs []domain.MetricContribution) []metricView {
	defs := catalog.ByID()
	out := make([]metricView, 0, len(contribs))
	for _, c := range contribs {
		v := metricView{
			IndicatorID:      c.IndicatorID,
			Value:            c.Value,
			Z:                c.Z,
			NormalizedWeight: c.NormalizedWeight,
			Contribution:     c.Contribution,
		}
		if def, ok := defs[c.IndicatorID]; ok {
			v.Label = def.Label
			v.LowerBound = def.LowerBound
			v.UpperBound = def.UpperBound
		}
		out = append(out, v)
	}
	return out
}

type historyPoint struct {
	CalculatedAt time.Time     `json:"calculatedAt"`
	RawPxi       float64       `json:"rawPxi"`
	Pxi          float64       `json:"pxi"`
	Regime       domain.Regime `json:"regime"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := parseDaysParam(r, minHistoryDays, maxHistoryDays, 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	rows, err := s.store.FetchPxiHistory(ctx, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	out := make([]historyPoint, len(rows))
	for i, c := range rows {
		out[i] = historyPoint{CalculatedAt: c.CalculatedAt, RawPxi: c.RawPxi, Pxi: c.Pxi, Regime: c.Regime}
	}
	writeJSON(w, http.StatusOK, out)
}

type discoveredRegimeView struct {
	Date          string    `json:"date"`
	Regime        string    `json:"regime"`
	ClusterID     int       `json:"clusterId"`
	Probabilities []float64 `json:"probabilities"`
}

func toDiscoveredRegimeView(r domain.RegimeRow) discoveredRegimeView {
	return discoveredRegimeView{
		Date:          r.Date,
		Regime:        string(r.Regime),
		ClusterID:     r.ClusterID,
		Probabilities: r.Probabilities,
	}
}

func (s *Server) handleRegimeLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	dr, err := s.store.FetchLatestRegime(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no_data", "no regime has been classified yet")
		return
	}
	writeJSON(w, http.StatusOK, toDiscoveredRegimeView(dr))
}

func (s *Server) handleRegimeHistory(w http.ResponseWriter, r *http.Request) {
	days, err := parseDaysParam(r, minRegimeHistoryDays, maxRegimeHistoryDays, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	rows, err := s.store.FetchRegimeHistory(ctx, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load regime history")
		return
	}
	out := make([]discoveredRegimeView, len(rows))
	for i, row := range rows {
		out[i] = toDiscoveredRegimeView(row)
	}
	writeJSON(w, http.StatusOK, out)
}

type alertView struct {
	ID           string           `json:"id"`
	AlertType    domain.AlertType `json:"alertType"`
	IndicatorID  *string          `json:"indicatorId"`
	Timestamp    time.Time        `json:"timestamp"`
	RawValue     *float64         `json:"rawValue"`
	Z            *float64         `json:"z"`
	Threshold    *float64         `json:"threshold"`
	Message      string           `json:"message"`
	Severity     domain.Severity  `json:"severity"`
	Acknowledged bool             `json:"acknowledged"`
}

func toAlertView(a domain.Alert) alertView {
	return alertView{
		ID: a.ID, AlertType: a.AlertType, IndicatorID: a.IndicatorID, Timestamp: a.Timestamp,
		RawValue: a.RawValue, Z: a.Z, Threshold: a.Threshold, Message: a.Message,
		Severity: a.Severity, Acknowledged: a.Acknowledged,
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	alerts, err := s.store.FetchRecentAlerts(ctx, "", nil, 7)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load alerts")
		return
	}
	out := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		if !a.Acknowledged {
			out = append(out, toAlertView(a))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

const analyticsWindowDays = 90

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")
	switch metric {
	case "sharpe", "drawdown", "risk-metrics":
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown analytics metric")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultRequestTimeout)
	defer cancel()

	rows, err := s.store.FetchPxiHistory(ctx, analyticsWindowDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load pxi history")
		return
	}
	if len(rows) < 2 {
		writeError(w, http.StatusServiceUnavailable, "insufficient_history", "not enough pxi history to compute risk metrics")
		return
	}

	values := make([]float64, len(rows))
	for i, c := range rows {
		values[i] = c.Pxi
	}

	switch metric {
	case "sharpe":
		writeJSON(w, http.StatusOK, map[string]*float64{"sharpe": analytics.SharpeRatio(values)})
	case "drawdown":
		writeJSON(w, http.StatusOK, analytics.CalculateDrawdownMetrics(values))
	case "risk-metrics":
		writeJSON(w, http.StatusOK, analytics.ComputeRiskMetrics(values))
	}
}

func parseDaysParam(r *http.Request, min, max, def int) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadDays
	}
	if n < min || n > max {
		return 0, errBadDays
	}
	return n, nil
}

var errBadDays = httpParamError("days must be an integer in the supported range")

type httpParamError string

func (e httpParamError) Error() string { return string(e) }
