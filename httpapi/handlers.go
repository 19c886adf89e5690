package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/embertrace/engine/engine"
	"github.com/embertrace/engine/filter"
	"github.com/embertrace/engine/metrics"
	"github.com/embertrace/engine/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// parseQueryOptions reads the common start/end/previous/order/limit query
// parameters shared by every query endpoint.
func parseQueryOptions(r *http.Request, defaultLimit int) (engine.QueryOptions, error) {
	q := r.URL.Query()
	opts := engine.QueryOptions{Start: model.MinTimestamp, End: model.MaxTimestamp, Order: filter.Asc}

	if v := q.Get("start"); v != "" {
		ts, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid start: %w", err)
		}
		opts.Start = model.Timestamp(ts)
	}
	if v := q.Get("end"); v != "" {
		ts, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid end: %w", err)
		}
		opts.End = model.Timestamp(ts)
	}
	if v := q.Get("previous"); v != "" {
		ts, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid previous: %w", err)
		}
		p := model.Timestamp(ts)
		opts.Previous = &p
	}
	if q.Get("order") == "desc" {
		opts.Order = filter.Desc
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid limit: %w", err)
		}
		clamped := clampLimit(n, defaultLimit)
		opts.Limit = &clamped
	}

	return opts, nil
}

func (s *Server) handleQueryInstances(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r, engine.DefaultLimit)
	if err != nil {
		s.writeError(w, err.Error(), err, http.StatusBadRequest)
		return
	}

	f, errs := filter.ParseInstanceFilter(r.URL.Query().Get("filter"))
	if len(errs) > 0 {
		s.writeError(w, errs[0].Error(), errs[0], http.StatusBadRequest)
		return
	}

	start := time.Now()
	views, err := s.engine.QueryInstance(f, opts)
	if err != nil {
		s.writeError(w, "query instances failed", err, http.StatusInternalServerError)
		return
	}
	metrics.RecordQuery("instance", time.Since(start), len(views))
	s.writeJSON(w, views)
}

func (s *Server) handleQuerySpans(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r, engine.DefaultLimit)
	if err != nil {
		s.writeError(w, err.Error(), err, http.StatusBadRequest)
		return
	}

	f, errs := filter.ParseSpanFilter(r.URL.Query().Get("filter"))
	if len(errs) > 0 {
		s.writeError(w, errs[0].Error(), errs[0], http.StatusBadRequest)
		return
	}

	start := time.Now()
	views, err := s.engine.QuerySpan(f, opts)
	if err != nil {
		s.writeError(w, "query spans failed", err, http.StatusInternalServerError)
		return
	}
	metrics.RecordQuery("span", time.Since(start), len(views))
	s.writeJSON(w, views)
}

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r, engine.DefaultLimit)
	if err != nil {
		s.writeError(w, err.Error(), err, http.StatusBadRequest)
		return
	}

	f, errs := filter.ParseEventFilter(r.URL.Query().Get("filter"))
	if len(errs) > 0 {
		s.writeError(w, errs[0].Error(), errs[0], http.StatusBadRequest)
		return
	}

	start := time.Now()
	views, err := s.engine.QueryEvent(f, opts)
	if err != nil {
		s.writeError(w, "query events failed", err, http.StatusInternalServerError)
		return
	}
	metrics.RecordQuery("event", time.Since(start), len(views))
	s.writeJSON(w, views)
}

func (s *Server) handleQueryEventCount(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r, engine.DefaultLimit)
	if err != nil {
		s.writeError(w, err.Error(), err, http.StatusBadRequest)
		return
	}

	f, errs := filter.ParseEventFilter(r.URL.Query().Get("filter"))
	if len(errs) > 0 {
		s.writeError(w, errs[0].Error(), errs[0], http.StatusBadRequest)
		return
	}

	count, err := s.engine.QueryEventCount(f, opts)
	if err != nil {
		s.writeError(w, "query event count failed", err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]int{"count": count})
}

func (s *Server) handleQueryStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.QueryStats())
}

// handleSubscribeEvents upgrades the connection to a WebSocket and streams
// matching events as newline-delimited JSON frames until the client
// disconnects or unsubscribes.
func (s *Server) handleSubscribeEvents(w http.ResponseWriter, r *http.Request) {
	f, errs := filter.ParseEventFilter(r.URL.Query().Get("filter"))
	if len(errs) > 0 {
		s.writeError(w, errs[0].Error(), errs[0], http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id, queue := s.engine.SubscribeToEvents(f)
	defer s.engine.UnsubscribeFromEvents(id)

	for ev := range queue {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
