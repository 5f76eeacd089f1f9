package webapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/NotCoffee418/emucs_p1_reader/pkg/store"
	"github.com/NotCoffee418/emucs_p1_reader/pkg/types"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "e-MUCS P1 Reader API",
		"status":  "running",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": APIVersion,
	})
}

func (s *Server) handleData(complete bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := s.guardContext(r)
		defer cancel()

		var body any
		var found bool
		err := s.meter.Reading.View(ctx, func(reading *types.Reading, ok bool) {
			found = ok
			if !ok {
				return
			}
			if complete {
				body = newCompleteData(reading)
			} else {
				body = newBasicData(reading)
			}
		})
		if err != nil {
			s.storeError(w, "reading", err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "No readings available yet")
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.guardContext(r)
	defer cancel()

	reading, ok, err := s.meter.Reading.Get(ctx)
	if err != nil {
		s.storeError(w, "reading", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No readings available yet")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleShortTermLog(w http.ResponseWriter, r *http.Request) {
	max, ok := parseMax(w, r, s.meter.ShortTerm.Cap())
	if !ok {
		return
	}
	ctx, cancel := s.guardContext(r)
	defer cancel()

	entries, err := s.meter.ShortTerm.Read(ctx, max)
	if err != nil {
		s.storeError(w, "short_term_log", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLongTermLog(w http.ResponseWriter, r *http.Request) {
	max, ok := parseMax(w, r, s.meter.LongTerm.Cap())
	if !ok {
		return
	}
	ctx, cancel := s.guardContext(r)
	defer cancel()

	entries, err := s.meter.LongTerm.Read(ctx, max)
	if err != nil {
		s.storeError(w, "long_term_log", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePredictedPeak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.guardContext(r)
	defer cancel()

	forecast, ok, err := s.meter.Forecast.Get(ctx)
	if err != nil {
		s.storeError(w, "forecast", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No prediction available yet")
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}

// May be fast or slow depending on cached response from inverter.
func (s *Server) handleSolar(w http.ResponseWriter, r *http.Request) {
	if s.solar == nil {
		writeError(w, http.StatusServiceUnavailable, "solar inverter not configured")
		return
	}
	power, err := s.solar.ReadSolarData()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int32{
		"currentProduction": power,
	})
}

func (s *Server) guardContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.opts.GuardTimeout)
}

func (s *Server) storeError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, store.ErrGuardTimeout) {
		s.metrics.GuardTimeouts.WithLabelValues(name).Inc()
	}
	s.logger.WithError(err).WithField("store", name).Error("Failed to access store")
	writeError(w, http.StatusInternalServerError, "store busy, try again later")
}

// parseMax reads the optional max query parameter, def when absent.
func parseMax(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("max")
	if raw == "" {
		return def, true
	}
	max, err := strconv.Atoi(raw)
	if err != nil || max < 0 {
		writeError(w, http.StatusBadRequest, "max must be a non-negative integer")
		return 0, false
	}
	return max, true
}
