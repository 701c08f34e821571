package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"learning-tracker/internal/common/errors"
	"learning-tracker/internal/models"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req models.StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}

	resp, err := s.sessions.StartSession(r.Context(), req.UserID, req.TimezoneOffset, req.Metadata)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req models.StopRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}

	resp, err := s.sessions.StopSession(r.Context(), req.SessionID, req.UserID)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req models.CancelRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}

	resp, err := s.sessions.CancelSession(r.Context(), req.SessionID, req.Reason)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	active, err := s.sessions.GetActiveSession(r.Context(), userID)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{ActiveSession: active})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "all"
	}

	totals, err := s.stats.CalculateTotals(r.Context(), userID, rng)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	monthsBack := 6
	if raw := r.URL.Query().Get("monthsBack"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.errs.WriteHTTP(w, errors.NewInvalidMonthsBackError(-1))
			return
		}
		monthsBack = parsed
	}

	calendar, err := s.stats.GetCalendarData(r.Context(), userID, monthsBack)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calendar)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	startDate, err := parseTimeParam(r.URL.Query().Get("startDate"))
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	endDate, err := parseTimeParam(r.URL.Query().Get("endDate"))
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}

	stats, err := s.stats.GetSessionStatistics(r.Context(), userID, startDate, endDate)
	if err != nil {
		s.errs.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequestError(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

// parseTimeParam accepts RFC3339 timestamps or bare dates; empty means unset.
func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, errors.NewInvalidDateRangeError(fmt.Sprintf("unparseable timestamp: %q", raw))
}
