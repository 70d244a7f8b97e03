package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Sumatoshi-tech/streamcdp/internal/event"
	"github.com/Sumatoshi-tech/streamcdp/internal/identity"
	"github.com/Sumatoshi-tech/streamcdp/internal/pipeline"
)

const (
	opIngest       = "ingest"
	opProfilesList = "profiles.list"
	opProfileGet   = "profiles.get"
	opStats        = "stats"

	statusOK  = "ok"
	statusErr = "error"
)

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleIngest(rw http.ResponseWriter, hr *http.Request) {
	start := s.pipe.Clock().Now()
	done := s.red.TrackInflight(hr.Context(), opIngest)
	defer done()

	body, err := io.ReadAll(io.LimitReader(hr.Body, maxBodyBytes))
	if err != nil {
		s.writeError(hr, rw, http.StatusBadRequest, "read body failed")
		s.red.RecordRequest(hr.Context(), opIngest, statusErr, s.pipe.Clock().Now().Sub(start))

		return
	}

	ev, err := event.Decode(body)
	if err != nil {
		s.writeError(hr, rw, http.StatusBadRequest, err.Error())
		s.red.RecordRequest(hr.Context(), opIngest, statusErr, s.pipe.Clock().Now().Sub(start))

		return
	}

	err = s.pipe.Submit(ev)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, identity.ErrNoIdentifiers) {
			status = http.StatusBadRequest
		}

		s.writeError(hr, rw, status, err.Error())
		s.red.RecordRequest(hr.Context(), opIngest, statusErr, s.pipe.Clock().Now().Sub(start))

		return
	}

	writeJSON(rw, http.StatusAccepted, acceptedResponse{Status: "accepted"})
	s.red.RecordRequest(hr.Context(), opIngest, statusOK, s.pipe.Clock().Now().Sub(start))
}

func (s *Server) handleProfiles(rw http.ResponseWriter, hr *http.Request) {
	start := s.pipe.Clock().Now()

	snaps := s.pipe.Snapshots()

	if raw := hr.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(hr, rw, http.StatusBadRequest, "limit must be a positive integer")
			s.red.RecordRequest(hr.Context(), opProfilesList, statusErr, s.pipe.Clock().Now().Sub(start))

			return
		}

		if limit < len(snaps) {
			snaps = snaps[:limit]
		}
	}

	if snaps == nil {
		snaps = []pipeline.Snapshot{}
	}

	writeJSON(rw, http.StatusOK, snaps)
	s.red.RecordRequest(hr.Context(), opProfilesList, statusOK, s.pipe.Clock().Now().Sub(start))
}

// handleProfile resolves the path identifier through the identity graph, so
// any merged identifier (raw or prefixed) finds its canonical profile.
func (s *Server) handleProfile(rw http.ResponseWriter, hr *http.Request) {
	start := s.pipe.Clock().Now()

	raw := mux.Vars(hr)["id"]
	canonical := s.pipe.Graph().Find(identity.Normalize(raw))

	snap, ok := s.pipe.SnapshotFor(canonical)
	if !ok {
		s.writeError(hr, rw, http.StatusNotFound, "profile not found")
		s.red.RecordRequest(hr.Context(), opProfileGet, statusErr, s.pipe.Clock().Now().Sub(start))

		return
	}

	writeJSON(rw, http.StatusOK, snap)
	s.red.RecordRequest(hr.Context(), opProfileGet, statusOK, s.pipe.Clock().Now().Sub(start))
}

type statsResponse struct {
	Buffered           int64 `json:"buffered"`
	Processed          int64 `json:"processed"`
	DedupHits          int64 `json:"dedupHits"`
	LateAccepted       int64 `json:"lateAccepted"`
	DroppedTooLate     int64 `json:"droppedTooLate"`
	WatermarkLagMillis int64 `json:"watermarkLagMillis"`
	Profiles           int64 `json:"profiles"`
}

func (s *Server) handleStats(rw http.ResponseWriter, hr *http.Request) {
	view := s.pipe.StatsView()

	writeJSON(rw, http.StatusOK, statsResponse{
		Buffered:           view.Buffered(),
		Processed:          view.Processed(),
		DedupHits:          view.DedupHits(),
		LateAccepted:       view.LateAccepted(),
		DroppedTooLate:     view.DroppedTooLate(),
		WatermarkLagMillis: view.WatermarkLagMillis(),
		Profiles:           view.ProfileCount(),
	})
	s.red.RecordRequest(hr.Context(), opStats, statusOK, 0)
}

func (s *Server) writeError(hr *http.Request, rw http.ResponseWriter, status int, msg string) {
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(hr.Context(), "request failed", "path", hr.URL.Path, "error", msg)
	}

	writeJSON(rw, status, errorResponse{Error: msg})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	err := json.NewEncoder(rw).Encode(v)
	if err != nil {
		return
	}
}
