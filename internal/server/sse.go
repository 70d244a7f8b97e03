package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sumatoshi-tech/streamcdp/internal/broadcast"
)

const (
	opStreamSegments = "stream.segments"
	opStreamProfiles = "stream.profiles"

	sseEventSegment = "segment"
	sseEventProfile = "profile"
)

// handleSegmentStream streams segment ENTER/EXIT transitions as SSE.
func (s *Server) handleSegmentStream(rw http.ResponseWriter, hr *http.Request) {
	streamSSE(s, rw, hr, opStreamSegments, sseEventSegment, s.pipe.SegmentEvents())
}

// handleProfileStream streams profile snapshots as SSE, one per applied event.
func (s *Server) handleProfileStream(rw http.ResponseWriter, hr *http.Request) {
	streamSSE(s, rw, hr, opStreamProfiles, sseEventProfile, s.pipe.ProfileUpdates())
}

// streamSSE subscribes to the broadcaster and relays messages until the
// client disconnects or the broadcaster closes. Slow clients lose messages
// rather than stalling the pipeline; the broadcaster drops the oldest.
func streamSSE[T any](s *Server, rw http.ResponseWriter, hr *http.Request, op, eventName string, src *broadcast.Broadcaster[T]) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		s.writeError(hr, rw, http.StatusInternalServerError, "streaming unsupported")

		return
	}

	done := s.red.TrackInflight(hr.Context(), op)
	defer done()

	ch, cancel := src.Subscribe()
	defer cancel()

	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-hr.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.ErrorContext(hr.Context(), "marshal stream message", "error", err)

				continue
			}

			_, err = fmt.Fprintf(rw, "event: %s\ndata: %s\n\n", eventName, data)
			if err != nil {
				return
			}

			flusher.Flush()
		}
	}
}
