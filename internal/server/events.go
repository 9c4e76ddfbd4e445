package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/Metzpapa/bleai/internal/session"
)

// writeTimeout bounds a single frame write so one stuck client cannot pin
// the handler goroutine.
const writeTimeout = 5 * time.Second

// eventMessage is one frame on the progress stream. The closing frame also
// carries the report (complete) or the failure reason (failed).
type eventMessage struct {
	State    string          `json:"state"`
	Stage    string          `json:"stage,omitempty"`
	Fraction float64         `json:"fraction"`
	Report   *reportResponse `json:"report,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// handleSessionEvents streams progress frames for one session over a
// WebSocket until the session reaches a terminal state, then sends the
// closing frame and performs a normal closure.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	events, stop, err := s.sessions.Watch(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer stop()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("events handshake failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session finished")

	// CloseRead rejects incoming frames and cancels the context when the
	// client goes away, unblocking the event loop below.
	ctx := conn.CloseRead(r.Context())

	sentTerminal := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// The store closes the channel on the terminal
				// transition. If the terminal event itself was
				// dropped on a full buffer, rebuild the closing
				// frame from the record.
				if !sentTerminal {
					if sess, err := s.sessions.Get(id); err == nil {
						_ = writeEvent(ctx, conn, terminalMessage(sess))
					}
				}
				return
			}

			msg := eventMessage{State: ev.State.String(), Stage: ev.Stage, Fraction: ev.Fraction}
			if ev.State.Terminal() {
				if sess, err := s.sessions.Get(id); err == nil {
					msg = terminalMessage(sess)
				}
				sentTerminal = true
			}
			if err := writeEvent(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

// terminalMessage builds the closing frame from the stored record, which
// carries the report and failure reason that plain progress events do not.
func terminalMessage(sess session.Session) eventMessage {
	return eventMessage{
		State:    sess.State.String(),
		Stage:    sess.Stage,
		Fraction: sess.Fraction,
		Report:   toReportResponse(sess.Report),
		Error:    sess.Error,
	}
}

// writeEvent marshals one frame and writes it with a bounded deadline.
func writeEvent(ctx context.Context, conn *websocket.Conn, msg eventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return writeFrame(ctx, conn, websocket.MessageText, data)
}
