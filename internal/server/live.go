package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/Metzpapa/bleai/internal/session"
	"github.com/Metzpapa/bleai/pkg/provider/voice"
	"github.com/Metzpapa/bleai/pkg/types"
)

// errSessionEnded marks the voice session draining cleanly. It aborts the
// relay group so the uplink's blocking read is released.
var errSessionEnded = errors.New("voice session ended")

// controlMessage is a client → server text frame on the live socket.
// "interrupt" stops the agent mid-response when the user barges in.
type controlMessage struct {
	Type string `json:"type"`
}

// turnMessage is a server → client text frame carrying one completed
// utterance. Timestamps are seconds from session start.
type turnMessage struct {
	Type      string  `json:"type"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
}

// handleSessionLive relays a live practice conversation between the browser
// and the voice backend. Binary frames carry audio both ways; text frames
// carry control messages up and turn events down. When the relay ends the
// conversation log is attached to the session so the later analysis run can
// grade it.
func (s *Server) handleSessionLive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if s.voice == nil {
		writeError(w, http.StatusServiceUnavailable, "no voice provider configured")
		return
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if sess.State != session.StatePending {
		writeError(w, http.StatusConflict, fmt.Sprintf("session is %s; live practice runs before processing", sess.State))
		return
	}
	t, err := s.tasks.Get(r.Context(), sess.TaskID)
	if err != nil {
		s.internalError(w, "load task", err)
		return
	}
	if !t.Interactive {
		writeError(w, http.StatusBadRequest, "live practice requires an interactive task")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("live handshake failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "live session ended")

	handle, err := s.voice.Connect(r.Context(), voice.SessionConfig{
		Instructions: t.Scenario.Prompt,
		Voice:        t.Scenario.Voice,
	})
	if err != nil {
		s.log.Error("voice connect failed", "session_id", id, "provider", s.voice.Name(), "error", err)
		conn.Close(websocket.StatusInternalError, "voice backend unavailable")
		return
	}
	defer handle.Close()

	s.log.Info("live session started", "session_id", id, "task_id", t.ID, "provider", s.voice.Name())

	var turns []types.ConversationTurn
	g, gctx := errgroup.WithContext(r.Context())

	// Uplink: client frames to the provider.
	g.Go(func() error {
		for {
			typ, data, err := conn.Read(gctx)
			if err != nil {
				return err
			}
			switch typ {
			case websocket.MessageBinary:
				if err := handle.SendAudio(data); err != nil {
					return fmt.Errorf("forward audio: %w", err)
				}
			case websocket.MessageText:
				var ctl controlMessage
				if err := json.Unmarshal(data, &ctl); err != nil {
					s.log.Debug("live control frame rejected", "session_id", id, "error", err)
					continue
				}
				if ctl.Type == "interrupt" {
					if err := handle.Interrupt(); err != nil {
						s.log.Warn("interrupt failed", "session_id", id, "error", err)
					}
				}
			}
		}
	})

	// Downlink: provider audio and turns to the client. Sole writer on the
	// socket after the handshake.
	g.Go(func() error {
		audio := handle.Audio()
		turnCh := handle.Turns()
		for audio != nil || turnCh != nil {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case chunk, ok := <-audio:
				if !ok {
					audio = nil
					continue
				}
				if err := writeFrame(gctx, conn, websocket.MessageBinary, chunk); err != nil {
					return err
				}
			case turn, ok := <-turnCh:
				if !ok {
					turnCh = nil
					continue
				}
				turns = append(turns, turn)
				data, err := json.Marshal(turnMessage{
					Type:      "turn",
					Role:      turn.Role,
					Content:   turn.Content,
					Timestamp: turn.Timestamp.Seconds(),
				})
				if err != nil {
					return err
				}
				if err := writeFrame(gctx, conn, websocket.MessageText, data); err != nil {
					return err
				}
			}
		}
		if err := handle.Err(); err != nil {
			return fmt.Errorf("voice session: %w", err)
		}
		return errSessionEnded
	})

	err = g.Wait()
	switch {
	case errors.Is(err, errSessionEnded), errors.Is(err, context.Canceled):
		err = nil
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		err = nil
	}
	if err != nil {
		s.log.Warn("live relay ended with error", "session_id", id, "error", err)
	}

	s.log.Info("live session ended", "session_id", id, "turns", len(turns))
	if len(turns) > 0 {
		if err := s.sessions.AttachTurns(id, turns); err != nil {
			s.log.Warn("conversation log rejected", "session_id", id, "error", err)
		}
	}
}

// writeFrame writes one frame with a bounded deadline.
func writeFrame(ctx context.Context, conn *websocket.Conn, typ websocket.MessageType, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, typ, data)
}
