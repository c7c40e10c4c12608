package web

import (
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"robocar-service/internal/types"
)

type gamepadMessage struct {
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

// handleGamepad forwards button messages from a browser or phone gamepad to the robocar.
// A button still held when the session ends is released.
func (s *Server) handleGamepad(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	s.clients.Add(1)
	defer s.clients.Done()

	session := uuid.NewString()
	s.logger.Infof("Gamepad session %s connected from %s", session, r.RemoteAddr)

	held := types.ButtonUnknown
	defer func() {
		if held != types.ButtonUnknown {
			s.logger.Infof("Gamepad session %s ended with %s held, releasing", session, held)
			if err := s.robot.HandleButton(held, false); err != nil {
				s.logger.Warnf("Failed to release %s: %v", held, err)
			}
		}
	}()

	for {
		var msg gamepadMessage
		if err := wsjson.Read(s.ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Infof("Gamepad session %s closed", session)
			} else if s.ctx.Err() != nil {
				s.logger.Infof("Gamepad session %s closed on shutdown", session)
				conn.Close(websocket.StatusGoingAway, "shutting down")
			} else {
				s.logger.Warnf("Gamepad session %s read failed: %v", session, err)
				conn.Close(websocket.StatusUnsupportedData, "invalid message")
			}
			return
		}

		button := types.ParseButton(msg.Button)
		if button == types.ButtonUnknown {
			s.logger.Debugf("Gamepad session %s sent unknown button %q", session, msg.Button)
			continue
		}
		if err := s.robot.HandleButton(button, msg.Pressed); err != nil {
			s.logger.Warnf("Gamepad session %s: %v", session, err)
			conn.Close(websocket.StatusTryAgainLater, err.Error())
			return
		}

		switch {
		case msg.Pressed && held == types.ButtonUnknown:
			held = button
		case !msg.Pressed:
			held = types.ButtonUnknown
		}
	}
}
