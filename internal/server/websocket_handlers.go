package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/unmark/internal/codec"
	"github.com/MeKo-Tech/unmark/internal/pipeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocket upgrader. Origin checks are left to the CORS configuration of the
// deployment.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest asks for one operation on an inline image. Image is
// base64 in JSON.
type WebSocketRequest struct {
	Type    string `json:"type"` // "remove", "add" or "info"
	Image   []byte `json:"image"`
	Size    string `json:"size,omitempty"`
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty"`
}

// WebSocketResult carries the processed image back.
type WebSocketResult struct {
	Image  []byte `json:"image,omitempty"`
	Format string `json:"format,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   string `json:"size"`
}

// WebSocketResponse is one progress, completion or error message.
type WebSocketResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Progress  float64 `json:"progress,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// webSocketHandler upgrades the connection and serves requests until the
// client goes away.
func (s *Server) webSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(conn)
}

func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2) // base64 overhead

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage answers one request with a processing message and
// then either a completed or an error message.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	id := uuid.NewString()
	responseType := req.Type + "_response"

	var op pipeline.Operation
	switch req.Type {
	case string(pipeline.OpRemove):
		op = pipeline.OpRemove
	case string(pipeline.OpAdd):
		op = pipeline.OpAdd
	case opInfo:
	default:
		s.sendWebSocketError(conn, id, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, id, "invalid_request", "No image data provided")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{Type: responseType, Status: "processing", RequestID: id})

	quality := ""
	if req.Quality != 0 {
		quality = fmt.Sprint(req.Quality)
	}
	parsed, err := s.buildRequest(req.Image, req.Size, req.Format, quality)
	if err != nil {
		operationsTotal.WithLabelValues(req.Type, "error").Inc()
		s.sendWebSocketError(conn, id, "invalid_request", err.Error())
		return
	}

	if req.Type == opInfo {
		operationsTotal.WithLabelValues(opInfo, "success").Inc()
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type: responseType, Status: "completed", Progress: 1, Result: s.describe(parsed), RequestID: id,
		})
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{Type: responseType, Status: "processing", Progress: 0.5, RequestID: id})

	out, res, _, err := s.apply(op, parsed)
	if err != nil {
		operationsTotal.WithLabelValues(req.Type, "error").Inc()
		s.sendWebSocketError(conn, id, "processing_error", err.Error())
		return
	}
	encoded, err := codec.EncodeBytes(out, parsed.encodeAs, parsed.quality)
	if err != nil {
		operationsTotal.WithLabelValues(req.Type, "error").Inc()
		s.sendWebSocketError(conn, id, "processing_error", err.Error())
		return
	}
	operationsTotal.WithLabelValues(req.Type, "success").Inc()

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:     responseType,
		Status:   "completed",
		Progress: 1,
		Result: WebSocketResult{
			Image:  encoded,
			Format: parsed.encodeAs.String(),
			Width:  out.Bounds().Dx(),
			Height: out.Bounds().Dy(),
			Size:   res.Size.Variant.String(),
		},
		RequestID: id,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, id, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: id,
	})
}
