package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/leafy-insurance/claims-backend/internal/claim"
	"github.com/leafy-insurance/claims-backend/internal/models"
)

// WebSocket message types for the claim flow protocol
const (
	// Client -> Server messages
	MsgTypeClaimDrop       = "claim:drop"
	MsgTypeSampleHighlight = "sample:highlight"
	MsgTypeSampleConfirm   = "sample:confirm"
	MsgTypeClaimUpload     = "claim:upload"
	MsgTypePing            = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeFlowEvent = "flow:event"
	MsgTypeAlert     = "alert"
	MsgTypeToast     = "toast"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// maxSocketMessage bounds one client message; dropped images arrive base64 encoded.
const maxSocketMessage = 32 << 20

const (
	// sendQueueSize is how many messages may wait for a slow client before
	// the connection is dropped.
	sendQueueSize = 256
	writeWait     = 10 * time.Second
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// DropPayload carries a dropped file
type DropPayload struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Data        string `json:"data"` // Base64 encoded file
}

// HighlightPayload selects a sample in the grid
type HighlightPayload struct {
	Ref string `json:"ref"`
}

// ConnectedPayload greets a new connection with its flow
type ConnectedPayload struct {
	FlowID   string              `json:"flowId"`
	Samples  []string            `json:"samples"`
	Snapshot models.FlowSnapshot `json:"snapshot"`
}

// FlowEventPayload reports one state transition
type FlowEventPayload struct {
	Event    claim.Event         `json:"event"`
	Snapshot models.FlowSnapshot `json:"snapshot"`
}

// NoticePayload is shown to the user as an alert or a toast
type NoticePayload struct {
	Message string `json:"message"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// ClaimSocketHandler runs one claim flow per WebSocket connection
type ClaimSocketHandler struct {
	flows    FlowRegistry
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewClaimSocketHandler creates a new WebSocket claim handler
func NewClaimSocketHandler(flows FlowRegistry, logger *log.Logger) *ClaimSocketHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &ClaimSocketHandler{
		flows: flows,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		logger: logger.WithPrefix("ws"),
	}
}

// HandleWebSocket upgrades the connection and drives its claim flow
func (h *ClaimSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(maxSocketMessage)

	conn := newClaimConn(ws, h.logger, sendQueueSize)
	go conn.writeLoop()
	defer func() {
		conn.close()
		<-conn.done
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	var uploads sync.WaitGroup

	entry := h.flows.Create(conn)
	entry.Machine.Subscribe(func(ev claim.Event, snap models.FlowSnapshot) {
		conn.send(WSMessage{
			Type:    MsgTypeFlowEvent,
			ID:      entry.ID,
			Payload: mustJSON(FlowEventPayload{Event: ev, Snapshot: snap}),
		})
	})
	h.logger.Info("client connected", "flow", entry.ID)

	samples, err := entry.Picker.Load(ctx)
	if err != nil {
		h.logger.Warn("sample list unavailable", "flow", entry.ID, "err", err)
		samples = []string{}
	}
	conn.send(WSMessage{
		Type: MsgTypeConnected,
		ID:   entry.ID,
		Payload: mustJSON(ConnectedPayload{
			FlowID:   entry.ID,
			Samples:  samples,
			Snapshot: entry.Machine.Snapshot(),
		}),
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("connection error", "flow", entry.ID, "err", err)
			}
			break
		}

		var msg WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			conn.sendError("Invalid message: "+err.Error(), "INVALID_MESSAGE", 0)
			continue
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong})
		case MsgTypeClaimDrop:
			h.handleDrop(conn, entry.Machine, msg)
		case MsgTypeSampleHighlight:
			var payload HighlightPayload
			if err := sonic.Unmarshal(msg.Payload, &payload); err != nil || payload.Ref == "" {
				conn.sendError("Invalid highlight payload", "INVALID_PAYLOAD", 0)
				continue
			}
			if !entry.Picker.Highlight(payload.Ref) {
				conn.sendError("Unknown sample: "+payload.Ref, "UNKNOWN_SAMPLE", 0)
			}
		case MsgTypeSampleConfirm:
			if !entry.Picker.Confirm() {
				conn.sendError("No sample highlighted", "NO_SELECTION", 0)
			}
		case MsgTypeClaimUpload:
			uploads.Add(1)
			go func() {
				defer uploads.Done()
				entry.Flow.Upload(ctx)
			}()
		default:
			conn.sendError("Unknown message type: "+msg.Type, "INVALID_TYPE", 0)
		}
	}

	cancel()
	uploads.Wait()
	h.logger.Info("client disconnected", "flow", entry.ID)
	return nil
}

func (h *ClaimSocketHandler) handleDrop(conn *claimConn, m *claim.Machine, msg WSMessage) {
	var payload DropPayload
	if err := sonic.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError("Invalid drop payload: "+err.Error(), "INVALID_PAYLOAD", 0)
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		conn.sendError("Invalid base64 data: "+err.Error(), "INVALID_DATA", 0)
		return
	}
	if len(decoded) == 0 {
		conn.sendError("Dropped file is empty", "INVALID_DATA", 0)
		return
	}

	contentType := payload.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(decoded).String()
	}
	m.Drop(claim.Image{Name: payload.Name, ContentType: contentType, Data: decoded})
}

// claimConn queues writes to one socket and reports flow outcomes on it.
// send never blocks: flow listeners call it with the machine locked.
type claimConn struct {
	ws     *websocket.Conn
	logger *log.Logger
	out    chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newClaimConn(ws *websocket.Conn, logger *log.Logger, queue int) *claimConn {
	return &claimConn{
		ws:     ws,
		logger: logger,
		out:    make(chan []byte, queue),
		done:   make(chan struct{}),
	}
}

// writeLoop drains the queue until close, then closes the socket.
func (cc *claimConn) writeLoop() {
	defer close(cc.done)
	defer cc.ws.Close()

	failed := false
	for data := range cc.out {
		if failed {
			continue
		}
		cc.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cc.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			cc.logger.Warn("failed to send message", "err", err)
			failed = true
			// Unblocks the read loop so the handler can finish.
			cc.ws.Close()
		}
	}
}

func (cc *claimConn) send(msg WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		cc.logger.Error("failed to encode message", "type", msg.Type, "err", err)
		return
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.closed {
		return
	}
	select {
	case cc.out <- data:
	default:
		cc.logger.Warn("client is not reading, dropping connection", "type", msg.Type)
		cc.shutdown()
	}
}

func (cc *claimConn) sendError(message, code string, status int) {
	cc.send(WSMessage{
		Type: MsgTypeError,
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
			Status:  status,
		}),
	})
}

func (cc *claimConn) close() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.shutdown()
}

// shutdown stops accepting messages; writeLoop flushes what is queued.
// Callers hold cc.mu.
func (cc *claimConn) shutdown() {
	if cc.closed {
		return
	}
	cc.closed = true
	close(cc.out)
}

// Alert implements claim.Reporter.
func (cc *claimConn) Alert(message string) {
	cc.send(WSMessage{Type: MsgTypeAlert, Payload: mustJSON(NoticePayload{Message: message})})
}

// Notify implements claim.Reporter.
func (cc *claimConn) Notify(message string) {
	cc.send(WSMessage{Type: MsgTypeToast, Payload: mustJSON(NoticePayload{Message: message})})
}

// Failure implements claim.Reporter.
func (cc *claimConn) Failure(err *claim.FlowError) {
	cc.logger.Error("upload flow failed", "kind", err.Kind, "op", err.Op, "status", err.Status, "err", err)
	message := err.Details
	if err.Kind == claim.KindBackendStatus && err.Status != 0 {
		message = fmt.Sprintf("Server error: %d", err.Status)
	}
	cc.sendError(message, string(err.Kind), err.Status)
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := sonic.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
