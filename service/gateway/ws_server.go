package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PGateway/logger"
	"PGateway/tools/ids"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSServer is the HTTP/WebSocket edge. It authenticates the handshake,
// registers the connection with the gateway, and runs the read loop.
type WSServer struct {
	g    *Gateway
	auth AuthService
}

func NewWSServer(g *Gateway, auth AuthService) *WSServer {
	return &WSServer{g: g, auth: auth}
}

// credential extracts the bearer credential from the handshake: ?token=
// or the Authorization header.
func credential(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	h := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
		return rest
	}
	return ""
}

// HandleWS upgrades the request and owns the connection until the peer
// goes away. Unauthenticated requests are refused before registration.
func (s *WSServer) HandleWS(c *gin.Context) {
	cred := credential(c.Request)
	if cred == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	userID, err := s.auth.VerifyAndResolve(c.Request.Context(), cred)
	if err != nil {
		logger.Infof("[ws] auth failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	// The id is fixed before registration; once Connect returns, the
	// sink is broadcast-reachable and ConnID must not change.
	connID := ids.GenerateString()
	client := NewClient(connID, userID, ws, s.g.opts.SendQueueSize)
	conn, err := s.g.Connect(c.Request.Context(), userID, connID, client)
	if err != nil {
		logger.Errorf("[ws] connect failed user=%s err=%v", userID, err)
		_ = ws.WriteMessage(websocket.TextMessage, ErrorEvent(err).Encode())
		client.Close()
		return
	}

	go client.WritePump()
	s.readLoop(c.Request.Context(), conn, client)

	// The request context is gone once the peer drops; give the offline
	// bookkeeping its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.g.Disconnect(ctx, conn)
	logger.Infof("[ws] closed user=%s conn=%s", userID, conn.ID)
}

// readLoop processes frames in arrival order until the socket errors or
// closes. Pongs refresh the read deadline and the connection's activity
// timestamp.
func (s *WSServer) readLoop(ctx context.Context, conn *Conn, client *Client) {
	ws := client.WS
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		conn.Touch()
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed user=%s conn=%s", conn.UserID, conn.ID)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout user=%s conn=%s", conn.UserID, conn.ID)
			} else {
				logger.Infof("[ws] read error user=%s conn=%s err=%v", conn.UserID, conn.ID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.g.disp.HandleRaw(ctx, conn, data)
	}
}
