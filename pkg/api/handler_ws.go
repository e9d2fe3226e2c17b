package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// wsHandler handles GET /ws: upgrades the connection and delegates to the
// ConnectionManager, blocking until the WebSocket closes.
func (s *Server) wsHandler(c *gin.Context) {
	if s.connManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WebSocket not available"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.allowedWSOrigins,
	})
	if err != nil {
		// Accept already wrote the HTTP error response.
		return
	}

	s.connManager.HandleConnection(c.Request.Context(), conn)
}
