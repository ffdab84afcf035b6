package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection for workspaceId and blocks until it
// closes. initial messages are queued before any broadcast.
func ServeWs(hub *Hub, c *websocket.Conn, workspaceId string, initial ...[]byte) {
	client := &Client{Hub: hub, Conn: c, WorkspaceId: workspaceId, Send: make(chan []byte, sendBuffer)}
	for _, msg := range initial {
		client.Send <- msg
	}
	client.Hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
