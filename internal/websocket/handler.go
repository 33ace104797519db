package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// Serve registers the socket with the hub and blocks until it closes.
func (h *Hub) Serve(conn *websocket.Conn, userId string) {
	client := &Client{hub: h, conn: conn, userId: userId, send: make(chan []byte, 64)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
