/*
Package handler provides the HTTP surface of the Huddle server.

This file contains the websocket upgrade handler. Connection-rate limiting
happens in the limiter middleware the route is mounted behind; authentication
happens later, over the socket itself.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"huddle/internal/app/chat"
	"huddle/internal/pkg/logx"
)

// HandleWebSocket creates the HandlerFunc that accepts websocket connections.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Hub, conn)

		go client.WritePump()

		deps.Hub.Register(client)

		logx.Info("WebSocket connection established", "conn_id", client.ID())

		client.ReadPump()
	}
}
