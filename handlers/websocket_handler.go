package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/siamcircuit/tournament-ops/brackets"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Страница сетки раздаётся с другого origin, в проде здесь
		// должна быть проверка по списку доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub *brackets.Hub
}

func NewWebSocketHandler(hub *brackets.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeWs апгрейдит соединение и подписывает клиента на события сетки.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отправляет HTTP-ошибку клиенту, здесь только логируем.
		log.Printf("failed to upgrade websocket connection: %v", err)
		return
	}

	client := brackets.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
