package stream

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
	"github.com/gorilla/websocket"
)

const websocketWriteTimeout = 10 * time.Second

// WebsocketHandler upgrades HTTP requests and streams one session per
// connection, one frame per text message. Sessions end when base is
// cancelled or the peer goes away.
type WebsocketHandler struct {
	base     context.Context
	engine   *Engine
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebsocketHandler(base context.Context, engine *Engine, log logger.Logger) *WebsocketHandler {
	return &WebsocketHandler{
		base:   base,
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		log: log.With("stream"),
	}
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancelCause(h.base)
	defer cancel(nil)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel(errors.New().Wrap(ErrPeerClosed, err))
				return
			}
		}
	}()

	sink := &websocketSink{conn: conn, writeTimeout: websocketWriteTimeout}
	h.engine.RunSession(ctx, TransportWebsocket, r.RemoteAddr, sink)

	conn.Close()
	<-readerDone
}
