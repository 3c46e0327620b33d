package ws

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/slatelabs/slatesync/internal/ratelimit"
	"github.com/slatelabs/slatesync/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Serve upgrades an HTTP request to a websocket connection and runs a
// session over it until the connection ends.
func Serve(svc *session.Service, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}

	c := newConn(conn, ratelimit.New(messagesPerSecond, messageBurst))
	defer c.Close()

	sess := svc.NewSession(c)
	log.Printf("%s connected from %s", sess.Identity().Description(), conn.RemoteAddr())

	err = sess.Run(r.Context())
	if err != nil && !errors.Is(err, io.EOF) {
		log.Printf("%s ended: %v", sess.Identity().Description(), err)
		return
	}
	log.Printf("%s disconnected", sess.Identity().Description())
}
