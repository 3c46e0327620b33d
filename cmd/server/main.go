package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
	"github.com/gorilla/mux"

	"github.com/slatelabs/slatesync/internal/api"
	"github.com/slatelabs/slatesync/internal/session"
	"github.com/slatelabs/slatesync/internal/store"
	"github.com/slatelabs/slatesync/internal/ws"
)

const version = "0.1.0"

const usage = `Slate synchronization server.

Holds an in-memory slate of text lines and keeps every connected client in
sync over a websocket.

Usage:
    server [--port=<port>] [--lines=<lines>] [--name=<name>] [--defect-countdown=<n>]

Options:
    -h --help               Show this screen.
    --version               Show version.
    -p --port=<port>        Listen port [default: 8080].
    --lines=<lines>         Number of slate lines [default: 10].
    --name=<name>           Store name for diagnostics [default: main/demo].
    --defect-countdown=<n>  Commit a corrupted value on the nth rejected
                            update. Fault-injection testing only.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		log.Fatal(err)
	}

	port, _ := opts.Int("--port")
	lineCount, _ := opts.Int("--lines")
	name, _ := opts.String("--name")
	defectCountdown, _ := opts.Int("--defect-countdown")

	st := store.New(store.Config{
		Name:            name,
		LineCount:       lineCount,
		DefectCountdown: defectCountdown,
	})
	service := session.NewService(name, st)
	apiHandler := api.New(service)

	r := mux.NewRouter()
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(service, w, r)
	})
	r.HandleFunc("/health", apiHandler.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", apiHandler.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/slate", apiHandler.SlateHandler).Methods(http.MethodGet)

	handler := corsMiddleware(r)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		st.Close()
		os.Exit(0)
	}()

	log.Printf("📋 slatesync server starting on :%d", port)
	log.Printf("🗂 Store: %s (%d lines)", name, lineCount)
	if defectCountdown > 0 {
		log.Printf("⚠️ Defect countdown armed: %d", defectCountdown)
	}
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Slate:     GET /api/slate")

	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
