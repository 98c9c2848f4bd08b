package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/infincia/picamera-webthing/internal/property"
)

// Server wraps the HTTP server and handlers for the property protocol.
type Server struct {
	addr     string
	handlers *Handlers
	unsub    func()
}

// NewServer creates a server exposing the given store as a web thing.
// Property change notifications are forwarded to websocket clients for
// as long as the server exists.
func NewServer(addr string, thingName string, store *property.Store) *Server {
	hub := NewHub()
	thing := NewThingDescription(thingName, store.SensorEnabled())
	handlers := NewHandlers(store, thing, hub)

	unsub := store.Subscribe(func(evt property.Event) {
		hub.BroadcastStatus(evt.Name, evt.Value)
	})

	return &Server{
		addr:     addr,
		handlers: handlers,
		unsub:    unsub,
	}
}

// Mux returns an http.Handler with all routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /properties", s.handlers.HandleProperties)
	mux.HandleFunc("GET /properties/{name}", s.handlers.HandleGetProperty)
	mux.HandleFunc("PUT /properties/{name}", s.handlers.HandlePutProperty)
	mux.HandleFunc("GET /updates", s.handlers.HandleUpdates)
	mux.HandleFunc("GET /{$}", s.handlers.HandleThing) // exact match for root only

	return mux
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.unsub()

	srv := &http.Server{Addr: s.addr, Handler: s.Mux()}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web thing listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
