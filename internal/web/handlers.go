package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/infincia/picamera-webthing/internal/debug"
	"github.com/infincia/picamera-webthing/internal/property"
)

// Handlers holds dependencies for the property protocol endpoints.
type Handlers struct {
	store    *property.Store
	thing    ThingDescription
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers over the given store and description.
func NewHandlers(store *property.Store, thing ThingDescription, hub *Hub) *Handlers {
	return &Handlers{
		store: store,
		thing: thing,
		hub:   hub,
		upgrader: websocket.Upgrader{
			// the gateway connects cross-origin on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleThing serves the thing description document.
func (h *Handlers) HandleThing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.thing)
}

// HandleProperties returns every property value.
func (h *Handlers) HandleProperties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Values())
}

// HandleGetProperty returns a single property as {"<name>": value}.
func (h *Handlers) HandleGetProperty(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	value, err := h.store.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "UnknownProperty", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{name: value})
}

// HandlePutProperty accepts a {"<name>": value} body, validates it and
// stores the value in the pending-settings slot. The new value takes
// effect on the next capture cycle; an in-flight capture always
// finishes with the settings it started with.
func (h *Handlers) HandlePutProperty(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidSettingValue", errors.New("invalid JSON body"))
		return
	}
	value, ok := body[name]
	if !ok {
		writeError(w, http.StatusBadRequest, "InvalidSettingValue",
			errors.New("body must contain the property name as key"))
		return
	}

	if err := h.store.SetPending(name, value); err != nil {
		switch {
		case errors.Is(err, property.ErrUnknown):
			writeError(w, http.StatusNotFound, "UnknownProperty", err)
		case errors.Is(err, property.ErrNotWritable):
			writeError(w, http.StatusForbidden, "PropertyNotWritable", err)
		default:
			writeError(w, http.StatusBadRequest, "InvalidSettingValue", err)
		}
		return
	}

	// echo the value as the store now reads it
	current, err := h.store.Get(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{name: current})
}

// HandleUpdates upgrades to a websocket and streams propertyStatus
// messages until the client disconnects. A full snapshot is sent on
// connect so the client starts consistent.
func (h *Handlers) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("Websocket upgrade failed: %v", err)
		return
	}

	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	if err := h.hub.SendSnapshot(conn, h.store.Values()); err != nil {
		return
	}

	// Drain incoming frames to detect disconnect; the protocol has no
	// client-to-server messages we act on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": err.Error(),
	})
}
