package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"trivia-service/internal/app"
)

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Registry       *app.RoomRegistry
	Profiles       *app.ProfileService
	Tasks          *app.Tasks
	WS             WSOptions
	AllowedOrigins []string
}

// NewRouter mounts the websocket endpoint and the small REST surface, wrapped in CORS.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	ws := NewWSHandler(d.Registry, d.WS)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/rooms/{roomId}", getRoom(d.Registry)).Methods(http.MethodGet)
	if d.Profiles != nil {
		v1.HandleFunc("/profiles/sync", syncProfile(d.Profiles, d.Tasks)).Methods(http.MethodPost)
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func getRoom(registry *app.RoomRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomId"]
		snapshot, ok := registry.Room(roomID)
		if !ok {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// syncProfile provisions the signed-in user's profile in the background; sign-in never
// waits on it.
func syncProfile(profiles *app.ProfileService, tasks *app.Tasks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var user app.SignedInUser
		if err := json.NewDecoder(r.Body).Decode(&user); err != nil || user.ID == "" {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		accepted := tasks.Submit("ensure profile", func(ctx context.Context) error {
			_, err := profiles.EnsureProfile(ctx, user)
			return err
		})
		if !accepted {
			log.Warn().Str("user_id", user.ID).Msg("profile sync dropped")
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
