package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// registerUserHandler gates entry to the chat: it validates the requested
// display name before the client attempts the WebSocket connection. It does
// not reserve the name against the registry.
func (a *App) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<10))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(gjson.GetBytes(body, "name").String())
	bounds := a.config.Registry
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if n := utf8.RuneCountInString(name); n < bounds.NameMinLen || n > bounds.NameMaxLen {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf(
			"Name must be at least (%d), and maximum (%d) characters", bounds.NameMinLen, bounds.NameMaxLen))
		return
	}

	a.logger.Info("User registration approved", slog.String("name", name))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "registration approved"})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
