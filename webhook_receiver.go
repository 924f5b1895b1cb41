package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/rryowa/dangbai_session/internal/events"
	"github.com/rryowa/dangbai_session/internal/util"
)

// Receives session events posted by the client when SESSION_WEBHOOK_URL
// points here, and logs them.
func main() {
	logger := util.NewZapLogger()

	addr := os.Getenv("WEBHOOK_RECEIVER_ADDR")
	if addr == "" {
		addr = ":9090"
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is accepted", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var e events.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "Error parsing JSON", http.StatusBadRequest)
			return
		}

		logger.Infow("Received session event",
			"kind", e.Kind,
			"user_id", e.UserID,
			"username", e.Username,
			"redirect_to", e.RedirectTo,
			"reason", e.Reason,
			"at", e.At,
		)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Webhook received!"))
	})

	logger.Infof("Webhook receiver listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
