// Package webhooks receives provider callbacks, verifies their signatures and
// hands verified payloads to the services layer. Providers deliver at least
// once, so every handler below is safe to replay: a 2xx acknowledges the
// event, a 5xx asks the provider to redeliver and a 4xx marks the delivery as
// permanently rejected.
package webhooks

import (
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 16

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond(w, http.StatusBadRequest, "Error reading request body")
		return nil, false
	}

	return payload, true
}
