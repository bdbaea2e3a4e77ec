package health

import (
	"net/http"

	"github.com/go-chi/render"
)

// Health answers liveness probes with a plain OK.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "OK")
	}
}
