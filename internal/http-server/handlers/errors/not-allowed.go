package errors

import (
	"log/slog"
	"net/http"

	"giftsync/lib/api/response"
	"giftsync/lib/sl"

	"github.com/go-chi/render"
)

func NotAllowed(logger *slog.Logger) http.HandlerFunc {
	mod := sl.Module("http.handlers.errors")
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("method not allowed",
			mod,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Error("Method not allowed"))
	}
}
