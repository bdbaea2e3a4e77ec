package errors

import (
	"log/slog"
	"net/http"

	"giftsync/lib/api/response"
	"giftsync/lib/sl"

	"github.com/go-chi/render"
)

func NotFound(logger *slog.Logger) http.HandlerFunc {
	mod := sl.Module("http.handlers.errors")
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("resource not found",
			mod,
			slog.String("path", r.URL.Path),
		)
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("Requested resource not found"))
	}
}
