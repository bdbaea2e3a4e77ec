package stripehandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"giftsync/entity"
	"giftsync/internal/stripeclient"
	"giftsync/lib/api/response"
	"giftsync/lib/sl"

	"github.com/go-chi/render"
)

// maxBodyBytes bounds the webhook body; Stripe events are far smaller.
const maxBodyBytes = 1 << 20

type Core interface {
	StripeEvent(ctx context.Context, payload []byte, signature string) (*entity.WebhookResult, error)
}

// Event acknowledges a Stripe delivery. Only a request that can not be
// verified is answered with an error status.
func Event(logger *slog.Logger, handler Core) http.HandlerFunc {
	mod := sl.Module("http.handlers.stripe")
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			mod,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			log.With(sl.Err(err)).Error("read request body")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Failed to read request body"))
			return
		}

		result, err := handler.StripeEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, stripeclient.ErrSignature) {
				log.With(sl.Err(err)).Warn("webhook verification")
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Webhook verification failed"))
				return
			}
			log.With(sl.Err(err)).Error("webhook")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Internal error"))
			return
		}

		render.JSON(w, r, response.Webhook(result))
	}
}
