package controllers

import (
	"io"
	"net/http"

	"github.com/postpilotapp/postpilot-backend/api/responses"
	razorpaywh "github.com/postpilotapp/postpilot-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// maxWebhookBody caps the raw payload read; Razorpay events are small.
const maxWebhookBody = 1 << 20

// RazorpayWebhook verifies and applies a billing event. The raw body must be
// handed to the processor untouched; the signature covers the exact bytes.
func RazorpayWebhook(processor *razorpaywh.Processor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading webhook body"))
			return
		}

		signature := r.Header.Get(razorpaywh.SignatureHeader)
		if err := processor.Process(r.Context(), body, signature); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"processed": true})
	}
}
