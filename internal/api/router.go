package api

import (
	"net/http"

	"intervue/voice/internal/auth"
	"intervue/voice/internal/interview"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", h.HandleReady)

	mux.HandleFunc("POST "+interview.PathStart, h.HandleStart)
	mux.Handle("POST "+interview.PathEnd, h.authed(h.HandleEnd))
	mux.Handle("POST "+interview.PathTurn, h.authed(h.HandleTurn))
	mux.Handle("GET /api/interview/{id}/events", h.authed(h.HandleListEvents))
	mux.Handle("POST "+interview.PathTTS, h.authed(h.HandleTTS))
	mux.Handle("POST "+interview.PathSTTToken, h.authed(h.HandleSTTToken))

	return mux
}

// authed requires a valid session bearer token and puts its claims on the
// request context.
func (h *Handlers) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := h.Signer.Verify(tok, "")
		if err != nil {
			metricAuthFailures.WithLabelValues(authReason(err)).Inc()
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

func authReason(err error) string {
	switch err {
	case auth.ErrTokenExp:
		return "expired"
	case auth.ErrTokenSig:
		return "signature"
	default:
		return "format"
	}
}
