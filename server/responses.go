package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
}

// redirectNoCache sends a 302 that browsers and proxies must not cache
func redirectNoCache(w http.ResponseWriter, r *http.Request, location string) {
	noCache(w)
	http.Redirect(w, r, location, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	noCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write JSON response")
	}
}
