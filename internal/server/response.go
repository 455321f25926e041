package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// envelope is the fixed response shape: all four keys are present on every
// response, success or failure.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	Timestamp string          `json:"timestamp"`
}

func writeEnvelope(w http.ResponseWriter, status int, data json.RawMessage, errMsg string) {
	env := envelope{
		Success:   errMsg == "",
		Data:      data,
		Timestamp: nowTimestamp(),
	}
	if errMsg != "" {
		env.Error = &errMsg
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("[API] writing response: %v\n", err)
	}
}

// setAPIHeaders applies the CORS, cache, and security headers the website
// expects on /api responses.
func setAPIHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Content-Security-Policy", "default-src 'none'")
}
