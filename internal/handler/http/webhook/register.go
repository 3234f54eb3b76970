package webhook

import "net/http"

// Register mounts the EventServer's three routes on mux, per spec §4.18.
func Register(mux *http.ServeMux, h *Handler) {
	mux.Handle("POST /webhook/event", h)
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /", rootHandler)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"service":"vigilfeed-qa","status":"running"}`))
}
