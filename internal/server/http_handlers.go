package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"betterats/internal/errors"
)

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// statsHandler provides server statistics including rate limiting and
// circuit breaker state
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "betterats",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.Stats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.Generators != nil {
		response["generators"] = s.Generators.Stats()
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("Failed to encode response", "status", status, "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}

// writeAppErrorResponse exposes the outermost AppError's code and message.
func (s *Server) writeAppErrorResponse(w http.ResponseWriter, err error, statusCode int) {
	resp := ErrorResponse{Error: http.StatusText(statusCode), Message: err.Error()}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		resp.Code = appErr.Code
	}
	s.writeJSON(w, statusCode, resp)
}
