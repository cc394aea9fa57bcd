package server

import (
	"fmt"
	"io"
	"os"

	"betterats/internal/utils"
)

// displayServerInfo prints the server configuration to stderr.
func (s *Server) displayServerInfo() {
	s.writeServerInfo(os.Stderr)
}

func (s *Server) writeServerInfo(w io.Writer) {
	fmt.Fprintln(w, "Available endpoints:")
	fmt.Fprintln(w, "  GET  /health   - Health check")
	fmt.Fprintln(w, "  GET  /stats    - Server statistics")
	fmt.Fprintln(w, "  POST /process  - Extract candidate data and assess requirements")

	if len(s.APIKeys) > 0 {
		fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
	} else {
		fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(w, "WARNING: /process is publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		fmt.Fprintf(w, "Request size limit: %s\n", utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Fprintln(w, "Request size limit: DISABLED")
	}
	fmt.Fprintf(w, "Upload directory: %s\n", s.UploadDir)

	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(w, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(w, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(w, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(w, "Rate limiting: DISABLED")
	}
}
