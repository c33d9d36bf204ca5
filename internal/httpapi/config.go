package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
// Non-positive values restore the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// inferTimeout caps how long an /infer caller waits for its batch result.
// Zero means the request's own timeout_ms (if any) is the only limit.
var inferTimeout time.Duration

// SetInferTimeout sets the server-side wait cap for /infer (0 disables).
func SetInferTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	inferTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

var (
	defaultCORSMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Content-Type", "X-Request-Id", "X-Log-Level"}
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty
// methods or headers fall back to what the API actually uses.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
	if len(corsAllowedMethods) == 0 {
		corsAllowedMethods = append(corsAllowedMethods, defaultCORSMethods...)
	}
	if len(corsAllowedHeaders) == 0 {
		corsAllowedHeaders = append(corsAllowedHeaders, defaultCORSHeaders...)
	}
}

// effectiveTimeout returns the tighter of the server cap and the request's
// own timeout; zero means unbounded.
func effectiveTimeout(reqMS int) time.Duration {
	d := inferTimeout
	if reqMS > 0 {
		rd := time.Duration(reqMS) * time.Millisecond
		if d == 0 || rd < d {
			d = rd
		}
	}
	return d
}
