package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// acquireTimeout bounds how long POST /cache/{id} waits for a load.
// Zero means no additional timeout beyond server/connection timeouts.
var acquireTimeout time.Duration

// SetAcquireTimeout sets the acquire timeout (0 disables).
func SetAcquireTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	acquireTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

var defaultCORSMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}

// SetCORSOptions configures CORS behavior for the HTTP server. Empty methods
// fall back to the verbs the API serves.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	if len(corsAllowedMethods) == 0 {
		corsAllowedMethods = append([]string(nil), defaultCORSMethods...)
	}
	corsAllowedHeaders = append([]string(nil), headers...)
}
