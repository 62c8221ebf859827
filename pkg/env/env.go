// Package env reads the handful of variables needed before config.Load runs.
package env

import (
	"os"
	"strings"
)

// Get returns the first non-blank value among keys, or fallback.
func Get(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
