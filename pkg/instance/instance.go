package instance

import (
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

const fallbackID = "local-0"

// ID names this process in logs and lock owners. STOREFRONT_INSTANCE_ID wins,
// then the platform dyno name, then the hostname.
func ID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = fallbackID
	}
	return env.Get(host, "STOREFRONT_INSTANCE_ID", "DYNO")
}
