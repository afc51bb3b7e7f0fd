package instance

import "os"

// GetID names this process in logs. STOREFRONT_INSTANCE_ID wins over the platform's
// DYNO; fallback is used when neither is set.
func GetID(fallback string) string {
	for _, key := range []string{"STOREFRONT_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return fallback
}
