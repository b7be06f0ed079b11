package jobs

import (
	"log"
	"time"

	"github.com/adil/docexchange-backend/token"
)

// StartCleanupJob purges expired download tokens every hour.
func StartCleanupJob(store *token.Store) {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for range ticker.C {
			RunCleanup(store)
		}
	}()
}

// RunCleanup runs one sweep and reports how many tokens were removed.
// Also reachable on demand through the admin endpoint.
func RunCleanup(store *token.Store) int64 {
	count, err := store.PurgeExpired()
	if err != nil {
		log.Printf("Error purging expired download tokens: %v", err)
		return 0
	}
	log.Printf("Purged %d expired download tokens", count)
	return count
}
