package cache

import "fmt"

// SessionCreateKey guards session creation cluster-wide. Whoever holds it may
// create the active compute session; everyone else waits or reuses.
const SessionCreateKey = "session:create"

func JobStatusKey(jobID int64) string {
	return fmt.Sprintf("job:%d:status", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
