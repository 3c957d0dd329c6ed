// Package lifecycle holds timeouts shared by component start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds start-up probes and graceful shutdown of long-lived components.
const DefaultTimeout = 10 * time.Second
