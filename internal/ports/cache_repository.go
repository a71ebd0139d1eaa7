package ports

import (
	"github.com/mikey/mailtrust/internal/core"
)

// CacheRepository is a result cache that holds resources until stopped
type CacheRepository interface {
	core.ResultCache

	// Stop releases the cache's resources
	Stop()
}
