package authz

import "sync"

var (
	globalMu sync.RWMutex
	global   *Service
)

// Setup installs the process-wide authorization service. Called once during
// startup before any request is served.
func Setup(s *Service) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = s
}

// Use returns the process-wide authorization service. Panics when Setup has
// not run; authorization must never silently default to allow.
func Use() *Service {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		panic("authz: Setup was not called")
	}
	return global
}
