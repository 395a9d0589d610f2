package auth

import (
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/store"
)

var (
	storeMu         sync.RWMutex
	registeredStore auth.Store
)

// RegisterTokenStore sets the global token backend used by NewDefaultManager.
func RegisterTokenStore(s auth.Store) {
	storeMu.Lock()
	registeredStore = s
	storeMu.Unlock()
}

// GetTokenStore returns the globally registered token backend, falling back to
// the file backend in the default auth directory.
func GetTokenStore() auth.Store {
	storeMu.RLock()
	s := registeredStore
	storeMu.RUnlock()
	if s != nil {
		return s
	}
	storeMu.Lock()
	defer storeMu.Unlock()
	if registeredStore == nil {
		registeredStore = store.NewFileStore(config.DefaultAuthDir)
	}
	return registeredStore
}
