package smartrent

import (
	"fmt"
	"sync"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

// TokenStore holds the current bearer token.  Reads and writes may come
// from any goroutine.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token, empty if none has been stored yet
func (s *TokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// obfuscate the token when stringified
func (s *TokenStore) String() string {
	return fmt.Sprintf("token [%s]", logging.Redact(s.Get()))
}
