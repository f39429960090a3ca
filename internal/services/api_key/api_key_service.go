package api_key

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidAPIKey = errors.New("invalid API key")

// Service validates API keys against configured bcrypt hashes
type Service struct {
	hashes [][]byte

	// sha256(key) of keys that already matched, so bcrypt runs once per key
	mu       sync.RWMutex
	verified map[string]bool
}

// NewService creates a new API key service. Empty hashes are ignored.
func NewService(hashes []string) *Service {
	s := &Service{verified: make(map[string]bool)}
	for _, hash := range hashes {
		if hash = strings.TrimSpace(hash); hash != "" {
			s.hashes = append(s.hashes, []byte(hash))
		}
	}
	return s
}

// Enabled reports whether any key is configured
func (s *Service) Enabled() bool {
	return len(s.hashes) > 0
}

// ValidateAPIKey checks the key against every configured hash
func (s *Service) ValidateAPIKey(key string) error {
	if key == "" {
		return ErrInvalidAPIKey
	}

	digest := sha256.Sum256([]byte(key))
	cacheKey := hex.EncodeToString(digest[:])

	s.mu.RLock()
	ok := s.verified[cacheKey]
	s.mu.RUnlock()
	if ok {
		return nil
	}

	for _, hash := range s.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			s.mu.Lock()
			s.verified[cacheKey] = true
			s.mu.Unlock()
			return nil
		}
	}
	return ErrInvalidAPIKey
}

// GenerateAPIKey returns a new random key and its bcrypt hash for API_KEY_HASHES
func GenerateAPIKey() (key string, hash string, err error) {
	key, err = generateRandomKey()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate API key: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return key, string(hashed), nil
}

// generateRandomKey generates a random 32-byte hex string
func generateRandomKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
