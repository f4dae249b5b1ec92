package credentials

import (
	"fmt"
)

const (
	// Namespace is the KV namespace holding WiFi credentials.
	Namespace = "wifi_config"

	// KeySSID and KeyPassword are the two keys of Namespace.
	KeySSID     = "ssid"
	KeyPassword = "password"

	// MaxSSIDLen is the 802.11 SSID limit in bytes.
	MaxSSIDLen = 32

	// MaxPasswordLen is the WPA2 passphrase limit in bytes.
	MaxPasswordLen = 64
)

// Credentials is the persisted station configuration.
type Credentials struct {
	SSID     string
	Password string
}

// Configured reports whether an SSID is present.
func (c Credentials) Configured() bool {
	return c.SSID != ""
}

// Validate checks the byte bounds.
func (c Credentials) Validate() error {
	if len(c.SSID) > MaxSSIDLen {
		return fmt.Errorf("ssid is %d bytes, limit is %d", len(c.SSID), MaxSSIDLen)
	}
	if len(c.Password) > MaxPasswordLen {
		return fmt.Errorf("password is %d bytes, limit is %d", len(c.Password), MaxPasswordLen)
	}
	return nil
}

// Store loads and saves Credentials through a KV collaborator.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load returns the stored credentials. Absent keys read as empty strings;
// only a failure of the store itself is an error.
func (s *Store) Load() (Credentials, error) {
	ssid, _, err := s.kv.Get(Namespace, KeySSID)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load ssid: %w", err)
	}
	password, _, err := s.kv.Get(Namespace, KeyPassword)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load password: %w", err)
	}
	return Credentials{SSID: ssid, Password: password}, nil
}

// Save persists both keys in one commit.
func (s *Store) Save(c Credentials) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	if err := s.kv.Set(Namespace, map[string]string{
		KeySSID:     c.SSID,
		KeyPassword: c.Password,
	}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}
