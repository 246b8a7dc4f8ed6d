package store

import (
	"encoding/json"
	"fmt"

	"github.com/lmor152/omnibooker-v2/internal/crypto"
	"github.com/lmor152/omnibooker-v2/internal/db"
)

// Store is the postgres-backed persistence layer. Provider credentials are
// sealed with AES-GCM before they touch the database.
type Store struct {
	db    *db.DB
	creds *crypto.AEAD
}

func New(d *db.DB, creds *crypto.AEAD) *Store {
	return &Store{db: d, creds: creds}
}

func (s *Store) sealCredentials(m map[string]any) (string, error) {
	if len(m) == 0 {
		m = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	sealed, err := s.creds.EncryptToString(raw)
	if err != nil {
		return "", fmt.Errorf("seal credentials: %w", err)
	}
	return sealed, nil
}

func (s *Store) openCredentials(sealed string) (map[string]any, error) {
	if sealed == "" {
		return map[string]any{}, nil
	}
	raw, err := s.creds.DecryptString(sealed)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return m, nil
}

func decodeOptions(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode provider options: %w", err)
	}
	return m, nil
}

func encodeOptions(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		m = map[string]any{}
	}
	return json.Marshal(m)
}
