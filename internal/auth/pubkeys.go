package auth

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"pkt.systems/sigdeck/schema"
)

// AddLoginPubKey authorizes an SSH public key for the user and returns its
// 1-based index in the user's key list.
func (s *Store) AddLoginPubKey(username schema.UserID, pubKey string) (int, error) {
	normalized, parsed, err := normalizeLoginPubKey(pubKey)
	if err != nil {
		return 0, err
	}
	index := 0
	err = s.mutate(username, "pubkey added", func(user *User) error {
		for i, existing := range user.LoginPubKeys {
			if keyEqual(existing, parsed) {
				index = i + 1
				return errors.New("login pubkey already exists")
			}
		}
		user.LoginPubKeys = append(user.LoginPubKeys, normalized)
		index = len(user.LoginPubKeys)
		return nil
	})
	return index, err
}

// ListLoginPubKeys returns the user's authorized keys in storage order.
func (s *Store) ListLoginPubKeys(username schema.UserID) ([]string, error) {
	if err := s.refreshIfNeeded(); err != nil {
		return nil, err
	}
	if err := schema.ValidateUserID(username); err != nil {
		return nil, err
	}
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %s not found", username)
	}
	return append([]string{}, user.LoginPubKeys...), nil
}

// RemoveLoginPubKey removes the authorized key at the 1-based index.
func (s *Store) RemoveLoginPubKey(username schema.UserID, index int) error {
	if index <= 0 {
		return errors.New("login pubkey id must be positive")
	}
	return s.mutate(username, "pubkey removed", func(user *User) error {
		if index > len(user.LoginPubKeys) {
			return errors.New("login pubkey id out of range")
		}
		user.LoginPubKeys = append(user.LoginPubKeys[:index-1], user.LoginPubKeys[index:]...)
		return nil
	})
}

// HasLoginPubKey reports whether the key is authorized for the user.
func (s *Store) HasLoginPubKey(username schema.UserID, key ssh.PublicKey) (bool, error) {
	if err := s.refreshIfNeeded(); err != nil {
		return false, err
	}
	if err := schema.ValidateUserID(username); err != nil {
		return false, err
	}
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	for _, raw := range user.LoginPubKeys {
		if keyEqual(raw, key) {
			return true, nil
		}
	}
	return false, nil
}

func normalizeLoginPubKey(raw string) (string, ssh.PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil, errors.New("pubkey is required")
	}
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(trimmed))
	if err != nil {
		return "", nil, errors.New("invalid pubkey")
	}
	return trimmed, key, nil
}

func keyEqual(raw string, key ssh.PublicKey) bool {
	parsed, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(raw)))
	if err != nil {
		return false
	}
	return bytes.Equal(parsed.Marshal(), key.Marshal())
}
