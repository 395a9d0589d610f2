package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
)

var errNilTokenSet = errors.New("token set is nil")

var entryKeys = []string{auth.KeyAccessToken, auth.KeyRefreshToken, auth.KeyTokenExpiry}

func encodeEntries(t *auth.TokenSet) ([]byte, error) {
	raw, err := json.MarshalIndent(t.Entries(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode token entries: %w", err)
	}
	return raw, nil
}

func decodeEntries(data []byte) (*auth.TokenSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode token entries: %w", err)
	}
	return auth.TokenSetFromEntries(entries)
}
