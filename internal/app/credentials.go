package app

import (
	"encoding/json"
	"fmt"

	"github.com/replythread/harvester/internal/model"
)

// decodeBundle parses a single JSON-encoded CredentialBundle, as stored
// under the X_COOKIES config key.
func decodeBundle(raw string) (model.CredentialBundle, error) {
	var bundle model.CredentialBundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return model.CredentialBundle{}, fmt.Errorf("decode credential bundle: %w", err)
	}
	return bundle, nil
}

// decodeBundleList parses a JSON array of CredentialBundle, as stored under
// the X_COOKIES_LIST config key.
func decodeBundleList(raw string) ([]model.CredentialBundle, error) {
	var bundles []model.CredentialBundle
	if err := json.Unmarshal([]byte(raw), &bundles); err != nil {
		return nil, fmt.Errorf("decode credential bundle list: %w", err)
	}
	return bundles, nil
}
