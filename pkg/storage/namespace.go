// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-fuzzyvault.
//
// go-fuzzyvault is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package storage

import (
	"strings"
)

const (
	vaultPrefix = "vaults/"
	vaultSuffix = ".fv"
)

// VaultPath returns the storage path for a vault record with the given ID.
// The path follows the convention: vaults/{id}.fv
func VaultPath(id string) string {
	return vaultPrefix + id + vaultSuffix
}

// ListVaults retrieves all vault IDs from the backend by listing all keys
// with the "vaults/" prefix and stripping prefix and suffix.
// Returns an empty slice if no vaults exist.
func ListVaults(backend Backend) ([]string, error) {
	keys, err := backend.List(vaultPrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, vaultSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, vaultPrefix), vaultSuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
