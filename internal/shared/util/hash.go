package util

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// Namespaces under which objects for an owner are stored. Owner prefixes are
// disjoint by construction, so no cross-owner locking is needed.
const (
	NamespaceUploads    = "uploads"
	NamespaceProcessed  = "processed"
	NamespaceQuarantine = "quarantine"
	NamespaceConfigs    = "configs"
)

// HashOwnerKey returns a filesystem-safe identifier for an owner ID.
func HashOwnerKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// OwnerPrefix returns "<namespace>/<owner-hash>/".
func OwnerPrefix(namespace, ownerID string) string {
	return path.Join(namespace, HashOwnerKey(ownerID)) + "/"
}

// OwnerKey joins parts below the owner's prefix in a namespace.
func OwnerKey(namespace, ownerID string, parts ...string) string {
	elems := append([]string{namespace, HashOwnerKey(ownerID)}, parts...)
	return path.Join(elems...)
}

// OwnerFromKey reports whether key lives under namespace and returns the
// owner hash segment.
func OwnerFromKey(namespace, key string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimLeft(key, "/"), namespace+"/")
	if !ok {
		return "", false
	}
	hash, _, found := strings.Cut(rest, "/")
	if !found || hash == "" {
		return "", false
	}
	return hash, true
}
