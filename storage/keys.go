package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// Object key layout: user/<owner>/<uuid><ext>
//
// The opaque uuid suffix makes keys unique per upload, so concurrent
// submissions by the same owner cannot collide.

// BuildKey constructs a fresh object key for an owner's uploaded file.
// Only the original filename's extension is kept.
func BuildKey(ownerID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return "user/" + ownerID + "/" + uuid.New().String() + ext
}

// ParseKey extracts the owner id from an object key.
func ParseKey(key string) (ownerID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "user" || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}
