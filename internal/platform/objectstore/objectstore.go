// Package objectstore keeps item artwork. R2 is used in production; Memory serves
// single-process deployments and tests.
package objectstore

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	// Put stores body under key and returns the public URL of the object.
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	// Delete removes the object behind a URL previously returned by Put.
	Delete(ctx context.Context, url string) error
}

// ArtworkKey builds a collision free object key from an item name and the uploaded file name.
func ArtworkKey(itemName, filename string) string {
	name := slug.Make(itemName)
	if name == "" {
		name = "nft"
	}
	ext := strings.ToLower(path.Ext(filename))
	return "nfts/" + name + "-" + uuid.NewString()[:8] + ext
}

func keyFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
