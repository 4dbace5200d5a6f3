// Package photostore keeps enrollment photos on local disk or in Cloudinary.
package photostore

import (
	"context"
	"fmt"
)

// Store is implemented by Disk and Cloudinary.
type Store interface {
	// Save stores data and returns a reference to persist on the person.
	Save(ctx context.Context, filename string, data []byte) (string, error)
	// Delete removes ref. Missing photos are not an error.
	Delete(ctx context.Context, ref string) error
	// URL returns where ref can be fetched from.
	URL(ref string) string
}

var (
	_ Store = (*Disk)(nil)
	_ Store = (*Cloudinary)(nil)
)

// Open builds the store named by backend: "disk" (the default) or "cloudinary".
func Open(backend, dir, baseURL, cloudinaryURL, folder string) (Store, error) {
	switch backend {
	case "", "disk":
		d, err := NewDisk(dir, baseURL)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "cloudinary":
		c, err := NewCloudinary(cloudinaryURL, folder)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown photo backend %q", backend)
	}
}
