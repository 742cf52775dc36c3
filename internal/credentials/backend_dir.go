package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirBackend reads blobs from files in a single directory, the layout the
// factory tool writes for each device.
type DirBackend struct {
	root  string
	files map[string]string
}

// DirLayout maps blob names to file names inside the directory.
// Zero fields fall back to the factory defaults.
type DirLayout struct {
	Metadata          string
	CACertificate     string
	DeviceCertificate string
	PrivateKey        string
}

// NewDirBackend creates a backend rooted at dir.
func NewDirBackend(dir string, layout DirLayout) *DirBackend {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}

	return &DirBackend{
		root: dir,
		files: map[string]string{
			BlobMetadata:          pick(layout.Metadata, "metadata.json"),
			BlobCACertificate:     pick(layout.CACertificate, "AmazonRootCA1.pem"),
			BlobDeviceCertificate: pick(layout.DeviceCertificate, "certificate.pem"),
			BlobPrivateKey:        pick(layout.PrivateKey, "private.key"),
		},
	}
}

// Mount verifies the directory exists.
func (b *DirBackend) Mount(_ context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", b.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.root)
	}
	return nil
}

// ReadBlob returns the file contents for name, or nil if the file is absent.
func (b *DirBackend) ReadBlob(_ context.Context, name string) ([]byte, error) {
	file, ok := b.files[name]
	if !ok {
		return nil, fmt.Errorf("unknown blob %q", name)
	}

	data, err := os.ReadFile(filepath.Join(b.root, file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
