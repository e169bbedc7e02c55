package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/osvaldoandrade/nftminter/pkg/domain"
)

// ArtifactStore keeps generated images and their metadata side by side: the same stem names
// <imagesDir>/<stem><ext> and <metadataDir>/<stem>.json.
type ArtifactStore interface {
	// SaveImage writes data under a stem derived from stem that no other image or metadata file
	// uses, and returns the stored path.
	SaveImage(ctx context.Context, stem string, mimeType string, data []byte) (string, error)
	// SaveMetadata writes (or replaces) <metadataDir>/<stem>.json.
	SaveMetadata(ctx context.Context, stem string, metadata domain.NFTMetadata) (string, error)
	ImagePath(filename string) (string, error)
	MetadataPath(filename string) (string, error)
}

type localArtifactStore struct {
	imagesDir   string
	metadataDir string
}

func NewLocalArtifactStore(imagesDir, metadataDir string) (ArtifactStore, error) {
	for _, dir := range []string{imagesDir, metadataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("artifact dir %s: %w", dir, err)
		}
	}
	return &localArtifactStore{imagesDir: imagesDir, metadataDir: metadataDir}, nil
}

var preferredExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ExtensionForMIME maps a MIME type to a file extension, falling back to .png.
func ExtensionForMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if ext, ok := preferredExtensions[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}

func (s *localArtifactStore) SaveImage(ctx context.Context, stem string, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := ExtensionForMIME(mimeType)
	tmp, err := writeTemp(s.imagesDir, data)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	for i := 0; i < 100; i++ {
		name := stem
		if i > 0 {
			name = fmt.Sprintf("%s_%d", stem, i)
		}
		claimed, err := s.claimStem(name)
		if err != nil {
			return "", err
		}
		if !claimed {
			continue
		}
		dst := filepath.Join(s.imagesDir, name+ext)
		// os.Link refuses to overwrite an image left without metadata
		err = os.Link(tmp, dst)
		if err == nil {
			return dst, nil
		}
		_ = os.Remove(filepath.Join(s.metadataDir, name+".json"))
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free image name for stem %q", stem)
}

// claimStem reserves name for one image by creating an empty <metadataDir>/<name>.json, which
// SaveMetadata later replaces. A name already used by metadata or by an image of any extension
// is not free.
func (s *localArtifactStore) claimStem(name string) (bool, error) {
	f, err := os.OpenFile(filepath.Join(s.metadataDir, name+".json"), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	images, err := filepath.Glob(filepath.Join(s.imagesDir, globEscape(name)+".*"))
	if err != nil || len(images) > 0 {
		_ = os.Remove(f.Name())
		return false, err
	}
	return true, nil
}

func globEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`).Replace(s)
}

func (s *localArtifactStore) SaveMetadata(ctx context.Context, stem string, metadata domain.NFTMetadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", err
	}
	tmp, err := writeTemp(s.metadataDir, b)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.metadataDir, stem+".json")
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return dst, nil
}

func (s *localArtifactStore) ImagePath(filename string) (string, error) {
	return resolve(s.imagesDir, filename, "image")
}

// MetadataPath accepts the stem with or without the .json suffix.
func (s *localArtifactStore) MetadataPath(filename string) (string, error) {
	if !strings.HasSuffix(filename, ".json") {
		filename += ".json"
	}
	return resolve(s.metadataDir, filename, "metadata")
}

func resolve(dir, filename, what string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", domain.NotFoundError("artifacts", what+" not found")
	}
	p := filepath.Join(dir, filename)
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return "", domain.NotFoundError("artifacts", what+" not found")
	}
	return p, nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
