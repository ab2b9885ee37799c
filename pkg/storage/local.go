package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnsupportedType indicates the uploaded file is not an accepted image.
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// Local implements the FileUploader interface by writing into a folder
// served statically by the API.
type Local struct {
	dir    string
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewLocal constructs a local disk uploader. dir is the on-disk folder,
// prefix the public path prepended to returned locations.
func NewLocal(dir, prefix string, logger zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload folder: %w", err)
	}
	return &Local{
		dir:    dir,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger.With().Str("component", "local_storage").Logger(),
		now:    time.Now,
	}, nil
}

// Upload stores the file under a collision-free name and returns its public
// location. Both the extension and the sniffed content type must look like
// an image.
func (l *Local) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedType
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]

	if !strings.HasPrefix(mimetype.Detect(head).String(), "image/") {
		return "", ErrUnsupportedType
	}

	filename := fmt.Sprintf("%s_%s%s", l.now().UTC().Format("20060102150405"), uuid.NewString(), ext)
	target := filepath.Join(l.dir, filename)

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.MultiReader(bytes.NewReader(head), reader)); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("write file: %w", err)
	}

	location := l.prefix + "/" + filename
	l.logger.Info().Str("location", location).Msg("file stored")
	return location, nil
}
