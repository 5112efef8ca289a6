package fileembed

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var imageMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// LoadImage decodes an image reference: either an absolute file path or a
// base64 data URI. Returns the raw bytes and media type.
func LoadImage(src string) ([]byte, string, error) {
	if strings.HasPrefix(src, "data:") {
		rest, ok := strings.CutPrefix(src, "data:")
		if !ok {
			return nil, "", errors.New("malformed data URI")
		}
		mime, payload, ok := strings.Cut(rest, ";base64,")
		if !ok {
			return nil, "", fmt.Errorf("data URI must be base64-encoded")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data URI: %w", err)
		}
		return data, mime, nil
	}

	if !filepath.IsAbs(src) {
		return nil, "", fmt.Errorf("%w: %s", ErrFilePathNotAbsolute, src)
	}
	mime, ok := imageMIME[strings.ToLower(filepath.Ext(src))]
	if !ok {
		return nil, "", fmt.Errorf("unsupported image type: %s", src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}
