package util

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var imageDataURLPrefixes = map[string]string{
	"data:image/jpeg;base64,": "image/jpeg",
	"data:image/png;base64,":  "image/png",
}

// DecodeImageDataURL decodes a base64 data URL into raw image bytes.
// Only JPEG and PNG payloads are accepted; the client composites photos
// to one of those before uploading.
func DecodeImageDataURL(dataURL string) (data []byte, mimeType string, err error) {
	for prefix, mime := range imageDataURLPrefixes {
		if strings.HasPrefix(dataURL, prefix) {
			decoded, err := base64.StdEncoding.DecodeString(dataURL[len(prefix):])
			if err != nil {
				return nil, "", fmt.Errorf("decode image data: %w", err)
			}
			return decoded, mime, nil
		}
	}
	return nil, "", fmt.Errorf("invalid image data format")
}
