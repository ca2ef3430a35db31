package codec

import (
	"path/filepath"
	"strings"

	"pixbatch/models"
)

// sourceExtensions are stripped from upload names before the target
// extension is appended.
var sourceExtensions = map[string]bool{
	".ppm": true, ".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".avif": true, ".gif": true, ".tif": true, ".tiff": true,
}

// OutputFilename derives the archive entry name for an upload.
// "photo.JPG" → "photo.png"; "notes.txt" → "notes.txt.png".
func OutputFilename(original string, format models.Format) string {
	name := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	if ext := filepath.Ext(name); sourceExtensions[strings.ToLower(ext)] && len(ext) < len(name) {
		name = strings.TrimSuffix(name, ext)
	}
	return name + "." + format.Extension()
}
