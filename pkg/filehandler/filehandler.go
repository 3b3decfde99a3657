package filehandler

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

/*
File explanation:
This file contains utility functions for image file handling: detecting file formats, decoding
images for analysis and embedding, and encoding stego output.
The DetectFileFormat function detects the format of a file by checking the extension and content.
The LoadImage function checks the format with DetectFileFormat, then decodes any supported raster format.
The SaveImage function encodes an image in a lossless format chosen by the file extension.
*/

// SupportedImageFormats is a map of file extensions to their format names
var SupportedImageFormats = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
	".pgm":  "pgm",
}

// WritableFormats lists the formats SaveImage can produce. Lossy or palette formats would
// destroy embedded bits and are excluded.
var WritableFormats = []string{"png", "bmp", "tiff", "pgm"}

// magic numbers for formats http.DetectContentType does not know
var magic = []struct {
	prefix string
	format string
}{
	{"II*\x00", "tiff"},
	{"MM\x00*", "tiff"},
	{"P5", "pgm"},
	{"P2", "pgm"},
}

// DetectFileFormat detects the format of a file
func DetectFileFormat(filePath string) (string, error) {
	// First check extension
	ext := strings.ToLower(filepath.Ext(filePath))
	if format, ok := SupportedImageFormats[ext]; ok {
		return format, nil
	}

	// If extension not recognized, try to detect by content
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// Read first 512 bytes to detect content type
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	buffer = buffer[:n]

	for _, m := range magic {
		if bytes.HasPrefix(buffer, []byte(m.prefix)) {
			return m.format, nil
		}
	}

	contentType := http.DetectContentType(buffer)

	// Map content types to our formats
	switch {
	case strings.Contains(contentType, "image/png"):
		return "png", nil
	case strings.Contains(contentType, "image/jpeg"):
		return "jpeg", nil
	case strings.Contains(contentType, "image/gif"):
		return "gif", nil
	case strings.Contains(contentType, "image/bmp"):
		return "bmp", nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", contentType)
	}
}

// IsImageFile checks if a file is an image based on extension
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := SupportedImageFormats[ext]
	return ok
}

// IsURL checks if the given string is a URL
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// LoadImage decodes an image file and reports the format name the decoder matched.
// Files whose extension and content match no supported format are rejected before decoding.
func LoadImage(filePath string) (image.Image, string, error) {
	if _, err := DetectFileFormat(filePath); err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s: %w", filePath, err)
	}
	return img, format, nil
}

// SaveImage encodes img in the lossless format named by the file extension
func SaveImage(filePath string, img image.Image) error {
	format := SupportedImageFormats[strings.ToLower(filepath.Ext(filePath))]

	var encode func(io.Writer, image.Image) error
	switch format {
	case "png":
		encode = png.Encode
	case "bmp":
		encode = bmp.Encode
	case "tiff":
		encode = func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) }
	case "pgm":
		encode = EncodePGM
	default:
		return fmt.Errorf("cannot write %q: use one of %s", filepath.Ext(filePath), strings.Join(WritableFormats, ", "))
	}

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return SaveFile(buf.Bytes(), filePath)
}

// IsLossy reports whether a format would disturb pixel-level payloads when re-encoded
func IsLossy(format string) bool {
	return format == "jpeg" || format == "gif"
}
