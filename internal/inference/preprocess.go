package inference

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// Content types accepted for upload.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)

// ModelInputSize is the square edge, in pixels, raster uploads are scaled to.
const ModelInputSize = 224

var magicBytes = map[string][]byte{
	ContentTypePDF:  []byte("%PDF-"),
	ContentTypeJPEG: {0xFF, 0xD8, 0xFF},
	ContentTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
}

var extensionTypes = map[string]string{
	".pdf":  ContentTypePDF,
	".jpg":  ContentTypeJPEG,
	".jpeg": ContentTypeJPEG,
	".png":  ContentTypePNG,
}

// Limits bounds the decoded size of raster uploads.
type Limits struct {
	MaxWidth  int
	MaxHeight int
}

// Prepared is the result of preprocessing an upload.
type Prepared struct {
	// ContentType is the sniffed type of the original upload.
	ContentType string
	// Width and Height are the original raster dimensions; zero for PDFs.
	Width  int
	Height int
	// Model is the payload handed to the classifier.
	Model Input
}

// DetectType identifies the upload from its leading bytes.
func DetectType(data []byte) (string, error) {
	for _, contentType := range []string{ContentTypePDF, ContentTypeJPEG, ContentTypePNG} {
		if bytes.HasPrefix(data, magicBytes[contentType]) {
			return contentType, nil
		}
	}
	return "", ErrUnsupportedMedia
}

// TypeForFilename maps an allowed file extension to its content type.
func TypeForFilename(name string) (string, bool) {
	contentType, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]
	return contentType, ok
}

// Preprocess validates an upload and builds the classifier input. The file
// extension, when present, must agree with the sniffed type. Raster images are
// scaled to ModelInputSize and re-encoded as PNG; PDFs pass through unchanged.
func Preprocess(userID, filename string, data []byte, limits Limits) (*Prepared, error) {
	contentType, err := DetectType(data)
	if err != nil {
		return nil, err
	}
	if filename != "" {
		declared, ok := TypeForFilename(filename)
		if !ok || declared != contentType {
			return nil, ErrUnsupportedMedia
		}
	}

	prepared := &Prepared{ContentType: contentType}
	if contentType == ContentTypePDF {
		prepared.Model = Input{UserID: userID, ContentType: contentType, Data: data}
		return prepared, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if (limits.MaxWidth > 0 && cfg.Width > limits.MaxWidth) || (limits.MaxHeight > 0 && cfg.Height > limits.MaxHeight) {
		return nil, ErrImageTooLarge
	}

	img, err := decode(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	prepared.Width = cfg.Width
	prepared.Height = cfg.Height

	scaled := image.NewRGBA(image.Rect(0, 0, ModelInputSize, ModelInputSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode model input: %w", err)
	}
	prepared.Model = Input{UserID: userID, ContentType: ContentTypePNG, Data: buf.Bytes()}
	return prepared, nil
}

func decode(data []byte, contentType string) (image.Image, error) {
	reader := bytes.NewReader(data)
	switch contentType {
	case ContentTypeJPEG:
		return jpeg.Decode(reader)
	case ContentTypePNG:
		return png.Decode(reader)
	default:
		return nil, fmt.Errorf("unsupported image type: %s", contentType)
	}
}
