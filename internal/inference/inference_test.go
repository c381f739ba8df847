package inference

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestStubClassifierAlwaysBenign(t *testing.T) {
	stub := NewStubClassifier(0)

	pred, err := stub.Classify(context.Background(), Input{Data: []byte("anything")})
	require.NoError(t, err)
	assert.Equal(t, LabelBenign, pred.Label)
	assert.InDelta(t, 0.98, pred.Confidence, 1e-6)
	assert.Equal(t, StubModelVersion, pred.ModelVersion)

	pred, err = stub.ClassifyFeatures(context.Background(), "user", Features{})
	require.NoError(t, err)
	assert.Equal(t, LabelBenign, pred.Label)
}

func TestStubClassifierHonoursCancellation(t *testing.T) {
	stub := NewStubClassifier(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := stub.Classify(ctx, Input{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDetectType(t *testing.T) {
	cases := map[string]struct {
		data []byte
		want string
	}{
		"pdf":  {[]byte("%PDF-1.7\n..."), ContentTypePDF},
		"png":  {encodePNG(t, 4, 4), ContentTypePNG},
		"jpeg": {encodeJPEG(t, 4, 4), ContentTypeJPEG},
	}
	for name, tc := range cases {
		got, err := DetectType(tc.data)
		require.NoError(t, err, name)
		assert.Equal(t, tc.want, got, name)
	}

	_, err := DetectType([]byte("GIF89a"))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestTypeForFilename(t *testing.T) {
	for name, want := range map[string]string{
		"scan.PDF":   ContentTypePDF,
		"scan.jpg":   ContentTypeJPEG,
		"scan.JPEG":  ContentTypeJPEG,
		"x/scan.png": ContentTypePNG,
	} {
		got, ok := TypeForFilename(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := TypeForFilename("scan.gif")
	assert.False(t, ok)
}

func TestPreprocessScalesRasterImages(t *testing.T) {
	prepared, err := Preprocess("user-1", "scan.png", encodePNG(t, 640, 480), Limits{MaxWidth: 1000, MaxHeight: 1000})
	require.NoError(t, err)

	assert.Equal(t, ContentTypePNG, prepared.ContentType)
	assert.Equal(t, 640, prepared.Width)
	assert.Equal(t, 480, prepared.Height)
	assert.Equal(t, "user-1", prepared.Model.UserID)
	assert.Equal(t, ContentTypePNG, prepared.Model.ContentType)

	cfg, err := png.DecodeConfig(bytes.NewReader(prepared.Model.Data))
	require.NoError(t, err)
	assert.Equal(t, ModelInputSize, cfg.Width)
	assert.Equal(t, ModelInputSize, cfg.Height)
}

func TestPreprocessPassesPDFThrough(t *testing.T) {
	data := []byte("%PDF-1.4 fake report")
	prepared, err := Preprocess("user-1", "report.pdf", data, Limits{})
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, prepared.Model.ContentType)
	assert.Equal(t, data, prepared.Model.Data)
}

func TestPreprocessRejects(t *testing.T) {
	limits := Limits{MaxWidth: 100, MaxHeight: 100}

	_, err := Preprocess("u", "note.txt", []byte("hello world"), limits)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = Preprocess("u", "scan.pdf", encodePNG(t, 4, 4), limits)
	assert.ErrorIs(t, err, ErrUnsupportedMedia, "extension must match content")

	_, err = Preprocess("u", "scan.png", encodePNG(t, 200, 50), limits)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	truncated := encodePNG(t, 10, 10)[:20]
	_, err = Preprocess("u", "scan.png", truncated, limits)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestFeaturesMapRoundTrip(t *testing.T) {
	f := Features{RadiusMean: 14.2, TextureMean: 19.1, AreaMean: 650, SymmetryMean: 0.18}
	assert.Equal(t, f, FeaturesFromMap(f.AsMap()))
}
