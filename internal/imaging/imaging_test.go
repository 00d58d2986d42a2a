package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/clipgrep/clipgrep/internal/errors"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func TestReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	data := writePNG(t, path, 4, 3, color.RGBA{R: 255, A: 255})

	img, err := ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, path, img.Path)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.Equal(t, data, img.Data)
}

func TestReadImageRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.png")
	require.NoError(t, os.WriteFile(path, []byte("this is not an image"), 0o644))

	_, err := ReadImage(path)
	assert.Error(t, err)
}

func TestReadImageMissingFile(t *testing.T) {
	_, err := ReadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	a := Hash([]byte("hello"))
	b := Hash([]byte("hello"))
	c := Hash([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestHashFileMatchesHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	data := writePNG(t, path, 2, 2, color.RGBA{G: 255, A: 255})

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, Hash(data), got)
}

func TestHashFileUnreadableIsPerFileWarning(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Equal(t, clierrors.ErrCodeFileHash, clierrors.GetCode(err))
	assert.False(t, clierrors.IsFatal(err))
}
