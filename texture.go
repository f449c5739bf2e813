package camera

import (
	"errors"
	"fmt"
)

// ErrConversionFailed indicates a sample buffer could not be converted to a
// texture. This is routine under camera warm-up or backgrounding; the
// dispatcher drops such frames silently.
var ErrConversionFailed = errors.New("texture conversion failed")

// TextureConverter turns a raw video sample buffer into a GPU texture
// handle. Implementations may fail transiently; a failed conversion drops
// that frame only.
type TextureConverter interface {
	// Convert produces a texture from one video sample buffer.
	Convert(buf *SampleBuffer) (*Texture, error)
}

// cpuTextureConverter is the portable fallback converter: it deep-copies the
// sample data into a CPU-backed texture handle. Software consumers can read
// the pixels; there is no GPU upload.
type cpuTextureConverter struct{}

// NewCPUTextureConverter returns a converter producing CPU-backed textures.
func NewCPUTextureConverter() TextureConverter {
	return cpuTextureConverter{}
}

func (cpuTextureConverter) Convert(buf *SampleBuffer) (*Texture, error) {
	if buf.Width <= 0 || buf.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrConversionFailed, buf.Width, buf.Height)
	}
	want := buf.Format.BytesPerFrame(buf.Width, buf.Height)
	if want == 0 || len(buf.Data) < want {
		return nil, fmt.Errorf("%w: short buffer (%d bytes, want %d)", ErrConversionFailed, len(buf.Data), want)
	}

	// Copy out of the delivery buffer: the texture outlives the callback.
	pixels := make([]byte, want)
	copy(pixels, buf.Data[:want])
	return NewCPUTexture(pixels, buf.Width, buf.Height, buf.Format), nil
}
