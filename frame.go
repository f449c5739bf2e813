package camera

import "sync/atomic"

// MediaType discriminates raw samples delivered by a capture session.
type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Position identifies which physical camera a frame was captured with.
type Position int

const (
	PositionBack  Position = iota // Rear-facing camera
	PositionFront                 // User-facing camera
)

func (p Position) String() string {
	switch p {
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return "unknown"
	}
}

// Opposite returns the other camera position.
func (p Position) Opposite() Position {
	if p == PositionBack {
		return PositionFront
	}
	return PositionBack
}

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatNV12   PixelFormat = iota // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatI420                      // YUV 4:2:0 planar (Y + U + V)
	PixelFormatBGRA32                    // Packed BGRA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatI420:
		return "I420"
	case PixelFormatBGRA32:
		return "BGRA32"
	default:
		return "Unknown"
	}
}

// BytesPerFrame returns the buffer size needed for a packed frame of the
// given dimensions, or 0 for an unknown format.
func (p PixelFormat) BytesPerFrame(width, height int) int {
	switch p {
	case PixelFormatNV12, PixelFormatI420:
		return width*height + (width/2)*(height/2)*2
	case PixelFormatBGRA32:
		return width * height * 4
	default:
		return 0
	}
}

// Orientation describes the video output connection orientation.
type Orientation int

const (
	OrientationPortrait Orientation = iota
	OrientationPortraitUpsideDown
	OrientationLandscapeLeft
	OrientationLandscapeRight
)

func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portraitUpsideDown"
	case OrientationLandscapeLeft:
		return "landscapeLeft"
	case OrientationLandscapeRight:
		return "landscapeRight"
	default:
		return "unknown"
	}
}

// SampleBuffer is a raw sample delivered by a capture session, either one
// video frame or one chunk of PCM audio. The Data slice may reference native
// memory; it is only valid for the duration of the delivery callback unless
// cloned.
type SampleBuffer struct {
	Media  MediaType
	Data   []byte      // Packed pixel planes (video) or PCM samples (audio)
	Format PixelFormat // Video only
	Width  int         // Video only, pixels
	Height int         // Video only, pixels

	SampleRate int // Audio only
	Channels   int // Audio only

	PTS int64 // Presentation timestamp in nanoseconds
}

// Clone creates a deep copy of the sample buffer. Use this when the data
// must outlive the delivery callback.
func (b *SampleBuffer) Clone() *SampleBuffer {
	clone := *b
	if b.Data != nil {
		clone.Data = make([]byte, len(b.Data))
		copy(clone.Data, b.Data)
	}
	return &clone
}

// Texture is an opaque GPU-resident representation of one video frame.
// On platforms with a native converter the pixel data lives only on the GPU
// and Pixels is nil; the CPU converter keeps a byte-slice backing so that
// software consumers (RTP forwarding, tests) can read it.
//
// A texture is read-only once created and is shared by every consumer in the
// same delivery cycle. Consumers must not retain it past their callback.
type Texture struct {
	id     uint64
	native uintptr
	pixels []byte

	Width  int
	Height int
	Format PixelFormat
}

var textureCounter atomic.Uint64

// NewTexture wraps a native GPU texture handle.
func NewTexture(native uintptr, width, height int, format PixelFormat) *Texture {
	return &Texture{
		id:     textureCounter.Add(1),
		native: native,
		Width:  width,
		Height: height,
		Format: format,
	}
}

// NewCPUTexture wraps CPU-resident pixel data as a texture handle.
func NewCPUTexture(pixels []byte, width, height int, format PixelFormat) *Texture {
	return &Texture{
		id:     textureCounter.Add(1),
		pixels: pixels,
		Width:  width,
		Height: height,
		Format: format,
	}
}

// ID returns the process-unique texture identifier.
func (t *Texture) ID() uint64 { return t.id }

// Native returns the underlying GPU handle, or 0 for CPU-backed textures.
func (t *Texture) Native() uintptr { return t.native }

// Pixels returns the CPU backing, or nil for GPU-only textures.
func (t *Texture) Pixels() []byte { return t.pixels }

// CPUBacked reports whether the pixel data is readable from the CPU.
func (t *Texture) CPUBacked() bool { return t.pixels != nil }

// TextureFrame is the immutable per-delivery value fanned out to consumers:
// a texture handle plus the presentation timestamp and the camera position
// that was active when the frame was captured.
type TextureFrame struct {
	Texture  *Texture
	PTS      int64 // Presentation timestamp in nanoseconds
	Position Position
}
