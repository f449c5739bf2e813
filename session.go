package camera

import (
	"errors"
	"sync"
)

// ErrNoProvider is returned by New when no session provider is registered
// and none was supplied as an option.
var ErrNoProvider = errors.New("no session provider registered")

// ErrNoDevice indicates no capture device is available for the requested
// kind and position.
var ErrNoDevice = errors.New("no capture device available")

// DeviceKind represents the type of capture device.
type DeviceKind int

const (
	DeviceVideo DeviceKind = iota // Camera
	DeviceAudio                   // Microphone
)

func (k DeviceKind) String() string {
	switch k {
	case DeviceVideo:
		return "video"
	case DeviceAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Preset selects the capture session quality.
type Preset int

const (
	PresetHigh   Preset = iota // Highest quality the device supports
	PresetMedium               // Suitable for streaming
	PresetLow                  // Lowest bandwidth
	Preset1280x720
	Preset1920x1080
)

func (p Preset) String() string {
	switch p {
	case PresetHigh:
		return "high"
	case PresetMedium:
		return "medium"
	case PresetLow:
		return "low"
	case Preset1280x720:
		return "1280x720"
	case Preset1920x1080:
		return "1920x1080"
	default:
		return "unknown"
	}
}

// CaptureDevice is a handle to a physical capture device.
type CaptureDevice interface {
	ID() string
	Label() string
	Position() Position
}

// CaptureInput feeds one device into a capture session.
type CaptureInput interface {
	Device() CaptureDevice
}

// CaptureOutput receives samples from a capture session.
type CaptureOutput interface {
	Media() MediaType
}

// VideoOutput is a CaptureOutput delivering video sample buffers on a
// dedicated serial delivery goroutine.
type VideoOutput interface {
	CaptureOutput

	// SetSampleCallback sets the per-frame delivery callback.
	SetSampleCallback(fn func(*SampleBuffer))

	// SetDroppedCallback sets the callback for frames the hardware dropped
	// under load. Dropped frames carry no data worth processing.
	SetDroppedCallback(fn func(*SampleBuffer))

	// SetOrientation configures the output connection orientation. It must
	// be re-validated after the session input changes.
	SetOrientation(o Orientation) error
}

// AudioOutput is a CaptureOutput delivering PCM sample buffers on its own
// serial delivery goroutine, independent of video delivery.
type AudioOutput interface {
	CaptureOutput

	SetSampleCallback(fn func(*SampleBuffer))
}

// CaptureSession is the platform capture session collaborator. All
// structural changes must be bracketed by BeginConfiguration and
// CommitConfiguration so concurrent observers never see a half-applied
// configuration.
type CaptureSession interface {
	BeginConfiguration()
	CommitConfiguration()

	CanAddInput(in CaptureInput) bool
	AddInput(in CaptureInput)
	RemoveInput(in CaptureInput)

	CanAddOutput(out CaptureOutput) bool
	AddOutput(out CaptureOutput)
	RemoveOutput(out CaptureOutput)

	StartRunning() error
	StopRunning() error
}

// SessionProvider creates capture sessions and device handles for one
// platform backend.
type SessionProvider interface {
	// NewSession creates a capture session for the given preset.
	NewSession(preset Preset) (CaptureSession, error)

	// DefaultDevice returns the default device of the given kind. Position
	// is only meaningful for video devices.
	DefaultDevice(kind DeviceKind, position Position) (CaptureDevice, error)

	// NewInput wraps a device as a session input.
	NewInput(device CaptureDevice) (CaptureInput, error)

	// NewVideoOutput creates a video sample output.
	NewVideoOutput() (VideoOutput, error)

	// NewAudioOutput creates an audio sample output.
	NewAudioOutput() (AudioOutput, error)
}

// providerRegistry holds the registered platform provider.
type providerRegistry struct {
	provider SessionProvider
	mu       sync.RWMutex
}

var globalProviderRegistry = &providerRegistry{}

// RegisterSessionProvider registers the platform session provider used by
// New when no explicit provider option is given.
func RegisterSessionProvider(p SessionProvider) {
	globalProviderRegistry.mu.Lock()
	defer globalProviderRegistry.mu.Unlock()
	globalProviderRegistry.provider = p
}

// DefaultSessionProvider returns the registered session provider, or nil.
func DefaultSessionProvider() SessionProvider {
	globalProviderRegistry.mu.RLock()
	defer globalProviderRegistry.mu.RUnlock()
	return globalProviderRegistry.provider
}

// mediaPath is one attached device/output pair inside a session. A path is
// either fully attached or fully detached; attach and detach are
// all-or-nothing configuration transactions, so the session is never
// observed with exactly one of {input, output} present.
type mediaPath struct {
	input  CaptureInput
	output CaptureOutput
}

func (p *mediaPath) attached() bool {
	return p.input != nil && p.output != nil
}

// attach adds the input/output pair inside a configuration bracket. If the
// output cannot be added after the input was, the input is rolled back and
// the session is left exactly as before.
func (p *mediaPath) attach(s CaptureSession, in CaptureInput, out CaptureOutput) error {
	if p.attached() {
		return nil
	}

	s.BeginConfiguration()
	defer s.CommitConfiguration()

	if !s.CanAddInput(in) {
		return errors.New("session rejected input")
	}
	s.AddInput(in)

	if !s.CanAddOutput(out) {
		s.RemoveInput(in)
		return errors.New("session rejected output")
	}
	s.AddOutput(out)

	p.input = in
	p.output = out
	return nil
}

// detach removes the pair inside a configuration bracket. Detaching a
// detached path is a no-op.
func (p *mediaPath) detach(s CaptureSession) {
	if !p.attached() {
		return
	}

	s.BeginConfiguration()
	s.RemoveOutput(p.output)
	s.RemoveInput(p.input)
	s.CommitConfiguration()

	p.input = nil
	p.output = nil
}
