package camera

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// PatternKind selects the synthetic image the pattern session generates.
type PatternKind int

const (
	PatternColorBars PatternKind = iota // SMPTE-style color bars
	PatternMovingBox                    // Color bars with an animated box
	PatternSolidGray                    // Flat mid-gray
)

func (p PatternKind) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternMovingBox:
		return "MovingBox"
	case PatternSolidGray:
		return "SolidGray"
	default:
		return "Unknown"
	}
}

// PatternConfig configures a PatternProvider.
type PatternConfig struct {
	FPS     int         // Frames per second (default: 30)
	Pattern PatternKind // Image kind (default: ColorBars)

	AudioSampleRate int // PCM sample rate (default: 48000)
	AudioChannels   int // PCM channels (default: 1)
}

// DefaultPatternConfig returns a default pattern configuration.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		FPS:             30,
		Pattern:         PatternColorBars,
		AudioSampleRate: 48000,
		AudioChannels:   1,
	}
}

// PatternProvider is a SessionProvider generating synthetic NV12 frames and
// PCM silence on real delivery goroutines. It exposes a virtual back and
// front camera plus a virtual microphone, and drives the full capture
// pipeline on any platform. Used by tests and examples.
type PatternProvider struct {
	config PatternConfig
}

// NewPatternProvider creates a synthetic capture provider.
func NewPatternProvider(config PatternConfig) *PatternProvider {
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.AudioSampleRate <= 0 {
		config.AudioSampleRate = 48000
	}
	if config.AudioChannels <= 0 {
		config.AudioChannels = 1
	}
	return &PatternProvider{config: config}
}

// NewSession implements SessionProvider.
func (p *PatternProvider) NewSession(preset Preset) (CaptureSession, error) {
	width, height := presetDimensions(preset)
	return &patternSession{
		provider: p,
		width:    width,
		height:   height,
	}, nil
}

// DefaultDevice implements SessionProvider.
func (p *PatternProvider) DefaultDevice(kind DeviceKind, position Position) (CaptureDevice, error) {
	switch kind {
	case DeviceVideo:
		return &patternDevice{
			id:       fmt.Sprintf("pattern-video-%s", position),
			label:    fmt.Sprintf("Pattern Camera (%s)", position),
			kind:     DeviceVideo,
			position: position,
		}, nil
	case DeviceAudio:
		return &patternDevice{
			id:    "pattern-audio",
			label: "Pattern Microphone",
			kind:  DeviceAudio,
		}, nil
	default:
		return nil, ErrNoDevice
	}
}

// NewInput implements SessionProvider.
func (p *PatternProvider) NewInput(device CaptureDevice) (CaptureInput, error) {
	return &patternInput{device: device}, nil
}

// NewVideoOutput implements SessionProvider.
func (p *PatternProvider) NewVideoOutput() (VideoOutput, error) {
	return &patternVideoOutput{}, nil
}

// NewAudioOutput implements SessionProvider.
func (p *PatternProvider) NewAudioOutput() (AudioOutput, error) {
	return &patternAudioOutput{}, nil
}

func presetDimensions(preset Preset) (int, int) {
	switch preset {
	case PresetLow:
		return 640, 480
	case PresetMedium:
		return 960, 540
	case Preset1280x720, PresetHigh:
		return 1280, 720
	case Preset1920x1080:
		return 1920, 1080
	default:
		return 1280, 720
	}
}

type patternDevice struct {
	id       string
	label    string
	kind     DeviceKind
	position Position
}

func (d *patternDevice) ID() string         { return d.id }
func (d *patternDevice) Label() string      { return d.label }
func (d *patternDevice) Position() Position { return d.position }

type patternInput struct {
	device CaptureDevice
}

func (i *patternInput) Device() CaptureDevice { return i.device }

type patternVideoOutput struct {
	mu        sync.RWMutex
	onSample  func(*SampleBuffer)
	onDropped func(*SampleBuffer)
}

func (o *patternVideoOutput) Media() MediaType { return MediaVideo }

func (o *patternVideoOutput) SetSampleCallback(fn func(*SampleBuffer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSample = fn
}

func (o *patternVideoOutput) SetDroppedCallback(fn func(*SampleBuffer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDropped = fn
}

func (o *patternVideoOutput) SetOrientation(Orientation) error { return nil }

func (o *patternVideoOutput) deliver(buf *SampleBuffer) {
	o.mu.RLock()
	cb := o.onSample
	o.mu.RUnlock()
	if cb != nil {
		cb(buf)
	}
}

type patternAudioOutput struct {
	mu       sync.RWMutex
	onSample func(*SampleBuffer)
}

func (o *patternAudioOutput) Media() MediaType { return MediaAudio }

func (o *patternAudioOutput) SetSampleCallback(fn func(*SampleBuffer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSample = fn
}

func (o *patternAudioOutput) deliver(buf *SampleBuffer) {
	o.mu.RLock()
	cb := o.onSample
	o.mu.RUnlock()
	if cb != nil {
		cb(buf)
	}
}

// patternSession generates frames on one goroutine per media type, mirroring
// the serial delivery queues of a hardware session.
type patternSession struct {
	provider *PatternProvider
	width    int
	height   int

	mu          sync.Mutex
	configDepth int
	inputs      []CaptureInput
	outputs     []CaptureOutput

	// runMu serializes StartRunning/StopRunning; s.mu cannot be held across
	// wg.Wait because the delivery loops take it.
	runMu   sync.Mutex
	running atomic.Bool
	cancel  chan struct{}
	wg      sync.WaitGroup
}

func (s *patternSession) BeginConfiguration() {
	s.mu.Lock()
	s.configDepth++
	s.mu.Unlock()
}

func (s *patternSession) CommitConfiguration() {
	s.mu.Lock()
	if s.configDepth > 0 {
		s.configDepth--
	}
	s.mu.Unlock()
}

func (s *patternSession) CanAddInput(in CaptureInput) bool { return in != nil }

func (s *patternSession) AddInput(in CaptureInput) {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
}

func (s *patternSession) RemoveInput(in CaptureInput) {
	s.mu.Lock()
	for i, existing := range s.inputs {
		if existing == in {
			s.inputs = append(s.inputs[:i], s.inputs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

func (s *patternSession) CanAddOutput(out CaptureOutput) bool { return out != nil }

func (s *patternSession) AddOutput(out CaptureOutput) {
	s.mu.Lock()
	s.outputs = append(s.outputs, out)
	s.mu.Unlock()
}

func (s *patternSession) RemoveOutput(out CaptureOutput) {
	s.mu.Lock()
	for i, existing := range s.outputs {
		if existing == out {
			s.outputs = append(s.outputs[:i], s.outputs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

func (s *patternSession) StartRunning() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running.Load() {
		return nil
	}
	s.cancel = make(chan struct{})
	s.running.Store(true)

	s.wg.Add(2)
	go s.videoLoop()
	go s.audioLoop()
	return nil
}

func (s *patternSession) StopRunning() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	close(s.cancel)
	s.wg.Wait()
	return nil
}

func (s *patternSession) videoLoop() {
	defer s.wg.Done()

	interval := time.Second / time.Duration(s.provider.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	frameData := make([]byte, PixelFormatNV12.BytesPerFrame(s.width, s.height))
	var frameIndex uint64

	for {
		select {
		case <-s.cancel:
			return
		case <-ticker.C:
			s.renderNV12(frameData, frameIndex)
			buf := &SampleBuffer{
				Media:  MediaVideo,
				Data:   frameData,
				Format: PixelFormatNV12,
				Width:  s.width,
				Height: s.height,
				PTS:    time.Since(start).Nanoseconds(),
			}
			for _, out := range s.videoOutputs() {
				out.deliver(buf)
			}
			frameIndex++
		}
	}
}

func (s *patternSession) audioLoop() {
	defer s.wg.Done()

	cfg := s.provider.config
	const chunk = 20 * time.Millisecond
	ticker := time.NewTicker(chunk)
	defer ticker.Stop()

	start := time.Now()
	samples := cfg.AudioSampleRate / 50 // 20 ms worth
	pcm := make([]byte, samples*cfg.AudioChannels*2)

	for {
		select {
		case <-s.cancel:
			return
		case <-ticker.C:
			buf := &SampleBuffer{
				Media:      MediaAudio,
				Data:       pcm,
				SampleRate: cfg.AudioSampleRate,
				Channels:   cfg.AudioChannels,
				PTS:        time.Since(start).Nanoseconds(),
			}
			for _, out := range s.audioOutputs() {
				out.deliver(buf)
			}
		}
	}
}

func (s *patternSession) videoOutputs() []*patternVideoOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outs []*patternVideoOutput
	for _, out := range s.outputs {
		if v, ok := out.(*patternVideoOutput); ok {
			outs = append(outs, v)
		}
	}
	return outs
}

func (s *patternSession) audioOutputs() []*patternAudioOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outs []*patternAudioOutput
	for _, out := range s.outputs {
		if a, ok := out.(*patternAudioOutput); ok {
			outs = append(outs, a)
		}
	}
	return outs
}

// Standard color bar YUV values (white, yellow, cyan, green, magenta, red,
// blue, black).
var barY = [8]byte{235, 210, 170, 145, 106, 81, 41, 16}
var barU = [8]byte{128, 16, 166, 54, 202, 90, 240, 128}
var barV = [8]byte{128, 146, 16, 34, 222, 240, 110, 128}

// renderNV12 fills data with the configured pattern.
func (s *patternSession) renderNV12(data []byte, frameIndex uint64) {
	w, h := s.width, s.height
	yPlane := data[:w*h]
	uvPlane := data[w*h:]

	switch s.provider.config.Pattern {
	case PatternSolidGray:
		for i := range yPlane {
			yPlane[i] = 128
		}
		for i := range uvPlane {
			uvPlane[i] = 128
		}
	default:
		barWidth := w / 8
		if barWidth == 0 {
			barWidth = 1
		}
		for y := 0; y < h; y++ {
			row := yPlane[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				bar := x / barWidth
				if bar > 7 {
					bar = 7
				}
				row[x] = barY[bar]
			}
		}
		for y := 0; y < h/2; y++ {
			row := uvPlane[y*w : (y+1)*w]
			for x := 0; x < w/2; x++ {
				bar := (x * 2) / barWidth
				if bar > 7 {
					bar = 7
				}
				row[x*2] = barU[bar]
				row[x*2+1] = barV[bar]
			}
		}
	}

	if s.provider.config.Pattern == PatternMovingBox {
		boxSize := h / 8
		if boxSize == 0 {
			boxSize = 1
		}
		span := w - boxSize
		if span <= 0 {
			span = 1
		}
		boxX := int(frameIndex*4) % span
		boxY := (h - boxSize) / 2
		for y := boxY; y < boxY+boxSize && y < h; y++ {
			for x := boxX; x < boxX+boxSize && x < w; x++ {
				yPlane[y*w+x] = 235
			}
		}
	}
}
