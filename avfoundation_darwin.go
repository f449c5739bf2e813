//go:build darwin && !nodevices

package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// The darwin backend loads libcamera_avfoundation.dylib, a thin C wrapper
// around AVCaptureSession and CVMetalTextureCache, and drives it through
// purego so the package builds with CGO_ENABLED=0.

var (
	avfOnce    sync.Once
	avfHandle  uintptr
	avfInitErr error
	avfLoaded  bool
)

// libcamera_avfoundation function pointers
var (
	camAVSessionCreate        func(preset int32) uint64
	camAVSessionDestroy       func(session uint64)
	camAVSessionBeginConfig   func(session uint64)
	camAVSessionCommitConfig  func(session uint64)
	camAVSessionCanAddInput   func(session uint64, deviceID string) int32
	camAVSessionAddInput      func(session uint64, deviceID string) uint64
	camAVSessionRemoveInput   func(session uint64, input uint64)
	camAVSessionCanAddOutput  func(session uint64, media int32) int32
	camAVSessionAddOutput     func(session uint64, media int32, sampleCb, droppedCb, userData uintptr) uint64
	camAVSessionRemoveOutput  func(session uint64, output uint64)
	camAVSessionStart         func(session uint64) int32
	camAVSessionStop          func(session uint64) int32
	camAVDefaultDeviceID      func(kind, position int32) uintptr
	camAVDefaultDeviceLabel   func(kind, position int32) uintptr
	camAVFreeString           func(ptr uintptr)
	camAVOutputSetOrientation func(output uint64, orientation int32) int32
	camAVTextureCacheCreate   func() uint64
	camAVTextureCacheDestroy  func(cache uint64)
	camAVTextureFromBuffer    func(cache uint64, baseAddr uintptr, length, width, height, format int32) uintptr
	camAVGetError             func() uintptr
)

func initAVFoundation() {
	avfOnce.Do(func() {
		libName := "libcamera_avfoundation.dylib"
		searchPaths := []string{
			os.Getenv("CAMERA_AV_LIB_PATH"),
		}
		if exe, err := os.Executable(); err == nil {
			searchPaths = append(searchPaths, filepath.Dir(exe))
		}
		searchPaths = append(searchPaths,
			"build",
			"../build",
			"/usr/local/lib",
		)

		var libPath string
		for _, p := range searchPaths {
			if p == "" {
				continue
			}
			candidate := filepath.Join(p, libName)
			if _, err := os.Stat(candidate); err == nil {
				libPath = candidate
				break
			}
		}

		if libPath == "" {
			avfInitErr = fmt.Errorf("%s not found", libName)
			return
		}

		var err error
		avfHandle, err = purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			avfInitErr = fmt.Errorf("failed to load %s: %w", libPath, err)
			return
		}

		purego.RegisterLibFunc(&camAVSessionCreate, avfHandle, "cam_av_session_create")
		purego.RegisterLibFunc(&camAVSessionDestroy, avfHandle, "cam_av_session_destroy")
		purego.RegisterLibFunc(&camAVSessionBeginConfig, avfHandle, "cam_av_session_begin_config")
		purego.RegisterLibFunc(&camAVSessionCommitConfig, avfHandle, "cam_av_session_commit_config")
		purego.RegisterLibFunc(&camAVSessionCanAddInput, avfHandle, "cam_av_session_can_add_input")
		purego.RegisterLibFunc(&camAVSessionAddInput, avfHandle, "cam_av_session_add_input")
		purego.RegisterLibFunc(&camAVSessionRemoveInput, avfHandle, "cam_av_session_remove_input")
		purego.RegisterLibFunc(&camAVSessionCanAddOutput, avfHandle, "cam_av_session_can_add_output")
		purego.RegisterLibFunc(&camAVSessionAddOutput, avfHandle, "cam_av_session_add_output")
		purego.RegisterLibFunc(&camAVSessionRemoveOutput, avfHandle, "cam_av_session_remove_output")
		purego.RegisterLibFunc(&camAVSessionStart, avfHandle, "cam_av_session_start")
		purego.RegisterLibFunc(&camAVSessionStop, avfHandle, "cam_av_session_stop")
		purego.RegisterLibFunc(&camAVDefaultDeviceID, avfHandle, "cam_av_default_device_id")
		purego.RegisterLibFunc(&camAVDefaultDeviceLabel, avfHandle, "cam_av_default_device_label")
		purego.RegisterLibFunc(&camAVFreeString, avfHandle, "cam_av_free_string")
		purego.RegisterLibFunc(&camAVOutputSetOrientation, avfHandle, "cam_av_output_set_orientation")
		purego.RegisterLibFunc(&camAVTextureCacheCreate, avfHandle, "cam_av_texture_cache_create")
		purego.RegisterLibFunc(&camAVTextureCacheDestroy, avfHandle, "cam_av_texture_cache_destroy")
		purego.RegisterLibFunc(&camAVTextureFromBuffer, avfHandle, "cam_av_texture_from_buffer")
		purego.RegisterLibFunc(&camAVGetError, avfHandle, "cam_av_get_error")

		avfLoaded = true
	})
}

// IsAVFoundationAvailable returns true if the native helper library was
// found and loaded.
func IsAVFoundationAvailable() bool {
	initAVFoundation()
	return avfLoaded
}

func avLastError() error {
	errMsg := "unknown error"
	if camAVGetError != nil {
		if ptr := camAVGetError(); ptr != 0 {
			errMsg = goStringFromPtr(ptr)
		}
	}
	return fmt.Errorf("avfoundation: %s", errMsg)
}

// goStringFromPtr converts a C string pointer to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for {
		if *(*byte)(unsafe.Pointer(uintptr(p) + uintptr(length))) == 0 {
			break
		}
		length++
		if length > 1024 { // Safety limit
			break
		}
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// Global callback state for purego. The C side hands back the opaque
// userData we registered; the map resolves it to the owning output.
var (
	avOutputsMu       sync.RWMutex
	avVideoOutputs    = make(map[uintptr]*avVideoOutput)
	avAudioOutputs    = make(map[uintptr]*avAudioOutput)
	avOutputCounter   uintptr
	avVideoSampleCb   uintptr
	avVideoDroppedCb  uintptr
	avAudioSampleCb   uintptr
	avCallbackOnce    sync.Once
)

func initAVCallbacks() {
	avCallbackOnce.Do(func() {
		avVideoSampleCb = purego.NewCallback(avVideoSampleHandler)
		avVideoDroppedCb = purego.NewCallback(avVideoDroppedHandler)
		avAudioSampleCb = purego.NewCallback(avAudioSampleHandler)
	})
}

func avVideoSampleHandler(baseAddr uintptr, length, width, height, format int32, ptsNs int64, userData uintptr) {
	avOutputsMu.RLock()
	out, ok := avVideoOutputs[userData]
	avOutputsMu.RUnlock()
	if !ok || out == nil {
		return
	}
	out.handleSample(baseAddr, length, width, height, format, ptsNs)
}

func avVideoDroppedHandler(ptsNs int64, userData uintptr) {
	avOutputsMu.RLock()
	out, ok := avVideoOutputs[userData]
	avOutputsMu.RUnlock()
	if !ok || out == nil {
		return
	}
	out.handleDropped(ptsNs)
}

func avAudioSampleHandler(baseAddr uintptr, length, sampleRate, channels int32, ptsNs int64, userData uintptr) {
	avOutputsMu.RLock()
	out, ok := avAudioOutputs[userData]
	avOutputsMu.RUnlock()
	if !ok || out == nil {
		return
	}
	out.handleSample(baseAddr, length, sampleRate, channels, ptsNs)
}

// AVFoundationProvider implements SessionProvider on top of AVFoundation.
type AVFoundationProvider struct{}

// NewAVFoundationProvider creates the darwin session provider. It returns an
// error if the native helper library cannot be loaded.
func NewAVFoundationProvider() (*AVFoundationProvider, error) {
	initAVFoundation()
	if !avfLoaded {
		return nil, fmt.Errorf("AVFoundation not available: %w", avfInitErr)
	}
	initAVCallbacks()
	return &AVFoundationProvider{}, nil
}

// NewSession implements SessionProvider.
func (p *AVFoundationProvider) NewSession(preset Preset) (CaptureSession, error) {
	handle := camAVSessionCreate(int32(preset))
	if handle == 0 {
		return nil, avLastError()
	}
	return &avSession{handle: handle}, nil
}

// DefaultDevice implements SessionProvider.
func (p *AVFoundationProvider) DefaultDevice(kind DeviceKind, position Position) (CaptureDevice, error) {
	idPtr := camAVDefaultDeviceID(int32(kind), int32(position))
	if idPtr == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoDevice, position, kind)
	}
	id := goStringFromPtr(idPtr)
	camAVFreeString(idPtr)

	label := ""
	if labelPtr := camAVDefaultDeviceLabel(int32(kind), int32(position)); labelPtr != 0 {
		label = goStringFromPtr(labelPtr)
		camAVFreeString(labelPtr)
	}

	return &avDevice{id: id, label: label, kind: kind, position: position}, nil
}

// NewInput implements SessionProvider.
func (p *AVFoundationProvider) NewInput(device CaptureDevice) (CaptureInput, error) {
	dev, ok := device.(*avDevice)
	if !ok {
		return nil, fmt.Errorf("device %q is not an AVFoundation device", device.ID())
	}
	return &avInput{device: dev}, nil
}

// NewVideoOutput implements SessionProvider.
func (p *AVFoundationProvider) NewVideoOutput() (VideoOutput, error) {
	avOutputsMu.Lock()
	avOutputCounter++
	out := &avVideoOutput{userData: avOutputCounter}
	avVideoOutputs[out.userData] = out
	avOutputsMu.Unlock()
	return out, nil
}

// NewAudioOutput implements SessionProvider.
func (p *AVFoundationProvider) NewAudioOutput() (AudioOutput, error) {
	avOutputsMu.Lock()
	avOutputCounter++
	out := &avAudioOutput{userData: avOutputCounter}
	avAudioOutputs[out.userData] = out
	avOutputsMu.Unlock()
	return out, nil
}

type avDevice struct {
	id       string
	label    string
	kind     DeviceKind
	position Position
}

func (d *avDevice) ID() string         { return d.id }
func (d *avDevice) Label() string      { return d.label }
func (d *avDevice) Position() Position { return d.position }

type avInput struct {
	device *avDevice
	handle uint64 // set while attached to a session
}

func (i *avInput) Device() CaptureDevice { return i.device }

type avVideoOutput struct {
	userData uintptr
	handle   uint64

	mu        sync.RWMutex
	onSample  func(*SampleBuffer)
	onDropped func(*SampleBuffer)
}

func (o *avVideoOutput) Media() MediaType { return MediaVideo }

func (o *avVideoOutput) SetSampleCallback(fn func(*SampleBuffer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSample = fn
}

func (o *avVideoOutput) SetDroppedCallback(fn func(*SampleBuffer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onDropped = fn
}

func (o *avVideoOutput) SetOrientation(orientation Orientation) error {
	if o.handle == 0 {
		return nil // validated again once attached
	}
	if camAVOutputSetOrientation(o.handle, int32(orientation)) != 0 {
		return avLastError()
	}
	return nil
}

func (o *avVideoOutput) handleSample(baseAddr uintptr, length, width, height, format int32, ptsNs int64) {
	o.mu.RLock()
	cb := o.onSample
	o.mu.RUnlock()
	if cb == nil {
		return
	}

	// The buffer belongs to the C callback frame; it is only valid for the
	// duration of the delivery, which matches the SampleBuffer contract.
	data := unsafe.Slice((*byte)(unsafe.Pointer(baseAddr)), int(length))
	cb(&SampleBuffer{
		Media:  MediaVideo,
		Data:   data,
		Format: PixelFormat(format),
		Width:  int(width),
		Height: int(height),
		PTS:    ptsNs,
	})
}

func (o *avVideoOutput) handleDropped(ptsNs int64) {
	o.mu.RLock()
	cb := o.onDropped
	o.mu.RUnlock()
	if cb != nil {
		cb(&SampleBuffer{Media: MediaVideo, PTS: ptsNs})
	}
}

type avAudioOutput struct {
	userData uintptr
	handle   uint64

	mu       sync.RWMutex
	onSample func(*SampleBuffer)
}

func (o *avAudioOutput) Media() MediaType { return MediaAudio }

func (o *avAudioOutput) SetSampleCallback(fn func(*SampleBuffer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSample = fn
}

func (o *avAudioOutput) handleSample(baseAddr uintptr, length, sampleRate, channels int32, ptsNs int64) {
	o.mu.RLock()
	cb := o.onSample
	o.mu.RUnlock()
	if cb == nil {
		return
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(baseAddr)), int(length))
	cb(&SampleBuffer{
		Media:      MediaAudio,
		Data:       data,
		SampleRate: int(sampleRate),
		Channels:   int(channels),
		PTS:        ptsNs,
	})
}

type avSession struct {
	handle uint64
}

func (s *avSession) BeginConfiguration()  { camAVSessionBeginConfig(s.handle) }
func (s *avSession) CommitConfiguration() { camAVSessionCommitConfig(s.handle) }

func (s *avSession) CanAddInput(in CaptureInput) bool {
	input, ok := in.(*avInput)
	if !ok {
		return false
	}
	// purego marshals the string to a NUL-terminated buffer that stays
	// alive for the duration of the call.
	return camAVSessionCanAddInput(s.handle, input.device.id) != 0
}

func (s *avSession) AddInput(in CaptureInput) {
	if input, ok := in.(*avInput); ok {
		input.handle = camAVSessionAddInput(s.handle, input.device.id)
	}
}

func (s *avSession) RemoveInput(in CaptureInput) {
	if input, ok := in.(*avInput); ok && input.handle != 0 {
		camAVSessionRemoveInput(s.handle, input.handle)
		input.handle = 0
	}
}

func (s *avSession) CanAddOutput(out CaptureOutput) bool {
	return camAVSessionCanAddOutput(s.handle, int32(out.Media())) != 0
}

func (s *avSession) AddOutput(out CaptureOutput) {
	switch o := out.(type) {
	case *avVideoOutput:
		o.handle = camAVSessionAddOutput(s.handle, int32(MediaVideo), avVideoSampleCb, avVideoDroppedCb, o.userData)
	case *avAudioOutput:
		o.handle = camAVSessionAddOutput(s.handle, int32(MediaAudio), avAudioSampleCb, 0, o.userData)
	}
}

func (s *avSession) RemoveOutput(out CaptureOutput) {
	switch o := out.(type) {
	case *avVideoOutput:
		if o.handle != 0 {
			camAVSessionRemoveOutput(s.handle, o.handle)
			o.handle = 0
		}
	case *avAudioOutput:
		if o.handle != 0 {
			camAVSessionRemoveOutput(s.handle, o.handle)
			o.handle = 0
		}
	}
}

func (s *avSession) StartRunning() error {
	if camAVSessionStart(s.handle) != 0 {
		return avLastError()
	}
	return nil
}

func (s *avSession) StopRunning() error {
	if camAVSessionStop(s.handle) != 0 {
		return avLastError()
	}
	return nil
}

// MetalTextureConverter converts sample buffers into Metal textures through
// a CVMetalTextureCache held by the native helper.
type MetalTextureConverter struct {
	cache uint64
}

// NewMetalTextureConverter creates the converter. Cache creation failure is
// a construction failure, matching the all-or-nothing Camera constructor.
func NewMetalTextureConverter() (*MetalTextureConverter, error) {
	initAVFoundation()
	if !avfLoaded {
		return nil, fmt.Errorf("AVFoundation not available: %w", avfInitErr)
	}
	cache := camAVTextureCacheCreate()
	if cache == 0 {
		return nil, avLastError()
	}
	return &MetalTextureConverter{cache: cache}, nil
}

// Convert implements TextureConverter.
func (c *MetalTextureConverter) Convert(buf *SampleBuffer) (*Texture, error) {
	if len(buf.Data) == 0 || buf.Width <= 0 || buf.Height <= 0 {
		return nil, ErrConversionFailed
	}
	native := camAVTextureFromBuffer(
		c.cache,
		uintptr(unsafe.Pointer(&buf.Data[0])),
		int32(len(buf.Data)),
		int32(buf.Width),
		int32(buf.Height),
		int32(buf.Format),
	)
	if native == 0 {
		return nil, ErrConversionFailed
	}
	return NewTexture(native, buf.Width, buf.Height, buf.Format), nil
}

// Close releases the native texture cache.
func (c *MetalTextureConverter) Close() error {
	if c.cache != 0 {
		camAVTextureCacheDestroy(c.cache)
		c.cache = 0
	}
	return nil
}

func init() {
	// Register the platform provider when the helper library is present, so
	// New works without options on darwin.
	if provider, err := NewAVFoundationProvider(); err == nil {
		RegisterSessionProvider(provider)
	}
}
