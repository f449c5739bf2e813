package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Option configures a Camera at construction time.
type Option func(*Camera)

// WithProvider uses p instead of the globally registered session provider.
func WithProvider(p SessionProvider) Option {
	return func(c *Camera) { c.provider = p }
}

// WithConverter uses conv instead of the platform default texture converter.
func WithConverter(conv TextureConverter) Option {
	return func(c *Camera) { c.converter = conv }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Camera) { c.logger = l }
}

// WithOrientation sets the video output orientation. Defaults to portrait.
func WithOrientation(o Orientation) Option {
	return func(c *Camera) { c.orientation = o }
}

// Camera captures live video (and optionally audio) and fans every video
// frame out, as a GPU texture handle, to the registered consumers.
//
// The consumer list, audio sink, pre-transmit hook and benchmark state are
// guarded by a single mutex. The capture callback snapshots that state,
// releases the lock, and performs conversion and delivery outside it, so a
// concurrent position switch or audio attach never interleaves with a
// half-applied configuration and never waits on a slow consumer.
type Camera struct {
	mu sync.Mutex

	consumers     []Consumer
	audioConsumer AudioConsumer
	willTransmit  func(texture *Texture)
	bench         benchmarkStats
	position      Position

	provider    SessionProvider
	session     CaptureSession
	converter   TextureConverter
	video       mediaPath
	videoOutput VideoOutput
	audio       mediaPath
	orientation Orientation

	logger *slog.Logger
}

// New creates a camera capturing at the given preset from the camera at the
// given position. Construction is all-or-nothing: if the device is
// unavailable, the session rejects the input or output, the orientation is
// unsupported, or the converter cannot be set up, New returns an error and
// no partially usable object.
func New(preset Preset, position Position, opts ...Option) (*Camera, error) {
	c := &Camera{
		position:    position,
		orientation: OrientationPortrait,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.provider == nil {
		c.provider = DefaultSessionProvider()
	}
	if c.provider == nil {
		return nil, ErrNoProvider
	}
	if c.converter == nil {
		c.converter = NewCPUTextureConverter()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	session, err := c.provider.NewSession(preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture session: %w", err)
	}
	c.session = session

	device, err := c.provider.DefaultDevice(DeviceVideo, position)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s camera: %w", position, err)
	}
	input, err := c.provider.NewInput(device)
	if err != nil {
		return nil, fmt.Errorf("failed to create video input: %w", err)
	}
	output, err := c.provider.NewVideoOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to create video output: %w", err)
	}
	output.SetSampleCallback(c.handleSample)
	output.SetDroppedCallback(c.handleDroppedSample)

	if err := c.video.attach(session, input, output); err != nil {
		return nil, fmt.Errorf("failed to attach video path: %w", err)
	}
	c.videoOutput = output

	if err := output.SetOrientation(c.orientation); err != nil {
		c.video.detach(session)
		return nil, fmt.Errorf("orientation %s not supported: %w", c.orientation, err)
	}

	return c, nil
}

// Start begins capture. Frames are delivered to the sample callbacks until
// Stop is called.
func (c *Camera) Start() error {
	return c.session.StartRunning()
}

// Stop halts capture. A callback already executing on a delivery goroutine
// runs to completion.
func (c *Camera) Stop() error {
	return c.session.StopRunning()
}

// Close stops capture, detaches the session paths and releases every
// consumer. No delivery happens after Close returns.
func (c *Camera) Close() error {
	err := c.session.StopRunning()

	c.mu.Lock()
	c.video.detach(c.session)
	c.audio.detach(c.session)
	c.audioConsumer = nil
	removed := c.consumers
	c.consumers = nil
	c.mu.Unlock()

	for _, consumer := range removed {
		consumer.SourceDetached(c)
	}
	return err
}

// Position returns the camera position frames are currently stamped with.
func (c *Camera) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// AddConsumer appends consumer to the end of the delivery list and returns
// it for chaining. Duplicate adds are permitted and create two delivery
// entries. The consumer is notified of its new upstream source after the
// lock is released.
func (c *Camera) AddConsumer(consumer Consumer) Consumer {
	c.mu.Lock()
	c.consumers = append(c.consumers, consumer)
	c.mu.Unlock()

	consumer.SourceAttached(c)
	return consumer
}

// InsertConsumer adds consumer at the given position in the delivery list.
// An out-of-range index is a caller error and panics.
func (c *Camera) InsertConsumer(consumer Consumer, at int) Consumer {
	c.insertAt(consumer, at)
	consumer.SourceAttached(c)
	return consumer
}

// insertAt panics on an out-of-range index; the deferred unlock keeps the
// camera usable for callers that recover.
func (c *Camera) insertAt(consumer Consumer, at int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at < 0 || at > len(c.consumers) {
		panic(fmt.Sprintf("camera: insert index %d out of range [0,%d]", at, len(c.consumers)))
	}
	c.consumers = append(c.consumers, nil)
	copy(c.consumers[at+1:], c.consumers[at:])
	c.consumers[at] = consumer
}

// RemoveConsumer removes the first delivery entry whose identity matches
// consumer and tells it to forget this camera. Removing an unregistered
// consumer is a no-op.
func (c *Camera) RemoveConsumer(consumer Consumer) {
	c.mu.Lock()
	idx := -1
	for i, registered := range c.consumers {
		if registered == consumer {
			idx = i
			break
		}
	}
	if idx >= 0 {
		c.consumers = append(c.consumers[:idx], c.consumers[idx+1:]...)
	}
	c.mu.Unlock()

	if idx >= 0 {
		consumer.SourceDetached(c)
	}
}

// RemoveAllConsumers atomically clears the delivery list. Detach
// notifications happen after the lock is released, in list order, so a
// consumer may call back into the camera without deadlocking.
func (c *Camera) RemoveAllConsumers() {
	c.mu.Lock()
	removed := c.consumers
	c.consumers = nil
	c.mu.Unlock()

	for _, consumer := range removed {
		consumer.SourceDetached(c)
	}
}

// Consumers returns a snapshot copy of the delivery list, safe to iterate
// without further synchronization.
func (c *Camera) Consumers() []Consumer {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]Consumer, len(c.consumers))
	copy(snapshot, c.consumers)
	return snapshot
}

// AudioConsumer returns the registered audio sink, or nil.
func (c *Camera) AudioConsumer() AudioConsumer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioConsumer
}

// SetAudioConsumer registers consumer as the single audio sink and attaches
// audio capture; passing nil detaches it. Both directions are idempotent.
// The attach/detach is a bracketed configuration transaction under the
// registry lock: on failure the session and the sink are left exactly as
// before the call, and the error is returned for retry.
func (c *Camera) SetAudioConsumer(consumer AudioConsumer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if consumer == nil {
		c.audioConsumer = nil
		c.audio.detach(c.session)
		return nil
	}

	previous := c.audioConsumer
	c.audioConsumer = consumer
	if err := c.attachAudioLocked(); err != nil {
		c.audioConsumer = previous
		c.logger.Error("audio attach failed", "error", err)
		return err
	}
	return nil
}

// attachAudioLocked acquires the default microphone and attaches the audio
// path. Callers hold c.mu.
func (c *Camera) attachAudioLocked() error {
	if c.audio.attached() {
		return nil
	}

	device, err := c.provider.DefaultDevice(DeviceAudio, c.position)
	if err != nil {
		return fmt.Errorf("failed to acquire microphone: %w", err)
	}
	input, err := c.provider.NewInput(device)
	if err != nil {
		return fmt.Errorf("failed to create audio input: %w", err)
	}
	output, err := c.provider.NewAudioOutput()
	if err != nil {
		return fmt.Errorf("failed to create audio output: %w", err)
	}
	output.SetSampleCallback(c.handleSample)

	return c.audio.attach(c.session, input, output)
}

// WillTransmit returns the pre-transmit hook, or nil.
func (c *Camera) WillTransmit() func(texture *Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.willTransmit
}

// SetWillTransmit installs a hook invoked with each frame's texture
// immediately before fan-out, for side-channel inspection. The hook is
// snapshotted together with the consumer list, so the invoked instance is
// always consistent with the frame being delivered.
func (c *Camera) SetWillTransmit(fn func(texture *Texture)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.willTransmit = fn
}

// BenchmarkEnabled reports whether per-frame timing is being collected.
func (c *Camera) BenchmarkEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bench.enabled
}

// SetBenchmarkEnabled toggles per-frame timing. Toggling does not reset the
// accumulated counters.
func (c *Camera) SetBenchmarkEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bench.enabled = enabled
}

// ResetBenchmark zeroes the benchmark counters without touching the enabled
// flag.
func (c *Camera) ResetBenchmark() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bench.reset()
}

// AverageFrameDuration returns the mean processing duration per frame over
// the frames recorded past the warm-up window, or 0 if none yet.
func (c *Camera) AverageFrameDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bench.average()
}

// SwitchPosition switches to the opposite camera as one configuration
// transaction. On any acquisition or attachment failure the previous input
// is restored and false is returned; the session stays deliverable with its
// prior device. The lock is held for the whole transaction so no frame is
// ever stamped with a position that does not match the active device.
func (c *Camera) SwitchPosition() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.position.Opposite()
	session := c.session
	oldInput := c.video.input

	session.BeginConfiguration()
	session.RemoveInput(oldInput)

	device, err := c.provider.DefaultDevice(DeviceVideo, target)
	var input CaptureInput
	if err == nil {
		input, err = c.provider.NewInput(device)
	}
	if err == nil && !session.CanAddInput(input) {
		err = errors.New("session rejected input")
	}
	if err != nil {
		session.AddInput(oldInput)
		session.CommitConfiguration()
		c.logger.Error("camera position switch failed",
			"from", c.position, "to", target, "error", err)
		return false
	}

	session.AddInput(input)
	c.video.input = input
	c.position = target
	session.CommitConfiguration()

	// The output connection resets when the input changes.
	if err := c.videoOutput.SetOrientation(c.orientation); err != nil {
		c.logger.Warn("orientation re-validation failed",
			"orientation", c.orientation, "error", err)
	}
	return true
}

// handleSample is the capture callback, invoked once per delivered sample
// buffer on the session's delivery goroutines.
func (c *Camera) handleSample(buf *SampleBuffer) {
	if buf.Media == MediaAudio {
		c.mu.Lock()
		sink := c.audioConsumer
		c.mu.Unlock()

		// No sink registered: drop silently.
		if sink != nil {
			sink.NewAudioSampleAvailable(buf)
		}
		return
	}

	// Snapshot registry state, then work outside the lock.
	c.mu.Lock()
	consumers := make([]Consumer, len(c.consumers))
	copy(consumers, c.consumers)
	hook := c.willTransmit
	position := c.position
	benchmarking := c.bench.enabled
	var start time.Time
	if benchmarking {
		start = time.Now()
	}
	c.mu.Unlock()

	// Conversion is not free; do not pay for it on unsubscribed frames.
	if len(consumers) == 0 {
		return
	}

	texture, err := c.converter.Convert(buf)
	if err != nil {
		// Frames may legitimately be unconvertible transiently.
		return
	}

	if hook != nil {
		hook(texture)
	}

	frame := TextureFrame{Texture: texture, PTS: buf.PTS, Position: position}
	for _, consumer := range consumers {
		consumer.NewTextureAvailable(frame, c)
	}

	if benchmarking {
		elapsed := time.Since(start)
		c.mu.Lock()
		c.bench.record(elapsed)
		c.mu.Unlock()
	}
}

// handleDroppedSample logs hardware-level frame drops. Routine under load;
// never an error.
func (c *Camera) handleDroppedSample(buf *SampleBuffer) {
	c.logger.Debug("capture dropped a frame", "pts", buf.PTS)
}
