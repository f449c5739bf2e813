package camera

// Consumer receives texture frames from a Camera. Implementations must be
// identity-comparable (use pointer receivers): removal matches by reference,
// not value equality, and registering the same consumer twice creates two
// delivery entries.
//
// The camera holds a non-owning reference; the surrounding application owns
// the consumer and controls its lifetime. Registration is two-sided: the
// camera notifies the consumer whenever it gains or loses this camera as an
// upstream source so both ends of the graph stay consistent.
type Consumer interface {
	// NewTextureAvailable delivers one frame. It runs synchronously on the
	// video delivery goroutine; a slow consumer delays every consumer after
	// it in the list, but never a concurrent reconfiguration.
	NewTextureAvailable(frame TextureFrame, from *Camera)

	// SourceAttached tells the consumer it now has cam as an upstream source.
	// Called after AddConsumer/InsertConsumer, outside the camera lock.
	SourceAttached(cam *Camera)

	// SourceDetached tells the consumer to forget cam. Called after
	// RemoveConsumer/RemoveAllConsumers, outside the camera lock, so the
	// consumer may safely call back into the camera.
	SourceDetached(cam *Camera)
}

// AudioConsumer is a Consumer that can additionally receive raw audio sample
// buffers. At most one audio consumer is registered at a time; audio samples
// arriving with no sink are dropped silently.
type AudioConsumer interface {
	Consumer

	// NewAudioSampleAvailable delivers one raw PCM buffer verbatim, on the
	// audio delivery goroutine. No timing or texture work is done for audio.
	NewAudioSampleAvailable(sample *SampleBuffer)
}

// ConsumerFunc adapts a function to the Consumer interface for callers that
// only care about frames. Each ConsumerFunc value has its own identity.
type ConsumerFunc struct {
	fn func(frame TextureFrame, from *Camera)
}

// NewConsumerFunc wraps fn as a Consumer.
func NewConsumerFunc(fn func(frame TextureFrame, from *Camera)) *ConsumerFunc {
	return &ConsumerFunc{fn: fn}
}

func (c *ConsumerFunc) NewTextureAvailable(frame TextureFrame, from *Camera) {
	c.fn(frame, from)
}

func (c *ConsumerFunc) SourceAttached(*Camera) {}
func (c *ConsumerFunc) SourceDetached(*Camera) {}
