package camera

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// videoClockRate is the RTP clock rate for video payloads.
const videoClockRate = 90000

// rtpTimestamp converts a nanosecond PTS to 90 kHz RTP ticks. Split into
// whole seconds and remainder so ptsNs*90000 cannot overflow int64 on long
// captures.
func rtpTimestamp(ptsNs int64) uint32 {
	secs := ptsNs / 1e9
	frac := ptsNs % 1e9
	return uint32(secs*videoClockRate + frac*videoClockRate/1e9)
}

// RTPWriter receives the RTP packets produced by a TrackConsumer.
type RTPWriter interface {
	WriteRTP(packet *rtp.Packet) error
}

// LocalTrack implements webrtc.TrackLocal and RTPWriter: packets written to
// it fan out to every bound peer connection context.
type LocalTrack struct {
	id       string
	streamID string
	rid      string
	codec    webrtc.RTPCodecCapability

	bindMu   sync.RWMutex
	bindings []webrtc.TrackLocalContext
}

// NewLocalTrack creates a LocalTrack for the given codec capability.
func NewLocalTrack(codec webrtc.RTPCodecCapability, id, streamID string) *LocalTrack {
	return &LocalTrack{
		id:       id,
		streamID: streamID,
		codec:    codec,
	}
}

func (t *LocalTrack) ID() string       { return t.id }
func (t *LocalTrack) StreamID() string { return t.streamID }
func (t *LocalTrack) RID() string      { return t.rid }

// Kind implements webrtc.TrackLocal.
func (t *LocalTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }

// Codec returns the codec capability.
func (t *LocalTrack) Codec() webrtc.RTPCodecCapability { return t.codec }

// Bind implements webrtc.TrackLocal.
func (t *LocalTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	t.bindings = append(t.bindings, ctx)

	for _, p := range ctx.CodecParameters() {
		if p.MimeType == t.codec.MimeType {
			return p, nil
		}
	}
	return webrtc.RTPCodecParameters{RTPCodecCapability: t.codec}, nil
}

// Unbind implements webrtc.TrackLocal.
func (t *LocalTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	t.bindMu.Lock()
	defer t.bindMu.Unlock()

	for i, b := range t.bindings {
		if b.ID() == ctx.ID() {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			break
		}
	}
	return nil
}

// WriteRTP writes one packet to all bound contexts.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	t.bindMu.RLock()
	defer t.bindMu.RUnlock()

	for _, b := range t.bindings {
		if _, err := b.WriteStream().WriteRTP(&p.Header, p.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Verify LocalTrack implements webrtc.TrackLocal
var _ webrtc.TrackLocal = (*LocalTrack)(nil)

// TrackConsumerStats counts TrackConsumer activity.
type TrackConsumerStats struct {
	FramesPacketized uint64
	FramesSkipped    uint64 // GPU-only textures with no CPU backing
	PacketsWritten   uint64
	WriteErrors      uint64
}

// TrackConsumer is a Consumer that packetizes each delivered frame into RTP
// packets and writes them to an RTPWriter (typically a LocalTrack).
//
// Only CPU-backed textures can be packetized; GPU-only textures are counted
// and skipped. The payload is raw pixel data fragmented to the MTU; every
// packet of a frame shares the frame's 90 kHz timestamp and the last
// fragment carries the RTP marker bit, so a receiver reassembles by
// timestamp until marker.
type TrackConsumer struct {
	writer      RTPWriter
	ssrc        uint32
	payloadType uint8
	mtu         int

	mu    sync.Mutex
	seq   uint16
	stats TrackConsumerStats
}

// NewTrackConsumer creates an RTP-forwarding consumer. mtu bounds the RTP
// payload size per packet (default 1200 when <= 0).
func NewTrackConsumer(writer RTPWriter, ssrc uint32, payloadType uint8, mtu int) (*TrackConsumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if mtu <= 0 {
		mtu = 1200
	}
	return &TrackConsumer{
		writer:      writer,
		ssrc:        ssrc,
		payloadType: payloadType,
		mtu:         mtu,
	}, nil
}

// NewTextureAvailable implements Consumer.
func (t *TrackConsumer) NewTextureAvailable(frame TextureFrame, from *Camera) {
	pixels := frame.Texture.Pixels()

	t.mu.Lock()
	defer t.mu.Unlock()

	if pixels == nil {
		t.stats.FramesSkipped++
		return
	}

	timestamp := rtpTimestamp(frame.PTS)

	for offset := 0; offset < len(pixels); offset += t.mtu {
		end := offset + t.mtu
		if end > len(pixels) {
			end = len(pixels)
		}

		packet := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         end == len(pixels),
				PayloadType:    t.payloadType,
				SequenceNumber: t.seq,
				Timestamp:      timestamp,
				SSRC:           t.ssrc,
			},
			Payload: pixels[offset:end],
		}
		t.seq++

		if err := t.writer.WriteRTP(packet); err != nil {
			t.stats.WriteErrors++
			continue
		}
		t.stats.PacketsWritten++
	}
	t.stats.FramesPacketized++
}

// SourceAttached implements Consumer.
func (t *TrackConsumer) SourceAttached(*Camera) {}

// SourceDetached implements Consumer.
func (t *TrackConsumer) SourceDetached(*Camera) {}

// Stats returns a snapshot of the consumer's counters.
func (t *TrackConsumer) Stats() TrackConsumerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
