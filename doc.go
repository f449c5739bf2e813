// Package camera captures live video (and optionally audio) from a hardware
// camera and republishes every video frame, wrapped as a GPU texture handle
// with timing metadata, to a dynamically managed set of downstream consumers.
//
// Key pieces include:
//   - Camera: the thread-safe capture/fan-out pipeline (add/insert/remove
//     consumers, audio sink, pre-transmit hook, benchmark instrumentation)
//   - Consumer/AudioConsumer: downstream capability contracts
//   - CaptureSession/SessionProvider: the platform capture collaborator
//   - TextureConverter: raw sample buffer -> GPU texture handle
//   - PatternProvider: synthetic capture session for tests and demos
//   - TrackConsumer/LocalTrack: RTP/WebRTC forwarding of delivered frames
//
// # Architecture
//
//	CaptureSession -> Camera.handleSample -> TextureConverter -> consumers
//	                                      -> AudioConsumer (raw, verbatim)
//
// Frame delivery is synchronous and in registration order. All shared
// registry state lives behind a single mutex; the dispatcher snapshots that
// state, releases the lock, and only then converts and fans out, so device
// reconfiguration (position switch, audio attach/detach) never blocks on a
// slow consumer and never tears an in-flight delivery.
//
// # Native Libraries
//
// On darwin the default provider loads libcamera_avfoundation.dylib via
// purego (CGO_ENABLED=0). Set CAMERA_AV_LIB_PATH to the directory containing
// the helper library. Build with the nodevices tag to disable native capture
// entirely; PatternProvider works on every platform.
package camera
