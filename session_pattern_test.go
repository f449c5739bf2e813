package camera

import (
	"sync"
	"testing"
	"time"
)

func TestPatternSessionDeliversFrames(t *testing.T) {
	prov := NewPatternProvider(PatternConfig{FPS: 60})
	cam, err := New(PresetLow, PositionBack, WithProvider(prov))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer cam.Close()

	frames := make(chan TextureFrame, 16)
	cam.AddConsumer(NewConsumerFunc(func(frame TextureFrame, _ *Camera) {
		select {
		case frames <- frame:
		default:
		}
	}))

	if err := cam.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case frame := <-frames:
		if frame.Texture.Width != 640 || frame.Texture.Height != 480 {
			t.Errorf("frame = %dx%d, want 640x480", frame.Texture.Width, frame.Texture.Height)
		}
		if frame.Position != PositionBack {
			t.Errorf("position = %s, want back", frame.Position)
		}
		if !frame.Texture.CPUBacked() {
			t.Error("pattern frames should be CPU-backed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame within 2s")
	}
}

func TestPatternSessionStopHaltsDelivery(t *testing.T) {
	prov := NewPatternProvider(PatternConfig{FPS: 120})
	cam, err := New(PresetLow, PositionBack, WithProvider(prov))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer cam.Close()

	c := &recordingConsumer{}
	cam.AddConsumer(c)

	if err := cam.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for c.frameCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no frames before Stop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := cam.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// StopRunning waits for the delivery goroutines, so the count is final.
	n := c.frameCount()
	time.Sleep(100 * time.Millisecond)
	if got := c.frameCount(); got != n {
		t.Errorf("frames = %d after Stop, want %d (no late deliveries)", got, n)
	}
}

func TestPatternSessionAudio(t *testing.T) {
	prov := NewPatternProvider(DefaultPatternConfig())
	cam, err := New(PresetLow, PositionBack, WithProvider(prov))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer cam.Close()

	sink := &recordingAudioConsumer{}
	if err := cam.SetAudioConsumer(sink); err != nil {
		t.Fatalf("SetAudioConsumer failed: %v", err)
	}
	if err := cam.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.audioCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no audio within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPatternSessionConcurrentStartStop(t *testing.T) {
	prov := NewPatternProvider(PatternConfig{FPS: 120})
	session, err := prov.NewSession(PresetLow)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				session.StartRunning()
				session.StopRunning()
			}
		}()
	}
	wg.Wait()

	if err := session.StopRunning(); err != nil {
		t.Fatalf("final StopRunning failed: %v", err)
	}
}

func TestPatternSwitchPosition(t *testing.T) {
	prov := NewPatternProvider(DefaultPatternConfig())
	cam, err := New(PresetLow, PositionBack, WithProvider(prov))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer cam.Close()

	if !cam.SwitchPosition() {
		t.Fatal("SwitchPosition failed on pattern provider")
	}
	if cam.Position() != PositionFront {
		t.Errorf("Position = %s, want front", cam.Position())
	}
}

func TestPresetDimensions(t *testing.T) {
	cases := []struct {
		preset Preset
		w, h   int
	}{
		{PresetLow, 640, 480},
		{PresetMedium, 960, 540},
		{PresetHigh, 1280, 720},
		{Preset1280x720, 1280, 720},
		{Preset1920x1080, 1920, 1080},
	}
	for _, tc := range cases {
		w, h := presetDimensions(tc.preset)
		if w != tc.w || h != tc.h {
			t.Errorf("%s = %dx%d, want %dx%d", tc.preset, w, h, tc.w, tc.h)
		}
	}
}

func TestRenderNV12MovingBox(t *testing.T) {
	prov := NewPatternProvider(PatternConfig{Pattern: PatternMovingBox})
	session, err := prov.NewSession(PresetLow)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	s := session.(*patternSession)

	a := make([]byte, PixelFormatNV12.BytesPerFrame(s.width, s.height))
	b := make([]byte, len(a))
	s.renderNV12(a, 0)
	s.renderNV12(b, 10)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("moving box pattern should differ between frames")
	}
}
