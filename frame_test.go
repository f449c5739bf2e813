package camera

import "testing"

func TestPositionOpposite(t *testing.T) {
	if PositionBack.Opposite() != PositionFront {
		t.Error("back.Opposite() != front")
	}
	if PositionFront.Opposite() != PositionBack {
		t.Error("front.Opposite() != back")
	}
}

func TestBytesPerFrame(t *testing.T) {
	cases := []struct {
		format PixelFormat
		w, h   int
		want   int
	}{
		{PixelFormatNV12, 4, 4, 24},
		{PixelFormatNV12, 1280, 720, 1280 * 720 * 3 / 2},
		{PixelFormatI420, 4, 4, 24},
		{PixelFormatBGRA32, 4, 4, 64},
	}
	for _, tc := range cases {
		if got := tc.format.BytesPerFrame(tc.w, tc.h); got != tc.want {
			t.Errorf("%s %dx%d = %d, want %d", tc.format, tc.w, tc.h, got, tc.want)
		}
	}
}

func TestSampleBufferClone(t *testing.T) {
	orig := &SampleBuffer{
		Media:  MediaVideo,
		Data:   []byte{1, 2, 3},
		Format: PixelFormatNV12,
		Width:  2,
		Height: 1,
		PTS:    42,
	}
	clone := orig.Clone()
	clone.Data[0] = 99
	if orig.Data[0] != 1 {
		t.Error("Clone shares the data buffer")
	}
	if clone.PTS != 42 || clone.Width != 2 {
		t.Error("Clone lost metadata")
	}
}

func TestTextureIDsUnique(t *testing.T) {
	a := NewCPUTexture(nil, 1, 1, PixelFormatNV12)
	b := NewTexture(0x1, 1, 1, PixelFormatNV12)
	if a.ID() == b.ID() {
		t.Error("texture IDs must be unique")
	}
	if a.CPUBacked() {
		t.Error("nil pixels should not report CPU-backed")
	}
	if !NewCPUTexture([]byte{0}, 1, 1, PixelFormatNV12).CPUBacked() {
		t.Error("pixel-carrying texture should report CPU-backed")
	}
}

func TestCPUConverterValidation(t *testing.T) {
	conv := NewCPUTextureConverter()

	if _, err := conv.Convert(&SampleBuffer{Media: MediaVideo, Width: 0, Height: 0}); err == nil {
		t.Error("expected error for zero dimensions")
	}
	if _, err := conv.Convert(&SampleBuffer{
		Media: MediaVideo, Format: PixelFormatNV12, Width: 4, Height: 4,
		Data: []byte{1}, // too short
	}); err == nil {
		t.Error("expected error for truncated data")
	}

	buf := videoSample(5)
	tex, err := conv.Convert(buf)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !tex.CPUBacked() || tex.Width != 4 || tex.Height != 4 {
		t.Errorf("texture = %dx%d cpu=%v", tex.Width, tex.Height, tex.CPUBacked())
	}
	// Deep copy: mutating the source must not affect the texture.
	buf.Data[0] = 0xff
	if tex.Pixels()[0] == 0xff {
		t.Error("converter aliased the source buffer")
	}
}
