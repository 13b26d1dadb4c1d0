package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"refract/internal/calib"
	"refract/internal/encoding"
	"refract/internal/frame"
	"refract/internal/recording"
	"refract/internal/runlog"
	"refract/internal/services"
	"refract/internal/sink"
)

type fakeReader struct {
	cameras []recording.CameraStreamDescriptor
	calibs  map[string]calib.LensModel
	frames  map[string][]*frame.Frame
	readErr error
	cursor  map[string]int
}

func (r *fakeReader) Cameras() []recording.CameraStreamDescriptor { return r.cameras }

func (r *fakeReader) Calibration(cameraID string) (calib.LensModel, bool) {
	m, ok := r.calibs[cameraID]
	return m, ok
}

func (r *fakeReader) NextFrame(cameraID string) (*frame.Frame, error) {
	if r.cursor == nil {
		r.cursor = make(map[string]int)
	}
	i := r.cursor[cameraID]
	queue := r.frames[cameraID]
	if i >= len(queue) {
		if r.readErr != nil {
			return nil, r.readErr
		}
		return nil, recording.ErrEndOfStream
	}
	r.cursor[cameraID] = i + 1
	return queue[i], nil
}

func (r *fakeReader) Close() error { return nil }

type fakeSink struct {
	opts     sink.Options
	frames   []sink.Options
	widths   []int
	heights  []int
	pixels   [][]byte
	closed   bool
	writeErr error
}

func (s *fakeSink) WriteFrame(f *frame.Frame) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.widths = append(s.widths, f.Raster.Width)
	s.heights = append(s.heights, f.Raster.Height)
	s.pixels = append(s.pixels, append([]byte(nil), f.Raster.Pix...))
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeEncoder struct {
	calls  []encoding.Params
	err    error
	output []byte
}

func (e *fakeEncoder) Encode(ctx context.Context, params encoding.Params) error {
	e.calls = append(e.calls, params)
	if e.err != nil {
		return e.err
	}
	data := e.output
	if data == nil {
		data = []byte("encoded")
	}
	return os.WriteFile(params.Output, data, 0o644)
}

const testSize = 64

func testSpec() calib.PinholeSpec {
	return calib.PinholeSpec{Width: testSize, Height: testSize, FOVDegrees: 90}
}

func monoReader(frameCount int) *fakeReader {
	model := calib.NewPinhole(testSpec())
	frames := make([]*frame.Frame, frameCount)
	for i := range frames {
		raster := frame.NewRaster(testSize, testSize, frame.FormatGray)
		for p := range raster.Pix {
			raster.Pix[p] = 128
		}
		frames[i] = &frame.Frame{Index: i, TimestampNs: int64(i) * 50_000_000, Raster: raster}
	}
	return &fakeReader{
		cameras: []recording.CameraStreamDescriptor{{
			ID: "cam-mono", Channel: recording.ChannelMono,
			Width: testSize, Height: testSize, FrameCount: frameCount,
		}},
		calibs: map[string]calib.LensModel{"cam-mono": model},
		frames: map[string][]*frame.Frame{"cam-mono": frames},
	}
}

func testRequest(t *testing.T) (Request, string) {
	t.Helper()
	dir := t.TempDir()
	intermediate := filepath.Join(dir, "run.mkv")
	if err := os.WriteFile(intermediate, []byte("capture"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Request{
		Input:            "/data/session.rec",
		Camera:           "cam-mono",
		Output:           filepath.Join(dir, "cam-mono.mp4"),
		IntermediatePath: intermediate,
		FPS:              20,
		CRF:              23,
		Preset:           "medium",
		Target:           testSpec(),
	}, dir
}

func TestRunConvertsAndEncodes(t *testing.T) {
	capture := &fakeSink{}
	opener := func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		capture.opts = opts
		return capture, nil
	}
	encoder := &fakeEncoder{}
	runner := NewRunner(opener, encoder, nil, nil)

	req, _ := testRequest(t)
	var progressed int
	req.Progress = func(frames int) { progressed = frames }

	result, err := runner.Run(context.Background(), monoReader(10), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Frames != 10 || progressed != 10 {
		t.Errorf("frames = %d (progress %d), want 10", result.Frames, progressed)
	}
	if result.Output != req.Output {
		t.Errorf("Output = %q, want %q", result.Output, req.Output)
	}
	if result.IntermediateKept {
		t.Error("intermediate should be cleaned up after a successful encode")
	}
	if !capture.closed {
		t.Error("sink must be closed")
	}
	if capture.opts.Width != testSize || capture.opts.Height != testSize {
		t.Errorf("sink geometry %dx%d, want %dx%d", capture.opts.Width, capture.opts.Height, testSize, testSize)
	}
	if len(capture.pixels) != 10 {
		t.Fatalf("sink received %d frames, want 10", len(capture.pixels))
	}
	// Identity source and target models leave gray pixels untouched.
	for i, v := range capture.pixels[0] {
		if v != 128 {
			t.Fatalf("pixel %d = %d, want 128", i, v)
		}
	}
	if len(encoder.calls) != 1 {
		t.Fatalf("encoder called %d times, want 1", len(encoder.calls))
	}
	if encoder.calls[0].Input != req.IntermediatePath || encoder.calls[0].CRF != 23 {
		t.Errorf("encode params not forwarded: %+v", encoder.calls[0])
	}
	if _, err := os.Stat(req.IntermediatePath); !os.IsNotExist(err) {
		t.Error("intermediate file should be removed")
	}
	if _, err := os.Stat(req.Output); err != nil {
		t.Error("final output should exist")
	}
}

func TestRunMissingCalibrationCreatesNoFiles(t *testing.T) {
	opened := false
	opener := func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		opened = true
		return &fakeSink{}, nil
	}
	runner := NewRunner(opener, &fakeEncoder{}, nil, nil)

	reader := monoReader(1)
	delete(reader.calibs, "cam-mono")

	req, _ := testRequest(t)
	_, err := runner.Run(context.Background(), reader, req)
	if !errors.Is(err, services.ErrCalibrationUnavailable) {
		t.Fatalf("err = %v, want calibration unavailable", err)
	}
	if opened {
		t.Error("sink must not be opened when calibration is missing")
	}
}

func TestRunUnknownCamera(t *testing.T) {
	runner := NewRunner(nil, nil, nil, nil)
	req, _ := testRequest(t)
	req.Camera = "cam-nope"
	_, err := runner.Run(context.Background(), monoReader(1), req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRunStreamErrorDiscardsIntermediate(t *testing.T) {
	capture := &fakeSink{}
	opener := func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return capture, nil
	}
	runner := NewRunner(opener, &fakeEncoder{}, nil, nil)

	reader := monoReader(3)
	reader.readErr = fmt.Errorf("truncated record")

	req, _ := testRequest(t)
	_, err := runner.Run(context.Background(), reader, req)
	if !errors.Is(err, services.ErrStreamRead) {
		t.Fatalf("err = %v, want stream read error", err)
	}
	if !capture.closed {
		t.Error("sink must be closed on the failure path")
	}
	if _, statErr := os.Stat(req.IntermediatePath); !os.IsNotExist(statErr) {
		t.Error("partial intermediate should be discarded")
	}
}

func TestRunNonMonotonicIndexFails(t *testing.T) {
	reader := monoReader(2)
	reader.frames["cam-mono"][1].Index = 5

	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}, &fakeEncoder{}, nil, nil)

	req, _ := testRequest(t)
	_, err := runner.Run(context.Background(), reader, req)
	if !errors.Is(err, services.ErrStreamRead) {
		t.Fatalf("err = %v, want stream read error for index regression", err)
	}
}

func TestRunEncodeFailurePreservesIntermediate(t *testing.T) {
	opener := func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}
	encoder := &fakeEncoder{err: services.Wrap(services.ErrEncodeProcessFailed, "encode", "run ffmpeg", "exit status 1", nil)}
	runner := NewRunner(opener, encoder, nil, nil)

	req, _ := testRequest(t)
	_, err := runner.Run(context.Background(), monoReader(2), req)
	if !errors.Is(err, services.ErrEncodeProcessFailed) {
		t.Fatalf("err = %v, want encode process failed", err)
	}
	if _, statErr := os.Stat(req.IntermediatePath); statErr != nil {
		t.Error("intermediate should survive an encode failure for retry")
	}
}

func TestRunSkipEncodeKeepsIntermediate(t *testing.T) {
	encoder := &fakeEncoder{}
	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}, encoder, nil, nil)

	req, _ := testRequest(t)
	req.SkipEncode = true
	result, err := runner.Run(context.Background(), monoReader(2), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IntermediateKept {
		t.Error("intermediate should be kept")
	}
	if result.Output != req.IntermediatePath {
		t.Errorf("Output = %q, want the intermediate path", result.Output)
	}
	if len(encoder.calls) != 0 {
		t.Error("encoder must not run")
	}
	if _, statErr := os.Stat(req.IntermediatePath); statErr != nil {
		t.Error("intermediate file should exist")
	}
}

func TestRunNilEncoderFallsBackToIntermediate(t *testing.T) {
	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}, nil, nil, nil)

	req, _ := testRequest(t)
	result, err := runner.Run(context.Background(), monoReader(1), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.IntermediateKept {
		t.Error("missing encoder should keep the intermediate")
	}
}

func TestRunMaxFrames(t *testing.T) {
	capture := &fakeSink{}
	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return capture, nil
	}, &fakeEncoder{}, nil, nil)

	req, _ := testRequest(t)
	req.MaxFrames = 3
	result, err := runner.Run(context.Background(), monoReader(10), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Frames != 3 || len(capture.pixels) != 3 {
		t.Errorf("frames = %d (sink %d), want 3", result.Frames, len(capture.pixels))
	}
}

func TestRunColorCameraRotates(t *testing.T) {
	spec := calib.PinholeSpec{Width: 8, Height: 6, FOVDegrees: 90}
	model := calib.NewPinhole(spec)
	raster := frame.NewRaster(8, 6, frame.FormatRGB)
	reader := &fakeReader{
		cameras: []recording.CameraStreamDescriptor{{
			ID: "cam-color", Channel: recording.ChannelColor,
			Width: 8, Height: 6, FrameCount: 1,
		}},
		calibs: map[string]calib.LensModel{"cam-color": model},
		frames: map[string][]*frame.Frame{"cam-color": {{Index: 0, Raster: raster}}},
	}

	capture := &fakeSink{}
	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		capture.opts = opts
		return capture, nil
	}, &fakeEncoder{}, nil, nil)

	req, _ := testRequest(t)
	req.Camera = "cam-color"
	req.Target = spec
	if _, err := runner.Run(context.Background(), reader, req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if capture.opts.Width != 6 || capture.opts.Height != 8 {
		t.Errorf("sink geometry %dx%d, want rotated 6x8", capture.opts.Width, capture.opts.Height)
	}
	if capture.opts.Format != frame.FormatRGB {
		t.Errorf("sink format = %s, want rgb", capture.opts.Format)
	}
	if capture.widths[0] != 6 || capture.heights[0] != 8 {
		t.Errorf("written frame %dx%d, want 6x8", capture.widths[0], capture.heights[0])
	}
}

func TestRunMaskMismatchFails(t *testing.T) {
	maskDir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(maskDir, "cam-mono.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}, &fakeEncoder{}, nil, nil)

	req, _ := testRequest(t)
	req.MaskDir = maskDir
	_, err := runner.Run(context.Background(), monoReader(1), req)
	if !errors.Is(err, services.ErrMaskResolutionMismatch) {
		t.Fatalf("err = %v, want mask resolution mismatch", err)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	store, err := runlog.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}, &fakeEncoder{}, store, nil)

	req, _ := testRequest(t)
	result, err := runner.Run(context.Background(), monoReader(2), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d history rows, want 1", len(runs))
	}
	if runs[0].ID != result.RunID || runs[0].Status != runlog.StatusCompleted || runs[0].Frames != 2 {
		t.Errorf("history row not recorded: %+v", runs[0])
	}

	// Failed runs land in history too.
	badReq, _ := testRequest(t)
	badReq.Camera = "cam-missing"
	if _, err := runner.Run(context.Background(), monoReader(1), badReq); err == nil {
		t.Fatal("expected failure")
	}
	runs, _ = store.List(context.Background(), 0)
	if len(runs) != 2 {
		t.Fatalf("got %d history rows, want 2", len(runs))
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(func(ctx context.Context, opts sink.Options) (sink.Sink, error) {
		return &fakeSink{}, nil
	}, &fakeEncoder{}, nil, nil)

	req, _ := testRequest(t)
	_, err := runner.Run(ctx, monoReader(5), req)
	if !errors.Is(err, services.ErrStreamRead) {
		t.Fatalf("err = %v, want stream read error wrapping cancellation", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, should wrap context.Canceled", err)
	}
}
