package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"refract/internal/calib"
	"refract/internal/encoding"
	"refract/internal/frame"
	"refract/internal/logging"
	"refract/internal/recording"
	"refract/internal/remap"
	"refract/internal/runlog"
	"refract/internal/services"
	"refract/internal/sink"
	"refract/internal/vignette"
)

// SinkOpener creates the intermediate capture sink. Tests substitute
// in-memory sinks; production wires sink.Open.
type SinkOpener func(ctx context.Context, opts sink.Options) (sink.Sink, error)

// Runner holds the collaborators shared across conversion runs. The remap
// cache persists between runs so converting several cameras with the same
// target geometry builds each table once.
type Runner struct {
	openSink SinkOpener
	encoder  encoding.Client
	store    *runlog.Store
	logger   *slog.Logger
	remaps   *remap.Cache
}

// NewRunner wires a runner. store may be nil when history is disabled;
// encoder may be nil when no final encode is possible, which keeps the
// lossless intermediate instead.
func NewRunner(openSink SinkOpener, encoder encoding.Client, store *runlog.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		openSink: openSink,
		encoder:  encoder,
		store:    store,
		logger:   logger,
		remaps:   remap.NewCache(),
	}
}

// Request describes one conversion run.
type Request struct {
	Input            string
	Camera           string
	Output           string
	IntermediatePath string
	FPS              float64
	MaxFrames        int
	CRF              int
	Preset           string
	Target           calib.PinholeSpec
	MaskDir          string
	KeepIntermediate bool
	SkipEncode       bool
	Progress         func(frames int)
}

// Result summarizes a completed run.
type Result struct {
	RunID            string
	Frames           int
	Output           string
	IntermediateKept bool
}

// Run executes one conversion. On failure the partial intermediate is
// discarded, except when the final encode itself fails: then the capture is
// complete and preserving it lets the encode be retried without redoing the
// frame work.
func (r *Runner) Run(ctx context.Context, reader recording.Reader, req Request) (*Result, error) {
	runID := uuid.NewString()
	startedAt := time.Now()
	logger := r.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldCamera, req.Camera),
	)

	result, err := r.convert(ctx, logger, reader, req, runID)
	r.record(runID, req, result, startedAt, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) convert(ctx context.Context, logger *slog.Logger, reader recording.Reader, req Request, runID string) (*Result, error) {
	desc, err := findCamera(reader, req.Camera)
	if err != nil {
		return nil, err
	}

	// Calibration is resolved before any file is created, so a recording
	// without a usable lens model leaves nothing behind.
	srcModel, dstModel, err := calib.Resolve(reader, req.Camera, req.Target)
	if err != nil {
		return nil, err
	}

	corrector, err := vignette.Load(req.MaskDir, req.Camera, desc.Width, desc.Height)
	if err != nil {
		return nil, err
	}
	if corrector.Enabled() {
		logger.Info("devignetting mask loaded", logging.String(logging.FieldStage, "devignette"))
	}

	table := r.remaps.Get(remap.Key{
		Camera:     req.Camera,
		Width:      req.Target.Width,
		Height:     req.Target.Height,
		FOVDegrees: req.Target.FOVDegrees,
	}, srcModel, dstModel)

	rotate := desc.Channel == recording.ChannelColor
	sinkWidth, sinkHeight := req.Target.Width, req.Target.Height
	if rotate {
		sinkWidth, sinkHeight = req.Target.Height, req.Target.Width
	}

	capture, err := r.openSink(ctx, sink.Options{
		Path:   req.IntermediatePath,
		Width:  sinkWidth,
		Height: sinkHeight,
		Format: desc.Channel.Format(),
		FPS:    req.FPS,
	})
	if err != nil {
		return nil, err
	}

	frames, err := r.processFrames(ctx, logger, reader, req, corrector, table, rotate, capture)
	closeErr := capture.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		discard(req.IntermediatePath)
		return nil, err
	}

	logger.Info("capture complete",
		logging.Int(logging.FieldFrame, frames),
		logging.String(logging.FieldOutput, req.IntermediatePath),
	)

	result := &Result{RunID: runID, Frames: frames}
	if req.SkipEncode || r.encoder == nil {
		result.IntermediateKept = true
		result.Output = req.IntermediatePath
		logger.Info("final encode skipped, keeping lossless intermediate")
		return result, nil
	}

	if err := r.encoder.Encode(ctx, encoding.Params{
		Input:  req.IntermediatePath,
		Output: req.Output,
		CRF:    req.CRF,
		Preset: req.Preset,
	}); err != nil {
		// The capture itself succeeded; keep it so the encode can be
		// retried without repeating the frame work.
		logger.Error("final encode failed, preserving intermediate",
			logging.String(logging.FieldOutput, req.IntermediatePath),
			logging.Error(err),
		)
		return nil, err
	}

	result.Output = req.Output
	summary := encoding.Summarize(req.IntermediatePath, req.Output)
	if req.KeepIntermediate {
		result.IntermediateKept = true
	} else {
		discard(req.IntermediatePath)
	}

	logger.Info("conversion complete",
		logging.Int(logging.FieldFrame, frames),
		logging.String(logging.FieldOutput, req.Output),
		logging.String("size", summary.String()),
	)
	return result, nil
}

func (r *Runner) processFrames(
	ctx context.Context,
	logger *slog.Logger,
	reader recording.Reader,
	req Request,
	corrector *vignette.Corrector,
	table *remap.Table,
	rotate bool,
	capture sink.Sink,
) (int, error) {
	frames := 0
	lastIndex := -1
	for {
		if err := ctx.Err(); err != nil {
			return frames, services.Wrap(services.ErrStreamRead, "pipeline", "read frame", "run canceled", err)
		}
		if req.MaxFrames > 0 && frames >= req.MaxFrames {
			return frames, nil
		}

		f, err := reader.NextFrame(req.Camera)
		if err != nil {
			if errors.Is(err, recording.ErrEndOfStream) {
				return frames, nil
			}
			return frames, services.Wrap(services.ErrStreamRead, "pipeline", "read frame",
				fmt.Sprintf("after frame %d", lastIndex), err)
		}
		if f.Index != lastIndex+1 {
			return frames, services.Wrap(services.ErrStreamRead, "pipeline", "read frame",
				fmt.Sprintf("frame index %d breaks sequence after %d", f.Index, lastIndex), nil)
		}
		lastIndex = f.Index

		if err := corrector.Apply(f.Raster); err != nil {
			return frames, err
		}
		undistorted, err := table.Apply(f.Raster)
		if err != nil {
			return frames, services.Wrap(services.ErrStreamRead, "pipeline", "undistort",
				fmt.Sprintf("frame %d", f.Index), err)
		}
		f.Release()

		stage := frame.StageUndistorted
		if rotate {
			undistorted = undistorted.Rotate90CW()
			stage = frame.StageRotated
		}

		out := &frame.Frame{
			Index:       f.Index,
			TimestampNs: f.TimestampNs,
			Raster:      undistorted,
			Stage:       stage,
		}
		if err := capture.WriteFrame(out); err != nil {
			return frames, err
		}
		out.Release()

		frames++
		if req.Progress != nil {
			req.Progress(frames)
		}
	}
}

// record persists the run outcome. History is best-effort; a failed insert
// never fails the conversion.
func (r *Runner) record(runID string, req Request, result *Result, startedAt time.Time, runErr error) {
	if r.store == nil {
		return
	}
	run := runlog.Run{
		ID:         runID,
		InputPath:  req.Input,
		CameraID:   req.Camera,
		Status:     runlog.StatusCompleted,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		run.Status = runlog.StatusFailed
		run.Error = runErr.Error()
	}
	if result != nil {
		run.Frames = int64(result.Frames)
		run.OutputPath = result.Output
	}
	if err := r.store.Record(context.Background(), run); err != nil {
		r.logger.Warn("failed to record run history", logging.Error(err))
	}
}

func findCamera(reader recording.Reader, cameraID string) (recording.CameraStreamDescriptor, error) {
	for _, desc := range reader.Cameras() {
		if desc.ID == cameraID {
			return desc, nil
		}
	}
	return recording.CameraStreamDescriptor{}, services.Wrap(
		services.ErrValidation, "pipeline", "select camera",
		"recording has no camera "+cameraID, nil)
}

func discard(path string) {
	if path == "" {
		return
	}
	// Leftover partials are reclaimed by the next run over the same work
	// directory, so removal failures are not fatal.
	_ = os.Remove(path)
}
