package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"refract/internal/calib"
	"refract/internal/config"
	"refract/internal/deps"
	"refract/internal/encoding"
	"refract/internal/logging"
	"refract/internal/pipeline"
	"refract/internal/preflight"
	"refract/internal/recording"
	"refract/internal/runlog"
	"refract/internal/sink"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		cameraFlags      []string
		outputDir        string
		maskDir          string
		fps              float64
		maxFrames        int
		crf              int
		preset           string
		width            int
		height           int
		fov              float64
		ffmpegBinary     string
		noEncode         bool
		keepIntermediate bool
		noProgress       bool
	)

	cmd := &cobra.Command{
		Use:   "convert <recording>",
		Short: "Convert a recording's camera streams to H.264 video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			applyIfChanged(cmd, map[string]func(){
				"output-dir": func() { cfg.Paths.OutputDir = outputDir },
				"mask-dir":   func() { cfg.Paths.MaskDir = maskDir },
				"fps":        func() { cfg.Video.FPS = fps },
				"max-frames": func() { cfg.Video.MaxFrames = maxFrames },
				"crf":        func() { cfg.Video.CRF = crf },
				"preset":     func() { cfg.Video.Preset = preset },
				"width":      func() { cfg.Undistort.Width = width },
				"height":     func() { cfg.Undistort.Height = height },
				"fov":        func() { cfg.Undistort.FOVDegrees = fov },
				"ffmpeg":     func() { cfg.FFmpeg.Binary = ffmpegBinary },
			})
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			return runConvert(cmd, cfg, logger, convertOptions{
				recordingPath:    args[0],
				cameras:          cameraFlags,
				noEncode:         noEncode,
				keepIntermediate: keepIntermediate,
				noProgress:       noProgress,
			})
		},
	}

	cmd.Flags().StringSliceVar(&cameraFlags, "camera", nil, "Camera stream to convert (repeatable; default all)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for final videos")
	cmd.Flags().StringVar(&maskDir, "mask-dir", "", "Directory holding per-camera devignetting masks")
	cmd.Flags().Float64Var(&fps, "fps", 0, "Output frame rate")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Stop after this many frames (0 = all)")
	cmd.Flags().IntVar(&crf, "crf", 0, "H.264 constant rate factor (0-51)")
	cmd.Flags().StringVar(&preset, "preset", "", "H.264 encoder preset")
	cmd.Flags().IntVar(&width, "width", 0, "Undistorted target width")
	cmd.Flags().IntVar(&height, "height", 0, "Undistorted target height")
	cmd.Flags().Float64Var(&fov, "fov", 0, "Undistorted horizontal field of view in degrees")
	cmd.Flags().StringVar(&ffmpegBinary, "ffmpeg", "", "Path to the ffmpeg binary")
	cmd.Flags().BoolVar(&noEncode, "no-encode", false, "Stop after the lossless intermediate capture")
	cmd.Flags().BoolVar(&keepIntermediate, "keep-intermediate", false, "Keep the lossless intermediate after encoding")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the frame progress bar")

	return cmd
}

type convertOptions struct {
	recordingPath    string
	cameras          []string
	noEncode         bool
	keepIntermediate bool
	noProgress       bool
}

func applyIfChanged(cmd *cobra.Command, overrides map[string]func()) {
	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

func runConvert(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts convertOptions) error {
	for _, result := range []preflight.Result{
		preflight.CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		preflight.CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	} {
		if !result.Passed {
			return fmt.Errorf("%s: %s", result.Name, result.Detail)
		}
	}

	lock := flock.New(filepath.Join(cfg.Paths.WorkDir, ".refract.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock work directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("work directory %s is in use by another conversion", cfg.Paths.WorkDir)
	}
	defer func() { _ = lock.Unlock() }()

	reader, err := recording.Open(opts.recordingPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	cameras, err := selectCameras(reader, opts.cameras)
	if err != nil {
		return err
	}

	store, err := runlog.Open(cfg.Paths.LogDir)
	if err != nil {
		logger.Warn("run history unavailable", logging.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	var encoder encoding.Client
	if !opts.noEncode {
		if deps.FFmpegAvailable(cfg.FFmpeg.Binary) {
			encoder = encoding.NewFFmpegClient(cfg.FFmpeg.Binary,
				logging.NewComponentLogger(logger, "encoding"))
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "ffmpeg not found; keeping lossless intermediates as output")
		}
	}

	opener := func(sctx context.Context, sopts sink.Options) (sink.Sink, error) {
		sopts.FFmpegBinary = cfg.FFmpeg.Binary
		capture, err := sink.Open(sctx, sopts)
		if err != nil {
			return nil, err
		}
		return capture, nil
	}
	runner := pipeline.NewRunner(opener, encoder, store,
		logging.NewComponentLogger(logger, "pipeline"))

	base := strings.TrimSuffix(filepath.Base(opts.recordingPath), filepath.Ext(opts.recordingPath))
	out := cmd.OutOrStdout()
	for _, desc := range cameras {
		req := pipeline.Request{
			Input:            opts.recordingPath,
			Camera:           desc.ID,
			Output:           filepath.Join(cfg.Paths.OutputDir, fmt.Sprintf("%s-%s.mp4", base, desc.ID)),
			IntermediatePath: filepath.Join(cfg.Paths.WorkDir, fmt.Sprintf("%s-%s.mkv", base, desc.ID)),
			FPS:              cfg.Video.FPS,
			MaxFrames:        cfg.Video.MaxFrames,
			CRF:              cfg.Video.CRF,
			Preset:           cfg.Video.Preset,
			Target: calib.PinholeSpec{
				Width:      cfg.Undistort.Width,
				Height:     cfg.Undistort.Height,
				FOVDegrees: cfg.Undistort.FOVDegrees,
			},
			MaskDir:          cfg.Paths.MaskDir,
			KeepIntermediate: opts.keepIntermediate,
			SkipEncode:       opts.noEncode,
		}

		var bar *progressbar.ProgressBar
		if !opts.noProgress {
			bar = newFrameBar(cmd.ErrOrStderr(), desc)
			req.Progress = func(frames int) { _ = bar.Set(frames) }
		}

		result, err := runner.Run(cmd.Context(), reader, req)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return fmt.Errorf("camera %s: %w", desc.ID, err)
		}
		fmt.Fprintf(out, "%s: %d frames -> %s\n", desc.ID, result.Frames, result.Output)
		if result.IntermediateKept && result.Output != req.IntermediatePath {
			fmt.Fprintf(out, "%s: kept intermediate %s\n", desc.ID, req.IntermediatePath)
		}
	}
	return nil
}

func selectCameras(reader recording.Reader, requested []string) ([]recording.CameraStreamDescriptor, error) {
	available := reader.Cameras()
	if len(requested) == 0 {
		return available, nil
	}
	byID := make(map[string]recording.CameraStreamDescriptor, len(available))
	for _, desc := range available {
		byID[desc.ID] = desc
	}
	selected := make([]recording.CameraStreamDescriptor, 0, len(requested))
	for _, id := range requested {
		desc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("recording has no camera %q", id)
		}
		selected = append(selected, desc)
	}
	return selected, nil
}

func newFrameBar(w io.Writer, desc recording.CameraStreamDescriptor) *progressbar.ProgressBar {
	total := desc.FrameCount
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc.ID),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
