package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"refract/internal/fileutil"
	"refract/internal/logging"
)

// Options tunes a bulk download.
type Options struct {
	OutDir       string
	Workers      int
	Timeout      time.Duration
	MaxFiles     int
	SkipExisting bool
	Verify       bool
}

// Outcome classifies what happened to one entry.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Result reports one entry's fate.
type Result struct {
	Entry   Entry
	Outcome Outcome
	Err     error
}

// Fetcher downloads manifest entries with a bounded worker pool.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher builds a fetcher. The client timeout stays unset; large files
// take arbitrarily long and per-request deadlines come from Options.Timeout
// via response header timeouts instead.
func NewFetcher(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{client: &http.Client{}, logger: logger}
}

// Run downloads entries into opts.OutDir and returns a result per attempted
// entry. MaxFiles > 0 caps how many entries are attempted.
func (f *Fetcher) Run(ctx context.Context, entries []Entry, opts Options) []Result {
	return f.RunWithObserver(ctx, entries, opts, nil)
}

// RunWithObserver behaves like Run and additionally invokes observe as each
// entry finishes, which drives progress reporting.
func (f *Fetcher) RunWithObserver(ctx context.Context, entries []Entry, opts Options, observe func(Result)) []Result {
	if opts.MaxFiles > 0 && len(entries) > opts.MaxFiles {
		entries = entries[:opts.MaxFiles]
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if timeout := opts.Timeout; timeout > 0 {
		f.client.Transport = &http.Transport{ResponseHeaderTimeout: timeout}
	}

	jobs := make(chan Entry)
	results := make([]Result, 0, len(entries))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				result := f.fetchOne(ctx, entry, opts)
				mu.Lock()
				results = append(results, result)
				if observe != nil {
					observe(result)
				}
				mu.Unlock()
			}
		}()
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
		case jobs <- entry:
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, entry Entry, opts Options) Result {
	dest := filepath.Join(opts.OutDir, entry.Filename)

	if info, err := os.Stat(dest); err == nil {
		if opts.SkipExisting {
			return Result{Entry: entry, Outcome: OutcomeSkipped}
		}
		if opts.Verify && f.verified(dest, info.Size(), entry) {
			f.logger.Info("already downloaded and verified",
				logging.String("file", entry.Filename))
			return Result{Entry: entry, Outcome: OutcomeSkipped}
		}
	}

	f.logger.Info("downloading",
		logging.String("file", entry.Filename),
		logging.String("url", entry.URL),
	)
	if err := f.download(ctx, entry, dest); err != nil {
		return Result{Entry: entry, Outcome: OutcomeFailed, Err: err}
	}
	if opts.Verify {
		if err := verifyFile(dest, entry); err != nil {
			return Result{Entry: entry, Outcome: OutcomeFailed, Err: err}
		}
	}
	return Result{Entry: entry, Outcome: OutcomeDownloaded}
}

// download streams the URL into dest+".part" with Range-based resume, then
// renames into place so dest only ever holds complete files.
func (f *Fetcher) download(ctx context.Context, entry Entry, dest string) error {
	part := dest + ".part"
	var existing int64
	if info, err := os.Stat(part); err == nil {
		existing = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if existing > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", entry.URL, err)
	}
	defer resp.Body.Close()

	var out *os.File
	switch resp.StatusCode {
	case http.StatusPartialContent:
		out, err = os.OpenFile(part, os.O_APPEND|os.O_WRONLY, 0o644)
	case http.StatusOK:
		// Server ignored the Range header; start over.
		out, err = os.Create(part)
	default:
		return fmt.Errorf("download %s: unexpected status %s", entry.URL, resp.Status)
	}
	if err != nil {
		return fmt.Errorf("open partial file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("stream %s: %w", entry.Filename, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("finish %s: %w", entry.Filename, err)
	}
	if err := fileutil.MoveFile(part, dest); err != nil {
		return fmt.Errorf("finalize %s: %w", entry.Filename, err)
	}
	return nil
}

func (f *Fetcher) verified(path string, size int64, entry Entry) bool {
	return verifyAgainst(path, size, entry) == nil
}

func verifyFile(path string, entry Entry) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}
	return verifyAgainst(path, info.Size(), entry)
}

func verifyAgainst(path string, size int64, entry Entry) error {
	if entry.Size > 0 && size != entry.Size {
		return fmt.Errorf("%s: size %d, expected %d", entry.Filename, size, entry.Size)
	}
	if entry.SHA1 != "" {
		sum, err := sha1File(path)
		if err != nil {
			return fmt.Errorf("%s: hash: %w", entry.Filename, err)
		}
		if sum != entry.SHA1 {
			return fmt.Errorf("%s: sha1 %s, expected %s", entry.Filename, sum, entry.SHA1)
		}
	}
	return nil
}

func sha1File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha1.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
