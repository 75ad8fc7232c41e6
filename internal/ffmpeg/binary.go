package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BinaryInfo contains information about the FFmpeg/FFprobe installation.
type BinaryInfo struct {
	FFmpegPath   string `json:"ffmpeg_path"`
	FFprobePath  string `json:"ffprobe_path"`
	Version      string `json:"version"`
	MajorVersion int    `json:"major_version"`
	MinorVersion int    `json:"minor_version"`
}

// Detector resolves FFmpeg binary information. The production
// implementation is BinaryDetector; tests substitute fixed paths.
type Detector interface {
	Detect(ctx context.Context) (*BinaryInfo, error)
}

// BinaryDetector handles detection and caching of FFmpeg binaries.
type BinaryDetector struct {
	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration
	ffmpegPath   string
	ffprobePath  string
}

// Ensure BinaryDetector implements Detector.
var _ Detector = (*BinaryDetector)(nil)

// NewBinaryDetector creates a new binary detector.
func NewBinaryDetector() *BinaryDetector {
	return &BinaryDetector{
		cacheTTL: 5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for binary detection.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// WithPaths pins explicit binary paths from configuration, bypassing the
// search. Empty values keep auto-detection for that binary.
func (d *BinaryDetector) WithPaths(ffmpegPath, ffprobePath string) *BinaryDetector {
	d.ffmpegPath = ffmpegPath
	d.ffprobePath = ffprobePath
	return d
}

// Detect detects FFmpeg and FFprobe binaries, caching the result.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Double-check after acquiring write lock
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}

	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Available reports whether both ffmpeg and ffprobe can be resolved.
func (d *BinaryDetector) Available(ctx context.Context) bool {
	info, err := d.Detect(ctx)
	return err == nil && info.FFmpegPath != "" && info.FFprobePath != ""
}

// Clear clears the cached binary information.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

// detect performs the actual binary detection.
func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	info := &BinaryInfo{}

	// Search order: configured path -> VODARR_FFMPEG_BINARY env var ->
	// ./ffmpeg -> PATH
	ffmpegPath := d.ffmpegPath
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = findBinary("ffmpeg", "VODARR_FFMPEG_BINARY")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
	}
	info.FFmpegPath = ffmpegPath

	// ffprobe is required for media inspection but its absence is not
	// fatal here; probing degrades to zeroed results downstream.
	if d.ffprobePath != "" {
		info.FFprobePath = d.ffprobePath
	} else if ffprobePath, err := findBinary("ffprobe", "VODARR_FFPROBE_BINARY"); err == nil {
		info.FFprobePath = ffprobePath
	}

	version, major, minor, err := d.getVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version
	info.MajorVersion = major
	info.MinorVersion = minor

	return info, nil
}

// getVersion extracts version information from ffmpeg -version output.
func (d *BinaryDetector) getVersion(ctx context.Context, ffmpegPath string) (string, int, int, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", 0, 0, err
	}

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.HasPrefix(line, "ffmpeg version") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			break
		}
		full := strings.TrimPrefix(fields[2], "n")
		major, minor := parseVersionNumbers(full)
		return full, major, minor, nil
	}
	return "", 0, 0, fmt.Errorf("unrecognized ffmpeg version output")
}

// parseVersionNumbers parses "6.0.1" or "6.0-2-gabc" into major/minor.
func parseVersionNumbers(v string) (int, int) {
	v = strings.SplitN(v, "-", 2)[0]
	parts := strings.Split(v, ".")
	major, _ := strconv.Atoi(parts[0])
	minor := 0
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	return major, minor
}

// findBinary resolves an executable by name. An env var override wins,
// then a copy in the working directory, then PATH.
func findBinary(name, envVar string) (string, error) {
	if envVar != "" {
		if p := os.Getenv(envVar); p != "" && isExecutable(p) {
			return p, nil
		}
	}
	if local := "./" + name; isExecutable(local) {
		return local, nil
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("binary %s not found", name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
