package packaging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
	"github.com/vodarr/vodarr/internal/models"
	"github.com/vodarr/vodarr/internal/storage"
)

type fakeDetector struct{}

func (fakeDetector) Detect(ctx context.Context) (*ffmpeg.BinaryInfo, error) {
	return &ffmpeg.BinaryInfo{FFmpegPath: "/usr/bin/ffmpeg", FFprobePath: "/usr/bin/ffprobe"}, nil
}

// fakeRunner simulates segmentation by writing a playlist and a couple of
// segments into the output directory.
type fakeRunner struct {
	calls   []ffmpeg.RunSpec
	succeed func(spec ffmpeg.RunSpec) bool
}

func (f *fakeRunner) Run(ctx context.Context, spec ffmpeg.RunSpec) *ffmpeg.Result {
	f.calls = append(f.calls, spec)
	if f.succeed != nil && !f.succeed(spec) {
		return &ffmpeg.Result{ExitCode: 1, ErrorMessage: "simulated failure"}
	}
	out := spec.Args[len(spec.Args)-1]
	dir := filepath.Dir(out)
	_ = os.MkdirAll(dir, 0o755)
	_ = os.WriteFile(out, []byte("manifest"), 0o644)
	ext := ".ts"
	if strings.HasSuffix(out, ".mpd") {
		ext = ".m4s"
		_ = os.WriteFile(filepath.Join(dir, "init.mp4"), []byte("init"), 0o644)
	}
	_ = os.WriteFile(filepath.Join(dir, "segment_00000"+ext), []byte("segment-one"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "segment_00001"+ext), []byte("segment-two"), 0o644)
	return &ffmpeg.Result{Success: true}
}

func testPackager(t *testing.T) (*Packager, *fakeRunner, *storage.Layout) {
	t.Helper()
	runner := &fakeRunner{}
	layout := storage.NewLayout(config.StorageConfig{
		BaseDir:   t.TempDir(),
		StreamDir: "streams",
	})
	return NewPackager(runner, fakeDetector{}, layout, nil), runner, layout
}

func profile720() *models.EncodingProfile {
	return &models.EncodingProfile{Name: "720p", Resolution: "720p", Width: 1280, Height: 720, Bitrate: 2500}
}

func TestPackageHLS(t *testing.T) {
	p, _, layout := testPackager(t)
	jobID := models.NewULID()

	result := p.PackageHLS(context.Background(), "/videos/encoded/720p/clip.mp4", jobID, profile720())

	require.True(t, result.Success)
	assert.Equal(t, filepath.Join(layout.StreamDir(jobID, models.ProtocolHLS, "720p"), "playlist.m3u8"), result.ManifestPath)
	assert.Equal(t, 2, result.SegmentCount)
	assert.Greater(t, result.TotalBytes, int64(0))
}

func TestPackageHLSFailureCleansDirectory(t *testing.T) {
	p, runner, layout := testPackager(t)
	runner.succeed = func(ffmpeg.RunSpec) bool { return false }
	jobID := models.NewULID()

	result := p.PackageHLS(context.Background(), "/videos/encoded/720p/clip.mp4", jobID, profile720())

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.NoDirExists(t, layout.StreamDir(jobID, models.ProtocolHLS, "720p"))
}

func TestPackageDASH(t *testing.T) {
	p, runner, _ := testPackager(t)
	jobID := models.NewULID()

	result := p.PackageDASH(context.Background(), "/videos/encoded/720p/clip.mp4", jobID, profile720())

	require.True(t, result.Success)
	assert.True(t, strings.HasSuffix(result.ManifestPath, "manifest.mpd"))
	assert.Equal(t, 2, result.SegmentCount)

	args := runner.calls[0].Args
	assert.Contains(t, args, "dash")
	assert.Contains(t, args, "init.mp4")
}

func TestWriteHLSMasterSortsByDescendingBitrate(t *testing.T) {
	p, _, _ := testPackager(t)
	jobID := models.NewULID()

	variants := []Variant{
		{Profile: &models.EncodingProfile{Resolution: "480p", Width: 854, Height: 480, Bitrate: 1000}, Result: Result{Success: true}},
		{Profile: &models.EncodingProfile{Resolution: "1080p", Width: 1920, Height: 1080, Bitrate: 5000}, Result: Result{Success: true}},
		{Profile: &models.EncodingProfile{Resolution: "720p", Width: 1280, Height: 720, Bitrate: 2500}, Result: Result{Success: false}},
	}

	path, ok := p.WriteHLSMaster(jobID, variants)
	require.True(t, ok)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "#EXTM3U\n"))
	assert.Contains(t, text, "BANDWIDTH=5000000,RESOLUTION=1920x1080")
	assert.Contains(t, text, "1080p/playlist.m3u8")
	assert.NotContains(t, text, "720p")
	// 1080p listed before 480p.
	assert.Less(t, strings.Index(text, "1080p"), strings.Index(text, "480p"))
}

func TestWriteHLSMasterNoSuccesses(t *testing.T) {
	p, _, layout := testPackager(t)
	jobID := models.NewULID()

	variants := []Variant{
		{Profile: profile720(), Result: Result{Success: false}},
	}

	_, ok := p.WriteHLSMaster(jobID, variants)
	assert.False(t, ok)
	assert.NoFileExists(t, layout.MasterManifest(jobID, models.ProtocolHLS))
}

func TestWriteDASHMaster(t *testing.T) {
	p, _, _ := testPackager(t)
	jobID := models.NewULID()

	variants := []Variant{
		{Profile: &models.EncodingProfile{Resolution: "480p", Width: 854, Height: 480, Bitrate: 1000}, Result: Result{Success: true}},
		{Profile: &models.EncodingProfile{Resolution: "1080p", Width: 1920, Height: 1080, Bitrate: 5000}, Result: Result{Success: true}},
	}

	path, ok := p.WriteDASHMaster(jobID, variants, 3725)
	require.True(t, ok)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, `mediaPresentationDuration="PT01H02M05S"`)
	assert.Contains(t, text, `id="1080p" bandwidth="5000000"`)
	assert.Contains(t, text, "<BaseURL>480p/</BaseURL>")
	assert.Less(t, strings.Index(text, `id="1080p"`), strings.Index(text, `id="480p"`))
}

func TestWriteDASHMasterNoSuccesses(t *testing.T) {
	p, _, _ := testPackager(t)

	_, ok := p.WriteDASHMaster(models.NewULID(), nil, 60)
	assert.False(t, ok)
}

func TestIsoDuration(t *testing.T) {
	assert.Equal(t, "PT00H00M00S", isoDuration(0))
	assert.Equal(t, "PT00H02M03S", isoDuration(123))
	assert.Equal(t, "PT01H02M05S", isoDuration(3725))
	assert.Equal(t, "PT00H00M00S", isoDuration(-5))
}

func TestCleanup(t *testing.T) {
	p, _, layout := testPackager(t)
	jobID := models.NewULID()

	p.PackageHLS(context.Background(), "/videos/encoded/720p/clip.mp4", jobID, profile720())
	require.DirExists(t, layout.StreamDir(jobID, models.ProtocolHLS, "720p"))

	p.Cleanup(jobID, models.ProtocolHLS)
	assert.NoDirExists(t, layout.StreamDir(jobID, models.ProtocolHLS, "720p"))
}
