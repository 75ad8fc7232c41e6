package ffmpeg

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// DefaultMinFreeBytes is the free-space floor required before starting a
// write-heavy operation.
const DefaultMinFreeBytes = 1 << 30 // 1 GiB

// ErrInsufficientDiskSpace indicates the target volume is too full to
// safely start an encode.
var ErrInsufficientDiskSpace = errors.New("insufficient disk space")

// CheckDiskSpace verifies the volume holding path has at least minFree
// bytes available. A zero minFree applies DefaultMinFreeBytes.
func CheckDiskSpace(path string, minFree uint64) error {
	if minFree == 0 {
		minFree = DefaultMinFreeBytes
	}
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("reading disk usage for %s: %w", path, err)
	}
	if usage.Free < minFree {
		return fmt.Errorf("%w: %d bytes free on %s, need %d",
			ErrInsufficientDiskSpace, usage.Free, path, minFree)
	}
	return nil
}

// DiskUsagePercent returns the used percentage of the volume holding path.
func DiskUsagePercent(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("reading disk usage for %s: %w", path, err)
	}
	return usage.UsedPercent, nil
}
