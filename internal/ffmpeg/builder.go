package ffmpeg

import (
	"fmt"
	"strconv"
)

// CommandBuilder assembles ffmpeg argument lists fluently. Argument order
// follows ffmpeg conventions: global flags, then per-input flags, the
// input, output flags, and the output path last.
type CommandBuilder struct {
	preInput []string
	input    string
	output   string
	args     []string
}

// NewCommandBuilder creates a builder with -y and quiet logging preset.
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{
		preInput: []string{"-y", "-hide_banner", "-loglevel", "error"},
	}
}

// SeekBefore adds a pre-input -ss, which seeks by keyframe and is fast.
func (b *CommandBuilder) SeekBefore(position string) *CommandBuilder {
	b.preInput = append(b.preInput, "-ss", position)
	return b
}

// InputFlag adds an arbitrary flag before the input.
func (b *CommandBuilder) InputFlag(flag ...string) *CommandBuilder {
	b.preInput = append(b.preInput, flag...)
	return b
}

// Input sets the input path.
func (b *CommandBuilder) Input(path string) *CommandBuilder {
	b.input = path
	return b
}

// Duration limits output duration with -t.
func (b *CommandBuilder) Duration(seconds float64) *CommandBuilder {
	b.args = append(b.args, "-t", strconv.FormatFloat(seconds, 'f', -1, 64))
	return b
}

// Frames limits the number of output video frames.
func (b *CommandBuilder) Frames(n int) *CommandBuilder {
	b.args = append(b.args, "-frames:v", strconv.Itoa(n))
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.args = append(b.args, "-c:v", codec)
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.args = append(b.args, "-c:a", codec)
	return b
}

// NoAudio drops the audio stream.
func (b *CommandBuilder) NoAudio() *CommandBuilder {
	b.args = append(b.args, "-an")
	return b
}

// Scale applies a scale video filter, preserving the aspect ratio by
// padding to exactly width x height.
func (b *CommandBuilder) Scale(width, height int) *CommandBuilder {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		width, height, width, height)
	b.args = append(b.args, "-vf", filter)
	return b
}

// VideoBitrate sets target, max and buffer bitrates in kbps.
func (b *CommandBuilder) VideoBitrate(kbps int) *CommandBuilder {
	b.args = append(b.args,
		"-b:v", fmt.Sprintf("%dk", kbps),
		"-maxrate", fmt.Sprintf("%dk", kbps),
		"-bufsize", fmt.Sprintf("%dk", kbps*2))
	return b
}

// AudioBitrate sets the audio bitrate in kbps.
func (b *CommandBuilder) AudioBitrate(kbps int) *CommandBuilder {
	b.args = append(b.args, "-b:a", fmt.Sprintf("%dk", kbps))
	return b
}

// CRF sets constant-rate-factor quality.
func (b *CommandBuilder) CRF(value int) *CommandBuilder {
	b.args = append(b.args, "-crf", strconv.Itoa(value))
	return b
}

// Preset sets the encoder preset.
func (b *CommandBuilder) Preset(preset string) *CommandBuilder {
	b.args = append(b.args, "-preset", preset)
	return b
}

// Quality sets image quality for still extraction (-q:v, lower is better).
func (b *CommandBuilder) Quality(q int) *CommandBuilder {
	b.args = append(b.args, "-q:v", strconv.Itoa(q))
	return b
}

// Format forces the output container format.
func (b *CommandBuilder) Format(format string) *CommandBuilder {
	b.args = append(b.args, "-f", format)
	return b
}

// MovFlags sets mp4 muxer flags, typically "+faststart".
func (b *CommandBuilder) MovFlags(flags string) *CommandBuilder {
	b.args = append(b.args, "-movflags", flags)
	return b
}

// Flag adds arbitrary output flags.
func (b *CommandBuilder) Flag(flag ...string) *CommandBuilder {
	b.args = append(b.args, flag...)
	return b
}

// Output sets the output path.
func (b *CommandBuilder) Output(path string) *CommandBuilder {
	b.output = path
	return b
}

// Args assembles the final argument list.
func (b *CommandBuilder) Args() []string {
	args := make([]string, 0, len(b.preInput)+len(b.args)+4)
	args = append(args, b.preInput...)
	if b.input != "" {
		args = append(args, "-i", b.input)
	}
	args = append(args, b.args...)
	if b.output != "" {
		args = append(args, b.output)
	}
	return args
}
