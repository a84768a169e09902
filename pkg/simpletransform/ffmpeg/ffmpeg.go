// Package ffmpeg implements a media-transcode transformer that shells out
// to the ffmpeg binary. Source content is materialized to a temp file,
// transcoded with optional temporal trim options, and the result is stored
// under the target reference.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-transform/pkg/simpletransform"
	"github.com/tendant/simple-transform/pkg/simpletransform/tempfile"
)

var commandContext = exec.CommandContext

// Worker transcodes media content via the ffmpeg command line. It
// implements simpletransform.Transformer.
type Worker struct {
	source simpletransform.ReferenceHandler
	target simpletransform.ReferenceHandler
	temp   *tempfile.Provider
	binary string
}

// Option configures the worker.
type Option func(*Worker)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(w *Worker) {
		if binary != "" {
			w.binary = binary
		}
	}
}

// NewWorker creates an ffmpeg worker using the given handlers and temp
// provider.
func NewWorker(source, target simpletransform.ReferenceHandler, temp *tempfile.Provider, opts ...Option) (*Worker, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("%w: source and target handlers are required", simpletransform.ErrInvalidArgument)
	}
	if temp == nil {
		return nil, fmt.Errorf("%w: temp file provider is required", simpletransform.ErrInvalidArgument)
	}

	worker := &Worker{
		source: source,
		target: target,
		temp:   temp,
		binary: "ffmpeg",
	}
	for _, opt := range opts {
		opt(worker)
	}
	return worker, nil
}

// Transform transcodes the source media into the target's media type.
// The "offset" and "duration" options (HH:MM:SS[.ms]) trim the source
// temporally before transcoding.
func (w *Worker) Transform(ctx context.Context, source, target simpletransform.ContentReference, options map[string]string, reporter simpletransform.ProgressReporter) error {
	reader, err := w.source.Read(ctx, source, false)
	if err != nil {
		return fmt.Errorf("read source %s: %w", source.URI, err)
	}

	inputPath, err := w.temp.MaterializeStream(reader, "ffmpeg-in-", extensionFor(source))
	if err != nil {
		return err
	}
	defer os.Remove(inputPath)

	outputPath, err := w.temp.NewTempFile("ffmpeg-out-", extensionFor(target), "")
	if err != nil {
		return err
	}
	defer os.Remove(outputPath)

	if err := w.run(ctx, inputPath, outputPath, options, reporter); err != nil {
		return fmt.Errorf("%w: %v", simpletransform.ErrTransformationFailed, err)
	}

	if _, err := w.target.WriteFile(ctx, outputPath, target); err != nil {
		return fmt.Errorf("write target %s: %w", target.URI, err)
	}
	return nil
}

// stderrTailLines bounds how much ffmpeg diagnostic output is carried in
// error detail.
const stderrTailLines = 4

// run launches ffmpeg and forwards parsed progress to the reporter.
func (w *Worker) run(ctx context.Context, inputPath, outputPath string, options map[string]string, reporter simpletransform.ProgressReporter) error {
	args, total := buildArgs(inputPath, outputPath, options)

	cmd := commandContext(ctx, w.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", w.binary, err)
	}

	// Abandoning the scan must not leak the subprocess: kill and reap it
	// before surfacing the caller's error.
	abort := func(cause error) error {
		cmd.Process.Kill()
		cmd.Wait()
		return cause
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		// -progress emits key=value pairs; out_time_us tracks the
		// transcoded position.
		value, ok := strings.CutPrefix(line, "out_time_us=")
		if !ok || total <= 0 {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			continue
		}
		fraction := float64(us) / float64(total.Microseconds())
		if fraction > 1 {
			fraction = 1
		}
		if err := reporter.OnProgress(ctx, fraction); err != nil {
			return abort(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return abort(fmt.Errorf("read %s output: %w", w.binary, err))
	}

	if err := cmd.Wait(); err != nil {
		if detail := stderrTail(stderr.String()); detail != "" {
			return fmt.Errorf("%s failed: %w: %s", w.binary, err, detail)
		}
		return fmt.Errorf("%s failed: %w", w.binary, err)
	}
	return nil
}

// stderrTail returns the last few lines of ffmpeg's stderr, which carry the
// actual diagnostic for a failed transcode.
func stderrTail(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}
	lines := strings.Split(output, "\n")
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "; ")
}

// buildArgs assembles the ffmpeg command line. The returned duration is
// the trimmed length when known, used to scale progress; zero means the
// total length is unknown and progress fractions are not reported.
func buildArgs(inputPath, outputPath string, options map[string]string) ([]string, time.Duration) {
	args := []string{"-y", "-nostats", "-progress", "pipe:1"}

	if offset := options[simpletransform.OptionSourceOffset]; offset != "" {
		args = append(args, "-ss", offset)
	}
	args = append(args, "-i", inputPath)

	var total time.Duration
	if duration := options[simpletransform.OptionSourceDuration]; duration != "" {
		args = append(args, "-t", duration)
		total = parseTimestamp(duration)
	}

	args = append(args, outputPath)
	return args, total
}

// parseTimestamp parses an ffmpeg HH:MM:SS[.ms] timestamp. Malformed input
// yields zero, which disables fractional progress rather than failing the
// transform.
func parseTimestamp(value string) time.Duration {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
}

// extensionFor picks a file extension for temp files from the reference's
// media type, falling back to the URI's own extension. ffmpeg infers
// formats from extensions.
func extensionFor(ref simpletransform.ContentReference) string {
	if exts, err := mime.ExtensionsByType(ref.MediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if ext := filepath.Ext(ref.URI); ext != "" {
		return ext
	}
	return ".bin"
}

var _ simpletransform.Transformer = (*Worker)(nil)
