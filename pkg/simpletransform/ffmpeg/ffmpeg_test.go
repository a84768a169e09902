package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/tendant/simple-transform/pkg/simpletransform"
	memorystorage "github.com/tendant/simple-transform/pkg/simpletransform/storage/memory"
	"github.com/tendant/simple-transform/pkg/simpletransform/tempfile"
)

// recordingReporter captures progress fractions.
type recordingReporter struct {
	fractions []float64
}

func (r *recordingReporter) OnStarted(ctx context.Context) error { return nil }
func (r *recordingReporter) OnComplete(ctx context.Context) error { return nil }
func (r *recordingReporter) OnProgress(ctx context.Context, fraction float64) error {
	r.fractions = append(r.fractions, fraction)
	return nil
}

func TestBuildArgs_TrimOptions(t *testing.T) {
	args, total := buildArgs("/tmp/in.mpg", "/tmp/out.mp4", map[string]string{
		simpletransform.OptionSourceOffset:   "00:00:00.5",
		simpletransform.OptionSourceDuration: "00:00:00.2",
	})

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-ss 00:00:00.5") {
		t.Fatalf("expected offset flag in args %v", args)
	}
	if !strings.Contains(joined, "-t 00:00:00.2") {
		t.Fatalf("expected duration flag in args %v", args)
	}
	if !strings.Contains(joined, "-i /tmp/in.mpg") {
		t.Fatalf("expected input flag in args %v", args)
	}
	if args[len(args)-1] != "/tmp/out.mp4" {
		t.Fatalf("expected output path last, got %v", args)
	}
	if total != 200*time.Millisecond {
		t.Fatalf("expected total duration 200ms, got %v", total)
	}
}

func TestBuildArgs_NoOptions(t *testing.T) {
	args, total := buildArgs("/tmp/in.avi", "/tmp/out.mkv", nil)
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-ss") || strings.Contains(joined, "-t ") {
		t.Fatalf("unexpected trim flags in args %v", args)
	}
	if total != 0 {
		t.Fatalf("expected unknown total duration, got %v", total)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"00:00:00.5", 500 * time.Millisecond},
		{"00:01:30", 90 * time.Second},
		{"01:00:00", time.Hour},
		{"garbage", 0},
		{"1:2", 0},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got != tt.want {
			t.Fatalf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWorker_TransformWithFakeFFmpeg(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=success")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	handler := memorystorage.New()
	provider, err := tempfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	worker, err := NewWorker(handler, handler, provider)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	ctx := context.Background()
	source, _ := handler.CreateReference(ctx, "clip.mpg", "video/mpeg")
	if _, err := handler.Write(ctx, strings.NewReader("fake mpeg bytes"), source); err != nil {
		t.Fatalf("write source: %v", err)
	}
	target, _ := handler.CreateReference(ctx, "clip.mp4", "video/mp4")

	reporter := &recordingReporter{}
	options := map[string]string{simpletransform.OptionSourceDuration: "00:00:01"}

	if err := worker.Transform(ctx, source, target, options, reporter); err != nil {
		t.Fatalf("transform: %v", err)
	}

	if ok, _ := handler.Exists(ctx, target); !ok {
		t.Fatal("expected target written after transform")
	}

	if len(reporter.fractions) == 0 {
		t.Fatal("expected progress fractions from helper output")
	}
	for _, fraction := range reporter.fractions {
		if fraction < 0 || fraction > 1 {
			t.Fatalf("fraction %v out of range", fraction)
		}
	}
}

func TestWorker_TransformFFmpegFailure(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=fail")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	handler := memorystorage.New()
	provider, err := tempfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	worker, err := NewWorker(handler, handler, provider)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	ctx := context.Background()
	source, _ := handler.CreateReference(ctx, "bad.mpg", "video/mpeg")
	if _, err := handler.Write(ctx, strings.NewReader("corrupt"), source); err != nil {
		t.Fatalf("write source: %v", err)
	}
	target, _ := handler.CreateReference(ctx, "bad.mp4", "video/mp4")

	err = worker.Transform(ctx, source, target, nil, &recordingReporter{})
	if err == nil {
		t.Fatal("expected transform failure")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("error must carry the stderr diagnostic, got %v", err)
	}
	if ok, _ := handler.Exists(ctx, target); ok {
		t.Fatal("target must not exist after failed transform")
	}
}

// failingReporter rejects the first progress callback.
type failingReporter struct {
	err error
}

func (r *failingReporter) OnStarted(ctx context.Context) error { return nil }
func (r *failingReporter) OnComplete(ctx context.Context) error { return nil }
func (r *failingReporter) OnProgress(ctx context.Context, fraction float64) error {
	return r.err
}

func TestWorker_ReporterErrorStopsSubprocess(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE=hang")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	handler := memorystorage.New()
	provider, err := tempfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	worker, err := NewWorker(handler, handler, provider)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	ctx := context.Background()
	source, _ := handler.CreateReference(ctx, "clip.mpg", "video/mpeg")
	if _, err := handler.Write(ctx, strings.NewReader("fake mpeg bytes"), source); err != nil {
		t.Fatalf("write source: %v", err)
	}
	target, _ := handler.CreateReference(ctx, "clip.mp4", "video/mp4")

	reporter := &failingReporter{err: fmt.Errorf("reply queue closed")}
	options := map[string]string{simpletransform.OptionSourceDuration: "00:00:01"}

	// The helper lingers after its first progress line; the transform must
	// surface the reporter's error without waiting for it to finish.
	done := make(chan error, 1)
	go func() {
		done <- worker.Transform(ctx, source, target, options, reporter)
	}()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "reply queue closed") {
			t.Fatalf("expected reporter error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("transform did not return after reporter error; subprocess not reaped")
	}
}

func TestStderrTail(t *testing.T) {
	if got := stderrTail(""); got != "" {
		t.Fatalf("empty stderr must yield empty tail, got %q", got)
	}
	if got := stderrTail("one line\n"); got != "one line" {
		t.Fatalf("unexpected tail %q", got)
	}
	got := stderrTail("a\nb\nc\nd\ne\nf\n")
	if got != "c; d; e; f" {
		t.Fatalf("expected last lines only, got %q", got)
	}
}

func TestWorker_TransformMissingSource(t *testing.T) {
	handler := memorystorage.New()
	provider, err := tempfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	worker, err := NewWorker(handler, handler, provider)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	source := simpletransform.NewContentReference("mem://missing.mpg", "video/mpeg")
	target := simpletransform.NewContentReference("mem://out.mp4", "video/mp4")

	if err := worker.Transform(context.Background(), source, target, nil, &recordingReporter{}); err == nil {
		t.Fatal("expected error for missing source")
	}
}

// TestHelperProcess stands in for the ffmpeg binary in tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		for _, us := range []int64{250000, 500000, 1000000} {
			fmt.Printf("out_time_us=%d\n", us)
		}
		fmt.Println("progress=end")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	case "hang":
		fmt.Println("out_time_us=250000")
		os.Stdout.Sync()
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(0)
}
