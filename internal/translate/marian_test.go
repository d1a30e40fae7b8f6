package translate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeFakeDecoder installs a shell script that answers every input
// line, standing in for marian-decoder.
func writeFakeDecoder(t *testing.T, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake decoder scripts need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-marian-decoder")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func modelDirWithConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "decoder.yml"), []byte("models: [model.npz]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestMarianLoaderMissingBinary(t *testing.T) {
	loader := &marianLoader{decoder: "definitely-not-installed-decoder"}

	_, err := loader.Load(context.Background(), "Spanish", modelDirWithConfig(t))
	if !errors.Is(err, ErrDecoderNotFound) {
		t.Errorf("Load() error = %v, want ErrDecoderNotFound", err)
	}
}

func TestMarianRoundTrip(t *testing.T) {
	decoder := writeFakeDecoder(t, `while IFS= read -r line; do echo "XX $line"; done`)
	loader := &marianLoader{decoder: decoder}

	model, err := loader.Load(context.Background(), "Spanish", modelDirWithConfig(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer model.Close()

	got, err := model.Translate(context.Background(), []string{"hello", "goodbye"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	want := []string{"XX hello", "XX goodbye"}
	if len(got) != len(want) {
		t.Fatalf("Translate() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Translate()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMarianReusesProcess(t *testing.T) {
	decoder := writeFakeDecoder(t, `while IFS= read -r line; do echo "OUT $line"; done`)
	loader := &marianLoader{decoder: decoder}

	model, err := loader.Load(context.Background(), "Hindi", modelDirWithConfig(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer model.Close()

	for i := 0; i < 5; i++ {
		got, err := model.Translate(context.Background(), []string{"line"})
		if err != nil {
			t.Fatalf("Translate() round %d error = %v", i, err)
		}
		if got[0] != "OUT line" {
			t.Errorf("Translate() round %d = %q", i, got[0])
		}
	}
}

func TestMarianCanceledRequestBreaksModel(t *testing.T) {
	// The decoder swallows input without ever answering, forcing the
	// round trip to time out.
	decoder := writeFakeDecoder(t, `while IFS= read -r line; do :; done`)
	loader := &marianLoader{decoder: decoder}

	model, err := loader.Load(context.Background(), "Spanish", modelDirWithConfig(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer model.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := model.Translate(ctx, []string{"hello"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Translate() error = %v, want DeadlineExceeded", err)
	}

	// The stream is now misaligned, further use must be refused.
	if _, err := model.Translate(context.Background(), []string{"again"}); err == nil {
		t.Error("Translate() after canceled request succeeded, want error")
	}
}

func TestMarianDecoderExit(t *testing.T) {
	decoder := writeFakeDecoder(t, `exit 0`)
	loader := &marianLoader{decoder: decoder}

	model, err := loader.Load(context.Background(), "Spanish", modelDirWithConfig(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer model.Close()

	if _, err := model.Translate(context.Background(), []string{"hello"}); err == nil {
		t.Error("Translate() against exited decoder succeeded, want error")
	}
}
