package translate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"meditranslate/internal/logger"
)

// marianLoader starts a marian-decoder subprocess per language.
type marianLoader struct {
	decoder string
}

// Load spawns the decoder for one model directory. The decoder stays
// alive until the model is closed, so repeated translations reuse the
// warmed-up process.
func (l *marianLoader) Load(ctx context.Context, language, dir string) (Model, error) {
	const op = "Load"

	binary, err := exec.LookPath(l.decoder)
	if err != nil {
		return nil, WrapTranslateError(op, ErrDecoderNotFound,
			fmt.Sprintf("%s not found in PATH", l.decoder))
	}

	configPath := filepath.Join(dir, "decoder.yml")

	cmd := exec.Command(binary, "-c", configPath, "--quiet-translation")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, WrapTranslateError(op, err, "failed to open decoder stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, WrapTranslateError(op, err, "failed to open decoder stdout")
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, WrapTranslateError(op, ErrDecoderNotFound,
			fmt.Sprintf("failed to start %s: %v", binary, err))
	}

	model := &marianModel{
		language: language,
		cmd:      cmd,
		in:       stdin,
		out:      make(chan string),
		log:      logger.WithComponent("translate-marian"),
	}
	go model.pump(stdout)

	return model, nil
}

// marianModel talks to one running marian-decoder over a line protocol:
// one source sentence in, one translated sentence out, in order.
type marianModel struct {
	language string
	cmd      *exec.Cmd
	in       io.WriteCloser
	out      chan string
	log      zerolog.Logger

	mu     sync.Mutex
	broken bool
}

// pump forwards decoder output lines to the out channel until the
// process exits.
func (m *marianModel) pump(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m.out <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		m.log.Warn().Err(err).Str("language", m.language).Msg("Decoder output stream failed")
	}
	close(m.out)
}

// Translate sends each line through the decoder and collects the
// translations in order.
func (m *marianModel) Translate(ctx context.Context, lines []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.broken {
		return nil, fmt.Errorf("decoder for %s is out of sync after a canceled request", m.language)
	}

	results := make([]string, 0, len(lines))
	for _, line := range lines {
		translated, err := m.roundTrip(ctx, line)
		if err != nil {
			return nil, err
		}
		results = append(results, translated)
	}
	return results, nil
}

// roundTrip writes one line and waits for its translation. A canceled
// wait leaves an unread response in the stream, so the model marks
// itself broken rather than serve misaligned output later.
func (m *marianModel) roundTrip(ctx context.Context, line string) (string, error) {
	line = strings.ReplaceAll(line, "\n", " ")

	if _, err := io.WriteString(m.in, line+"\n"); err != nil {
		m.broken = true
		return "", fmt.Errorf("write to decoder: %w", err)
	}

	select {
	case <-ctx.Done():
		m.broken = true
		return "", ctx.Err()
	case translated, ok := <-m.out:
		if !ok {
			m.broken = true
			return "", fmt.Errorf("decoder for %s exited", m.language)
		}
		return translated, nil
	}
}

// Close shuts the decoder down by closing its stdin and waiting for
// exit.
func (m *marianModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.in.Close(); err != nil {
		m.cmd.Process.Kill()
		m.cmd.Wait()
		return err
	}
	return m.cmd.Wait()
}
