package session

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

// promptPattern matches a Junos operational or configuration prompt at the
// very end of the output, e.g. "user@R1> " or "user@R1# ".
var promptPattern = regexp.MustCompile(`[\w.\-]+@[\w.:\-]+[>#%]\s*$`)

// ErrTimeout is returned when no prompt shows up in time
var ErrTimeout = errors.New("timed out waiting for prompt")

// promptReader pumps a shell's output into chunks and collects them until
// the prompt reappears.
type promptReader struct {
	chunks chan []byte
	done   chan struct{}
	stop   chan struct{}
	err    error
}

func newPromptReader(r io.Reader) *promptReader {
	p := &promptReader{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case p.chunks <- chunk:
				case <-p.stop:
					return
				}
			}
			if err != nil {
				p.err = err
				return
			}
		}
	}()
	return p
}

// close stops the pump; the underlying reader must be closed by the owner
func (p *promptReader) close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// readUntilPrompt returns everything read until the prompt, including the
// prompt itself. When requireLine is set the prompt only counts once a
// newline has been seen, so the echoed command line cannot end the read.
func (p *promptReader) readUntilPrompt(ctx context.Context, timeout time.Duration, requireLine bool) (string, error) {
	var out bytes.Buffer
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case chunk := <-p.chunks:
			out.Write(chunk)
			data := out.Bytes()
			if requireLine {
				i := bytes.IndexByte(data, '\n')
				if i < 0 {
					continue
				}
				data = data[i+1:]
			}
			if promptPattern.Match(bytes.TrimRight(data, "\r")) {
				return out.String(), nil
			}
		case <-p.done:
			for drained := false; !drained; {
				select {
				case chunk := <-p.chunks:
					out.Write(chunk)
				default:
					drained = true
				}
			}
			if promptPattern.Match(bytes.TrimRight(out.Bytes(), "\r")) {
				return out.String(), nil
			}
			if p.err != nil && p.err != io.EOF {
				return out.String(), errors.Wrap(p.err, "read shell output")
			}
			return out.String(), errors.New("shell closed before prompt")
		case <-timer.C:
			return out.String(), ErrTimeout
		case <-ctx.Done():
			return out.String(), ctx.Err()
		}
	}
}
