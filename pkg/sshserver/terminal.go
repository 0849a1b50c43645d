package sshserver

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"unicode"
)

const (
	seqSaveCursor    = "\0337\033[s"
	seqRestoreCursor = "\033[u\0338"
	seqCursorHome    = "\033[H"
	seqClearLine     = "\033[2K"
	seqInsertLine    = "\033[1L"
	seqClearScreen   = "\033[2J"
	seqLineStart     = "\r\033[K"
)

const (
	ctrlC      = 0x03
	ctrlD      = 0x04
	backspace  = '\b'
	deleteChar = 0x7f
)

// Terminal turns an interactive SSH channel into a line connection. Input is
// echoed and edited locally; incoming lines are printed above the prompt.
type Terminal struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader
	buffer *lineBuffer
	remote net.Addr
	status func() string

	mu         sync.Mutex
	statusOnce sync.Once
	statusErr  error
	closeOnce  sync.Once
}

func newTerminal(rw io.ReadWriteCloser, remote net.Addr, status func() string) *Terminal {
	return &Terminal{
		rw:     rw,
		reader: bufio.NewReader(rw),
		buffer: newLineBuffer(128),
		remote: remote,
		status: status,
	}
}

// RemoteAddr returns the client address.
func (t *Terminal) RemoteAddr() net.Addr {
	return t.remote
}

// ReadLine blocks until the user submits a non-blank line. Ctrl-C discards
// the pending input and Ctrl-D ends the stream with io.EOF.
func (t *Terminal) ReadLine() (string, error) {
	for {
		r, _, err := t.reader.ReadRune()
		if err != nil {
			if text := strings.TrimSpace(t.buffer.Drain()); text != "" {
				return text, nil
			}
			return "", err
		}

		switch r {
		case '\r', '\n':
			t.skipLineFeed(r)
			text := strings.TrimSpace(t.buffer.Drain())
			if err := t.renderPrompt(); err != nil {
				return "", err
			}
			if text != "" {
				return text, nil
			}
		case ctrlC:
			if err := t.controlAck("^C"); err != nil {
				return "", err
			}
		case ctrlD:
			if err := t.controlAck("^D"); err != nil {
				return "", err
			}
			return "", io.EOF
		case backspace, deleteChar:
			t.buffer.TrimLast()
			if err := t.renderPrompt(); err != nil {
				return "", err
			}
		default:
			if unicode.IsPrint(r) {
				t.buffer.Append(r)
				if err := t.renderPrompt(); err != nil {
					return "", err
				}
			}
		}
	}
}

// skipLineFeed swallows the LF of a CRLF pair that has already arrived.
func (t *Terminal) skipLineFeed(r rune) {
	if r != '\r' || t.reader.Buffered() == 0 {
		return
	}
	if next, _, err := t.reader.ReadRune(); err == nil && next != '\n' {
		_ = t.reader.UnreadRune()
	}
}

// WriteLine prints line above the prompt and redraws the pending input.
func (t *Terminal) WriteLine(line string) error {
	if err := t.write(seqLineStart + line + "\r\n"); err != nil {
		return err
	}
	return t.renderPrompt()
}

// Close closes the underlying channel.
func (t *Terminal) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.rw.Close()
	})
	return err
}

func (t *Terminal) clearScreen() error {
	return t.write(seqClearScreen + seqCursorHome)
}

func (t *Terminal) controlAck(label string) error {
	t.buffer.Reset()
	if err := t.write(seqLineStart + label + "\r\n"); err != nil {
		return err
	}
	return t.renderPrompt()
}

func (t *Terminal) renderPrompt() error {
	if t.status != nil {
		if err := t.ensureStatusLine(); err != nil {
			return err
		}
		if err := t.write(seqSaveCursor + seqCursorHome + seqClearLine + t.status() + seqRestoreCursor); err != nil {
			return err
		}
	}
	return t.write("\r> " + t.buffer.Snapshot() + "\033[K")
}

func (t *Terminal) ensureStatusLine() error {
	t.statusOnce.Do(func() {
		t.statusErr = t.write(seqSaveCursor + seqCursorHome + seqInsertLine + seqRestoreCursor)
	})
	return t.statusErr
}

func (t *Terminal) write(s string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := io.WriteString(t.rw, s)
	return err
}
