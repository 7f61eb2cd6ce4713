package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// SpawnError means the shell could not be executed or the PTY could not be
// allocated. It is fatal to session start.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning shell: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Driver wraps the target shell in a pseudo-terminal and relays bytes
// bidirectionally between the real terminal and the PTY master while the
// shell runs. Output bytes are forwarded to the user's terminal unmodified
// and fed to the boundary detector at a single fan-out point, in strict
// arrival order.
type Driver struct {
	shell    string
	env      []string
	hotkey   byte
	detector *Detector

	// Overridable for tests; default to the process terminal.
	stdin  io.Reader
	stdout io.Writer

	hotkeyCh chan struct{}
	shutdown chan struct{}
}

// NewDriver creates a driver for one session. hotkey is the reserved
// control byte intercepted instead of being forwarded to the shell; zero
// disables interception.
func NewDriver(shell string, env []string, hotkey byte, detector *Detector) *Driver {
	return &Driver{
		shell:    shell,
		env:      env,
		hotkey:   hotkey,
		detector: detector,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		hotkeyCh: make(chan struct{}, 1),
		shutdown: make(chan struct{}, 1),
	}
}

// Shutdown asks a running session to stop: the child shell is hung up and
// the normal termination path (flush, restore, wait status) runs.
func (d *Driver) Shutdown() {
	select {
	case d.shutdown <- struct{}{}:
	default:
	}
}

// Hotkey returns the channel signalled when the reserved control byte is
// intercepted. The byte is never forwarded to the shell, so interception
// does not perturb the logged byte stream.
func (d *Driver) Hotkey() <-chan struct{} {
	return d.hotkeyCh
}

// Run spawns the shell, relays bytes until the child exits, and returns the
// shell's exit code. The controlling terminal is placed in raw mode for the
// duration and restored on every exit path. Child death is detected via
// wait status, not inferred from EOF alone.
func (d *Driver) Run() (int, error) {
	cmd := exec.Command(d.shell)
	cmd.Env = d.env

	cwd, err := os.Getwd()
	if err == nil {
		cmd.Dir = cwd
		d.detector.SetCwd(cwd)
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return 0, &SpawnError{Err: err}
	}
	defer func() { _ = ptmx.Close() }()

	// Propagate window size to the PTY, initially and on SIGWINCH.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	winch <- syscall.SIGWINCH

	// Raw mode is a scoped resource: acquired here, released on every exit
	// path. An external stop (SIGTERM from `recli stop`) funnels into the
	// same cleanup by hanging up the child instead of exiting directly.
	stdinFd := int(os.Stdin.Fd())
	oldState, rawErr := term.MakeRaw(stdinFd)
	if rawErr == nil {
		defer func() { _ = term.Restore(stdinFd, oldState) }()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(stop)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-stop:
			case <-d.shutdown:
			case <-done:
				return
			}
			_ = cmd.Process.Signal(syscall.SIGHUP)
		}
	}()

	// User input: forwarded unmodified, except the reserved hotkey byte.
	go d.copyInput(ptmx)

	// The single ordered pipeline: one reader owns the PTY master. Each
	// chunk is echoed to the terminal first, then fed to the detector;
	// neither path may block or reorder the other.
	buf := make([]byte, 8192)
	for {
		n, readErr := ptmx.Read(buf)
		if n > 0 {
			if _, werr := d.stdout.Write(buf[:n]); werr != nil {
				break
			}
			d.detector.Feed(buf[:n])
		}
		if readErr != nil {
			// EIO is the normal Linux signal that the slave side closed.
			break
		}
	}

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return 0, fmt.Errorf("waiting for shell: %w", waitErr)
		}
	}

	// Child is gone: flush whatever the detector still holds so an
	// in-flight command is finished (unknown exit) rather than dropped.
	d.detector.Flush()

	return exitCode, nil
}

// copyInput relays user keystrokes to the PTY master, intercepting the
// reserved hotkey byte and raising a pause event instead of forwarding it.
func (d *Driver) copyInput(ptmx io.Writer) {
	buf := make([]byte, 1024)
	for {
		n, err := d.stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if d.hotkey != 0 {
				chunk = d.scanHotkey(chunk)
			}
			if len(chunk) > 0 {
				if _, werr := ptmx.Write(chunk); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// scanHotkey removes every occurrence of the hotkey byte from the chunk,
// signalling once per chunk at most.
func (d *Driver) scanHotkey(chunk []byte) []byte {
	out := chunk[:0]
	hit := false
	for _, b := range chunk {
		if b == d.hotkey {
			hit = true
			continue
		}
		out = append(out, b)
	}
	if hit {
		select {
		case d.hotkeyCh <- struct{}{}:
		default:
		}
	}
	return out
}
