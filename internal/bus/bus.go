// Package bus is the local control channel between a running monitor and
// the CLI: a unix socket carrying one-byte commands, and a pidfile that
// refuses a second monitor for the same user.
package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ProtoVer is the control protocol version reported to clients.
const ProtoVer = "0.1"

const (
	sockName = "control.sock"
	pidName  = "monitor.pid"

	dialTimeout  = 2 * time.Second
	replyTimeout = 5 * time.Second
)

// runtimeDir resolves where the socket and pidfile live. The default is
// the user cache dir; DICTASCRIBE_RUNTIME_DIR overrides it for tests and
// non-standard deployments.
func runtimeDir() (string, error) {
	if dir := os.Getenv("DICTASCRIBE_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve runtime directory: %w", err)
	}
	return filepath.Join(cache, "dictascribe"), nil
}

func SockPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sockName), nil
}

func PidPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, pidName), nil
}

// Listen opens the control socket, replacing any stale socket file left
// by an earlier run.
func Listen() (net.Listener, error) {
	sp, err := SockPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(sp), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(sp)
	return net.Listen("unix", sp)
}

// SendCommand writes one command byte to the running monitor and returns
// its single-line reply. Both the dial and the exchange are bounded so a
// wedged monitor cannot hang the CLI.
func SendCommand(cmd byte) (string, error) {
	sp, err := SockPath()
	if err != nil {
		return "", err
	}

	conn, err := net.DialTimeout("unix", sp, dialTimeout)
	if err != nil {
		return "", fmt.Errorf("monitor not reachable at %s: %w", sp, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(replyTimeout))

	if _, err := conn.Write([]byte{cmd, '\n'}); err != nil {
		return "", err
	}
	return bufio.NewReader(conn).ReadString('\n')
}

// CheckExistingMonitor reports an error when a live monitor already owns
// the pidfile. Stale pidfiles (dead process, unparsable content) are
// removed and do not block startup.
func CheckExistingMonitor() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}

	pidData, err := os.ReadFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		_ = os.Remove(pidPath)
		return nil
	}

	if !processAlive(pid) {
		_ = os.Remove(pidPath)
		return nil
	}
	return fmt.Errorf("monitor already running with PID %d", pid)
}

// processAlive probes a pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func CreatePidFile() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(pidPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func RemovePidFile() error {
	pidPath, err := PidPath()
	if err != nil {
		return err
	}
	return os.Remove(pidPath)
}
