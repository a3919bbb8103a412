package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"dictascribe/internal/bus"
)

// Control commands, one byte each over the unix socket.
const (
	CmdStatus  = 's'
	CmdStop    = 'q'
	CmdVersion = 'v'
)

// ControlServer answers status queries and stop requests for a running
// monitor over the local control socket.
type ControlServer struct {
	monitor *Monitor
	stop    context.CancelFunc
	log     *logrus.Entry
}

func NewControlServer(m *Monitor, stop context.CancelFunc, log *logrus.Entry) *ControlServer {
	return &ControlServer{monitor: m, stop: stop, log: log}
}

// Serve accepts connections until ctx is cancelled or the listener
// closes. Callers run it in its own goroutine and close ln to unblock.
func (s *ControlServer) Serve(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.WithError(err).Warn("control socket accept failed")
			continue
		}
		go s.handle(conn)
	}
}

func (s *ControlServer) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil || line == "" {
		return
	}

	switch line[0] {
	case CmdStatus:
		st := s.monitor.Snapshot()
		fmt.Fprintf(conn, "RUNNING uptime=%s attempted=%d processed=%d failed=%d last_poll=%s\n",
			time.Since(st.StartedAt).Round(time.Second),
			st.Attempted, st.Processed, st.Failed,
			formatPoll(st.LastPoll))
	case CmdStop:
		fmt.Fprintln(conn, "STOPPING")
		s.log.Info("stop requested via control socket")
		s.stop()
	case CmdVersion:
		fmt.Fprintln(conn, bus.ProtoVer)
	default:
		fmt.Fprintln(conn, "ERR unknown command")
	}
}

func formatPoll(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
