// Package share authenticates to the network share holding dictation
// files before the pipeline tries to read them.
package share

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/hirochachacha/go-smb2"
	"github.com/sirupsen/logrus"
)

// ErrAuth reports rejected share credentials.
var ErrAuth = errors.New("network share authentication failed")

// Credentials for the share; Domain may be empty.
type Credentials struct {
	Username string
	Password string
	Domain   string
}

// Connector establishes access to the share root of a UNC path. The
// contract is boolean: nil means the share is reachable with the given
// credentials (or was already connected), an error means it is not.
type Connector interface {
	Connect(ctx context.Context, uncPath string, creds Credentials) error
}

// SMBConnector probes the share with an SMB2 session and mount, then
// disconnects; subsequent file reads go through the OS as usual.
type SMBConnector struct {
	log *logrus.Entry
}

func NewSMBConnector(log *logrus.Entry) *SMBConnector {
	return &SMBConnector{log: log}
}

func (c *SMBConnector) Connect(ctx context.Context, uncPath string, creds Credentials) error {
	server, shareName, err := SplitUNC(uncPath)
	if err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"server": server,
		"share":  shareName,
	}).Info("connecting to network share")

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(server, "445"))
	if err != nil {
		return fmt.Errorf("dial share server %s: %w", server, err)
	}
	defer conn.Close()

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Password: creds.Password,
			Domain:   creds.Domain,
		},
	}

	session, err := dialer.DialContext(ctx, conn)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAuth, server, err)
	}
	defer session.Logoff()

	fs, err := session.Mount(shareName)
	if err != nil {
		return fmt.Errorf("%w: mount %s on %s: %v", ErrAuth, shareName, server, err)
	}
	_ = fs.Umount()

	c.log.WithField("server", server).Info("network share connection established")
	return nil
}

// SplitUNC extracts server and share name from \\server\share\... paths.
func SplitUNC(uncPath string) (server, shareName string, err error) {
	trimmed := strings.TrimPrefix(uncPath, `\\`)
	if trimmed == uncPath {
		return "", "", fmt.Errorf("not a UNC path: %s", uncPath)
	}
	parts := strings.SplitN(trimmed, `\`, 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("could not extract share root from UNC path: %s", uncPath)
	}
	return parts[0], parts[1], nil
}
