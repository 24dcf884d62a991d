// Package session runs Junos CLI commands over SSH, hopping through a TACACS
// jump host.
package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config holds the transport settings shared by every device
type Config struct {
	JumpHost       string
	Username       string
	Password       string
	Port           int
	KnownHosts     string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	AuthRetries    int
	RetryDelay     time.Duration
}

// Client is an interactive shell on one router
type Client struct {
	host   string
	cfg    Config
	log    logrus.FieldLogger
	jump   *ssh.Client
	router *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	reader *promptReader
}

// Dial connects to the jump host, then to host through it, and opens a
// shell with paging disabled.
func Dial(ctx context.Context, cfg Config, host string, log logrus.FieldLogger) (*Client, error) {
	log = log.WithField("host", host)
	clientCfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	var jump *ssh.Client
	err = withAuthRetry(ctx, cfg, log, func() error {
		var dialErr error
		jump, dialErr = dialDirect(ctx, cfg.JumpHost, clientCfg, cfg.DialTimeout)
		return dialErr
	})
	if err != nil {
		return nil, errors.Wrapf(err, "jump host %s", cfg.JumpHost)
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, fmt.Sprint(port))

	var router *ssh.Client
	err = withAuthRetry(ctx, cfg, log, func() error {
		conn, dialErr := jump.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return errors.Wrap(dialErr, "dial through jump host")
		}
		c, chans, reqs, dialErr := ssh.NewClientConn(conn, addr, clientCfg)
		if dialErr != nil {
			conn.Close()
			return dialErr
		}
		router = ssh.NewClient(c, chans, reqs)
		return nil
	})
	if err != nil {
		jump.Close()
		return nil, errors.Wrapf(err, "router %s", addr)
	}

	c := &Client{host: host, cfg: cfg, log: log, jump: jump, router: router}
	if err := c.openShell(ctx); err != nil {
		c.Close()
		return nil, err
	}
	log.Debug("shell ready")
	return c, nil
}

func clientConfig(cfg Config) (*ssh.ClientConfig, error) {
	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		cb, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, errors.Wrap(err, "load known_hosts")
		}
		hostKey = cb
	}
	password := cfg.Password
	return &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         cfg.DialTimeout,
	}, nil
}

func dialDirect(ctx context.Context, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// IsAuthError reports whether err is an SSH authentication failure
func IsAuthError(err error) bool {
	return err != nil && strings.Contains(errors.Cause(err).Error(), "unable to authenticate")
}

// withAuthRetry retries authentication failures with a linearly growing
// delay. Other errors are returned at once.
func withAuthRetry(ctx context.Context, cfg Config, log logrus.FieldLogger, fn func() error) error {
	attempts := cfg.AuthRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil || !IsAuthError(err) {
			return err
		}
		if i == attempts {
			break
		}
		wait := time.Duration(i) * cfg.RetryDelay
		log.WithFields(logrus.Fields{"attempt": i, "wait": wait}).Warn("authentication failed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) openShell(ctx context.Context) error {
	sess, err := c.router.NewSession()
	if err != nil {
		return errors.Wrap(err, "new session")
	}
	c.sess = sess

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("vt100", 200, 512, modes); err != nil {
		return errors.Wrap(err, "request pty")
	}
	if c.stdin, err = sess.StdinPipe(); err != nil {
		return errors.Wrap(err, "stdin")
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "stdout")
	}
	if err := sess.Shell(); err != nil {
		return errors.Wrap(err, "start shell")
	}
	c.reader = newPromptReader(stdout)

	if _, err := c.reader.readUntilPrompt(ctx, c.cfg.CommandTimeout, false); err != nil {
		return errors.Wrap(err, "initial prompt")
	}
	for _, setup := range []string{"set cli screen-length 0", "set cli screen-width 0"} {
		if _, err := c.Run(ctx, setup); err != nil {
			return errors.Wrapf(err, "%q", setup)
		}
	}
	return nil
}

// Run sends one command and returns its raw output up to the next prompt
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	if c.reader == nil {
		return "", errors.New("shell not open")
	}
	if _, err := fmt.Fprintf(c.stdin, "%s\n", command); err != nil {
		return "", errors.Wrapf(err, "send %q", command)
	}
	start := time.Now()
	out, err := c.reader.readUntilPrompt(ctx, c.cfg.CommandTimeout, true)
	c.log.WithFields(logrus.Fields{
		"command": command,
		"bytes":   len(out),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("command finished")
	if err != nil {
		return out, errors.Wrapf(err, "run %q", command)
	}
	return out, nil
}

// Close tears down the shell and both SSH hops
func (c *Client) Close() error {
	if c.stdin != nil {
		fmt.Fprintln(c.stdin, "exit")
	}
	if c.reader != nil {
		c.reader.close()
	}
	if c.sess != nil {
		c.sess.Close()
	}
	var err error
	if c.router != nil {
		err = c.router.Close()
	}
	if c.jump != nil {
		if jerr := c.jump.Close(); err == nil {
			err = jerr
		}
	}
	return err
}
