package source

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFTPAddr     = "ftp.ncbi.nlm.nih.gov:21"
	DefaultFTPBasePath = "/pub/pmc/"
)

// ftpConn is the subset of *ftp.ServerConn used by FTPClient.
type ftpConn interface {
	Login(user, password string) error
	NoOp() error
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error)

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return serverConn{conn}, nil
}

type FTPConfig struct {
	Addr     string
	BasePath string
	User     string
	Password string
	Timeout  time.Duration

	// Delay before the single reconnect attempt.
	ReconnectDelay time.Duration
}

// FTPClient downloads files over a single long-lived FTP connection. The
// connection is opened lazily, checked with NOOP before every transfer and
// re-established once when a transfer fails.
type FTPClient struct {
	logger logrus.FieldLogger
	config FTPConfig
	dial   dialFunc

	mu   sync.Mutex
	conn ftpConn
}

func NewFTPClient(logger logrus.FieldLogger, config FTPConfig) *FTPClient {
	if config.Addr == "" {
		config.Addr = DefaultFTPAddr
	}
	if config.BasePath == "" {
		config.BasePath = DefaultFTPBasePath
	}
	if config.User == "" {
		config.User, config.Password = "anonymous", "anonymous"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &FTPClient{
		logger: logger,
		config: config,
		dial:   dialFTP,
	}
}

// GetFile retrieves a file relative to the base path.
func (c *FTPClient) GetFile(ctx context.Context, filePath string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullPath := path.Join(c.config.BasePath, strings.TrimLeft(filePath, "/"))

	var (
		blob    []byte
		attempt int
	)
	op := func() error {
		attempt++
		if attempt > 1 {
			c.logger.WithField("path", fullPath).Warn("FTP transfer failed, reconnecting")
			c.close()
		}
		if err := c.ensureConnection(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		blob, err = c.retrieve(fullPath)
		return err
	}

	retry := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.config.ReconnectDelay), 1)
	if err := backoff.Retry(op, backoff.WithContext(retry, ctx)); err != nil {
		return nil, errors.Wrapf(err, "retrieving %s over FTP", fullPath)
	}
	return blob, nil
}

func (c *FTPClient) retrieve(fullPath string) ([]byte, error) {
	r, err := c.conn.Retr(fullPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *FTPClient) ensureConnection(ctx context.Context) error {
	if c.conn != nil {
		if err := c.conn.NoOp(); err == nil {
			return nil
		}
		c.logger.Debug("FTP connection lost, reconnecting")
		c.close()
	}

	conn, err := c.dial(ctx, c.config.Addr, c.config.Timeout)
	if err != nil {
		c.logger.WithError(err).WithField("addr", c.config.Addr).Error("Failed to connect to FTP server")
		return errors.Wrap(err, "connecting to FTP server")
	}
	if err := conn.Login(c.config.User, c.config.Password); err != nil {
		conn.Quit()
		return errors.Wrap(err, "logging into FTP server")
	}
	c.conn = conn
	return nil
}

func (c *FTPClient) close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Quit(); err != nil {
		c.logger.WithError(err).Debug("Error closing FTP connection")
	}
	c.conn = nil
}

// Close terminates the connection, if any.
func (c *FTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
	return nil
}
