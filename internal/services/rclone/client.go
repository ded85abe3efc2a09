package rclone

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"capstan/internal/logging"
	"capstan/internal/services"
)

// Fetcher defines the behaviour the orchestrator needs from the transfer
// layer.
type Fetcher interface {
	// Fetch copies one remote file into destDir and returns the local path.
	Fetch(ctx context.Context, remotePath, destDir string) (string, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Options tunes the transfer invocation and retry policy.
type Options struct {
	Binary       string
	RemoteName   string
	RootFolderID string
	Transfers    int
	Checkers     int
	MaxRetries   int
	RetryDelay   time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithSleep overrides the inter-retry sleep (primarily for tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// Client invokes rclone to copy archives from the configured remote.
type Client struct {
	opts   Options
	exec   Executor
	sleep  func(context.Context, time.Duration) error
	logger *slog.Logger
}

// New constructs an rclone client.
func New(opts Options, logger *slog.Logger, clientOpts ...Option) (*Client, error) {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "rclone"
	}
	if strings.TrimSpace(opts.RemoteName) == "" {
		return nil, errors.New("rclone remote name required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	client := &Client{
		opts:   opts,
		exec:   commandExecutor{},
		sleep:  sleepContext,
		logger: logging.NewComponentLogger(logger, "rclone"),
	}
	for _, opt := range clientOpts {
		opt(client)
	}
	return client, nil
}

// Fetch copies remotePath into destDir with bounded retries and a fixed
// delay between attempts. The local file is verified to exist and be
// non-empty before Fetch returns.
func (c *Client) Fetch(ctx context.Context, remotePath, destDir string) (string, error) {
	if strings.TrimSpace(remotePath) == "" {
		return "", services.Wrap(services.ErrValidation, "downloading", "fetch", "remote path required", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	localPath := filepath.Join(destDir, path.Base(remotePath))

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := c.copyOnce(ctx, remotePath, destDir)
		if err == nil {
			if verifyErr := verifyLocal(localPath); verifyErr == nil {
				return localPath, nil
			} else {
				err = verifyErr
			}
		}
		lastErr = err
		c.logger.Warn("transfer attempt failed",
			logging.String("remote", remotePath),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.opts.MaxRetries),
			logging.Error(err),
		)
		if attempt < c.opts.MaxRetries && c.opts.RetryDelay > 0 {
			if sleepErr := c.sleep(ctx, c.opts.RetryDelay); sleepErr != nil {
				return "", sleepErr
			}
		}
	}
	return "", services.Wrap(services.ErrTransfer, "downloading", "fetch",
		fmt.Sprintf("%s after %d attempts", remotePath, c.opts.MaxRetries), lastErr)
}

func (c *Client) copyOnce(ctx context.Context, remotePath, destDir string) error {
	args := []string{
		"copy",
		fmt.Sprintf("%s:%s", c.opts.RemoteName, remotePath),
		destDir,
	}
	if c.opts.RootFolderID != "" {
		args = append(args, "--drive-root-folder-id", c.opts.RootFolderID)
	}
	if c.opts.Transfers > 0 {
		args = append(args, "--transfers", strconv.Itoa(c.opts.Transfers))
	}
	if c.opts.Checkers > 0 {
		args = append(args, "--checkers", strconv.Itoa(c.opts.Checkers))
	}

	return c.exec.Run(ctx, c.opts.Binary, args, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			c.logger.Debug("rclone output", logging.String("line", line))
		}
	})
}

func verifyLocal(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("local copy missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("local copy %s is empty", path)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				onOutput(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("rclone: %w", err)
	}
	return scanErr
}
