// Package gallerydl is a feed.Source backed by the gallery-dl command line
// tool. Every call runs `gallery-dl -j` and decodes the JSON message list it
// prints.
package gallerydl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	errs "feedmirror/pkg/errors"
	"feedmirror/pkg/feed"
	"feedmirror/pkg/logger"
	"feedmirror/pkg/ratelimit"
	"feedmirror/pkg/retry"
)

// gallery-dl exit status bits
const (
	exitHTTPError    = 4
	exitNotFound     = 8
	exitAuth         = 16
	exitFormat       = 32
	exitNoExtractor  = 64
	maxStderrInError = 512
)

// Options configure the command
type Options struct {
	Command    string
	CookieFile string
	// Timeout bounds a single invocation
	Timeout time.Duration
	// Attempts is the total number of tries per call
	Attempts   int
	RetryDelay time.Duration
	Limiter    ratelimit.Limiter
}

// Client runs gallery-dl
type Client struct {
	opts    Options
	limiter ratelimit.Limiter
	retry   *retry.Config
	logger  logger.Logger
}

// New creates a client
func New(opts Options, log logger.Logger) *Client {
	log = logger.OrDefault(log)
	if opts.Command == "" {
		opts.Command = "gallery-dl"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	backoff := retry.DefaultExponentialBackoff()
	if opts.RetryDelay > 0 {
		backoff.BaseDelay = opts.RetryDelay
	}

	return &Client{
		opts:    opts,
		limiter: limiter,
		retry: &retry.Config{
			MaxAttempts: opts.Attempts,
			Backoff:     backoff,
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		logger: log,
	}
}

// CheckAvailable runs `<command> --version`. Any failure wraps errs.ErrToolUnavailable.
func (c *Client) CheckAvailable(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", errs.ErrToolUnavailable, c.opts.Command, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ListPosts returns the post listing of an account locator
func (c *Client) ListPosts(ctx context.Context, locator string) (*feed.Listing, error) {
	out, err := c.dump(ctx, locator)
	if err != nil {
		return nil, err
	}
	return feed.ParseListing(out)
}

// GetPost returns the detailed record of a post locator
func (c *Client) GetPost(ctx context.Context, locator string) (*feed.Post, error) {
	out, err := c.dump(ctx, locator)
	if err != nil {
		return nil, err
	}
	post, err := feed.ParsePost(out)
	if err != nil {
		return nil, err
	}
	post.Locator = locator
	return post, nil
}

func (c *Client) dump(ctx context.Context, locator string) ([]byte, error) {
	args := []string{"-j"}
	if c.opts.CookieFile != "" {
		args = append(args, "--cookies", c.opts.CookieFile)
	}
	args = append(args, locator)

	return retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.run(ctx, args...)
	}, c.retry)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.opts.Command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	c.logger.DebugWithFields("Feed source invoked", map[string]interface{}{
		"args":     args,
		"duration": time.Since(start),
		"bytes":    stdout.Len(),
	})
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, fmt.Sprintf("feed source timed out after %s", c.opts.Timeout), err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "feed source could not be started", err)
	}
	return nil, exitError(exitErr.ExitCode(), stderr.String())
}

func exitError(code int, stderr string) *errs.Error {
	msg := strings.TrimSpace(stderr)
	if len(msg) > maxStderrInError {
		msg = msg[:maxStderrInError]
	}
	msg = fmt.Sprintf("feed source exited with status %d: %s", code, msg)

	var t errs.ErrorType
	switch {
	case code&exitAuth != 0:
		t = errs.ErrorTypeAuth
	case code&exitNotFound != 0:
		t = errs.ErrorTypeNotFound
	case code&(exitFormat|exitNoExtractor) != 0:
		t = errs.ErrorTypeParsing
	case code&exitHTTPError != 0:
		t = errs.ErrorTypeNetwork
	default:
		t = errs.ErrorTypeServerError
	}
	return errs.New(t, code, msg)
}
