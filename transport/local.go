package transport

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/carlosrabelo/topovlan/pkg/logger"
)

const DefaultLocalBinary = "bash"

// LocalClient runs every command in a fresh shell process on this host.
// Completion is process exit, so Expect.Patterns and Expect.Newline are ignored.
type LocalClient struct {
	config    Config
	log       *logger.Logger
	connected bool
}

// NewLocalClient creates a client for commands on the local host
func NewLocalClient(cfg Config) *LocalClient {
	return &LocalClient{config: cfg, log: logger.NewLogger("local")}
}

func (lc *LocalClient) Connect() error {
	lc.connected = true
	return nil
}

func (lc *LocalClient) Disconnect() {
	lc.connected = false
}

func (lc *LocalClient) IsConnected() bool {
	return lc.connected
}

// Execute runs cmd with "<binary> -c" and returns its combined output
func (lc *LocalClient) Execute(ctx context.Context, cmd string, exp Expect) (string, error) {
	binary := exp.Binary
	if binary == "" {
		binary = DefaultLocalBinary
	}
	if timeout := exp.timeout(lc.config.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lc.log.Debugf("executing locally with %s: %s", binary, cmd)
	c := exec.CommandContext(ctx, binary, "-c", cmd)
	c.WaitDelay = time.Second
	output, err := c.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return string(output), ctx.Err()
		}
		lc.log.Debugf("command failed: %s\n%s", cmd, string(output))
		return string(output), fmt.Errorf("command error: %w\n%s", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
