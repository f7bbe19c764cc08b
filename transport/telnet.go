package transport

import (
	"context"
	"fmt"

	"github.com/ziutek/telnet"

	"github.com/carlosrabelo/topovlan/pkg/logger"
)

const (
	TelnetPort     = 23
	PromptLogin    = "login:"
	PromptPassword = "Password:"
)

// TelnetClient manages a Telnet connection to a node console
type TelnetClient struct {
	session
	conn *telnet.Conn
}

// NewTelnetClient creates a new Telnet client with the given configuration
func NewTelnetClient(cfg Config) *TelnetClient {
	cfg.LoginSequence = defaultLoginSequence(cfg)
	return &TelnetClient{session: session{config: cfg, log: logger.NewLogger("telnet")}}
}

// Connect dials the node and runs the login sequence
func (tc *TelnetClient) Connect() error {
	if tc.conn != nil {
		return nil
	}
	addr := hostPort(tc.config.Target, tc.config.Port, TelnetPort)
	conn, err := telnet.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	conn.SetUnixWriteMode(true)
	tc.conn = conn
	tc.attach(conn, conn)
	tc.log.Debugf("connected to %s", addr)

	if err := tc.login(context.Background()); err != nil {
		tc.Disconnect()
		return err
	}
	return nil
}

// Disconnect closes the Telnet connection
func (tc *TelnetClient) Disconnect() {
	if tc.conn != nil {
		tc.conn.Close()
		tc.detach()
		tc.conn = nil
		tc.log.Debugf("disconnected from %s", tc.config.Target)
	}
}

func (tc *TelnetClient) IsConnected() bool {
	return tc.conn != nil
}

// Execute sends a command and returns its output
func (tc *TelnetClient) Execute(ctx context.Context, cmd string, exp Expect) (string, error) {
	tc.log.Debugf("executing on %s: %s", tc.config.Target, cmd)
	out, err := tc.execute(ctx, cmd, exp)
	if err != nil {
		// late output of this command would otherwise answer the next one
		tc.Disconnect()
		return "", err
	}
	return out, nil
}
