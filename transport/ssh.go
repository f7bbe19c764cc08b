package transport

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carlosrabelo/topovlan/pkg/logger"
)

const SSHPort = 22

// SSHClient manages an interactive SSH shell on a node
type SSHClient struct {
	session
	client *ssh.Client
	shell  *ssh.Session
}

// NewSSHClient creates a new SSH client with the given configuration
func NewSSHClient(cfg Config) *SSHClient {
	return &SSHClient{session: session{config: cfg, log: logger.NewLogger("ssh")}}
}

func (sc *SSHClient) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if sc.config.KeyFile != "" {
		key, err := os.ReadFile(sc.config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", sc.config.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key file %s: %w", sc.config.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if sc.config.Password != "" {
		auth = append(auth, ssh.Password(sc.config.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH credentials configured for %s", sc.config.Target)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if sc.config.KnownHosts != "" {
		cb, err := knownhosts.New(sc.config.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %s: %w", sc.config.KnownHosts, err)
		}
		hostKeyCallback = cb
	}

	timeout := sc.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ssh.ClientConfig{
		User:            sc.config.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// Connect opens the SSH connection and starts a shell on a PTY
func (sc *SSHClient) Connect() error {
	if sc.IsConnected() {
		return nil
	}
	sshConfig, err := sc.clientConfig()
	if err != nil {
		return err
	}

	addr := hostPort(sc.config.Target, sc.config.Port, SSHPort)
	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s via SSH: %w", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to create SSH session for %s: %w", addr, err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := sess.RequestPty("dumb", 400, 200, modes); err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("failed to request PTY for %s: %w", addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("failed to get stdin pipe for %s: %w", addr, err)
	}

	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("failed to get stdout pipe for %s: %w", addr, err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return fmt.Errorf("failed to start shell for %s: %w", addr, err)
	}

	sc.client = client
	sc.shell = sess
	sc.attach(stdin, stdout)
	sc.log.Debugf("connected to %s via SSH", addr)

	if err := sc.login(context.Background()); err != nil {
		sc.Disconnect()
		return err
	}
	return nil
}

func (sc *SSHClient) Disconnect() {
	if sc.shell != nil {
		sc.shell.Close()
		sc.shell = nil
	}
	if sc.client != nil {
		sc.client.Close()
		sc.client = nil
		sc.log.Debugf("disconnected from %s", sc.config.Target)
	}
	sc.detach()
}

func (sc *SSHClient) IsConnected() bool {
	return sc.shell != nil && sc.client != nil
}

// Execute sends a command to the remote shell and returns its output
func (sc *SSHClient) Execute(ctx context.Context, cmd string, exp Expect) (string, error) {
	sc.log.Debugf("executing on %s: %s", sc.config.Target, cmd)
	out, err := sc.execute(ctx, cmd, exp)
	if err != nil {
		// late output of this command would otherwise answer the next one
		sc.Disconnect()
		return "", err
	}
	return out, nil
}
