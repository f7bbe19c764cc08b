package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/carlosrabelo/topovlan/pkg/logger"
)

// session is the prompt-driven half shared by the telnet and SSH clients
type session struct {
	config Config
	log    *logger.Logger
	writer io.Writer
	output *stream
}

func (s *session) attach(w io.Writer, r io.Reader) {
	s.writer = w
	s.output = newStream(r, func(chunk string) {
		s.log.Tracef("%s output: %q", s.config.Target, chunk)
	})
}

func (s *session) detach() {
	if s.output != nil {
		s.output.stop()
	}
	s.writer = nil
	s.output = nil
}

func (s *session) send(data string) error {
	if s.writer == nil {
		return fmt.Errorf("not connected to %s", s.config.Target)
	}
	_, err := s.writer.Write([]byte(data))
	return err
}

// login walks the configured prompt sequence
func (s *session) login(ctx context.Context) error {
	for _, p := range s.config.LoginSequence {
		output, err := s.output.readUntilAny(ctx, []string{p.WaitFor}, Expect{}.timeout(s.config.Timeout))
		if err != nil {
			return fmt.Errorf("failed to wait for %s: %w, output: %s", p.WaitFor, err, output)
		}
		if p.SendCmd != "" {
			if err := s.send(p.SendCmd); err != nil {
				return fmt.Errorf("failed to answer %s: %w", p.WaitFor, err)
			}
			s.log.Debugf("answered prompt %s on %s", p.WaitFor, s.config.Target)
		}
	}
	return nil
}

func (s *session) execute(ctx context.Context, cmd string, exp Expect) (string, error) {
	if s.output == nil {
		return "", fmt.Errorf("not connected to %s", s.config.Target)
	}
	data := cmd
	if exp.Newline {
		data += "\n"
	}
	if err := s.send(data); err != nil {
		return "", fmt.Errorf("failed to send command %s: %w", cmd, err)
	}
	output, err := s.output.readUntilAny(ctx, exp.Patterns, exp.timeout(s.config.Timeout))
	if err != nil {
		return "", fmt.Errorf("error executing %s: %w", cmd, err)
	}
	return trimResponse(output), nil
}

// defaultLoginSequence answers a getty style login when credentials are set
func defaultLoginSequence(cfg Config) []AuthPrompt {
	if len(cfg.LoginSequence) > 0 || cfg.Username == "" {
		return cfg.LoginSequence
	}
	prompts := []AuthPrompt{{WaitFor: PromptLogin, SendCmd: cfg.Username + "\n"}}
	if cfg.Password != "" {
		prompts = append(prompts, AuthPrompt{WaitFor: PromptPassword, SendCmd: cfg.Password + "\n"})
	}
	return prompts
}

func hostPort(target string, port, fallback int) string {
	if port == 0 {
		port = fallback
	}
	return net.JoinHostPort(target, strconv.Itoa(port))
}
