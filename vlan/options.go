package vlan

import "time"

const (
	// DefaultShell is the shell channel used when none is selected
	DefaultShell = "bash"

	// NoTimeout makes the handle wait for completion without a deadline
	NoTimeout time.Duration = -1
)

// Options carries the per-call settings passed to Shell.Send.
type Options struct {
	// Shell selects the channel on the node
	Shell string
	// Matches are the patterns signaling command completion; empty means the shell prompt
	Matches []string
	// Newline appends a line terminator to the command
	Newline bool
	// Timeout bounds the wait; zero uses the handle default, NoTimeout waits forever
	Timeout time.Duration
	// Connection names the session to use; empty uses the handle default
	Connection string
}

// Option mutates Options for a single call.
type Option func(*Options)

// DefaultOptions returns a new Options value with the defaults applied.
func DefaultOptions() Options {
	return Options{
		Shell:   DefaultShell,
		Newline: true,
	}
}

func newOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Shell == "" {
		o.Shell = DefaultShell
	}
	return o
}

// WithShell selects the shell channel.
func WithShell(name string) Option {
	return func(o *Options) { o.Shell = name }
}

// WithMatches overrides the completion patterns.
func WithMatches(patterns ...string) Option {
	return func(o *Options) {
		o.Matches = append([]string(nil), patterns...)
	}
}

// WithNewline controls whether a line terminator is appended.
func WithNewline(enabled bool) Option {
	return func(o *Options) { o.Newline = enabled }
}

// WithTimeout sets the maximum wait for the command.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithConnection selects the underlying session.
func WithConnection(name string) Option {
	return func(o *Options) { o.Connection = name }
}
