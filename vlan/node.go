package vlan

import "context"

// Shell is a command channel on a node. Send writes the command and returns the
// text captured until one of the completion patterns was seen.
type Shell interface {
	Send(ctx context.Context, command string, opts Options) (string, error)
}

// Node is the execution handle owned by the caller.
type Node interface {
	Shell(name string) (Shell, error)
}

// NodeFunc adapts a plain "run this on that shell" function into a Node.
// Only the shell name is forwarded; the remaining options are dropped.
type NodeFunc func(ctx context.Context, command, shell string) (string, error)

// Shell implements Node.
func (f NodeFunc) Shell(name string) (Shell, error) {
	return funcShell{fn: f, name: name}, nil
}

type funcShell struct {
	fn   NodeFunc
	name string
}

func (s funcShell) Send(ctx context.Context, command string, _ Options) (string, error) {
	return s.fn(ctx, command, s.name)
}
