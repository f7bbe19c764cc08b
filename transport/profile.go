package transport

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownShell = errors.New("unknown shell")

// Profile describes how to drive one kind of shell on a node
type Profile struct {
	Name    string
	Binary  string   // executable used by the local client
	Prompts []string // prompt markers that end a command
	Setup   []string // sent once per connection before the first command
}

// markerPrompt builds a prompt that never appears verbatim in the echo of its own setup line
func markerPrompt(tag string) (prompt, setup string) {
	prompt = "@~~==::" + tag + "::==~~@"
	setup = `'@~~==::'"` + tag + `"'::==~~@'`
	return prompt, setup
}

func bashProfile() Profile {
	prompt, ps1 := markerPrompt("BASH_PROMPT")
	return Profile{
		Name:    "bash",
		Binary:  "bash",
		Prompts: []string{prompt},
		Setup: []string{
			"export PS1=" + ps1,
			"export PROMPT_COMMAND=''",
			"bind 'set enable-bracketed-paste off' 2>/dev/null || true",
		},
	}
}

func shProfile() Profile {
	prompt, ps1 := markerPrompt("SH_PROMPT")
	return Profile{
		Name:    "sh",
		Binary:  "sh",
		Prompts: []string{prompt},
		Setup:   []string{"PS1=" + ps1},
	}
}

var (
	registry = map[string]Profile{
		"bash": bashProfile(),
		"sh":   shProfile(),
	}
	registryMu sync.RWMutex
)

// Register adds or replaces a shell profile
func Register(p Profile) error {
	name := normalizeName(p.Name)
	if name == "" {
		return fmt.Errorf("shell profile name is required")
	}
	if len(p.Prompts) == 0 {
		return fmt.Errorf("shell profile %s needs at least one prompt", name)
	}
	p.Name = name
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = p
	return nil
}

// Lookup returns a profile by normalized name.
func Lookup(name string) (Profile, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[normalizeName(name)]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrUnknownShell, name)
}

// Available returns the registered profile names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
