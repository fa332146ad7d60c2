// Package shell is an interactive front end for the forum. It turns typed
// commands into forum intents and redraws the prompt when state changes.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/alphabot-ai/commons/internal/forum"
)

// ErrExit is returned by Execute when the user asks to leave.
var ErrExit = errors.New("exit requested")

type Shell struct {
	forum *forum.State
	rl    *readline.Instance
	out   io.Writer
	stop  func()
}

// New wires a shell to state. rl may be nil when commands are fed through
// Execute directly.
func New(state *forum.State, rl *readline.Instance, out io.Writer) *Shell {
	s := &Shell{forum: state, rl: rl, out: out}
	s.stop = state.OnChange(func(forum.Change) { s.refreshPrompt() })
	s.refreshPrompt()
	return s
}

// Close detaches the shell from state changes.
func (s *Shell) Close() {
	s.stop()
}

// Prompt is the prompt for the current session.
func (s *Shell) Prompt() string {
	acc, ok := s.forum.ActiveAccount()
	if !ok {
		return "commons> "
	}
	return fmt.Sprintf("%s %s> ", acc.Avatar, acc.Username)
}

func (s *Shell) refreshPrompt() {
	if s.rl != nil {
		s.rl.SetPrompt(s.Prompt())
	}
}

// Run reads and executes lines until exit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err = s.Execute(ctx, ParseArgs(line))
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// ParseArgs splits input on spaces. Double quotes group words into one
// argument and are dropped.
func ParseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	quoted := false

	flush := func() {
		if current.Len() > 0 || quoted {
			args = append(args, current.String())
		}
		current.Reset()
		quoted = false
	}

	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			quoted = true
		case (r == ' ' || r == '\t') && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return args
}
