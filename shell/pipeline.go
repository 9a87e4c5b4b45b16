package shell

import "github.com/bennetttaylor/gosyslab/internal/errs"

// Command is one stage of a Pipeline, the Go rendition of
// pipeline_command: its argv, and optional redirect paths. Any stage may
// carry its own RedirectIn/RedirectOut regardless of position, matching
// execute_pipeline's per-command dup2 handling; Build only rejects a
// redirect left dangling before the next token (see stateArg below).
type Command struct {
	Args        []string
	RedirectIn  string
	RedirectOut string
}

// Pipeline is the Go rendition of struct pipeline: an ordered list of
// Commands connected stdout-to-stdin, run synchronously unless
// Background is set.
type Pipeline struct {
	Commands   []*Command
	Background bool
}

// Build implements pipeline_build: tokenizes line and assembles a
// Pipeline, validating the same grammar errors the source's state machine
// rejects by returning NULL (InvalidArg here): a line starting with a
// metacharacter, a redirect path appearing twice for one command, or more
// than one '&'.
func Build(line string) (*Pipeline, error) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return nil, errs.New(errs.InvalidArg, "shell: empty command line")
	}
	if isMeta(tokens[0]) {
		return nil, errs.New(errs.InvalidArg, "shell: command line cannot start with %q", tokens[0])
	}

	p := &Pipeline{}
	cur := &Command{}
	p.Commands = append(p.Commands, cur)

	const (
		stateArg = iota
		stateRedirectOut
		stateRedirectIn
	)
	state := stateArg

	for _, tok := range tokens {
		switch tok {
		case "|":
			if state != stateArg {
				return nil, errs.New(errs.InvalidArg, "shell: dangling redirect before '|'")
			}
			cur = &Command{}
			p.Commands = append(p.Commands, cur)
		case ">":
			if state != stateArg {
				return nil, errs.New(errs.InvalidArg, "shell: unexpected '>'")
			}
			state = stateRedirectOut
		case "<":
			if state != stateArg {
				return nil, errs.New(errs.InvalidArg, "shell: unexpected '<'")
			}
			state = stateRedirectIn
		case "&":
			if p.Background {
				return nil, errs.New(errs.InvalidArg, "shell: '&' may only appear once")
			}
			p.Background = true
		default:
			switch state {
			case stateArg:
				cur.Args = append(cur.Args, tok)
			case stateRedirectOut:
				if cur.RedirectOut != "" {
					return nil, errs.New(errs.InvalidArg, "shell: multiple output redirects")
				}
				cur.RedirectOut = tok
				state = stateArg
			case stateRedirectIn:
				if cur.RedirectIn != "" {
					return nil, errs.New(errs.InvalidArg, "shell: multiple input redirects")
				}
				cur.RedirectIn = tok
				state = stateArg
			}
		}
	}

	for i, c := range p.Commands {
		if len(c.Args) == 0 {
			return nil, errs.New(errs.InvalidArg, "shell: command %d has no arguments", i)
		}
	}
	return p, nil
}

func isMeta(tok string) bool {
	return len(tok) == 1 && (tok[0] == '|' || tok[0] == '>' || tok[0] == '<' || tok[0] == '&')
}
