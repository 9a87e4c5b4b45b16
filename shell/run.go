package shell

import (
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bennetttaylor/gosyslab/internal/errs"
)

// Run implements execute_pipeline: wires each Command's stdout to the
// next Command's stdin via os/exec's Cmd.Stdout/Cmd.Stdin (the Go
// substitute for the source's manual pipe(2)/fork(2)/dup2(2)/execvp(2)),
// applying every stage's own RedirectIn/RedirectOut independently of its
// position — exactly as execute_pipeline's dup2 calls do, regardless of
// whether a command is first, last, or in the middle — then waits for
// every stage unless Background is set.
//
// A stage whose stream is neither redirected, nor the caller-supplied
// stdin/stdout (because it isn't a boundary stage), nor fed by a
// neighboring pipe (because the neighbor claimed that side with its own
// redirect) is left with a nil Cmd.Stdin/Cmd.Stdout; os/exec defaults a
// nil stream to /dev/null. That is a deliberate improvement over the
// source, where an unread pipe end can block a writer indefinitely.
func (p *Pipeline) Run(stdin io.Reader, stdout, stderr io.Writer) error {
	cmds := make([]*exec.Cmd, len(p.Commands))
	for i, c := range p.Commands {
		cmd := exec.Command(c.Args[0], c.Args[1:]...)
		cmd.Stderr = stderr
		cmds[i] = cmd
	}

	for i, c := range p.Commands {
		if in := c.RedirectIn; in != "" {
			f, err := os.Open(in)
			if err != nil {
				return errs.New(errs.NotFound, "shell: cannot open redirect in path %q: %v", in, err)
			}
			defer f.Close()
			cmds[i].Stdin = f
		}
		if out := c.RedirectOut; out != "" {
			f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
			if err != nil {
				return errs.New(errs.NotFound, "shell: cannot open redirect out path %q: %v", out, err)
			}
			defer f.Close()
			cmds[i].Stdout = f
		}
	}

	if p.Commands[0].RedirectIn == "" {
		cmds[0].Stdin = stdin
	}
	last := len(cmds) - 1
	if p.Commands[last].RedirectOut == "" {
		cmds[last].Stdout = stdout
	}

	for i := 0; i < len(cmds)-1; i++ {
		if p.Commands[i].RedirectOut != "" || p.Commands[i+1].RedirectIn != "" {
			continue
		}
		pipeOut, err := cmds[i].StdoutPipe()
		if err != nil {
			return errs.New(errs.InvalidArg, "shell: pipe stage %d: %v", i, err)
		}
		cmds[i+1].Stdin = pipeOut
	}

	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			return errs.New(errs.NotFound, "shell: command execution failed for %q: %v", p.Commands[i].Args[0], err)
		}
	}

	if p.Background {
		go p.reap(cmds)
		return nil
	}
	return p.wait(cmds)
}

// reap implements sigchld_handler's WNOHANG reap loop for a backgrounded
// pipeline: os/exec has no implicit SIGCHLD reaper, so a background
// pipeline is waited on a dedicated goroutine instead.
func (p *Pipeline) reap(cmds []*exec.Cmd) {
	_ = p.wait(cmds)
}

// wait collects every stage's exit status concurrently via errgroup,
// mirroring the source's parent process waiting on each forked child
// without assuming any particular exit order between pipeline stages.
func (p *Pipeline) wait(cmds []*exec.Cmd) error {
	var g errgroup.Group
	for i, cmd := range cmds {
		i, cmd := i, cmd
		g.Go(func() error {
			if err := cmd.Wait(); err != nil {
				logrus.WithError(err).WithField("command", p.Commands[i].Args[0]).Warn("shell: stage exited non-zero")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
