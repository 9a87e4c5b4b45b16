// Command gosyslab drives the three hands-on demos for this module's
// subsystems: cooperative threads each with its own CoW-backed TLS area, a flat file
// system over a simulated disk, and a pipeline shell, grounded on
// multithreading/threads.c's usertests-style harness, fs.c's mkfs/mount
// flow, and myshell.c's REPL respectively.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/bennetttaylor/gosyslab/diskfs"
	"github.com/bennetttaylor/gosyslab/shell"
	"github.com/bennetttaylor/gosyslab/tls"
	"github.com/bennetttaylor/gosyslab/uthread"
)

func main() {
	app := cli.NewApp()
	app.Name = "gosyslab"
	app.Usage = "cooperative threads, copy-on-write TLS, a flat file system, and a pipeline shell"
	app.Commands = []cli.Command{
		threadsCommand,
		fsCommand,
		shellCommand,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("gosyslab: command failed")
	}
}

var threadsCommand = cli.Command{
	Name:  "threads",
	Usage: "spawn N cooperative threads, each with its own TLS area, and join them",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "n", Value: 4, Usage: "number of threads to spawn"},
	},
	Action: func(c *cli.Context) error {
		n := c.Int("n")
		ids := make([]uthread.ID, 0, n)
		for i := 0; i < n; i++ {
			i := i
			id, err := uthread.Create(func(arg any) any {
				msg := []byte(fmt.Sprintf("thread-%02d", i))
				if err := tls.Create(uint(len(msg))); err != nil {
					return err
				}
				defer tls.Destroy()
				if err := tls.Write(0, uint(len(msg)), msg); err != nil {
					return err
				}
				out := make([]byte, len(msg))
				if err := tls.Read(0, uint(len(msg)), out); err != nil {
					return err
				}
				return string(out)
			}, nil)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		for _, id := range ids {
			ret, err := uthread.Join(id)
			if err != nil {
				return err
			}
			if errRet, ok := ret.(error); ok {
				return errRet
			}
			fmt.Println(ret)
		}
		return nil
	},
}

var fsCommand = cli.Command{
	Name:  "fs",
	Usage: "format a simulated disk, write a file, and read it back",
	Action: func(c *cli.Context) error {
		fsys := diskfs.Make(diskfs.NewDisk())
		if err := fsys.Mount(); err != nil {
			return err
		}
		if err := fsys.Create("greeting.txt"); err != nil {
			return err
		}
		fd, err := fsys.Open("greeting.txt")
		if err != nil {
			return err
		}
		if _, err := fsys.Write(fd, []byte("hello from FlatFS\n")); err != nil {
			return err
		}
		if err := fsys.Seek(fd, 0); err != nil {
			return err
		}
		buf := make([]byte, 64)
		n, err := fsys.Read(fd, buf)
		if err != nil {
			return err
		}
		fmt.Print(string(buf[:n]))
		return fsys.Close(fd)
	},
}

var shellCommand = cli.Command{
	Name:  "shell",
	Usage: "run a pipeline shell REPL over stdin",
	Action: func(c *cli.Context) error {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("gosyslab$ ")
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				fmt.Print("gosyslab$ ")
				continue
			}
			p, err := shell.Build(line)
			if err != nil {
				logrus.WithError(err).Warn("shell: could not parse pipeline")
				fmt.Print("gosyslab$ ")
				continue
			}
			if err := p.Run(os.Stdin, os.Stdout, os.Stderr); err != nil {
				logrus.WithError(err).Warn("shell: pipeline exited with an error")
			}
			fmt.Print("gosyslab$ ")
		}
		fmt.Println()
		return scanner.Err()
	},
}
