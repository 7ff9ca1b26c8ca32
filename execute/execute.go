// Package execute runs shell commands and captures what happened for
// provenance logging. A non zero exit status is a result, not an error;
// errors are reserved for commands that could not be run at all.
package execute

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/net/context"
)

type Options struct {
	// Dir is the working directory for the command. Empty means the
	// calling process's working directory.
	Dir string
	// Env replaces the command environment when non nil.
	Env []string
	// Stdin is fed to the command when non empty.
	Stdin string
}

type Result struct {
	Command    string        `json:"command"`
	ReturnCode int           `json:"return_code"`
	PID        int           `json:"pid"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	ParentWD   string        `json:"parent_wd"`
	Dir        string        `json:"dir"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Run executes command via /bin/sh -c and captures stdout, stderr, the
// exit status and timing. opts may be nil.
func Run(ctx context.Context, command string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	parentWD, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("looking up working directory: %v", err)
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = opts.Dir
	if opts.Env != nil {
		cmd.Env = opts.Env
	}
	if len(opts.Stdin) > 0 {
		cmd.Stdin = bytes.NewBufferString(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	res := &Result{
		Command:  command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ParentWD: parentWD,
		Dir:      opts.Dir,
		Elapsed:  elapsed,
	}
	if res.Dir == "" {
		res.Dir = parentWD
	}
	if cmd.Process != nil {
		res.PID = cmd.Process.Pid
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("running '%v': %v", command, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("running '%v': %v", command, ctxErr)
		}
		res.ReturnCode = exitErr.ExitCode()
	}
	return res, nil
}
