// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/engine"
)

// stdinPrompter is the interactive engine.Prompter used when
// --auto-approve is not set: it asks on stdout and reads a yes/no
// answer from stdin, per §4.6's "ask before entering each top-level
// group" default.
type stdinPrompter struct{}

func (stdinPrompter) Confirm(description string) (bool, error) {
	fmt.Printf("proceed with %s? [y/N] ", description)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, errors.Trace(err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func timeNow() time.Time { return time.Now() }

func main() {
	os.Exit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: cou <plan|upgrade> [group] [options]")
		return 1
	}

	sub, rest := args[0], args[1:]

	opts := &commonOptions{}
	fs := gnuflag.NewFlagSet("cou "+sub, gnuflag.ExitOnError)
	opts.registerFlags(fs)
	fs.BoolVar(&opts.autoApprove, "auto-approve", false, "skip interactive confirmation before each group")

	switch sub {
	case "plan":
		return exitCodeFor(runPlanCommand(fs, opts, rest))
	case "upgrade":
		return exitCodeFor(runUpgradeCommand(fs, opts, rest))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q: want plan or upgrade\n", sub)
		return 1
	}
}

func runPlanCommand(fs *gnuflag.FlagSet, opts *commonOptions, args []string) error {
	group, args, err := parseGroup(args)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fs.Parse(true, args); err != nil {
		return errors.Trace(err)
	}

	cfg := loadRuntimeConfig()
	logFile, logPath, err := setupLogging(cfg, opts.logConfig())
	if err != nil {
		return errors.Trace(err)
	}
	defer logFile.Close()
	if opts.tailLog {
		stop, err := startLogTail(logPath)
		if err != nil {
			return errors.Trace(err)
		}
		defer stop()
	}

	planOpts, err := opts.toPlanOptions(group)
	if err != nil {
		return errors.Trace(err)
	}

	facade, err := dialFacade(cfg, opts.model)
	if err != nil {
		return errors.Trace(err)
	}

	ctx := context.Background()
	_, tree, err := buildPlan(ctx, facade, cfg, planOpts)
	if err != nil {
		return errors.Trace(err)
	}

	renderPlan(os.Stdout, tree)
	return nil
}

func runUpgradeCommand(fs *gnuflag.FlagSet, opts *commonOptions, args []string) error {
	group, args, err := parseGroup(args)
	if err != nil {
		return errors.Trace(err)
	}
	if err := fs.Parse(true, args); err != nil {
		return errors.Trace(err)
	}

	cfg := loadRuntimeConfig()
	logFile, logPath, err := setupLogging(cfg, opts.logConfig())
	if err != nil {
		return errors.Trace(err)
	}
	defer logFile.Close()
	if opts.tailLog {
		stop, err := startLogTail(logPath)
		if err != nil {
			return errors.Trace(err)
		}
		defer stop()
	}

	planOpts, err := opts.toPlanOptions(group)
	if err != nil {
		return errors.Trace(err)
	}

	facade, err := dialFacade(cfg, opts.model)
	if err != nil {
		return errors.Trace(err)
	}

	ctx := context.Background()
	_, tree, err := buildPlan(ctx, facade, cfg, planOpts)
	if err != nil {
		return errors.Trace(err)
	}
	renderPlan(os.Stdout, tree)

	var prompter engine.Prompter = stdinPrompter{}
	if opts.autoApprove {
		prompter = engine.AutoApprove{}
	}

	started := timeNow()
	result, err := runUpgrade(ctx, tree, cfg, prompter)
	if result != nil {
		renderResult(os.Stdout, result, started)
	}
	return err
}

// dialFacade is the one seam §1/§4.7 explicitly leave out of scope:
// constructing a real controller.Facade means dialling and
// authenticating against an actual controller, which this
// specification never defines the wire protocol for. It is left as an
// injection point other front ends (or a future controller client
// package) can satisfy; the CLI's own plumbing is otherwise complete.
func dialFacade(cfg runtimeConfig, model string) (controller.Facade, error) {
	return nil, errors.NotImplementedf("connecting to a controller (model %q, data-dir %q)", model, cfg.dataDir)
}
