// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/hpcloud/tail"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/canonical/cou/analyzer"
	"github.com/canonical/cou/catalog"
	"github.com/canonical/cou/controller"
	"github.com/canonical/cou/engine"
	"github.com/canonical/cou/plan"
	"github.com/canonical/cou/step"
	"github.com/canonical/cou/strategy"
	"github.com/canonical/cou/topology"
)

var runLogger = loggo.GetLogger("cou.cmd")

// runtimeConfig is the subset of §6.4's environment variables that
// shape engine/model behaviour rather than CLI flags.
type runtimeConfig struct {
	modelRetries        int
	modelRetryBackoff   time.Duration
	standardIdleTimeout time.Duration
	longIdleTimeout     time.Duration
	dataDir             string
}

func loadRuntimeConfig() runtimeConfig {
	cfg := runtimeConfig{
		modelRetries:        5,
		modelRetryBackoff:   2 * time.Second,
		standardIdleTimeout: 5 * time.Minute,
		longIdleTimeout:     40 * time.Minute,
		dataDir:             os.Getenv("JUJU_DATA"),
	}
	if v := os.Getenv("COU_MODEL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.modelRetries = n
		}
	}
	if v := os.Getenv("COU_MODEL_RETRY_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.modelRetryBackoff = d
		}
	}
	if v := os.Getenv("COU_STANDARD_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.standardIdleTimeout = d
		}
	}
	if v := os.Getenv("COU_LONG_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.longIdleTimeout = d
		}
	}
	if cfg.dataDir == "" {
		cfg.dataDir = filepath.Join(os.Getenv("HOME"), ".local", "share", "juju")
	}
	return cfg
}

// fileWriter is a loggo.Writer that formats each entry the way the
// default writer does and appends it to an open log file (§6.3).
type fileWriter struct {
	f *os.File
}

func (w *fileWriter) Write(level loggo.Level, name, filename string, line int, timestamp time.Time, message string) {
	fmt.Fprintf(w.f, "%s %s %s %s:%d %s\n",
		timestamp.Format("2006-01-02 15:04:05"), level, name, filename, line, message)
}

// setupLogging opens ${data-dir}/log/cou-YYYYMMDDhhmmss.log (§6.3) and
// registers a writer that appends every log entry to it, alongside
// whatever writer loggo already has installed for stderr. The log
// path is returned so callers can optionally tail it (--tail-log).
func setupLogging(cfg runtimeConfig, verbosityConfig string) (*os.File, string, error) {
	logDir := filepath.Join(cfg.dataDir, "log")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, "", errors.Annotate(err, "creating log directory")
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("cou-%s.log", nowStamp()))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", errors.Annotate(err, "opening log file")
	}

	if err := loggo.ConfigureLoggers(verbosityConfig); err != nil {
		f.Close()
		return nil, "", errors.Annotate(err, "configuring loggers")
	}
	if err := loggo.RegisterWriter("cou-logfile", &fileWriter{f: f}); err != nil {
		f.Close()
		return nil, "", errors.Annotate(err, "installing log-file writer")
	}
	return f, logPath, nil
}

// startLogTail streams logPath to stdout as it grows (--tail-log),
// using the same follow-from-end behaviour as `tail -f`. The returned
// func stops the tailer; callers should defer it.
func startLogTail(logPath string) (func(), error) {
	t, err := tail.TailFile(logPath, tail.Config{
		Follow:   true,
		ReOpen:   false,
		Location: &tail.SeekInfo{Whence: os.SEEK_END},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return nil, errors.Annotate(err, "tailing log file")
	}
	go func() {
		for line := range t.Lines {
			fmt.Println(line.Text)
		}
	}()
	return func() { t.Stop() }, nil
}

// buildCatalog loads the two shipped CSVs from dataDir if present,
// merging them over the built-in seed (§6.3); falls back to the
// built-in seed alone (catalog.Default) if either file is absent.
func buildCatalog(dataDir string) (*catalog.Catalog, error) {
	lookupPath := filepath.Join(dataDir, "openstack_lookup.csv")
	trackPath := filepath.Join(dataDir, "openstack_to_track_mapping.csv")

	lookupFile, err := os.Open(lookupPath)
	if os.IsNotExist(err) {
		return catalog.Default(), nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "opening openstack lookup csv")
	}
	defer lookupFile.Close()

	trackFile, err := os.Open(trackPath)
	if os.IsNotExist(err) {
		return catalog.Default(), nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "opening track mapping csv")
	}
	defer trackFile.Close()

	ranges, err := catalog.LoadLookup(lookupFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	tracks, err := catalog.LoadTrackMapping(trackFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	merged := catalog.Merge(catalog.SeedCharms(), ranges, tracks)
	return catalog.New(merged, catalog.CephToOpenStackSeed()), nil
}

// fetchCloud asks the façade for status, converts it into a Topology,
// then analyzes it into a Cloud snapshot (§4.2-§4.3).
func fetchCloud(ctx context.Context, facade controller.Facade, cat *catalog.Catalog, skipApps []string) (*analyzer.Cloud, error) {
	payload, err := facade.Status(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "fetching controller status")
	}
	raw, ok := payload.Raw.(topology.RawStatus)
	if !ok {
		return nil, errors.Errorf("status payload was %T, want topology.RawStatus", payload.Raw)
	}
	topo, err := topology.Build(raw)
	if err != nil {
		return nil, errors.Annotate(err, "building topology from controller status")
	}
	cloud, err := analyzer.Analyze(topo, cat, analyzer.Options{SkipApps: skipApps})
	if err != nil {
		return nil, errors.Annotate(err, "analyzing cloud")
	}
	for _, warning := range cloud.Warnings {
		runLogger.Warningf("%s", warning)
	}
	return cloud, nil
}

// buildPlan is the shared `cou plan` / `cou upgrade` entry point: fetch
// status, analyze, validate options, assemble the step tree.
func buildPlan(ctx context.Context, facade controller.Facade, cfg runtimeConfig, opts plan.Options) (*analyzer.Cloud, *step.Step, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err := opts.ValidateSkipApps(); err != nil {
		return nil, nil, errors.Trace(err)
	}

	cat, err := buildCatalog(cfg.dataDir)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}

	cloud, err := fetchCloud(ctx, facade, cat, opts.SkipApps)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}

	stratCtx := strategy.Context{
		Catalog:             cat,
		Facade:              facade,
		Clock:               clock.WallClock,
		StandardIdleTimeout: cfg.standardIdleTimeout,
		LongIdleTimeout:     cfg.longIdleTimeout,
		ModelIdleTimeout:    cfg.standardIdleTimeout,
		Force:               opts.Force,
	}
	tree, err := plan.Build(cloud, stratCtx, opts)
	if err != nil {
		return nil, nil, errors.Annotate(err, "building plan")
	}

	return cloud, tree, nil
}

// runUpgrade executes a previously built plan to completion, wiring
// signal handling into the engine's two-level cancellation protocol
// (§4.6) and translating its outcome into an exit-code-bearing error.
func runUpgrade(ctx context.Context, tree *step.Step, cfg runtimeConfig, prompter engine.Prompter) (*engine.Result, error) {
	eng := engine.New(engine.Options{
		Prompter:     prompter,
		ModelRetries: cfg.modelRetries,
		RetryBackoff: cfg.modelRetryBackoff,
		Clock:        clock.WallClock,
	})

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sigCh:
				eng.Interrupt()
			case <-done:
				return
			}
		}
	}()

	result, err := eng.Run(ctx, tree)
	if err != nil {
		if errors.Cause(err) == engine.ErrTerminatedBeforeStart {
			return result, errCancelledSafely
		}
		return result, wrapUpgradeFailure(err)
	}

	// FirstFailure only ever matches StateFailed, so a cancelled run
	// comes back here with err == nil; the cancel still has to surface
	// as a non-zero exit (§6.2/§7).
	if result != nil {
		switch result.State {
		case engine.StateCancelled:
			return result, errCancelledSafely
		case engine.StateAborted:
			return result, errCancelledAbruptly
		}
	}
	return result, nil
}

func nowStamp() string {
	return time.Now().Format("20060102150405")
}
