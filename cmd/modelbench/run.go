// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/modelbench/modelbench/pkg/artifacts"
	"github.com/modelbench/modelbench/pkg/build"
	"github.com/modelbench/modelbench/pkg/build/dockerx"
	"github.com/modelbench/modelbench/pkg/build/local"
	"github.com/modelbench/modelbench/pkg/dockerfile"
	"github.com/modelbench/modelbench/pkg/hostinfo"
	"github.com/modelbench/modelbench/pkg/model"
	"github.com/modelbench/modelbench/pkg/perf"
	"github.com/modelbench/modelbench/pkg/report"
	"github.com/modelbench/modelbench/pkg/workspace"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// harnessMount is where the harness checkout is mounted read-only inside run
// containers, so catalog script paths resolve.
const harnessMount = "/modelbench"

// runSetup carries the per-batch fixtures every model run shares.
type runSetup struct {
	executor build.Executor
	store    artifacts.LocatableStore
	host     hostinfo.Host
	runID    string
}

// newRunID returns a run identifier that sorts chronologically, which the
// artifact store relies on to resolve "latest".
func newRunID() string {
	return time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// containerName names the container for one model's execution within a run.
func containerName(runID, model string) string {
	return "modelbench-" + runID + "-" + strings.ToLower(model)
}

var runCmd = &cobra.Command{
	Use:   "run [-tags T] [-keep-alive] [-timeout SECONDS] MODEL...",
	Short: "Build and run benchmarks, recording results to perf.csv",
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	// RunE because we want errors to affect the return status.
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		models, bases, err := loadModels(ctx, args)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			return errors.New("no models selected")
		}
		prober := hostinfo.New()
		host, err := prober.Info(ctx)
		if err != nil {
			if !*skipGPUCheck {
				return err
			}
			// Dry hosts still get OS and machine identity; GPU fields stay
			// empty and Dockerfile selection falls back to the bare recipe.
			log.Printf("[run] host probe incomplete: %v", err)
			host.OS, _ = prober.HostOS()
			host.CPUs = prober.SystemCPUs()
			host.Machine = prober.MachineName()
		}
		runID := newRunID()
		log.Printf("[run] starting run %s on %s (%d models)", runID, host.Machine, len(models))
		var store artifacts.LocatableStore
		if *artifactsLoc != "" {
			if store, err = artifacts.NewStore(ctx, *artifactsLoc, runID); err != nil {
				return err
			}
		}
		// Runs own the GPUs, so models execute one at a time.
		executor, err := local.NewDockerExecutor(local.DockerExecutorConfig{MaxParallel: 1})
		if err != nil {
			return err
		}
		defer executor.Close(context.Background())
		cfg := runSetup{executor: executor, store: store, host: host, runID: runID}
		bar := pb.New(len(models))
		bar.Output = os.Stderr
		bar.ShowTimeLeft = true
		bar.Start()
		var batch []perf.Record
		for _, m := range models {
			records, err := runOne(ctx, cfg, m, bases[m.Name])
			if err != nil {
				// The failure lands in the status column; the batch goes on.
				log.Printf("[run] %s failed: %v", m.Name, err)
			}
			if len(records) == 0 {
				rec := perf.NewRecord()
				rec.Pipeline = *pipeline
				rec.Model = m.Name
				rec.MachineName = host.Machine
				records = []perf.Record{rec}
			}
			for _, rec := range records {
				log.Printf("[run] %s", rec.Summary())
			}
			batch = append(batch, records...)
			// Results are flushed after every model so an interrupted batch
			// keeps its completed rows.
			if err := perf.Append(filepath.Join(*outputDir, perf.FileName), records...); err != nil {
				return err
			}
			if err := perf.WriteEntry(filepath.Join(*outputDir, perf.EntryFileName), batch...); err != nil {
				return err
			}
			bar.Increment()
		}
		bar.Finish()
		report.Summary(cmd.OutOrStdout(), batch)
		return nil
	},
}

// runOne executes the full pipeline for one model: workspace, clone, image
// build, containerized run, result collection. The returned records are ready
// for perf.csv even when the error reports what cut the pipeline short.
func runOne(ctx context.Context, cfg runSetup, m model.Model, defBase string) ([]perf.Record, error) {
	common := perf.NewRecord()
	common.Pipeline = *pipeline
	common.Model = m.Name
	common.Tags = strings.Join(m.Tags, ",")
	common.Args = m.Args
	common.MachineName = cfg.host.Machine
	common.HostOS = string(cfg.host.OS)
	common.GPUArchitecture = cfg.host.Arch
	common.NGPUs = strconv.Itoa(m.NGPUs)
	common.TrainingPrecision = m.TrainingPrecision
	common.GitCommit = workspace.HeadCommit(".")

	if m.NGPUs > cfg.host.NGPUs && !*skipGPUCheck {
		return []perf.Record{common}, errors.Errorf("%s wants %d GPUs, host has %d", m.Name, m.NGPUs, cfg.host.NGPUs)
	}

	fsys := osfs.New(".")
	dfPath, err := dockerfile.Select(fsys, m.Dockerfile, cfg.host.OS, cfg.host.Vendor)
	if err != nil {
		return []perf.Record{common}, err
	}
	common.DockerFile = dfPath
	contents, err := dockerfile.Read(fsys, dfPath)
	if err != nil {
		return []perf.Record{common}, err
	}
	base := *baseDocker
	if base == "" {
		base = defBase
	}
	if base != "" {
		common.BaseDocker = base
	} else if common.BaseDocker, err = dockerfile.BaseImage(contents); err != nil {
		return []perf.Record{common}, errors.Wrapf(err, "parsing %s", dfPath)
	}

	layout, err := workspace.Prepare(filepath.Join(*outputDir, cfg.runID), m.Name)
	if err != nil {
		return []perf.Record{common}, err
	}
	wsAbs, err := filepath.Abs(layout.Root)
	if err != nil {
		return []perf.Record{common}, errors.Wrap(err, "resolving workspace path")
	}
	if m.URL != "" {
		srcDir := filepath.Join(layout.Root, "model")
		if _, err := workspace.CloneModel(ctx, m.URL, "", srcDir, streamWriter()); err != nil {
			return []perf.Record{common}, err
		}
		if proj, err := workspace.ProbeProject(osfs.New(srcDir)); err != nil {
			log.Printf("[run] %s: %v", m.Name, err)
		} else if proj.Name != "" {
			log.Printf("[run] %s: sources declare %s %s", m.Name, proj.Name, proj.Version)
		}
	}

	opts := build.Options{
		RunID:     containerName(cfg.runID, m.Name),
		Resources: build.Resources{AssetStore: cfg.store},
	}
	imageTag := local.ImageTag(m.Name)
	bh, err := cfg.executor.StartBuild(ctx, build.BuildRequest{
		Model:      m,
		Dockerfile: dfPath,
		ContextDir: ".",
		Image:      imageTag,
		BaseImage:  base,
		NoCache:    *noCache,
	}, opts)
	if err != nil {
		return []perf.Record{common}, errors.Wrap(err, "starting build")
	}
	buildResult, err := await(ctx, bh, streamWriter())
	if err != nil {
		return []perf.Record{common}, errors.Wrap(err, "waiting on build")
	}
	common.BuildDuration = perf.FormatDuration(buildResult.Duration)
	if buildResult.Error != nil {
		return []perf.Record{common}, buildResult.Error
	}
	common.DockerSHA = buildResult.ImageID
	common.DockerImage = imageTag

	env := []string{"MODEL_NAME=" + m.Name}
	if m.URL != "" {
		env = append(env, "MODEL_DIR="+build.ContainerWorkdir+"/model")
	}
	if m.Data != "" {
		env = append(env, "MODELBENCH_DATA="+m.Data)
	}
	cpus := *cpuset
	if cpus == "" && cfg.host.CPUs > 0 {
		cpus = fmt.Sprintf("0-%d", cfg.host.CPUs-1)
	}
	nodes := cfg.host.RenderNodes
	if len(nodes) > m.NGPUs {
		nodes = nodes[:m.NGPUs]
	}
	script := "bash " + path.Join(harnessMount, m.Scripts)
	if m.Args != "" {
		script += " " + m.Args
	}
	repoRoot, err := filepath.Abs(".")
	if err != nil {
		return []perf.Record{common}, errors.Wrap(err, "resolving repo root")
	}
	req := build.RunRequest{
		Model:       m,
		Image:       imageTag,
		Script:      script,
		Workspace:   wsAbs,
		Vendor:      cfg.host.Vendor,
		RenderNodes: nodes,
		CPUSet:      cpus,
		Env:         env,
		Mounts:      []build.Mount{{Src: repoRoot, Dst: harnessMount, ReadOnly: true}},
		KeepAlive:   *keepAlive,
	}
	timeout := time.Duration(m.Timeout) * time.Second
	if *runTimeout != 0 {
		timeout = time.Duration(*runTimeout) * time.Second
	}
	runOpts := build.Options{
		Timeout:   timeout,
		RunID:     containerName(cfg.runID, m.Name),
		Resources: build.Resources{AssetStore: cfg.store},
	}

	var logBuf bytes.Buffer
	runOut := io.MultiWriter(streamWriter(), &logBuf)
	var exitErr error
	if *keepAlive {
		start := time.Now()
		exitErr = runSession(ctx, cfg, req, runOpts, runOut)
		common.TestDuration = perf.FormatDuration(time.Since(start))
		// The SDK session bypasses the executor, so its log is stored here.
		if cfg.store != nil {
			storeBytes(ctx, cfg.store, artifacts.RunLogAsset.For(m.Name), logBuf.Bytes())
		}
	} else {
		rh, err := cfg.executor.StartRun(ctx, req, runOpts)
		if err != nil {
			return []perf.Record{common}, errors.Wrap(err, "starting run")
		}
		result, err := await(ctx, rh, runOut)
		if err != nil {
			return []perf.Record{common}, errors.Wrap(err, "waiting on run")
		}
		common.TestDuration = perf.FormatDuration(result.Duration)
		exitErr = result.Error
	}

	if meas, ok := perf.Scrape(logBuf.String()); ok {
		common.Performance = meas.Value
		common.Metric = meas.Metric
	}
	switch {
	case exitErr == nil && common.Performance != "":
		common.Status = perf.StatusSuccess
	case errors.Is(exitErr, context.DeadlineExceeded):
		common.Status = perf.StatusTimeout
	}
	records, err := perf.CollectResults(layout.Root, m.Name, m.MultipleResults, common)
	if err != nil {
		return []perf.Record{common}, err
	}

	entryPath := filepath.Join(layout.Artifacts, perf.EntryFileName)
	if err := perf.WriteEntry(entryPath, records...); err != nil {
		log.Printf("[run] %s: %v", m.Name, err)
	} else if cfg.store != nil {
		storeFile(ctx, cfg.store, artifacts.PerfEntryAsset.For(m.Name), entryPath)
	}
	if len(records) == 1 {
		resultPath := filepath.Join(layout.Artifacts, string(artifacts.ResultAsset))
		if err := records[0].WriteJSON(resultPath); err != nil {
			log.Printf("[run] %s: %v", m.Name, err)
		} else if cfg.store != nil {
			storeFile(ctx, cfg.store, artifacts.ResultAsset.For(m.Name), resultPath)
		}
	}

	if !*keepImage && !*keepAlive {
		if err := cfg.executor.RemoveImage(ctx, imageTag); err != nil {
			log.Printf("[run] removing %s: %v", imageTag, err)
		}
	}
	return records, exitErr
}

// runSession executes the script through an SDK session container that stays
// alive afterward for interactive debugging.
func runSession(ctx context.Context, cfg runSetup, req build.RunRequest, opts build.Options, out io.Writer) error {
	if d, ok := opts.EffectiveTimeout(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	mgr, err := dockerx.NewManager()
	if err != nil {
		return errors.Wrap(err, "creating docker client")
	}
	defer mgr.Close()
	sess, err := mgr.Open(ctx, dockerx.SessionConfig{
		Name:        containerName(cfg.runID, req.Model.Name),
		Image:       req.Image,
		Workspace:   req.Workspace,
		Vendor:      req.Vendor,
		RenderNodes: req.RenderNodes,
		CPUSet:      req.CPUSet,
		Env:         req.Env,
		Mounts:      req.Mounts,
		User:        dockerx.DefaultUser(),
	})
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	code, err := sess.Exec(ctx, req.Script, out)
	// The container intentionally stays up; tell the user how to reach it.
	fmt.Fprintln(os.Stderr, sess.DetachMessage())
	if err != nil {
		return errors.Wrap(err, "executing script")
	}
	if code != 0 {
		return errors.Errorf("script exited with code %d", code)
	}
	return nil
}

// await streams a handle's output to out and waits for its result. The copy
// is joined before returning so out has the complete log.
func await(ctx context.Context, h build.Handle, out io.Writer) (build.Result, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(out, h.OutputStream())
	}()
	result, err := h.Wait(ctx)
	<-done
	return result, err
}

func storeFile(ctx context.Context, store artifacts.Store, asset artifacts.Asset, path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[run] storing %s for %s: %v", asset.Type, asset.Model, err)
		return
	}
	storeBytes(ctx, store, asset, b)
}

func storeBytes(ctx context.Context, store artifacts.Store, asset artifacts.Asset, b []byte) {
	w, err := store.Writer(ctx, asset)
	if err != nil {
		log.Printf("[run] storing %s for %s: %v", asset.Type, asset.Model, err)
		return
	}
	if _, err := w.Write(b); err != nil {
		log.Printf("[run] storing %s for %s: %v", asset.Type, asset.Model, err)
	}
	if err := w.Close(); err != nil {
		log.Printf("[run] storing %s for %s: %v", asset.Type, asset.Model, err)
	}
}
