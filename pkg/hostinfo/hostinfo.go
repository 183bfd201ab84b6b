// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostinfo probes the machine the harness runs on: GPU vendor and
// architecture, host OS family, device counts. Results drive Dockerfile
// suffix selection and the device flags passed to container runs.
package hostinfo

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/modelbench/modelbench/internal/console"
	"github.com/pkg/errors"
)

// Vendor identifies the GPU vendor.
type Vendor string

const (
	NVIDIA Vendor = "NVIDIA"
	AMD    Vendor = "AMD"
)

// Suffix returns the Dockerfile suffix for the vendor.
func (v Vendor) Suffix() string {
	switch v {
	case NVIDIA:
		return "nvidia"
	case AMD:
		return "amd"
	default:
		return ""
	}
}

// OS identifies the host OS family by its package manager.
type OS string

const (
	Ubuntu OS = "ubuntu"
	CentOS OS = "centos"
	SLES   OS = "sles"
)

// Suffix returns the Dockerfile suffix for the OS family.
func (o OS) Suffix() string { return string(o) }

const (
	rocmSMIPath  = "/opt/rocm/bin/rocm-smi"
	rocminfoPath = "/opt/rocm/bin/rocminfo"
	kfdNodesPath = "/sys/devices/virtual/kfd/kfd/topology/nodes"
)

// nvidiaArchPattern matches the series token in an NVIDIA device name,
// e.g. "NVIDIA H100 80GB HBM3" -> "H100".
var nvidiaArchPattern = regexp.MustCompile(`([AHV])(\d{3})`)

// Prober performs host probes. The zero value is not usable; construct with
// New. Field seams exist so tests can run without GPUs or a real /sys.
type Prober struct {
	// FS is rooted at "/" for path-existence probes and sysfs reads.
	FS billy.Filesystem
	// LookPath resolves an executable on PATH.
	LookPath func(file string) (string, error)
	// Command runs a host command and returns its combined output.
	Command func(ctx context.Context, name string, args ...string) (string, error)
	// Hostname returns the machine name.
	Hostname func() (string, error)
	// NumCPU returns the host CPU count.
	NumCPU func() int
}

// New returns a Prober backed by the real host. Probe commands run quietly;
// their output is parsed, not shown.
func New() *Prober {
	runner := &console.Runner{Quiet: true}
	return &Prober{
		FS:       osfs.New("/"),
		LookPath: exec.LookPath,
		Command:  runner.Capture,
		Hostname: os.Hostname,
		NumCPU:   runtime.NumCPU,
	}
}

func (p *Prober) exists(path string) bool {
	_, err := p.FS.Stat(path)
	return err == nil
}

// GPUVendor detects the GPU vendor: NVIDIA when nvidia-smi resolves on PATH,
// AMD when the ROCm SMI binary is installed.
func (p *Prober) GPUVendor() (Vendor, error) {
	if _, err := p.LookPath("nvidia-smi"); err == nil {
		return NVIDIA, nil
	}
	if p.exists(rocmSMIPath) {
		return AMD, nil
	}
	return "", errors.New("no supported GPU detected (nvidia-smi or rocm-smi not found)")
}

// HostOS detects the OS family from the installed package manager.
func (p *Prober) HostOS() (OS, error) {
	switch {
	case p.exists("/usr/bin/apt"):
		return Ubuntu, nil
	case p.exists("/usr/bin/yum"):
		return CentOS, nil
	case p.exists("/usr/bin/zypper"):
		return SLES, nil
	}
	return "", errors.New("unsupported host OS (no apt, yum, or zypper)")
}

// GPUArchitecture reports the device architecture: the NVIDIA series token
// (A100, H200, ...) or the AMD gfx target (gfx90a, gfx942, ...).
func (p *Prober) GPUArchitecture(ctx context.Context) (string, error) {
	vendor, err := p.GPUVendor()
	if err != nil {
		return "", err
	}
	switch vendor {
	case NVIDIA:
		out, err := p.Command(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
		if err != nil {
			return "", errors.Wrap(err, "querying GPU name")
		}
		m := nvidiaArchPattern.FindString(out)
		if m == "" {
			return "", errors.Errorf("unrecognized NVIDIA device name %q", strings.TrimSpace(out))
		}
		return m, nil
	case AMD:
		out, err := p.Command(ctx, rocminfoPath)
		if err != nil {
			return "", errors.Wrap(err, "running rocminfo")
		}
		for _, f := range strings.Fields(out) {
			if strings.HasPrefix(f, "gfx") {
				return f, nil
			}
		}
		return "", errors.New("no gfx target in rocminfo output")
	}
	return "", errors.Errorf("unsupported GPU vendor: %s", vendor)
}

// NGPUs counts the visible GPUs: nvidia-smi -L lines for NVIDIA, KFD render
// nodes for AMD.
func (p *Prober) NGPUs(ctx context.Context) (int, error) {
	vendor, err := p.GPUVendor()
	if err != nil {
		return 0, err
	}
	switch vendor {
	case NVIDIA:
		out, err := p.Command(ctx, "nvidia-smi", "-L")
		if err != nil {
			return 0, errors.Wrap(err, "listing GPUs")
		}
		n := 0
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
				n++
			}
		}
		return n, nil
	case AMD:
		nodes, err := p.RenderNodes()
		if err != nil {
			return 0, err
		}
		return len(nodes), nil
	}
	return 0, errors.Errorf("unsupported GPU vendor: %s", vendor)
}

// RenderNodes returns the DRM render minors of AMD compute devices from the
// KFD topology. CPU-only nodes report minor 0 and are skipped.
func (p *Prober) RenderNodes() ([]int, error) {
	entries, err := p.FS.ReadDir(kfdNodesPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading KFD topology")
	}
	var minors []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		props := kfdNodesPath + "/" + e.Name() + "/properties"
		data, err := util.ReadFile(p.FS, props)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) != 2 || fields[0] != "drm_render_minor" {
				continue
			}
			minor, err := strconv.Atoi(fields[1])
			if err != nil || minor <= 0 {
				break
			}
			minors = append(minors, minor)
			break
		}
	}
	sort.Ints(minors)
	return minors, nil
}

// MachineName returns the hostname, or "unknown" when it cannot be read.
func (p *Prober) MachineName() string {
	name, err := p.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// SystemCPUs returns the host CPU count.
func (p *Prober) SystemCPUs() int { return p.NumCPU() }

// SysInfo describes the host CPU model and memory size.
type SysInfo struct {
	CPUModel string `json:"cpu_model,omitempty"`
	MemTotal string `json:"mem_total,omitempty"`
}

// SystemInfo reads the CPU model and total memory from /proc. Best effort:
// unreadable files leave fields empty.
func (p *Prober) SystemInfo() SysInfo {
	var s SysInfo
	if data, err := util.ReadFile(p.FS, "/proc/cpuinfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if name, value, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(name) == "model name" {
				s.CPUModel = strings.TrimSpace(value)
				break
			}
		}
	}
	if data, err := util.ReadFile(p.FS, "/proc/meminfo"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if rest, ok := strings.CutPrefix(line, "MemTotal:"); ok {
				s.MemTotal = strings.TrimSpace(rest)
				break
			}
		}
	}
	return s
}

// Host aggregates the probe results used by a run.
type Host struct {
	Vendor      Vendor  `json:"gpu_vendor"`
	OS          OS      `json:"host_os"`
	Arch        string  `json:"gpu_architecture"`
	NGPUs       int     `json:"n_gpus"`
	CPUs        int     `json:"n_cpus"`
	Machine     string  `json:"machine_name"`
	RenderNodes []int   `json:"render_nodes,omitempty"`
	System      SysInfo `json:"system"`
}

// Info runs all probes. GPU architecture and count failures are fatal since
// runs cannot be recorded without them; render nodes are best effort on
// NVIDIA hosts.
func (p *Prober) Info(ctx context.Context) (Host, error) {
	var h Host
	var err error
	if h.Vendor, err = p.GPUVendor(); err != nil {
		return h, err
	}
	if h.OS, err = p.HostOS(); err != nil {
		return h, err
	}
	if h.Arch, err = p.GPUArchitecture(ctx); err != nil {
		return h, err
	}
	if h.NGPUs, err = p.NGPUs(ctx); err != nil {
		return h, err
	}
	if h.Vendor == AMD {
		if h.RenderNodes, err = p.RenderNodes(); err != nil {
			return h, err
		}
	}
	h.CPUs = p.SystemCPUs()
	h.Machine = p.MachineName()
	h.System = p.SystemInfo()
	return h, nil
}
