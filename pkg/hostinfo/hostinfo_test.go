// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

package hostinfo

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func fakeProber(fs billy.Filesystem) *Prober {
	return &Prober{
		FS:       fs,
		LookPath: func(string) (string, error) { return "", errors.New("not found") },
		Command: func(ctx context.Context, name string, args ...string) (string, error) {
			return "", errors.New("no commands configured")
		},
		Hostname: func() (string, error) { return "host-a", nil },
		NumCPU:   func() int { return 16 },
	}
}

func touch(t *testing.T, fs billy.Filesystem, path string) {
	t.Helper()
	if err := util.WriteFile(fs, path, nil, 0755); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestGPUVendor(t *testing.T) {
	t.Run("nvidia via PATH", func(t *testing.T) {
		p := fakeProber(memfs.New())
		p.LookPath = func(file string) (string, error) {
			if file == "nvidia-smi" {
				return "/usr/bin/nvidia-smi", nil
			}
			return "", errors.New("not found")
		}
		got, err := p.GPUVendor()
		if err != nil {
			t.Fatalf("GPUVendor: %v", err)
		}
		if got != NVIDIA {
			t.Errorf("GPUVendor = %s, want NVIDIA", got)
		}
	})
	t.Run("amd via rocm-smi", func(t *testing.T) {
		fs := memfs.New()
		touch(t, fs, "/opt/rocm/bin/rocm-smi")
		got, err := fakeProber(fs).GPUVendor()
		if err != nil {
			t.Fatalf("GPUVendor: %v", err)
		}
		if got != AMD {
			t.Errorf("GPUVendor = %s, want AMD", got)
		}
	})
	t.Run("none", func(t *testing.T) {
		if _, err := fakeProber(memfs.New()).GPUVendor(); err == nil {
			t.Error("GPUVendor succeeded with no GPU tooling")
		}
	})
}

func TestHostOS(t *testing.T) {
	for _, tc := range []struct {
		path string
		want OS
	}{
		{"/usr/bin/apt", Ubuntu},
		{"/usr/bin/yum", CentOS},
		{"/usr/bin/zypper", SLES},
	} {
		t.Run(string(tc.want), func(t *testing.T) {
			fs := memfs.New()
			touch(t, fs, tc.path)
			got, err := fakeProber(fs).HostOS()
			if err != nil {
				t.Fatalf("HostOS: %v", err)
			}
			if got != tc.want {
				t.Errorf("HostOS = %s, want %s", got, tc.want)
			}
		})
	}
	t.Run("unsupported", func(t *testing.T) {
		if _, err := fakeProber(memfs.New()).HostOS(); err == nil {
			t.Error("HostOS succeeded with no package manager")
		}
	})
}

func TestGPUArchitecture(t *testing.T) {
	t.Run("nvidia", func(t *testing.T) {
		p := fakeProber(memfs.New())
		p.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
		p.Command = func(ctx context.Context, name string, args ...string) (string, error) {
			return "NVIDIA H100 80GB HBM3\nNVIDIA H100 80GB HBM3\n", nil
		}
		got, err := p.GPUArchitecture(context.Background())
		if err != nil {
			t.Fatalf("GPUArchitecture: %v", err)
		}
		if got != "H100" {
			t.Errorf("GPUArchitecture = %q, want H100", got)
		}
	})
	t.Run("nvidia unrecognized", func(t *testing.T) {
		p := fakeProber(memfs.New())
		p.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
		p.Command = func(ctx context.Context, name string, args ...string) (string, error) {
			return "GeForce GT 710\n", nil
		}
		if _, err := p.GPUArchitecture(context.Background()); err == nil {
			t.Error("GPUArchitecture succeeded on unrecognized name")
		}
	})
	t.Run("amd", func(t *testing.T) {
		fs := memfs.New()
		touch(t, fs, "/opt/rocm/bin/rocm-smi")
		p := fakeProber(fs)
		p.Command = func(ctx context.Context, name string, args ...string) (string, error) {
			return "Agent 2\n  Name: gfx942\n  Vendor Name: AMD\n", nil
		}
		got, err := p.GPUArchitecture(context.Background())
		if err != nil {
			t.Fatalf("GPUArchitecture: %v", err)
		}
		if got != "gfx942" {
			t.Errorf("GPUArchitecture = %q, want gfx942", got)
		}
	})
}

func TestNGPUsNvidia(t *testing.T) {
	p := fakeProber(memfs.New())
	p.LookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	p.Command = func(ctx context.Context, name string, args ...string) (string, error) {
		return "GPU 0: NVIDIA A100 (UUID: a)\nGPU 1: NVIDIA A100 (UUID: b)\n", nil
	}
	got, err := p.NGPUs(context.Background())
	if err != nil {
		t.Fatalf("NGPUs: %v", err)
	}
	if got != 2 {
		t.Errorf("NGPUs = %d, want 2", got)
	}
}

func TestRenderNodes(t *testing.T) {
	fs := memfs.New()
	touch(t, fs, "/opt/rocm/bin/rocm-smi")
	write := func(node int, contents string) {
		path := fmt.Sprintf("%s/%d/properties", kfdNodesPath, node)
		if err := util.WriteFile(fs, path, []byte(contents), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	// Node 0 is the CPU (minor 0); nodes 1-2 are GPUs.
	write(0, "cpu_cores_count 64\ndrm_render_minor 0\n")
	write(1, "simd_count 304\ndrm_render_minor 128\n")
	write(2, "simd_count 304\ndrm_render_minor 129\n")
	p := fakeProber(fs)
	got, err := p.RenderNodes()
	if err != nil {
		t.Fatalf("RenderNodes: %v", err)
	}
	if diff := cmp.Diff([]int{128, 129}, got); diff != "" {
		t.Errorf("RenderNodes mismatch (-want +got):\n%s", diff)
	}
	n, err := p.NGPUs(context.Background())
	if err != nil {
		t.Fatalf("NGPUs: %v", err)
	}
	if n != 2 {
		t.Errorf("NGPUs = %d, want 2", n)
	}
}

func TestSystemInfo(t *testing.T) {
	fs := memfs.New()
	cpuinfo := "processor\t: 0\nmodel name\t: AMD EPYC 9654 96-Core Processor\nmodel name\t: AMD EPYC 9654 96-Core Processor\n"
	if err := util.WriteFile(fs, "/proc/cpuinfo", []byte(cpuinfo), 0444); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	meminfo := "MemTotal:       1584879040 kB\nMemFree:        1426028500 kB\n"
	if err := util.WriteFile(fs, "/proc/meminfo", []byte(meminfo), 0444); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got := fakeProber(fs).SystemInfo()
	want := SysInfo{CPUModel: "AMD EPYC 9654 96-Core Processor", MemTotal: "1584879040 kB"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SystemInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemInfoMissingProc(t *testing.T) {
	got := fakeProber(memfs.New()).SystemInfo()
	if got != (SysInfo{}) {
		t.Errorf("SystemInfo = %+v, want empty", got)
	}
}

func TestInfoAMD(t *testing.T) {
	fs := memfs.New()
	touch(t, fs, "/opt/rocm/bin/rocm-smi")
	touch(t, fs, "/usr/bin/apt")
	if err := util.WriteFile(fs, kfdNodesPath+"/1/properties", []byte("drm_render_minor 128\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := fakeProber(fs)
	p.Command = func(ctx context.Context, name string, args ...string) (string, error) {
		return "Name: gfx90a\n", nil
	}
	got, err := p.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := Host{
		Vendor:      AMD,
		OS:          Ubuntu,
		Arch:        "gfx90a",
		NGPUs:       1,
		CPUs:        16,
		Machine:     "host-a",
		RenderNodes: []int{128},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Info mismatch (-want +got):\n%s", diff)
	}
}
