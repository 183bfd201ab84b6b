// Copyright 2025 The ModelBench Authors
// SPDX-License-Identifier: Apache-2.0

// Package perf defines the benchmark result record and the perf.csv format
// used to accumulate results across runs.
package perf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Status is the terminal state of a benchmark run.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusTimeout Status = "TIMEOUT"
)

// Record is one row of perf.csv. The bigquery tags keep exported table
// columns named like the CSV header.
type Record struct {
	Pipeline          string `json:"pipeline" bigquery:"pipeline"`
	Model             string `json:"model" bigquery:"model"`
	Tags              string `json:"tags" bigquery:"tags"`
	Args              string `json:"args" bigquery:"args"`
	DockerFile        string `json:"docker_file" bigquery:"docker_file"`
	BaseDocker        string `json:"base_docker" bigquery:"base_docker"`
	DockerSHA         string `json:"docker_sha" bigquery:"docker_sha"`
	DockerImage       string `json:"docker_image" bigquery:"docker_image"`
	MachineName       string `json:"machine_name" bigquery:"machine_name"`
	HostOS            string `json:"host_os" bigquery:"host_os"`
	GPUArchitecture   string `json:"gpu_architecture" bigquery:"gpu_architecture"`
	NGPUs             string `json:"n_gpus" bigquery:"n_gpus"`
	TrainingPrecision string `json:"training_precision" bigquery:"training_precision"`
	Performance       string `json:"performance" bigquery:"performance"`
	Metric            string `json:"metric" bigquery:"metric"`
	Status            Status `json:"status" bigquery:"status"`
	BuildDuration     string `json:"build_duration" bigquery:"build_duration"`
	TestDuration      string `json:"test_duration" bigquery:"test_duration"`
	GitCommit         string `json:"git_commit" bigquery:"git_commit"`
	RelativeChange    string `json:"relative_change" bigquery:"relative_change"`
}

// columns is the perf.csv header, in order.
var columns = []string{
	"pipeline",
	"model",
	"tags",
	"args",
	"docker_file",
	"base_docker",
	"docker_sha",
	"docker_image",
	"machine_name",
	"host_os",
	"gpu_architecture",
	"n_gpus",
	"training_precision",
	"performance",
	"metric",
	"status",
	"build_duration",
	"test_duration",
	"git_commit",
	"relative_change",
}

// NewRecord returns a record whose status reflects that nothing has
// succeeded yet.
func NewRecord() Record {
	return Record{Status: StatusFailure}
}

func (r *Record) set(column, value string) {
	switch column {
	case "pipeline":
		r.Pipeline = value
	case "model":
		r.Model = value
	case "tags":
		r.Tags = value
	case "args":
		r.Args = value
	case "docker_file":
		r.DockerFile = value
	case "base_docker":
		r.BaseDocker = value
	case "docker_sha":
		r.DockerSHA = value
	case "docker_image":
		r.DockerImage = value
	case "machine_name":
		r.MachineName = value
	case "host_os":
		r.HostOS = value
	case "gpu_architecture":
		r.GPUArchitecture = value
	case "n_gpus":
		r.NGPUs = value
	case "training_precision":
		r.TrainingPrecision = value
	case "performance":
		r.Performance = value
	case "metric":
		r.Metric = value
	case "status":
		r.Status = Status(value)
	case "build_duration":
		r.BuildDuration = value
	case "test_duration":
		r.TestDuration = value
	case "git_commit":
		r.GitCommit = value
	case "relative_change":
		r.RelativeChange = value
	}
}

func (r Record) get(column string) string {
	switch column {
	case "pipeline":
		return r.Pipeline
	case "model":
		return r.Model
	case "tags":
		return r.Tags
	case "args":
		return r.Args
	case "docker_file":
		return r.DockerFile
	case "base_docker":
		return r.BaseDocker
	case "docker_sha":
		return r.DockerSHA
	case "docker_image":
		return r.DockerImage
	case "machine_name":
		return r.MachineName
	case "host_os":
		return r.HostOS
	case "gpu_architecture":
		return r.GPUArchitecture
	case "n_gpus":
		return r.NGPUs
	case "training_precision":
		return r.TrainingPrecision
	case "performance":
		return r.Performance
	case "metric":
		return r.Metric
	case "status":
		return string(r.Status)
	case "build_duration":
		return r.BuildDuration
	case "test_duration":
		return r.TestDuration
	case "git_commit":
		return r.GitCommit
	case "relative_change":
		return r.RelativeChange
	}
	return ""
}

func (r Record) row() []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = r.get(c)
	}
	return row
}

// WriteJSON writes the record as an indented JSON object keyed by perf.csv
// column names, the interchange format for result files left in the
// workspace.
func (r Record) WriteJSON(path string) error {
	b, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshalling record")
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Summary renders the one-line result summary logged after each run.
func (r Record) Summary() string {
	return fmt.Sprintf("Model: %s, Machine: %s, GPU: %s, GPU Arch: %s, Precision: %s, Performance: %s, Metric: %s, Status: %s, Build Duration: %s, Test Duration: %s",
		r.Model, r.MachineName, r.NGPUs, r.GPUArchitecture, r.TrainingPrecision, r.Performance, r.Metric, r.Status, r.BuildDuration, r.TestDuration)
}

// FormatDuration renders a duration as seconds for a perf.csv column.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}
