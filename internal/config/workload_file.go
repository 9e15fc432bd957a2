package config

import (
	"os"

	"github.com/sugartom/nexus/internal/kerror"
	"gopkg.in/yaml.v3"
)

// StaticWorkloadEntry is one pre-declared model workload.
type StaticWorkloadEntry struct {
	ModelId      string  `yaml:"model_id"`
	Version      string  `yaml:"version"`
	TargetConfig string  `yaml:"target_config"`
	RequestRate  float64 `yaml:"request_rate"`
}

// StaticWorkloadGroup is a set of workloads meant to be seeded onto a
// single backend. Group index order is the deterministic assignment order.
type StaticWorkloadGroup struct {
	Models []StaticWorkloadEntry `yaml:"models"`
}

type staticWorkloadFile struct {
	Groups []StaticWorkloadGroup `yaml:"groups"`
}

// LoadWorkloadFile parses the static workload description. Panics with
// InvalidParameter on unreadable or malformed input; a bad workload file is
// a startup failure, not something to limp past.
func LoadWorkloadFile(path string) []StaticWorkloadGroup {
	raw, err := os.ReadFile(path)
	if err != nil {
		panic(kerror.Wrap(err, "WorkloadFileError", "failed to read workload file", false).
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("path", path))
	}
	var parsed staticWorkloadFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		panic(kerror.Wrap(err, "WorkloadFileError", "failed to parse workload file", false).
			WithErrorCode(kerror.EC_INVALID_PARAMETER).
			With("path", path))
	}
	for gi, group := range parsed.Groups {
		for mi, entry := range group.Models {
			if entry.ModelId == "" || entry.Version == "" || entry.RequestRate <= 0 {
				panic(kerror.Create("WorkloadFileError", "invalid workload entry").
					WithErrorCode(kerror.EC_INVALID_PARAMETER).
					With("group", gi).With("index", mi))
			}
		}
	}
	return parsed.Groups
}
