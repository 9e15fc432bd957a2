package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugartom/nexus/internal/kerror"
)

const sampleWorkload = `
groups:
  - models:
      - model_id: resnet50
        version: "1"
        target_config: gpu
        request_rate: 100
      - model_id: bert
        version: "2"
        request_rate: 50
  - models:
      - model_id: vgg16
        version: "1"
        request_rate: 30
`

func writeTempWorkload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWorkloadFile(t *testing.T) {
	groups := LoadWorkloadFile(writeTempWorkload(t, sampleWorkload))
	require.Len(t, groups, 2)
	require.Len(t, groups[0].Models, 2)
	assert.Equal(t, "resnet50", groups[0].Models[0].ModelId)
	assert.Equal(t, "gpu", groups[0].Models[0].TargetConfig)
	assert.Equal(t, 100.0, groups[0].Models[0].RequestRate)
	assert.Equal(t, 30.0, groups[1].Models[0].RequestRate)
}

func TestLoadWorkloadFileRejectsBadEntry(t *testing.T) {
	path := writeTempWorkload(t, `
groups:
  - models:
      - model_id: resnet50
        version: "1"
        request_rate: 0
`)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		ke := r.(*kerror.Kerror)
		assert.Equal(t, "WorkloadFileError", ke.GetType())
	}()
	LoadWorkloadFile(path)
}

func TestLoadWorkloadFileMissing(t *testing.T) {
	defer func() {
		assert.NotNil(t, recover())
	}()
	LoadWorkloadFile("/does/not/exist.yaml")
}
