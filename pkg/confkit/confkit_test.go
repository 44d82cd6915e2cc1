package confkit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/abs/file.yaml", confkit.ResolvePath("/base", "/abs/file.yaml"))
	assert.Equal(t, filepath.Join("/base", "etc/ta.yaml"), confkit.ResolvePath("/base", "etc/ta.yaml"))

	t.Setenv("CONF_DIR", "confs")
	assert.Equal(t, filepath.Join("/base", "confs/ta.yaml"), confkit.ResolvePath("/base", "${CONF_DIR}/ta.yaml"))
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "/etc/featuremill", confkit.BaseDir("/etc/featuremill/main.yaml"))
	assert.Equal(t, "etc", confkit.BaseDir("etc/main.yaml"))
}

func TestSectionHydrateSkipsEmptyFile(t *testing.T) {
	section := &confkit.Section[string]{}
	err := section.Hydrate("/base", func(string) (*string, error) {
		t.Fatal("loader must not run for an empty section")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, section.Value)
	assert.False(t, section.Enabled())
}

func TestSectionHydrateResolvesAndLoads(t *testing.T) {
	section := &confkit.Section[string]{File: "ta.yaml"}
	value := "loaded"
	err := section.Hydrate("/base", func(path string) (*string, error) {
		assert.Equal(t, filepath.Join("/base", "ta.yaml"), path)
		return &value, nil
	})
	require.NoError(t, err)
	require.NotNil(t, section.Value)
	assert.Equal(t, "loaded", *section.Value)
	assert.Equal(t, filepath.Join("/base", "ta.yaml"), section.File)
	assert.True(t, section.Enabled())
}

func TestLoadFile(t *testing.T) {
	type stub struct {
		Name string `json:"Name"`
	}
	path := filepath.Join(t.TempDir(), "stub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Name: featuremill\n"), 0o644))

	cfg, err := confkit.LoadFile[stub](path, false)
	require.NoError(t, err)
	assert.Equal(t, "featuremill", cfg.Name)

	_, err = confkit.LoadFile[stub](filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}
