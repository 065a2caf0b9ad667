package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	pfp "github.com/setanarut/pfpbuilder"
)

func loadWith(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg *Config
		err error
	)
	app := &cli.App{
		Name:  "pfpbuilder",
		Flags: []cli.Flag{&cli.StringFlag{Name: "config", Value: "pfpbuilder.yaml"}},
		Commands: []*cli.Command{{
			Name:  "generate",
			Flags: generateCommand.Flags,
			Action: func(c *cli.Context) error {
				cfg, err = LoadConfig(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"pfpbuilder"}, args...)))
	return cfg, err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "pfpbuilder.yaml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))
	return file
}

func TestLoadConfig_Precedence(t *testing.T) {
	file := writeConfig(t, `
size: 10
seed: 5
layers: ./art
collection:
  name: Foo
  media_base_uri: ipfs://cid
`)
	t.Setenv("PFP_WIDTH", "300")

	cfg, err := loadWith(t, "--config", file, "generate", "--size", "20", "--format", "jpg")
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Size)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 1024, cfg.Height)
	assert.Equal(t, "Foo", cfg.Collection.Name)
	assert.Equal(t, "./art", cfg.AssetRoot())

	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, pfp.FormatJPEG, pc.Format)
	require.NotNil(t, pc.Seed)
	assert.Equal(t, int64(5), *pc.Seed)
	assert.Equal(t, pfp.DefaultSilhouetteThreshold, pc.SilhouetteThreshold)
}

func TestLoadConfig_NoSeedMeansRandom(t *testing.T) {
	file := writeConfig(t, "size: 3\n")
	cfg, err := loadWith(t, "--config", file, "generate")
	require.NoError(t, err)
	pc, err := cfg.Pipeline()
	require.NoError(t, err)
	assert.Nil(t, pc.Seed)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadWith(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "generate")
	assert.Error(t, err)

	file := writeConfig(t, "size: 3\n")
	_, err = loadWith(t, "--config", file, "generate", "--threshold", "300")
	assert.Error(t, err)

	cfg, err := loadWith(t, "--config", file, "generate", "--format", "bmp")
	require.NoError(t, err)
	_, err = cfg.Pipeline()
	assert.ErrorIs(t, err, pfp.ErrInvalidConfig)

	_, err = cfg.Catalog()
	assert.Error(t, err)
}

func TestConfig_AssetRootFromManifest(t *testing.T) {
	cfg := &Config{Manifest: filepath.Join("art", "catalog.yaml")}
	assert.Equal(t, "art", cfg.AssetRoot())
}
