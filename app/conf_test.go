package app

import (
	"os"
	"path/filepath"
	"testing"

	"arcner/alg/search"
	"arcner/nlp/parser/transition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConf(t *testing.T) {
	path := writeFile(t, "conf.yaml", `
iterations: 5
beamWidth: 8
updateStrategy: max-violation
projectivize: false
docSize: 3
segment: true
`)
	conf, err := LoadConf(path)
	require.NoError(t, err)
	assert.Equal(t, 5, conf.Iterations)
	assert.Equal(t, 8, conf.BeamWidth)
	assert.Equal(t, "max-violation", conf.UpdateStrategy)
	require.NotNil(t, conf.Projectivize)
	assert.False(t, *conf.Projectivize)
	assert.Equal(t, 3, conf.DocSize)
	assert.True(t, conf.Segment)

	empty, err := LoadConf("")
	require.NoError(t, err)
	assert.Equal(t, &Conf{}, empty)

	_, err = LoadConf(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConf(writeFile(t, "bad.yaml", "iterations: [1"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	conf := &Conf{}
	ApplyDefaults(conf)
	assert.Equal(t, dfltIterations, conf.Iterations)
	assert.Equal(t, dfltBeamWidth, conf.BeamWidth)
	assert.Equal(t, dfltUpdateStrategy, conf.UpdateStrategy)
	assert.Equal(t, dfltDocSize, conf.DocSize)
	assert.Equal(t, dfltLogLevel, conf.LogLevel)
	require.NotNil(t, conf.Projectivize)
	assert.True(t, *conf.Projectivize)

	set := &Conf{Iterations: 3, BeamWidth: 4}
	ApplyDefaults(set)
	assert.Equal(t, 3, set.Iterations)
	assert.Equal(t, 4, set.BeamWidth)
}

func TestParserConfig(t *testing.T) {
	conf := &Conf{}
	ApplyDefaults(conf)
	pc, err := conf.ParserConfig()
	require.NoError(t, err)
	assert.Equal(t, search.EarlyUpdate, pc.UpdateStrategy)
	assert.True(t, pc.Projectivize)
	assert.Nil(t, pc.Features)
	assert.Equal(t, dfltIterations, pc.Iterations)

	conf.UpdateStrategy = "sideways"
	_, err = conf.ParserConfig()
	assert.Error(t, err)

	conf.UpdateStrategy = "early"
	conf.FeaturesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = conf.ParserConfig()
	assert.Error(t, err)
}

func TestAllCommands(t *testing.T) {
	cmd := AllCommands()
	require.Len(t, cmd.Subcommands, 2)
	for i, kind := range []transition.Kind{transition.Dependency, transition.Entity} {
		assert.Equal(t, kind.String(), cmd.Subcommands[i].Name())
		var names []string
		for _, sub := range cmd.Subcommands[i].Subcommands {
			names = append(names, sub.Name())
			assert.NotNil(t, sub.Flag.Lookup(NUM_CPUS_FLAG))
		}
		assert.Equal(t, []string{"train", "parse", "eval"}, names)
	}
}
