package app

import (
	"os"

	"arcner/alg/search"
	"arcner/nlp/parser/transition"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	dfltIterations     = 10
	dfltBeamWidth      = 1
	dfltUpdateStrategy = "early"
	dfltDocSize        = 1
	dfltLogLevel       = "info"
)

// Conf is the training and decoding configuration file
type Conf struct {
	Iterations     int    `yaml:"iterations"`
	BeamWidth      int    `yaml:"beamWidth"`
	UpdateStrategy string `yaml:"updateStrategy"`
	BatchSize      int    `yaml:"batchSize"`
	Explore        bool   `yaml:"explore"`
	Segment        bool   `yaml:"segment"`
	Projectivize   *bool  `yaml:"projectivize"`
	// DocSize is the number of consecutive sentences read into one doc
	DocSize      int    `yaml:"docSize"`
	FeaturesFile string `yaml:"featuresFile"`
	LabelsFile   string `yaml:"labelsFile"`
	LogLevel     string `yaml:"logLevel"`
	ConsoleLog   bool   `yaml:"consoleLog"`
}

// LoadConf reads a YAML configuration; an empty path gives an empty one
func LoadConf(path string) (*Conf, error) {
	conf := &Conf{}
	if path == "" {
		return conf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration %s", path)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrapf(err, "parsing configuration %s", path)
	}
	return conf, nil
}

func ApplyDefaults(conf *Conf) {
	if conf.Iterations == 0 {
		conf.Iterations = dfltIterations
		log.Warn().Msgf("iterations not specified, using default: %d", dfltIterations)
	}
	if conf.BeamWidth == 0 {
		conf.BeamWidth = dfltBeamWidth
		log.Warn().Msgf("beamWidth not specified, using default: %d", dfltBeamWidth)
	}
	if conf.UpdateStrategy == "" {
		conf.UpdateStrategy = dfltUpdateStrategy
		if conf.BeamWidth > 1 {
			log.Warn().Msgf("updateStrategy not specified, using default: %s", dfltUpdateStrategy)
		}
	}
	if conf.Projectivize == nil {
		projectivize := true
		conf.Projectivize = &projectivize
		log.Warn().Msg("projectivize not specified, using default: true")
	}
	if conf.DocSize == 0 {
		conf.DocSize = dfltDocSize
		if conf.Segment {
			log.Warn().Msgf("docSize not specified, using default: %d", dfltDocSize)
		}
	}
	if conf.LogLevel == "" {
		conf.LogLevel = dfltLogLevel
	}
}

// ParserConfig converts the file settings into parser settings, loading
// the feature file when one is set
func (c *Conf) ParserConfig() (transition.Config, error) {
	var retval transition.Config
	update, ok := search.ParseUpdateStrategy(c.UpdateStrategy)
	if !ok {
		return retval, errors.Errorf("unknown update strategy %q", c.UpdateStrategy)
	}
	retval = transition.Config{
		BeamWidth:      c.BeamWidth,
		UpdateStrategy: update,
		Iterations:     c.Iterations,
		BatchSize:      c.BatchSize,
		Explore:        c.Explore,
		Segment:        c.Segment,
		Projectivize:   c.Projectivize == nil || *c.Projectivize,
	}
	if c.FeaturesFile != "" {
		features, err := transition.LoadFeatureConfFile(c.FeaturesFile)
		if err != nil {
			return retval, err
		}
		retval.Features = features
	}
	return retval, nil
}
