package app

import (
	"os"
	"runtime"

	"arcner/util"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/rs/zerolog/log"
)

const (
	NUM_CPUS_FLAG = "cpus"
)

var (
	CPUs int

	// file names and overrides shared by the commands
	confFile     string
	trainFile    string
	devFile      string
	input        string
	outFile      string
	modelFile    string
	featuresFile string
	labelsFile   string
	iterations   int
	beamWidth    int
	limit        int
	logLevel     string
)

func AllCommands() *commander.Command {
	cmd := &commander.Command{
		UsageLine: os.Args[0],
		Short:     "transition-based dependency parsing and entity recognition",
		Subcommands: []*commander.Command{
			KindCmd("dep", "dependency parsing"),
			KindCmd("ner", "entity recognition"),
		},
		Flag: *flag.NewFlagSet("arcner", flag.ExitOnError),
	}
	for _, kind := range cmd.Subcommands {
		for _, app := range kind.Subcommands {
			app.Run = NewAppWrapCommand(app.Run)
			app.Flag.IntVar(&CPUs, NUM_CPUS_FLAG, 0, "Max CPUS to use (runtime.GOMAXPROCS); 0 = all")
			app.Flag.StringVar(&logLevel, "loglevel", "", "Log level [debug, info, warn, error]; overrides the configuration")
		}
	}
	return cmd
}

func InitCommand(cmd *commander.Command, args []string) {
	maxCPUs := runtime.NumCPU()
	if CPUs > maxCPUs {
		log.Warn().Int("cpus", maxCPUs).Msg("number of CPUs capped to all available")
		CPUs = 0
	}
	if CPUs == 0 {
		CPUs = maxCPUs
	}
	runtime.GOMAXPROCS(CPUs)
}

func NewAppWrapCommand(f func(cmd *commander.Command, args []string) error) func(cmd *commander.Command, args []string) error {
	return func(cmd *commander.Command, args []string) error {
		InitCommand(cmd, args)
		return f(cmd, args)
	}
}

// setup loads the configuration, applies flag overrides and defaults and
// configures logging
func setup() (*Conf, error) {
	conf, err := LoadConf(confFile)
	if err != nil {
		return nil, err
	}
	if iterations > 0 {
		conf.Iterations = iterations
	}
	if beamWidth > 0 {
		conf.BeamWidth = beamWidth
	}
	if featuresFile != "" {
		conf.FeaturesFile = featuresFile
	}
	if labelsFile != "" {
		conf.LabelsFile = labelsFile
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	util.SetupLogging(conf.LogLevel, conf.ConsoleLog)
	ApplyDefaults(conf)
	return conf, nil
}

// VerifyFlags fails when a required flag is empty
func VerifyFlags(cmd *commander.Command, required []string) error {
	for _, name := range required {
		f := cmd.Flag.Lookup(name)
		if f == nil || f.Value.String() == "" {
			cmd.Usage()
			return errRequired(name)
		}
	}
	return nil
}

// VerifyExists fails when a file cannot be accessed
func VerifyExists(filename string) error {
	if _, err := os.Stat(filename); err != nil {
		log.Error().Err(err).Str("file", filename).Msg("cannot access file")
		return err
	}
	return nil
}
