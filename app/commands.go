package app

import (
	"fmt"
	"time"

	"arcner/alg/perceptron"
	"arcner/eval"
	"arcner/nlp/format/conllu"
	"arcner/nlp/gold"
	"arcner/nlp/parser/transition"
	"arcner/nlp/types"
	"arcner/util/conf"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrRequiredFlag = errors.New("required flag not set")

func errRequired(name string) error {
	return errors.Wrapf(ErrRequiredFlag, "-%s", name)
}

// KindCmd groups the train, parse and eval commands of one parser kind
func KindCmd(name, short string) *commander.Command {
	kind, err := transition.ParseKind(name)
	if err != nil {
		panic(err)
	}
	return &commander.Command{
		UsageLine: name + " <command> [options]",
		Short:     short,
		Subcommands: []*commander.Command{
			TrainCmd(kind),
			ParseCmd(kind),
			EvalCmd(kind),
		},
		Flag: *flag.NewFlagSet(name, flag.ExitOnError),
	}
}

func TrainCmd(kind transition.Kind) *commander.Command {
	cmd := &commander.Command{
		Run: func(cmd *commander.Command, args []string) error {
			return Train(cmd, kind)
		},
		UsageLine: "train <file options> [arguments]",
		Short:     fmt.Sprintf("trains a %v model", kind),
		Long: fmt.Sprintf(`
trains a %v model from CoNLL-U data

	$ ./arcner %v train -tc <train conllu> -m <model> [-dev <dev conllu>] [-conf <yaml>] [options]

`, kind, kind),
		Flag: *flag.NewFlagSet("train", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&confFile, "conf", "", "Optional - YAML configuration file")
	cmd.Flag.StringVar(&trainFile, "tc", "", "Training CoNLL-U file")
	cmd.Flag.StringVar(&devFile, "dev", "", "Optional - Dev CoNLL-U file, evaluated after every iteration")
	cmd.Flag.StringVar(&modelFile, "m", "", "Output model file")
	cmd.Flag.StringVar(&featuresFile, "f", "", "Optional - Features configuration file")
	cmd.Flag.StringVar(&labelsFile, "l", "", "Optional - Labels file, one label per line")
	cmd.Flag.IntVar(&iterations, "it", 0, "Number of perceptron iterations")
	cmd.Flag.IntVar(&beamWidth, "b", 0, "Beam width; 1 decodes greedily")
	cmd.Flag.IntVar(&limit, "limit", 0, "Limit the number of training sentences")
	return cmd
}

func ParseCmd(kind transition.Kind) *commander.Command {
	cmd := &commander.Command{
		Run: func(cmd *commander.Command, args []string) error {
			return Parse(cmd, kind)
		},
		UsageLine: "parse <file options> [arguments]",
		Short:     fmt.Sprintf("annotates CoNLL-U input with a %v model", kind),
		Long: fmt.Sprintf(`
annotates the words of a CoNLL-U file

	$ ./arcner %v parse -m <model> -in <input conllu> -out <output conllu> [options]

`, kind),
		Flag: *flag.NewFlagSet("parse", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&confFile, "conf", "", "Optional - YAML configuration file")
	cmd.Flag.StringVar(&modelFile, "m", "", "Model file")
	cmd.Flag.StringVar(&input, "in", "", "Input CoNLL-U file")
	cmd.Flag.StringVar(&outFile, "out", "", "Output CoNLL-U file")
	cmd.Flag.IntVar(&beamWidth, "b", 0, "Beam width; 1 decodes greedily")
	cmd.Flag.IntVar(&limit, "limit", 0, "Limit the number of sentences")
	return cmd
}

func EvalCmd(kind transition.Kind) *commander.Command {
	cmd := &commander.Command{
		Run: func(cmd *commander.Command, args []string) error {
			return Evaluate(cmd, kind)
		},
		UsageLine: "eval <file options> [arguments]",
		Short:     fmt.Sprintf("evaluates a %v model against gold CoNLL-U", kind),
		Flag:      *flag.NewFlagSet("eval", flag.ExitOnError),
	}
	cmd.Flag.StringVar(&confFile, "conf", "", "Optional - YAML configuration file")
	cmd.Flag.StringVar(&modelFile, "m", "", "Model file")
	cmd.Flag.StringVar(&input, "in", "", "Gold CoNLL-U file")
	cmd.Flag.IntVar(&beamWidth, "b", 0, "Beam width; 1 decodes greedily")
	cmd.Flag.IntVar(&limit, "limit", 0, "Limit the number of sentences")
	return cmd
}

func readExamples(filename string, vocab *types.Vocab, docSize int) ([]*gold.Example, error) {
	if err := VerifyExists(filename); err != nil {
		return nil, err
	}
	sents, err := conllu.ReadFile(filename, limit)
	if err != nil {
		return nil, err
	}
	examples := sents.Documents(vocab, docSize)
	log.Info().Str("file", filename).Int("sentences", len(sents)).Int("docs", len(examples)).Msg("read")
	return examples, nil
}

// Score parses copies of the examples' docs and scores them against gold
func Score(p *transition.Parser, examples []*gold.Example) (*eval.Attachment, *eval.Entities) {
	var (
		attachment = &eval.Attachment{}
		entities   = eval.NewEntities()
	)
	for i, ex := range examples {
		g, err := ex.GoldParse(false)
		if err != nil {
			log.Debug().Err(err).Int("doc", i).Msg("no gold to score")
			continue
		}
		doc := unparsed(ex.Doc)
		if err := p.Parse(doc); err != nil {
			log.Warn().Err(err).Int("doc", i).Msg("doc not parsed")
			continue
		}
		if p.Kind == transition.Dependency {
			attachment.Add(doc, g)
		} else if err := entities.Add(doc, g); err != nil {
			log.Debug().Err(err).Int("doc", i).Msg("bad gold entities")
		}
	}
	return attachment, entities
}

// unparsed copies the base attributes of doc's tokens
func unparsed(doc *types.Doc) *types.Doc {
	retval := &types.Doc{Vocab: doc.Vocab, Tokens: make([]types.Token, len(doc.Tokens))}
	for i, tok := range doc.Tokens {
		retval.Tokens[i] = types.Token{
			Text:       tok.Text,
			Whitespace: tok.Whitespace,
			Orth:       tok.Orth,
			Lemma:      tok.Lemma,
			Tag:        tok.Tag,
			Head:       i,
		}
	}
	return retval
}

func report(kind transition.Kind, attachment *eval.Attachment, entities *eval.Entities) string {
	if kind == transition.Dependency {
		return attachment.String()
	}
	retval := "entities " + entities.Result.String()
	for _, label := range entities.Labels() {
		retval += fmt.Sprintf("\n\t%-10s %s", label, entities.ByLabel[label])
	}
	return retval
}

func Train(cmd *commander.Command, kind transition.Kind) error {
	if err := VerifyFlags(cmd, []string{"tc", "m"}); err != nil {
		return err
	}
	appConf, err := setup()
	if err != nil {
		return err
	}
	parserConf, err := appConf.ParserConfig()
	if err != nil {
		return err
	}
	vocab := types.NewVocab()
	examples, err := readExamples(trainFile, vocab, appConf.DocSize)
	if err != nil {
		return err
	}
	p, err := transition.NewParser(kind, parserConf)
	if err != nil {
		return err
	}
	if appConf.LabelsFile != "" {
		labels, err := conf.ReadFile(appConf.LabelsFile)
		if err != nil {
			return err
		}
		for _, label := range labels.Values {
			if _, err := p.AddLabel(label); err != nil {
				return err
			}
		}
		log.Info().Str("file", appConf.LabelsFile).Int("labels", p.Labels.Len()).Msg("labels")
	}
	if devFile != "" {
		dev, err := readExamples(devFile, vocab, appConf.DocSize)
		if err != nil {
			return err
		}
		p.AfterEpoch = func(e *perceptron.Epoch) {
			attachment, entities := Score(p, dev)
			log.Info().Int("iteration", e.Iteration).Str("dev", report(kind, attachment, entities)).Msg("evaluated")
		}
	}
	log.Info().
		Str("kind", kind.String()).
		Int("iterations", parserConf.Iterations).
		Int("beam", parserConf.BeamWidth).
		Str("update", parserConf.UpdateStrategy.String()).
		Bool("projectivize", parserConf.Projectivize).
		Bool("segment", parserConf.Segment).
		Msg("configuration")
	start := time.Now()
	if _, err := p.Train(examples); err != nil {
		return err
	}
	log.Info().Dur("took", time.Since(start)).Msg("trained")
	if err := p.SaveFile(modelFile); err != nil {
		return err
	}
	log.Info().Str("model", p.ID.String()).Str("file", modelFile).Msg("model written")
	return nil
}

func loadParser(appConf *Conf) (*transition.Parser, error) {
	if err := VerifyExists(modelFile); err != nil {
		return nil, err
	}
	parserConf, err := appConf.ParserConfig()
	if err != nil {
		return nil, err
	}
	return transition.LoadFile(modelFile, parserConf)
}

func Parse(cmd *commander.Command, kind transition.Kind) error {
	if err := VerifyFlags(cmd, []string{"m", "in", "out"}); err != nil {
		return err
	}
	appConf, err := setup()
	if err != nil {
		return err
	}
	p, err := loadParser(appConf)
	if err != nil {
		return err
	}
	if p.Kind != kind {
		return errors.Errorf("%s is a %v model", modelFile, p.Kind)
	}
	examples, err := readExamples(input, types.NewVocab(), appConf.DocSize)
	if err != nil {
		return err
	}
	docs := conllu.Docs(examples)
	start := time.Now()
	failed := 0
	for _, err := range p.ParseBatch(docs) {
		if err != nil {
			failed++
		}
	}
	log.Info().Int("docs", len(docs)).Int("failed", failed).Dur("took", time.Since(start)).Msg("parsed")
	var out conllu.Sentences
	for _, doc := range docs {
		out = append(out, conllu.FromDoc(doc, kind == transition.Entity)...)
	}
	if err := conllu.WriteFile(outFile, out); err != nil {
		return err
	}
	log.Info().Int("sentences", len(out)).Str("file", outFile).Msg("written")
	return nil
}

func Evaluate(cmd *commander.Command, kind transition.Kind) error {
	if err := VerifyFlags(cmd, []string{"m", "in"}); err != nil {
		return err
	}
	appConf, err := setup()
	if err != nil {
		return err
	}
	p, err := loadParser(appConf)
	if err != nil {
		return err
	}
	examples, err := readExamples(input, types.NewVocab(), appConf.DocSize)
	if err != nil {
		return err
	}
	attachment, entities := Score(p, examples)
	fmt.Println(report(p.Kind, attachment, entities))
	return nil
}
