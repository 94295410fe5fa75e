package gold

import "arcner/nlp/types"

// Example pairs a predicted token sequence with its gold annotation
type Example struct {
	Doc  *types.Doc
	Gold *TokenAnnotation
}

// GoldParse builds the training target of e, projectivized when asked
func (e *Example) GoldParse(projectivize bool) (*GoldParse, error) {
	g, err := NewGoldParse(e.Doc, e.Gold)
	if err != nil {
		return nil, err
	}
	if projectivize && g.HasDependencies() {
		if err := g.Projectivize(); err != nil {
			return nil, err
		}
	}
	return g, nil
}
