package gold

import "github.com/pkg/errors"

// Data errors: the example is skipped, training goes on
var (
	ErrMalformedIOB = errors.New("malformed entity tags")
	ErrMisaligned   = errors.New("tokens cannot be aligned")
	ErrAnnotation   = errors.New("invalid annotation")
	ErrOverlap      = errors.New("overlapping entity offsets")
)
