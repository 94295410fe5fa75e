package transition

import "fmt"

// InvariantError reports a broken structural guarantee: an invalid action
// applied, a cyclic arc, no valid action at a non-terminal state. It is
// raised with panic and recovered at the document boundary.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Msg)
}

func Invariant(op, format string, args ...interface{}) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Recover turns a panic into an *InvariantError stored in err.
// Use as: defer transition.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	switch v := r.(type) {
	case *InvariantError:
		*err = v
	case error:
		*err = &InvariantError{Op: "runtime", Msg: v.Error()}
	default:
		*err = &InvariantError{Op: "runtime", Msg: fmt.Sprint(v)}
	}
}
