package filter

import "fmt"

// InputError reports one rejected predicate term, carrying enough context to
// point a caller back at the offending text.
type InputError struct {
	Term    string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%q: %s", e.Term, e.Message)
}
