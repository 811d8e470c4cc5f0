package types

import "strconv"

// FunctionKey builds the composite key used by the function index from a
// (module, function, arity) triple. The separator is a control character
// that cannot appear in a module or function name, so the encoding is
// collision-free without escaping.
func FunctionKey(module, function string, arity int) string {
	return module + "\x1f" + function + "\x1f" + strconv.Itoa(arity)
}
