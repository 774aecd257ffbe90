package render

import (
	"strings"
)

// Invocation is one concrete subprocess command.
type Invocation struct {
	Executable string
	Args       []string
}

// NewInvocation composes executable + flags + inputs. Inputs are appended last, in the
// order given.
func NewInvocation(executable string, flags []string, inputs []string) Invocation {
	args := make([]string, 0, len(flags)+len(inputs))
	args = append(args, flags...)
	args = append(args, inputs...)
	return Invocation{Executable: executable, Args: args}
}

// String reconstructs the command line. Arguments that a shell would split or
// interpret are quoted so the line can be pasted back into a terminal.
func (i Invocation) String() string {
	parts := make([]string, 0, len(i.Args)+1)
	parts = append(parts, quoteArg(i.Executable))
	for _, a := range i.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`|&;<>()*?[]{}!#~") {
		// Single quotes suppress every shell expansion; an embedded quote becomes '\''.
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}
