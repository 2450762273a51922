package hadoop

import (
	"strings"
)

// Command is an executable and its arguments, kept apart so it can be run
// without a shell.
type Command struct {
	Path string
	Args []string
}

// String renders the command as a single shell line. Arguments containing
// whitespace or shell metacharacters are single-quoted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
