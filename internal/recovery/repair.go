package recovery

import "strings"

// repair closes output that was cut off by the model's length limit.
// Text already ending in '}' is left alone. Otherwise a dangling string literal
// is closed, a trailing comma is dropped, and one closer is appended for each
// unmatched opener, counting only brackets outside string literals.
// It returns the repaired text and the number of closers appended.
func repair(text string) (string, int) {
	trimmed := strings.TrimRightFunc(text, isSpace)
	if strings.HasSuffix(trimmed, "}") {
		return text, 0
	}

	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				// More closers than openers: nothing sensible to append.
				return text, 0
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(trimmed) + len(stack) + 1)
	if inString {
		if escaped {
			trimmed = trimmed[:len(trimmed)-1]
		}
		b.WriteString(trimmed)
		b.WriteByte('"')
	} else {
		b.WriteString(strings.TrimSuffix(strings.TrimRightFunc(trimmed, isSpace), ","))
	}

	added := 0
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
			added++
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), added
}
