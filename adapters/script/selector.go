package script

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSelector is returned for selectors outside the supported subset:
// type, #id, .class and [attr] or [attr=value] compounds joined by the
// descendant or child combinator.
var ErrSelector = errors.New("unsupported selector")

// selectorToXPath translates a CSS selector to an XPath expression rooted
// at "//". Callers prefix "." to scope it under an element.
func selectorToXPath(css string) (string, error) {
	var b strings.Builder
	axis := "//"
	steps := 0

	for _, part := range strings.Fields(strings.ReplaceAll(css, ">", " > ")) {
		if part == ">" {
			if steps == 0 || axis == "/" {
				return "", fmt.Errorf("%w: %q", ErrSelector, css)
			}
			axis = "/"
			continue
		}

		step, err := compound(part)
		if err != nil {
			return "", fmt.Errorf("%w: %q", err, css)
		}
		b.WriteString(axis)
		b.WriteString(step)
		axis = "//"
		steps++
	}

	if steps == 0 || axis == "/" {
		return "", fmt.Errorf("%w: %q", ErrSelector, css)
	}
	return b.String(), nil
}

// compound translates one simple selector sequence such as input.a[name=x].
func compound(part string) (string, error) {
	tag := "*"
	end := strings.IndexAny(part, "#.[")
	if end == -1 {
		end = len(part)
	}
	if end > 0 {
		tag = strings.ToLower(part[:end])
		if tag != "*" && !validName(tag) {
			return "", ErrSelector
		}
	}

	var preds []string
	for rest := part[end:]; rest != ""; {
		switch rest[0] {
		case '#', '.':
			stop := strings.IndexAny(rest[1:], "#.[")
			if stop == -1 {
				stop = len(rest) - 1
			}
			name := rest[1 : stop+1]
			if !validName(name) {
				return "", ErrSelector
			}
			if rest[0] == '#' {
				preds = append(preds, "@id="+literal(name))
			} else {
				preds = append(preds, "contains(concat(' ', normalize-space(@class), ' '), "+literal(" "+name+" ")+")")
			}
			rest = rest[stop+1:]

		case '[':
			stop := strings.IndexByte(rest, ']')
			if stop == -1 {
				return "", ErrSelector
			}
			name, val, hasVal := strings.Cut(rest[1:stop], "=")
			name = strings.TrimSpace(name)
			if !validName(name) {
				return "", ErrSelector
			}
			if hasVal {
				val = strings.Trim(strings.TrimSpace(val), `"'`)
				preds = append(preds, "@"+name+"="+literal(val))
			} else {
				preds = append(preds, "@"+name)
			}
			rest = rest[stop+1:]

		default:
			return "", ErrSelector
		}
	}

	if len(preds) == 0 {
		return tag, nil
	}
	return tag + "[" + strings.Join(preds, " and ") + "]", nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// literal quotes s as an XPath string literal.
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "concat('" + strings.Join(strings.Split(s, "'"), `', "'", '`) + "')"
}
