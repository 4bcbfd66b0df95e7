package analytics

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// namedPlaceholders is a squirrel.PlaceholderFormat that replaces the i-th
// "?" with ":<names[i]>". "??" is an escaped literal question mark.
type namedPlaceholders []string

func (names namedPlaceholders) ReplacePlaceholders(sql string) (string, error) {
	var b strings.Builder
	i := 0
	for {
		p := strings.IndexByte(sql, '?')
		if p == -1 {
			break
		}
		if p+1 < len(sql) && sql[p+1] == '?' {
			b.WriteString(sql[:p+1])
			sql = sql[p+2:]
			continue
		}
		if i >= len(names) {
			return "", fmt.Errorf("placeholder %d has no parameter name", i+1)
		}
		b.WriteString(sql[:p])
		b.WriteByte(':')
		b.WriteString(names[i])
		sql = sql[p+1:]
		i++
	}
	b.WriteString(sql)

	if i != len(names) {
		return "", fmt.Errorf("expected %d placeholders, found %d", len(names), i)
	}
	return b.String(), nil
}

// BindNamed converts ":name" placeholders into the driver's placeholder style
// and returns the matching ordered arguments. Quoted literals are copied
// untouched.
func BindNamed(sql string, params map[string]interface{}, format squirrel.PlaceholderFormat) (string, []interface{}, error) {
	var b strings.Builder
	args := make([]interface{}, 0, len(params))

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if c == '\'' || c == '"' {
			end := strings.IndexByte(sql[i+1:], c)
			if end == -1 {
				return "", nil, fmt.Errorf("unterminated quoted literal at offset %d", i)
			}
			b.WriteString(sql[i : i+end+2])
			i += end + 1
			continue
		}

		if c == ':' && i+1 < len(sql) && isParamChar(sql[i+1]) && (i == 0 || sql[i-1] != ':') {
			j := i + 1
			for j < len(sql) && isParamChar(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("missing value for parameter %q", name)
			}
			b.WriteByte('?')
			args = append(args, value)
			i = j - 1
			continue
		}

		b.WriteByte(c)
	}

	bound, err := format.ReplacePlaceholders(b.String())
	if err != nil {
		return "", nil, fmt.Errorf("failed to format placeholders: %w", err)
	}
	return bound, args, nil
}

func isParamChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
