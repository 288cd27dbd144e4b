package llmutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// DecodeLiteral decodes the literal notation models commonly emit for action
// inputs: mappings, lists, tuples, sets, quoted strings, integers, floats and
// the constants True/False/None (JSON true/false/null are accepted too).
// Nothing is evaluated; any other construct is a ProtocolDecodeFault.
//
// Mappings decode to map[string]any (non-string keys are stringified), lists,
// tuples and sets to []any, integers to int64 and floats to float64.
func DecodeLiteral(src string) (any, error) {
	p := &literalParser{src: src}
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("empty input")
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.fail("unexpected trailing input")
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) fail(format string, args ...any) error {
	return schemas.NewError(schemas.CodeProtocolDecode, "invalid literal at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

// skipSpace skips whitespace, line continuations and comments.
func (p *literalParser) skipSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *literalParser) value() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("unexpected end of input")
	}
	c := p.peek()
	switch {
	case c == '{':
		return p.mapping()
	case c == '[':
		p.pos++
		return p.sequence(']')
	case c == '(':
		return p.tuple()
	case c == '"' || c == '\'':
		return p.stringConcat()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	case isIdentStart(c):
		return p.identifier()
	}
	return nil, p.fail("unexpected character %q", c)
}

func (p *literalParser) mapping() (any, error) {
	p.pos++ // {
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return map[string]any{}, nil
	}

	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ':' {
		// A set literal.
		items := []any{first}
		return p.continueSequence(items, '}')
	}

	out := map[string]any{}
	key := first
	for {
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.fail("expected ':' after mapping key")
		}
		p.pos++
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		k, err := p.mappingKey(key)
		if err != nil {
			return nil, err
		}
		out[k] = val

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return out, nil
			}
			if key, err = p.value(); err != nil {
				return nil, err
			}
		case '}':
			p.pos++
			return out, nil
		default:
			return nil, p.fail("expected ',' or '}' in mapping")
		}
	}
}

func (p *literalParser) mappingKey(key any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case nil:
		return "None", nil
	case bool:
		if k {
			return "True", nil
		}
		return "False", nil
	case int64, float64:
		return fmt.Sprint(k), nil
	}
	return "", p.fail("unhashable mapping key")
}

func (p *literalParser) tuple() (any, error) {
	p.pos++ // (
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return []any{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ')' {
		// Parentheses without a comma only group.
		p.pos++
		return first, nil
	}
	return p.continueSequence([]any{first}, ')')
}

// sequence parses items up to the closing delimiter; the opener is consumed.
func (p *literalParser) sequence(closing byte) (any, error) {
	p.skipSpace()
	if p.peek() == closing {
		p.pos++
		return []any{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	return p.continueSequence([]any{first}, closing)
}

func (p *literalParser) continueSequence(items []any, closing byte) (any, error) {
	for {
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == closing {
				p.pos++
				return items, nil
			}
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		case closing:
			p.pos++
			return items, nil
		default:
			return nil, p.fail("expected ',' or %q", closing)
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (p *literalParser) identifier() (any, error) {
	start := p.pos
	for !p.eof() && (isIdentStart(p.peek()) || (p.peek() >= '0' && p.peek() <= '9')) {
		p.pos++
	}
	word := p.src[start:p.pos]

	// String prefixes such as r'..', u"..", b'..'.
	if !p.eof() && (p.peek() == '\'' || p.peek() == '"') && len(word) <= 2 {
		lower := strings.ToLower(word)
		switch lower {
		case "r", "u", "b", "br", "rb":
			p.pos = start
			return p.stringConcat()
		}
	}

	switch word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}
	p.pos = start
	return nil, p.fail("name %q is not a literal", word)
}

// stringConcat parses one or more adjacent string literals and concatenates them.
func (p *literalParser) stringConcat() (any, error) {
	var sb strings.Builder
	for {
		s, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)

		save := p.pos
		p.skipSpace()
		if p.eof() || !p.atStringStart() {
			p.pos = save
			return sb.String(), nil
		}
	}
}

func (p *literalParser) atStringStart() bool {
	c := p.peek()
	if c == '"' || c == '\'' {
		return true
	}
	i := p.pos
	for i < len(p.src) && i-p.pos < 2 && strings.ContainsRune("rRuUbB", rune(p.src[i])) {
		i++
	}
	return i > p.pos && i < len(p.src) && (p.src[i] == '"' || p.src[i] == '\'')
}

func (p *literalParser) stringLiteral() (string, error) {
	raw := false
	for !p.eof() && strings.ContainsRune("rRuUbB", rune(p.peek())) {
		if p.peek() == 'r' || p.peek() == 'R' {
			raw = true
		}
		p.pos++
	}
	if p.eof() {
		return "", p.fail("unterminated string")
	}
	quote := p.peek()
	delim := string(quote)
	if strings.HasPrefix(p.src[p.pos:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	p.pos += len(delim)

	var sb strings.Builder
	for {
		if p.eof() {
			return "", p.fail("unterminated string")
		}
		if strings.HasPrefix(p.src[p.pos:], delim) {
			p.pos += len(delim)
			return sb.String(), nil
		}
		c := p.src[p.pos]
		if c == '\n' && len(delim) == 1 {
			return "", p.fail("newline in single-quoted string")
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			if raw {
				sb.WriteByte(c)
				sb.WriteByte(p.src[p.pos+1])
				p.pos += 2
				continue
			}
			if err := p.escape(&sb); err != nil {
				return "", err
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		sb.WriteRune(r)
		p.pos += size
	}
}

func (p *literalParser) escape(sb *strings.Builder) error {
	p.pos++ // backslash
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
	case '\\', '\'', '"':
		sb.WriteByte(c)
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'a':
		sb.WriteByte('\a')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		start := p.pos - 1
		for p.pos < len(p.src) && p.pos-start < 3 && p.src[p.pos] >= '0' && p.src[p.pos] <= '7' {
			p.pos++
		}
		n, _ := strconv.ParseUint(p.src[start:p.pos], 8, 32)
		sb.WriteRune(rune(n))
	case 'x', 'u', 'U':
		width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[c]
		if p.pos+width > len(p.src) {
			return p.fail("truncated \\%c escape", c)
		}
		n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
		if err != nil {
			return p.fail("invalid \\%c escape", c)
		}
		p.pos += width
		sb.WriteRune(rune(n))
	default:
		// Unknown escapes are kept verbatim.
		sb.WriteByte('\\')
		sb.WriteByte(c)
	}
	return nil
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	neg := false
	for p.peek() == '-' || p.peek() == '+' {
		if p.peek() == '-' {
			neg = !neg
		}
		p.pos++
		p.skipSpace()
	}
	numStart := p.pos
	for !p.eof() {
		c := p.peek()
		if unicode.IsDigit(rune(c)) || unicode.IsLetter(rune(c)) || c == '_' || c == '.' {
			p.pos++
			continue
		}
		// Exponent signs.
		if (c == '+' || c == '-') && p.pos > numStart && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E') &&
			!strings.HasPrefix(strings.ToLower(p.src[numStart:]), "0x") {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(p.src[numStart:p.pos], "_", "")
	if text == "" {
		p.pos = start
		return nil, p.fail("expected number")
	}

	lower := strings.ToLower(text)
	if strings.HasSuffix(lower, "j") {
		p.pos = start
		return nil, p.fail("complex numbers are not supported")
	}

	isInt := !strings.ContainsAny(lower, ".") &&
		(strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") || !strings.ContainsAny(lower, "e"))
	if isInt {
		base := 10
		digits := lower
		switch {
		case strings.HasPrefix(lower, "0x"):
			base, digits = 16, lower[2:]
		case strings.HasPrefix(lower, "0o"):
			base, digits = 8, lower[2:]
		case strings.HasPrefix(lower, "0b"):
			base, digits = 2, lower[2:]
		}
		n, err := strconv.ParseInt(digits, base, 64)
		if err != nil {
			p.pos = start
			return nil, p.fail("invalid integer %q", text)
		}
		if neg {
			n = -n
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(lower, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		p.pos = start
		return nil, p.fail("invalid float %q", text)
	}
	if neg {
		f = -f
	}
	return f, nil
}
