// Package parse turns loosely structured model output into Go values. Every
// function here degrades to an empty result instead of failing the caller.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// listRe matches the first bracketed span, non-greedy and single-line.
var listRe = regexp.MustCompile(`\[.*?\]`)

// ExtractList finds the first bracketed list in text and parses it as a
// literal list of strings, numbers, booleans and None. The match stops at the
// first closing bracket, so nested lists never parse. Dict and tuple
// elements are not part of the grammar either; a list holding one yields
// the empty result. It
// returns an empty, non-nil slice when there is no match or the match is not
// a valid literal. An unparseable reply and an empty reply look the same to
// the caller, which retries both.
func ExtractList(text string) []any {
	m := listRe.FindString(text)
	if m == "" {
		return []any{}
	}
	p := &literalParser{src: m}
	v, ok := p.parseValue()
	if !ok {
		zap.L().Debug("parse: list literal rejected", zap.String("match", truncate(m, 200)))
		return []any{}
	}
	p.skipSpace()
	list, isList := v.([]any)
	if !isList || p.pos != len(p.src) {
		return []any{}
	}
	return list
}

// StringItems keeps the non-empty string elements of a parsed list.
func StringItems(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) parseValue() (any, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, false
	}
	switch c := p.src[p.pos]; {
	case c == '[':
		return p.parseList()
	case c == '"' || c == '\'':
		return p.parseString(c)
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseKeyword()
	}
}

func (p *literalParser) parseList() (any, bool) {
	p.pos++ // [
	items := []any{}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return items, true
		}
		v, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		items = append(items, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, false
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, false
		}
	}
}

func (p *literalParser) parseString(quote byte) (any, bool) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), true
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return nil, false
			}
			b.WriteByte(unescape(p.src[p.pos+1]))
			p.pos += 2
		case c == '\n':
			return nil, false
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, false
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (p *literalParser) parseNumber() (any, bool) {
	start := p.pos
	for p.pos < len(p.src) && strings.IndexByte("+-0123456789.eE_", p.src[p.pos]) >= 0 {
		p.pos++
	}
	tok := strings.ReplaceAll(p.src[start:p.pos], "_", "")
	if n, err := strconv.Atoi(tok); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f, true
	}
	return nil, false
}

func (p *literalParser) parseKeyword() (any, bool) {
	for kw, v := range map[string]any{"True": true, "False": false, "None": nil} {
		if strings.HasPrefix(p.src[p.pos:], kw) {
			p.pos += len(kw)
			return v, true
		}
	}
	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
