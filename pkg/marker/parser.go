// Package marker implements PEP 508 environment-marker parsing and its
// translation into conda selector expressions.
package marker

import (
	"fmt"
	"strings"
	"text/scanner"
)

// Atom is a single comparison within a marker: `variable op 'value'`.
type Atom struct {
	Variable string
	Op       string
	Value    string
}

// Tree is a marker expression: a flat sequence of Atom, the strings "and"/
// "or", and nested Tree values standing in for a parenthesized subexpression.
// This mirrors the shape the `packaging` library itself uses internally
// (a list interleaving atoms, boolean-operator tokens, and nested lists for
// parenthesized groups), which is what the conversion algorithm is written
// against.
type Tree []any

var compareOps = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// Parse parses a PEP 508 marker expression (the part after the `;` in a
// Requires-Dist string) into a Tree.
func Parse(input string) (Tree, error) {
	p := &parser{src: input}
	p.init()
	tree, err := p.parseSequence(false)
	if err != nil {
		return nil, err
	}
	if p.s.Peek() != scanner.EOF {
		return nil, fmt.Errorf("unexpected trailing input in marker: %q", input)
	}
	return tree, nil
}

type parser struct {
	src string
	s   scanner.Scanner
}

func (p *parser) init() {
	p.s.Init(strings.NewReader(p.src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanChars
	p.s.Whitespace = 1<<'\t' | 1<<'\n' | 1<<'\r' | 1<<' '
	p.s.Error = func(*scanner.Scanner, string) {} // surfaced via Scan() return value
}

func (p *parser) parseSequence(inParens bool) (Tree, error) {
	var tree Tree
	for {
		tok := p.s.Peek()
		for strings.ContainsRune(" \t\r\n", tok) {
			p.s.Next()
			tok = p.s.Peek()
		}
		if tok == scanner.EOF {
			if inParens {
				return nil, fmt.Errorf("unclosed parenthesis in marker")
			}
			return tree, nil
		}
		if tok == ')' {
			if !inParens {
				return nil, fmt.Errorf("unexpected ')' in marker")
			}
			return tree, nil
		}
		if tok == '(' {
			p.s.Next()
			sub, err := p.parseSequence(true)
			if err != nil {
				return nil, err
			}
			if p.s.Next() != ')' {
				return nil, fmt.Errorf("expected ')' to close marker group")
			}
			tree = append(tree, sub)
			continue
		}

		word, err := p.scanWord()
		if err != nil {
			return nil, err
		}
		switch word {
		case "and", "or":
			tree = append(tree, word)
			continue
		}

		atom, err := p.parseAtom(word)
		if err != nil {
			return nil, err
		}
		tree = append(tree, atom)
	}
}

// scanWord reads one identifier/keyword token.
func (p *parser) scanWord() (string, error) {
	tok := p.s.Scan()
	if tok == scanner.EOF {
		return "", fmt.Errorf("unexpected end of marker")
	}
	return p.s.TokenText(), nil
}

// scanValue reads the right-hand literal of a comparison: a quoted string.
func (p *parser) scanValue() (string, error) {
	tok := p.s.Scan()
	if tok != scanner.String && tok != scanner.Char {
		return "", fmt.Errorf("expected quoted string in marker, got %q", p.s.TokenText())
	}
	text := p.s.TokenText()
	return strings.Trim(text, `'"`), nil
}

func (p *parser) parseAtom(variable string) (Atom, error) {
	op, err := p.scanOp()
	if err != nil {
		return Atom{}, err
	}
	value, err := p.scanValue()
	if err != nil {
		return Atom{}, err
	}
	return Atom{Variable: variable, Op: op, Value: value}, nil
}

// scanOp greedily consumes the run of operator runes (the charset is
// disjoint from identifier and string-literal runes, so this never
// over-consumes) and matches it against the known comparison operators.
func (p *parser) scanOp() (string, error) {
	var buf strings.Builder
	for strings.ContainsRune(" \t\r\n", p.s.Peek()) {
		p.s.Next()
	}
	for strings.ContainsRune("<>=!~", p.s.Peek()) {
		buf.WriteRune(p.s.Next())
	}
	text := buf.String()
	for _, op := range compareOps {
		if text == op {
			return op, nil
		}
	}
	return "", fmt.Errorf("invalid comparison operator in marker: %q", text)
}
