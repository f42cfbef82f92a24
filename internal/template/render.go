// Package template renders notification content: {{path}} substitution,
// {{#if}}/{{#each}} blocks and pipe formatters over a typed context.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	dateLayout = "02 Jan 2006"
)

type Engine struct{}

func New() *Engine { return &Engine{} }

// Render substitutes the context into tmpl. Malformed syntax (unclosed tag,
// unterminated block, unknown formatter) returns an error and no output.
func (e *Engine) Render(tmpl string, ctx Context) (string, error) {
	nodes, err := parse(tmpl)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := renderNodes(&sb, nodes, []map[string]any{ctx.tree()}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type node any

type textNode string

type exprNode struct {
	path  string
	pipes []string
}

type ifNode struct {
	path string
	then []node
	els  []node
}

type eachNode struct {
	path string
	body []node
}

type token struct {
	text string // literal text when tag is false
	tag  bool
}

func lex(tmpl string) ([]token, error) {
	var toks []token
	rest := tmpl
	for {
		i := strings.Index(rest, openDelim)
		if i < 0 {
			if rest != "" {
				toks = append(toks, token{text: rest})
			}
			return toks, nil
		}
		if i > 0 {
			toks = append(toks, token{text: rest[:i]})
		}
		rest = rest[i+len(openDelim):]
		j := strings.Index(rest, closeDelim)
		if j < 0 {
			return nil, fmt.Errorf("template: unclosed tag")
		}
		toks = append(toks, token{text: strings.TrimSpace(rest[:j]), tag: true})
		rest = rest[j+len(closeDelim):]
	}
}

func parse(tmpl string) ([]node, error) {
	toks, err := lex(tmpl)
	if err != nil {
		return nil, err
	}
	nodes, rest, err := parseNodes(toks, "")
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("template: unexpected {{%s}}", rest[0].text)
	}
	return nodes, nil
}

// parseNodes consumes tokens until the closing tag of the enclosing block
// (or end of input at top level) and returns the unconsumed remainder.
func parseNodes(toks []token, until string) ([]node, []token, error) {
	var nodes []node
	for len(toks) > 0 {
		t := toks[0]
		if !t.tag {
			nodes = append(nodes, textNode(t.text))
			toks = toks[1:]
			continue
		}
		switch {
		case t.text == until || (until == "/if" && t.text == "else"):
			return nodes, toks, nil
		case strings.HasPrefix(t.text, "#if "):
			path := strings.TrimSpace(strings.TrimPrefix(t.text, "#if "))
			then, rest, err := parseNodes(toks[1:], "/if")
			if err != nil {
				return nil, nil, err
			}
			n := ifNode{path: path, then: then}
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("template: unterminated {{#if}}")
			}
			if rest[0].text == "else" {
				var els []node
				els, rest, err = parseNodes(rest[1:], "/if")
				if err != nil {
					return nil, nil, err
				}
				if len(rest) == 0 {
					return nil, nil, fmt.Errorf("template: unterminated {{#if}}")
				}
				n.els = els
			}
			nodes = append(nodes, n)
			toks = rest[1:] // past /if
		case strings.HasPrefix(t.text, "#each "):
			path := strings.TrimSpace(strings.TrimPrefix(t.text, "#each "))
			body, rest, err := parseNodes(toks[1:], "/each")
			if err != nil {
				return nil, nil, err
			}
			if len(rest) == 0 {
				return nil, nil, fmt.Errorf("template: unterminated {{#each}}")
			}
			nodes = append(nodes, eachNode{path: path, body: body})
			toks = rest[1:]
		case t.text == "else" || t.text == "/if" || t.text == "/each":
			return nil, nil, fmt.Errorf("template: {{%s}} without opening block", t.text)
		case strings.HasPrefix(t.text, "#"):
			return nil, nil, fmt.Errorf("template: unknown block {{%s}}", t.text)
		default:
			parts := strings.Split(t.text, "|")
			expr := exprNode{path: strings.TrimSpace(parts[0])}
			for _, p := range parts[1:] {
				expr.pipes = append(expr.pipes, strings.TrimSpace(p))
			}
			nodes = append(nodes, expr)
			toks = toks[1:]
		}
	}
	if until != "" {
		return nil, nil, fmt.Errorf("template: unterminated block, expected {{%s}}", until)
	}
	return nodes, nil, nil
}

func renderNodes(sb *strings.Builder, nodes []node, scopes []map[string]any) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			sb.WriteString(string(n))
		case exprNode:
			v, _ := lookup(n.path, scopes)
			s, err := applyPipes(v, n.pipes)
			if err != nil {
				return err
			}
			sb.WriteString(s)
		case ifNode:
			v, _ := lookup(n.path, scopes)
			if truthy(v) {
				if err := renderNodes(sb, n.then, scopes); err != nil {
					return err
				}
			} else if err := renderNodes(sb, n.els, scopes); err != nil {
				return err
			}
		case eachNode:
			v, _ := lookup(n.path, scopes)
			items, ok := v.([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				scope := map[string]any{"this": item}
				if m, ok := item.(map[string]any); ok {
					for k, val := range m {
						scope[k] = val
					}
				}
				if err := renderNodes(sb, n.body, append(scopes, scope)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// lookup resolves a dotted path against the scope stack, innermost first.
func lookup(path string, scopes []map[string]any) (any, bool) {
	parts := strings.Split(path, ".")
	for i := len(scopes) - 1; i >= 0; i-- {
		v, ok := descend(scopes[i], parts)
		if ok {
			return v, true
		}
	}
	return nil, false
}

func descend(m map[string]any, parts []string) (any, bool) {
	var cur any = m
	for _, p := range parts {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = mm[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case time.Time:
		return !v.IsZero()
	default:
		return true
	}
}

func applyPipes(v any, pipes []string) (string, error) {
	if len(pipes) == 0 {
		return stringify(v), nil
	}
	out := v
	for _, p := range pipes {
		switch p {
		case "currency":
			out = formatCurrency(toFloat(out))
		case "date":
			if t, ok := out.(time.Time); ok {
				out = t.Format(dateLayout)
			}
		case "upper":
			out = strings.ToUpper(stringify(out))
		case "lower":
			out = strings.ToLower(stringify(out))
		case "round":
			out = strconv.Itoa(int(toFloat(out) + 0.5))
		default:
			return "", fmt.Errorf("template: unknown formatter %q", p)
		}
	}
	return stringify(out), nil
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(dateLayout)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// formatCurrency renders a two-decimal amount with thousands separators,
// e.g. 1234.5 -> "1,234.50".
func formatCurrency(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	whole, frac := s[:dot], s[dot:]
	var sb strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	out := sb.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
