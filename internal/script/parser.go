// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package script

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

type nodeKind int

const (
	nodeGlobal nodeKind = iota
	nodeDef
	nodeLet
	nodeAssign
	nodePrint
	nodeReturn
	nodeIf
	nodeWhile
	nodeExpr
	nodeBlock
)

// Node is one statement, block, or declaration of a script.
type Node struct {
	kind   nodeKind
	file   string
	line   int
	col    int
	text   string
	name   string
	params []string

	src  string
	code *vm.Program

	body []*Node
	alt  []*Node
}

// Program is a parsed script. Declarations (global and def) form the
// prolog and run before the body.
type Program struct {
	file   string
	source string

	prolog *Node
	main   *Node
	funcs  map[string]*Node
}

// Source returns the identity of the script file.
func (p *Program) Source() string { return p.file }

// ReadSource returns the script text.
func (p *Program) ReadSource(file string) (string, error) {
	if file != p.file {
		return "", &dbgerrors.NotFoundError{Resource: "source", ID: file}
	}
	return p.source, nil
}

// Functions returns the names of the functions the script defines.
func (p *Program) Functions() []string {
	names := make([]string, 0, len(p.funcs))
	for name := range p.funcs {
		names = append(names, name)
	}
	return names
}

// Load reads and parses a script file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dbgerrors.Wrap(err, "failed to read script")
	}
	return Parse(path, string(data))
}

var (
	reGlobal = regexp.MustCompile(`^global\s+([A-Za-z_]\w*)\s*=\s*(.+)$`)
	reDef    = regexp.MustCompile(`^def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)$`)
	reLet    = regexp.MustCompile(`^let\s+([A-Za-z_]\w*)\s*=\s*(.+)$`)
	reAssign = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=\s*([^=].*)$`)
	reIdent  = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

var keywords = map[string]bool{
	"global": true, "def": true, "let": true, "print": true, "return": true,
	"if": true, "else": true, "while": true, "end": true,
}

type openBlock struct {
	node   *Node
	inElse bool
}

func (b *openBlock) add(n *Node) {
	if b.inElse {
		b.node.alt = append(b.node.alt, n)
		return
	}
	b.node.body = append(b.node.body, n)
}

// Parse parses script text. Each non-blank line that does not start
// with # holds one statement; if, while and def open a block closed by
// end.
func Parse(file, src string) (*Program, error) {
	root := &Node{kind: nodeBlock, file: file}
	stack := []*openBlock{{node: root}}

	for i, raw := range strings.Split(src, "\n") {
		line := i + 1
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		col := len(raw) - len(strings.TrimLeft(raw, " \t")) + 1
		top := stack[len(stack)-1]

		switch text {
		case "end":
			if len(stack) == 1 {
				return nil, errorf(file, line, "unexpected end")
			}
			stack = stack[:len(stack)-1]
			continue
		case "else":
			if top.node.kind != nodeIf || top.inElse {
				return nil, errorf(file, line, "else without if")
			}
			top.inElse = true
			continue
		}

		n, err := parseStatement(file, line, text)
		if err != nil {
			return nil, err
		}
		n.col = col

		if (n.kind == nodeGlobal || n.kind == nodeDef) && len(stack) != 1 {
			return nil, errorf(file, line, "declarations must be at top level")
		}
		top.add(n)
		if n.kind == nodeIf || n.kind == nodeWhile || n.kind == nodeDef {
			stack = append(stack, &openBlock{node: n})
		}
	}
	if len(stack) > 1 {
		open := stack[len(stack)-1].node
		return nil, errorf(file, open.line, "missing end for %q", open.text)
	}

	prog := &Program{
		file:   file,
		source: src,
		prolog: &Node{kind: nodeBlock, file: file, text: "<declarations>"},
		main:   &Node{kind: nodeBlock, file: file, text: "<main>"},
		funcs:  make(map[string]*Node),
	}
	for _, n := range root.body {
		switch n.kind {
		case nodeGlobal, nodeDef:
			if n.kind == nodeDef {
				if _, dup := prog.funcs[n.name]; dup {
					return nil, errorf(file, n.line, "function %s already defined", n.name)
				}
				prog.funcs[n.name] = n
			}
			prog.prolog.body = append(prog.prolog.body, n)
		default:
			prog.main.body = append(prog.main.body, n)
		}
	}
	prog.prolog.line, prog.prolog.col = firstLocation(prog.prolog.body)
	prog.main.line, prog.main.col = firstLocation(prog.main.body)

	if err := prog.compile(root.body); err != nil {
		return nil, err
	}
	return prog, nil
}

func firstLocation(nodes []*Node) (int, int) {
	if len(nodes) == 0 {
		return 1, 1
	}
	return nodes[0].line, nodes[0].col
}

func parseStatement(file string, line int, text string) (*Node, error) {
	n := &Node{file: file, line: line, text: text}
	word, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch word {
	case "global":
		m := reGlobal.FindStringSubmatch(text)
		if m == nil {
			return nil, errorf(file, line, "expected: global name = expression")
		}
		n.kind, n.name, n.src = nodeGlobal, m[1], m[2]
	case "def":
		m := reDef.FindStringSubmatch(text)
		if m == nil {
			return nil, errorf(file, line, "expected: def name(params)")
		}
		n.kind, n.name = nodeDef, m[1]
		if keywords[n.name] {
			return nil, errorf(file, line, "%s is a reserved word", n.name)
		}
		params, err := parseParams(m[2])
		if err != nil {
			return nil, errorf(file, line, "%s", err.Error())
		}
		n.params = params
	case "let":
		m := reLet.FindStringSubmatch(text)
		if m == nil {
			return nil, errorf(file, line, "expected: let name = expression")
		}
		n.kind, n.name, n.src = nodeLet, m[1], m[2]
	case "print":
		if rest == "" {
			return nil, errorf(file, line, "print requires an expression")
		}
		n.kind, n.src = nodePrint, rest
	case "return":
		n.kind, n.src = nodeReturn, rest
	case "if", "while":
		if rest == "" {
			return nil, errorf(file, line, "%s requires a condition", word)
		}
		n.kind, n.src = nodeIf, rest
		if word == "while" {
			n.kind = nodeWhile
		}
	default:
		if m := reAssign.FindStringSubmatch(text); m != nil && !keywords[m[1]] {
			n.kind, n.name, n.src = nodeAssign, m[1], strings.TrimSpace(m[2])
		} else {
			n.kind, n.src = nodeExpr, text
		}
	}
	return n, nil
}

func parseParams(list string) ([]string, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	seen := make(map[string]bool)
	var params []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if !reIdent.MatchString(p) {
			return nil, fmt.Errorf("invalid parameter %q", p)
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate parameter %q", p)
		}
		seen[p] = true
		params = append(params, p)
	}
	return params, nil
}

// compileEnv describes the environment expressions are type-checked
// against: every function is a variadic callable, variables are
// resolved at run time.
func (p *Program) compileEnv() map[string]any {
	env := make(map[string]any, len(p.funcs))
	for name := range p.funcs {
		env[name] = func(args ...any) (any, error) { return nil, nil }
	}
	return env
}

func (p *Program) compile(nodes []*Node) error {
	env := p.compileEnv()
	var walk func([]*Node) error
	walk = func(nodes []*Node) error {
		for _, n := range nodes {
			if n.src != "" {
				code, err := compileExpr(n.src, env)
				if err != nil {
					return errorf(n.file, n.line, "syntax error: %s", firstLine(err.Error()))
				}
				n.code = code
			}
			if err := walk(n.body); err != nil {
				return err
			}
			if err := walk(n.alt); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(nodes)
}

func compileExpr(src string, env map[string]any) (*vm.Program, error) {
	return expr.Compile(src,
		expr.Env(env),
		// Variables live in the run-time environment.
		expr.AllowUndefinedVariables(),
	)
}

func firstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return first
}
