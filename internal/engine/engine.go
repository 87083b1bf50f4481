// Package engine is the stack machine shared by every tree builder and
// serializer. A State keeps a stack of open target-side scopes; handlers
// looked up by node kind open, fill and close those scopes.
//
// The same State type builds a document tree from tokens and emits JATS
// element trees, LaTeX and Typst buffers and DOCX paragraph lists; only the
// Target adapter and the handler table change.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/doccompile/internal/diag"
	"github.com/dgallion1/doccompile/internal/doctree"
	"github.com/dgallion1/doccompile/internal/logfields"
)

// Target adapts a concrete output representation to the stack machine.
type Target[N any] interface {
	// NewNode creates an unattached scope node.
	NewNode(kind doctree.Kind, attrs doctree.Attrs) N
	// NewText creates an unattached text unit.
	NewText(value string) N
	// AppendChild adds child as the last child of parent.
	AppendChild(parent, child N)
	// MergeText appends value to parent's trailing text unit and reports
	// whether there was one.
	MergeText(parent N, value string) bool
}

// Handler converts one document node into target output.
type Handler[N any] func(s *State[N], node, parent *doctree.Node)

// Handlers maps node kinds to handlers.
type Handlers[N any] map[doctree.Kind]Handler[N]

type scope[N any] struct {
	kind doctree.Kind
	node N
	leaf bool
}

// State is one serialization pass. It is not safe for concurrent use.
type State[N any] struct {
	target   Target[N]
	handlers Handlers[N]
	stack    []scope[N]
	result   N
	closed   bool

	diags *diag.Collector
	log   *slog.Logger

	// Side data for the current pass.
	ListDepth int
	InTable   bool
	Footnotes map[string]*doctree.Node
	Meta      map[string]any
}

// New returns a State writing through target with the given handlers.
// A nil collector or logger gets a private default.
func New[N any](target Target[N], handlers Handlers[N], diags *diag.Collector, log *slog.Logger) *State[N] {
	if diags == nil {
		diags = diag.NewCollector("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &State[N]{
		target:   target,
		handlers: handlers,
		diags:    diags,
		log:      log,
		Meta:     make(map[string]any),
	}
}

// Diagnostics returns the collector receiving this pass's diagnostics.
func (s *State[N]) Diagnostics() *diag.Collector { return s.diags }

// Logger returns the pass logger.
func (s *State[N]) Logger() *slog.Logger { return s.log }

// Target returns the target adapter.
func (s *State[N]) Target() Target[N] { return s.target }

// Handlers returns the handler table.
func (s *State[N]) Handlers() Handlers[N] { return s.handlers }

// Depth is the number of open scopes.
func (s *State[N]) Depth() int { return len(s.stack) }

// OpenNode pushes a new container scope and returns its node.
func (s *State[N]) OpenNode(kind doctree.Kind, attrs doctree.Attrs) N {
	return s.open(kind, attrs, false)
}

// OpenLeaf pushes a scope that can never receive children.
func (s *State[N]) OpenLeaf(kind doctree.Kind, attrs doctree.Attrs) N {
	return s.open(kind, attrs, true)
}

func (s *State[N]) open(kind doctree.Kind, attrs doctree.Attrs, leaf bool) N {
	if top, ok := s.peek(); ok && top.leaf {
		s.violate("open", kind, "cannot open %q inside leaf scope %q", kind, top.kind)
	}
	n := s.target.NewNode(kind, attrs)
	s.stack = append(s.stack, scope[N]{kind: kind, node: n, leaf: leaf})
	return n
}

// CloseNode pops the top scope and appends it to the new top. When the stack
// becomes empty the popped node is the pass result.
func (s *State[N]) CloseNode() N {
	if len(s.stack) == 0 {
		s.violate("close", "", "close on empty stack")
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if len(s.stack) == 0 {
		s.result = top.node
		s.closed = true
		return top.node
	}
	s.target.AppendChild(s.stack[len(s.stack)-1].node, top.node)
	return top.node
}

// AddLeaf opens and immediately closes a childless scope.
func (s *State[N]) AddLeaf(kind doctree.Kind, attrs doctree.Attrs) N {
	s.OpenLeaf(kind, attrs)
	return s.CloseNode()
}

// Text appends value to the current scope, merging with a trailing text
// unit so no scope ever holds two adjacent text children.
func (s *State[N]) Text(value string) {
	top, ok := s.peek()
	if !ok {
		s.violate("text", "", "text with no open scope")
	}
	if top.leaf {
		s.violate("text", top.kind, "text inside leaf scope %q", top.kind)
	}
	if value == "" {
		return
	}
	if !s.target.MergeText(top.node, value) {
		s.target.AppendChild(top.node, s.target.NewText(value))
	}
}

// Top returns the node of the innermost open scope.
func (s *State[N]) Top() N {
	top, ok := s.peek()
	if !ok {
		s.violate("top", "", "no open scope")
	}
	return top.node
}

// TopKind returns the kind of the innermost open scope, or "" when none is
// open.
func (s *State[N]) TopKind() doctree.Kind {
	top, ok := s.peek()
	if !ok {
		return ""
	}
	return top.kind
}

// Render dispatches node to its handler. A kind without a handler is
// reported and skipped together with its subtree.
func (s *State[N]) Render(node, parent *doctree.Node) {
	if node == nil {
		return
	}
	h, ok := s.handlers[node.Type]
	if !ok {
		s.diags.Warn(diag.RuleUnhandledNode, node, "no handler for node kind %q", node.Type)
		s.log.Debug("unhandled node kind", logfields.Kind(string(node.Type)))
		return
	}
	h(s, node, parent)
}

// RenderChildren renders every child of node in order.
func (s *State[N]) RenderChildren(node *doctree.Node) {
	for _, c := range node.Children {
		s.Render(c, node)
	}
}

// Run renders root and returns the node produced by the final CloseNode.
// Contract violations raised by handlers come back as an error and the
// partial output is discarded.
func (s *State[N]) Run(root *doctree.Node) (N, error) {
	if s.Footnotes == nil {
		s.Footnotes = collectFootnotes(root)
	}
	err := s.Guard(func() { s.Render(root, nil) })
	return s.Finish(err)
}

// Finish checks that every scope was closed and returns the pass result.
// Builders that drive the State themselves call it after their Guard.
func (s *State[N]) Finish(err error) (N, error) {
	var zero N
	if err != nil {
		return zero, err
	}
	if len(s.stack) != 0 {
		open, kind := len(s.stack), s.stack[len(s.stack)-1].kind
		s.stack = nil
		return zero, wrapContract(contractError("finish", kind, fmt.Sprintf("%d scope(s) left open", open)))
	}
	if !s.closed {
		return zero, wrapContract(contractError("finish", "", "no scope was closed"))
	}
	return s.result, nil
}

// Guard runs fn and converts a contract violation into an error. Any other
// panic propagates.
func (s *State[N]) Guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*ContractError)
			if !ok {
				panic(r)
			}
			s.stack = nil
			err = wrapContract(ce)
		}
	}()
	fn()
	return nil
}

func collectFootnotes(root *doctree.Node) map[string]*doctree.Node {
	defs := make(map[string]*doctree.Node)
	for _, n := range doctree.Select(root, doctree.OfKind(doctree.KindFootnoteDefinition)) {
		if _, dup := defs[n.Identifier]; !dup {
			defs[n.Identifier] = n
		}
	}
	return defs
}

func (s *State[N]) peek() (scope[N], bool) {
	if len(s.stack) == 0 {
		return scope[N]{}, false
	}
	return s.stack[len(s.stack)-1], true
}

func (s *State[N]) violate(op string, kind doctree.Kind, format string, args ...any) {
	panic(contractError(op, kind, fmt.Sprintf(format, args...)))
}

// ContractError reports a stack-discipline violation: a handler bug, not a
// problem with the document.
type ContractError struct {
	Op   string
	Kind doctree.Kind
	Msg  string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func wrapContract(ce *ContractError) error {
	return diag.Wrap(ce, diag.CategoryEngine, "serializer contract violated").
		WithContext("op", ce.Op).
		WithContext("kind", string(ce.Kind))
}

func contractError(op string, kind doctree.Kind, msg string) *ContractError {
	return &ContractError{Op: op, Kind: kind, Msg: msg}
}
