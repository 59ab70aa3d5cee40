package semantic

import "github.com/jward/knot/internal/ast"

// ScopeID indexes a scope within one file's Index. The module scope is 0.
type ScopeID int32

const (
	ModuleScopeID ScopeID = 0
	NoScope       ScopeID = -1
)

type ScopeKind uint8

const (
	ModuleScope ScopeKind = iota
	AnnotationScope
	ClassScope
	FunctionScope
	LambdaScope
	ComprehensionScope
)

func (k ScopeKind) String() string {
	switch k {
	case ModuleScope:
		return "module"
	case AnnotationScope:
		return "annotation"
	case ClassScope:
		return "class"
	case FunctionScope:
		return "function"
	case LambdaScope:
		return "lambda"
	default:
		return "comprehension"
	}
}

// Scope is a lexical region. Node is the *ast.Module, *ast.ClassDef,
// *ast.FunctionDef, *ast.Lambda or comprehension expression that opens it;
// annotation scopes use the definition or type alias they belong to.
type Scope struct {
	ID       ScopeID
	Kind     ScopeKind
	Parent   ScopeID
	Node     ast.Node
	Name     string
	Children []ScopeID
}

// IsFunctionLike reports scopes whose names are resolved lazily, when the
// scope runs rather than when it is defined.
func (s *Scope) IsFunctionLike() bool {
	switch s.Kind {
	case FunctionScope, LambdaScope, AnnotationScope:
		return true
	}
	return false
}

// IsEager reports scopes that run at the point they are defined.
func (s *Scope) IsEager() bool {
	return s.Kind == ClassScope || s.Kind == ComprehensionScope
}

type SymbolID int32

type SymbolFlags uint8

const (
	SymbolBound SymbolFlags = 1 << iota
	SymbolDeclared
	SymbolUsed
	SymbolGlobal
	SymbolNonlocal
)

type Symbol struct {
	Name  string
	Flags SymbolFlags
}

func (s Symbol) IsBound() bool { return s.Flags&SymbolBound != 0 }
func (s Symbol) IsDeclared() bool { return s.Flags&SymbolDeclared != 0 }
func (s Symbol) IsUsed() bool { return s.Flags&SymbolUsed != 0 }
func (s Symbol) IsGlobal() bool { return s.Flags&SymbolGlobal != 0 }
func (s Symbol) IsNonlocal() bool { return s.Flags&SymbolNonlocal != 0 }
func (s Symbol) IsBoundOrDeclared() bool {
	return s.Flags&(SymbolBound|SymbolDeclared) != 0
}

// SymbolTable holds the names of one scope in first-seen order.
type SymbolTable struct {
	symbols []Symbol
	byName  map[string]SymbolID
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{byName: make(map[string]SymbolID)}
}

func (t *SymbolTable) add(name string) SymbolID {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := SymbolID(len(t.symbols))
	t.symbols = append(t.symbols, Symbol{Name: name})
	t.byName[name] = id
	return id
}

func (t *SymbolTable) mark(id SymbolID, flags SymbolFlags) {
	t.symbols[id].Flags |= flags
}

// Lookup returns the id of name, if the scope mentions it.
func (t *SymbolTable) Lookup(name string) (SymbolID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Symbol returns the symbol with the given id.
func (t *SymbolTable) Symbol(id SymbolID) Symbol {
	return t.symbols[id]
}

// ByName returns the symbol named name.
func (t *SymbolTable) ByName(name string) (Symbol, bool) {
	id, ok := t.byName[name]
	if !ok {
		return Symbol{}, false
	}
	return t.symbols[id], true
}

// Symbols returns every symbol in first-seen order.
func (t *SymbolTable) Symbols() []Symbol {
	return t.symbols
}

func (t *SymbolTable) Len() int {
	return len(t.symbols)
}
