package ast

type (
	// MatchValue compares the subject against a value expression.
	MatchValue struct {
		Base
		Value Expr
	}

	MatchSingleton struct {
		Base
		Value Expr
	}

	MatchSequence struct {
		Base
		Patterns []Pattern
	}

	MatchMapping struct {
		Base
		Keys     []Expr
		Patterns []Pattern
		Rest     *Identifier
	}

	MatchClass struct {
		Base
		Cls         Expr
		Patterns    []Pattern
		KwdAttrs    []*Identifier
		KwdPatterns []Pattern
	}

	// MatchStar is `*name` inside a sequence pattern; Name is nil for `*_`.
	MatchStar struct {
		Base
		Name *Identifier
	}

	// MatchAs is `pattern as name`, a bare capture (Pattern nil), or the
	// wildcard `_` (both nil).
	MatchAs struct {
		Base
		Pattern Pattern
		Name    *Identifier
	}

	MatchOr struct {
		Base
		Patterns []Pattern
	}
)

func (*MatchValue) patternNode()     {}
func (*MatchSingleton) patternNode() {}
func (*MatchSequence) patternNode()  {}
func (*MatchMapping) patternNode()   {}
func (*MatchClass) patternNode()     {}
func (*MatchStar) patternNode()      {}
func (*MatchAs) patternNode()        {}
func (*MatchOr) patternNode()        {}
