package query

import (
	"strings"

	"github.com/stevemurr/docstore/document"
)

// Kind is the matching strategy selected for a clause.
type Kind int

const (
	KindNormal Kind = iota
	KindSubdocumentMatch
	KindConditional
	KindSubdocument
	KindOr
	KindArray
	KindUnknown
)

var kindNames = [...]string{
	KindNormal:           "normal",
	KindSubdocumentMatch: "subdocument-match",
	KindConditional:      "conditional",
	KindSubdocument:      "subdocument",
	KindOr:               "or",
	KindArray:            "array",
	KindUnknown:          "unknown",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Supported reports whether the engine filters on clauses of this kind.
func (k Kind) Supported() bool {
	return k == KindNormal || k == KindConditional || k == KindOr
}

// Comparison and presence operators accepted inside a conditional clause.
const (
	OpGt     = "$gt"
	OpGte    = "$gte"
	OpLt     = "$lt"
	OpLte    = "$lte"
	OpExists = "$exists"
)

// OpOr is the disjunction key.
const OpOr = "$or"

// IsOperator reports whether key is a conditional operator.
func IsOperator(key string) bool {
	switch key {
	case OpGt, OpGte, OpLt, OpLte, OpExists:
		return true
	}
	return false
}

// Classify picks the matching strategy for one query key and its value.
// It has no side effects.
func Classify(key string, value any) Kind {
	if document.IsScalar(value) {
		if strings.Contains(key, ".") {
			return KindSubdocumentMatch
		}
		return KindNormal
	}
	switch v := normalize(value).(type) {
	case Query:
		if len(v) > 0 && IsOperator(v[0].Key) {
			return KindConditional
		}
		return KindSubdocument
	case []any:
		if key == OpOr {
			return KindOr
		}
		return KindArray
	}
	return KindUnknown
}

// Clause is a classified query field. Ops is set for conditional clauses
// and Branches for disjunctions.
type Clause struct {
	Kind     Kind
	Key      string
	Value    any
	Ops      []Field
	Branches []Query
}

// NewClause classifies f and unpacks its value for the matching kind.
// Or branches that are not objects are dropped.
func NewClause(f Field) Clause {
	c := Clause{Kind: Classify(f.Key, f.Value), Key: f.Key, Value: normalize(f.Value)}
	switch c.Kind {
	case KindConditional:
		c.Ops = append([]Field(nil), c.Value.(Query)...)
	case KindOr:
		for _, b := range c.Value.([]any) {
			if q, ok := b.(Query); ok {
				c.Branches = append(c.Branches, q)
			}
		}
	}
	return c
}
