package query

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/stevemurr/docstore/document"
)

// ErrUnsupportedClause is returned in strict mode for clauses the engine
// classifies but does not filter on.
var ErrUnsupportedClause = errors.New("unsupported query clause")

// Engine evaluates queries. The zero value is the default, permissive engine.
type Engine struct {
	// Strict makes Evaluate fail on clauses that would otherwise pass through.
	Strict bool
	// LegacyExists makes $exists test the field value for truthiness
	// instead of key presence, so {f: 0} does not "exist".
	LegacyExists bool
}

// Evaluate narrows docs by every clause of q in order. The result holds the
// same Document values as docs (no copies), in their original relative
// order. An empty query returns docs itself.
func (e Engine) Evaluate(q Query, docs []document.Document) ([]document.Document, error) {
	if len(q) == 0 {
		return docs, nil
	}
	q = normalizeQuery(q)
	if e.Strict {
		if err := Validate(q); err != nil {
			return nil, err
		}
	}
	result := docs
	for _, f := range q {
		c := NewClause(f)
		switch c.Kind {
		case KindNormal:
			result = e.MatchNormal(c.Key, c.Value, result)
		case KindConditional:
			ops := c.Ops
			for len(ops) > 0 {
				op := ops[0]
				ops = ops[1:]
				if IsOperator(op.Key) {
					result = e.MatchConditional(c.Key, op.Key, op.Value, result)
				}
			}
		case KindOr:
			result = e.MatchOr(c.Branches, result)
		}
	}
	return result, nil
}

// Validate reports the first clause of q the engine would pass through
// without filtering.
func Validate(q Query) error {
	for _, f := range normalizeQuery(q) {
		if err := validateClause(NewClause(f)); err != nil {
			return err
		}
	}
	return nil
}

func validateClause(c Clause) error {
	if !c.Kind.Supported() {
		return fmt.Errorf("%w: %q is a %s clause", ErrUnsupportedClause, c.Key, c.Kind)
	}
	switch c.Kind {
	case KindConditional:
		for _, op := range c.Ops {
			if !IsOperator(op.Key) {
				return fmt.Errorf("%w: %q has unknown operator %q", ErrUnsupportedClause, c.Key, op.Key)
			}
		}
	case KindOr:
		if len(c.Branches) != len(c.Value.([]any)) {
			return fmt.Errorf("%w: %s branches must be objects", ErrUnsupportedClause, OpOr)
		}
		for _, b := range c.Branches {
			if len(b) != 1 {
				return fmt.Errorf("%w: %s branch must have exactly one field", ErrUnsupportedClause, OpOr)
			}
			sub := NewClause(b[0])
			if sub.Kind != KindNormal && sub.Kind != KindConditional {
				return fmt.Errorf("%w: %s branch %q is a %s clause", ErrUnsupportedClause, OpOr, sub.Key, sub.Kind)
			}
			if err := validateClause(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// MatchNormal keeps the documents whose field equals target, or, when
// target is a regular expression, whose field's string form matches it.
func (e Engine) MatchNormal(field string, target any, docs []document.Document) []document.Document {
	var out []document.Document
	for _, d := range docs {
		if matchNormal(d, field, target) {
			out = append(out, d)
		}
	}
	return out
}

func matchNormal(d document.Document, field string, target any) bool {
	v, ok := d[field]
	if !ok {
		return false
	}
	if re, ok := target.(*regexp.Regexp); ok {
		return re.MatchString(document.String(v))
	}
	return document.Equal(v, target)
}

// MatchConditional keeps the documents for which field satisfies a single
// operator against operand.
func (e Engine) MatchConditional(field, op string, operand any, docs []document.Document) []document.Document {
	var out []document.Document
	for _, d := range docs {
		if e.holds(d, field, op, operand) {
			out = append(out, d)
		}
	}
	return out
}

func (e Engine) holds(d document.Document, field, op string, operand any) bool {
	v, present := d[field]
	if op == OpExists {
		if e.LegacyExists {
			present = document.Truthy(v)
		}
		return present == document.Truthy(operand)
	}
	if !present {
		return false
	}
	c, ok := document.Compare(v, operand)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// MatchOr keeps the documents matched by at least one branch. Branches are
// tried in order and the first match decides. Only the first field of a
// branch is considered, and only normal and conditional branches can match.
func (e Engine) MatchOr(branches []Query, docs []document.Document) []document.Document {
	clauses := make([]Clause, 0, len(branches))
	for _, b := range branches {
		if len(b) == 0 {
			continue
		}
		clauses = append(clauses, NewClause(b[0]))
	}
	var out []document.Document
	for _, d := range docs {
		for _, c := range clauses {
			if e.matchBranch(d, c) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (e Engine) matchBranch(d document.Document, c Clause) bool {
	switch c.Kind {
	case KindNormal:
		return matchNormal(d, c.Key, c.Value)
	case KindConditional:
		for _, op := range c.Ops {
			if IsOperator(op.Key) && !e.holds(d, c.Key, op.Key, op.Value) {
				return false
			}
		}
		return true
	}
	return false
}
