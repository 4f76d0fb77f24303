package iidx

import (
	"strings"

	apperrors "github.com/sapj/retrieval-cores/pkg/errors"
)

// Grammar (spec.md §4.3):
//
//	query    := or_expr
//	or_expr  := and_expr ( "OR"  and_expr )*
//	and_expr := not_expr ( "AND" not_expr )*
//	not_expr := "NOT" not_expr | atom
//	atom     := TERM | "(" or_expr ")"
//
// Operators are case-insensitive; terms are lowercased before lookup.
// Precedence highest to lowest: NOT, AND, OR; parentheses override.

type tokenKind int

const (
	tokTerm tokenKind = iota
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type qtoken struct {
	kind tokenKind
	term string
}

// lexQuery splits a query string into operator/term/paren tokens. Operator
// keywords are matched case-insensitively; everything else becomes a TERM
// token, normalised the same way document text is.
func lexQuery(q string) []qtoken {
	var toks []qtoken
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := cur.String()
		switch strings.ToUpper(word) {
		case "AND":
			toks = append(toks, qtoken{kind: tokAnd})
		case "OR":
			toks = append(toks, qtoken{kind: tokOr})
		case "NOT":
			toks = append(toks, qtoken{kind: tokNot})
		default:
			if normalized := Normalize(word); normalized != "" {
				toks = append(toks, qtoken{kind: tokTerm, term: normalized})
			}
		}
		cur.Reset()
	}

	for _, r := range q {
		switch r {
		case '(':
			flush()
			toks = append(toks, qtoken{kind: tokLParen})
		case ')':
			flush()
			toks = append(toks, qtoken{kind: tokRParen})
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

var precedence = map[tokenKind]int{tokNot: 3, tokAnd: 2, tokOr: 1}

func isOperator(k tokenKind) bool {
	return k == tokAnd || k == tokOr || k == tokNot
}

// toPostfix runs Shunting-Yard over the lexed tokens, validating the
// grammar as it goes: a running expectOperand flag catches a binary
// operator with no left operand, a unary operator with nothing to its
// right, or a term/paren appearing where an operator was expected. Any
// violation, along with mismatched parentheses or residual stack content,
// is reported as ErrMalformedQuery.
func toPostfix(tokens []qtoken) ([]qtoken, error) {
	if len(tokens) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: empty query", nil)
	}

	var output []qtoken
	var opStack []qtoken
	expectOperand := true

	for _, tok := range tokens {
		switch tok.kind {
		case tokTerm:
			if !expectOperand {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: term follows another operand with no operator between", nil)
			}
			output = append(output, tok)
			expectOperand = false

		case tokLParen:
			if !expectOperand {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: '(' follows another operand with no operator between", nil)
			}
			opStack = append(opStack, tok)
			expectOperand = true

		case tokRParen:
			if expectOperand {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: ')' where an operand was expected", nil)
			}
			found := false
			for len(opStack) > 0 {
				top := opStack[len(opStack)-1]
				opStack = opStack[:len(opStack)-1]
				if top.kind == tokLParen {
					found = true
					break
				}
				output = append(output, top)
			}
			if !found {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: mismatched ')'", nil)
			}
			expectOperand = false

		case tokNot:
			if !expectOperand {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: NOT where an operator was expected", nil)
			}
			for len(opStack) > 0 && isOperator(opStack[len(opStack)-1].kind) &&
				precedence[opStack[len(opStack)-1].kind] > precedence[tok.kind] {
				output = append(output, opStack[len(opStack)-1])
				opStack = opStack[:len(opStack)-1]
			}
			opStack = append(opStack, tok)
			expectOperand = true

		case tokAnd, tokOr:
			if expectOperand {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: binary operator with no left operand", nil)
			}
			for len(opStack) > 0 && isOperator(opStack[len(opStack)-1].kind) &&
				precedence[opStack[len(opStack)-1].kind] >= precedence[tok.kind] {
				output = append(output, opStack[len(opStack)-1])
				opStack = opStack[:len(opStack)-1]
			}
			opStack = append(opStack, tok)
			expectOperand = true
		}
	}

	if expectOperand {
		return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: query ends expecting an operand", nil)
	}
	for len(opStack) > 0 {
		top := opStack[len(opStack)-1]
		opStack = opStack[:len(opStack)-1]
		if top.kind == tokLParen {
			return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: mismatched '('", nil)
		}
		output = append(output, top)
	}
	return output, nil
}

// evaluate runs the RPN token stream against idx: term operands become
// posting lists (empty for an unknown term), AND/OR are sorted-merge
// intersection/union, and NOT x is universe \ x with
// universe = [1..total_documents].
func evaluate(postfix []qtoken, idx *InvertedIndex) ([]int64, error) {
	var stack [][]int64
	for _, tok := range postfix {
		switch tok.kind {
		case tokTerm:
			postings, err := idx.GetPostings(tok.term)
			if err != nil {
				return nil, err
			}
			stack = append(stack, postings)

		case tokNot:
			if len(stack) < 1 {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: NOT with no operand", nil)
			}
			operand := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack = append(stack, negate(operand, idx.TotalDocuments()))

		case tokAnd:
			if len(stack) < 2 {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: AND with fewer than two operands", nil)
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, intersect(a, b))

		case tokOr:
			if len(stack) < 2 {
				return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: OR with fewer than two operands", nil)
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, union(a, b))
		}
	}
	if len(stack) != 1 {
		return nil, apperrors.Wrap(apperrors.ErrMalformedQuery, "iidx: residual operands after evaluation", nil)
	}
	return stack[0], nil
}

func negate(x []int64, total int) []int64 {
	present := make(map[int64]struct{}, len(x))
	for _, v := range x {
		present[v] = struct{}{}
	}
	out := make([]int64, 0, total)
	for id := int64(1); id <= int64(total); id++ {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func intersect(a, b []int64) []int64 {
	out := make([]int64, 0)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func union(a, b []int64) []int64 {
	out := make([]int64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// QueryProcessor evaluates boolean queries against an InvertedIndex. It
// only ever takes the index's read lock (via GetPostings/TotalDocuments),
// per spec.md §4.3's "QueryProcessor performs only reads."
type QueryProcessor struct {
	idx *InvertedIndex
}

// NewQueryProcessor wraps idx for querying.
func NewQueryProcessor(idx *InvertedIndex) *QueryProcessor {
	return &QueryProcessor{idx: idx}
}

// Evaluate parses and runs a boolean query, returning a sorted,
// duplicate-free doc_id slice.
func (qp *QueryProcessor) Evaluate(query string) ([]int64, error) {
	tokens := lexQuery(query)
	postfix, err := toPostfix(tokens)
	if err != nil {
		return nil, err
	}
	return evaluate(postfix, qp.idx)
}
