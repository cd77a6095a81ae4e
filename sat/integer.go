// Copyright 2024-2025 The boxsat Authors
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

package sat

import (
	"fmt"
	"math"
)

// BooleanVariable is the index of a Boolean variable in the solver.
type BooleanVariable int32

// Literal refers to a Boolean variable or its negation. A positive reference
// to variable `v` is encoded as `2*v`, a negated one as `2*v+1`.
type Literal int32

// NoLiteral is the sentinel for an absent literal, e.g. the presence
// condition of an interval that is always present.
const NoLiteral Literal = -1

// PositiveLiteral returns the literal that is true iff `v` is true.
func PositiveLiteral(v BooleanVariable) Literal {
	return Literal(2 * v)
}

// NegativeLiteral returns the literal that is true iff `v` is false.
func NegativeLiteral(v BooleanVariable) Literal {
	return Literal(2*v + 1)
}

// Variable returns the Boolean variable the literal refers to.
func (l Literal) Variable() BooleanVariable {
	return BooleanVariable(l >> 1)
}

// IsPositive returns true for a positive (non-negated) literal.
func (l Literal) IsPositive() bool {
	return l&1 == 0
}

// Negated returns the logical negation of the literal.
func (l Literal) Negated() Literal {
	return l ^ 1
}

func (l Literal) String() string {
	if l == NoLiteral {
		return "none"
	}
	if l.IsPositive() {
		return fmt.Sprintf("+b%d", l.Variable())
	}
	return fmt.Sprintf("-b%d", l.Variable())
}

// IntegerVariable is the index of an integer variable in the trail. Integer
// variables always come in even/odd pairs: variable `2*k` and its negation
// `2*k+1` share one domain mirrored around zero, so that every bound fact can
// be expressed uniformly as a lower bound (the upper bound of `v` is the
// negation of the lower bound of `NegationOf(v)`).
type IntegerVariable int32

// NoIntegerVariable is the sentinel for an absent integer variable, used by
// constant affine expressions.
const NoIntegerVariable IntegerVariable = -1

// NegationOf returns the variable representing `-v`.
func NegationOf(v IntegerVariable) IntegerVariable {
	return v ^ 1
}

// IntegerLiteral is the bound fact `Var >= Bound`. Upper-bound facts use the
// negated variable.
type IntegerLiteral struct {
	Var   IntegerVariable
	Bound int64
}

// GreaterOrEqual returns the fact `v >= bound`.
func GreaterOrEqual(v IntegerVariable, bound int64) IntegerLiteral {
	return IntegerLiteral{Var: v, Bound: bound}
}

// LowerOrEqual returns the fact `v <= bound`, encoded on the negated variable.
func LowerOrEqual(v IntegerVariable, bound int64) IntegerLiteral {
	return IntegerLiteral{Var: NegationOf(v), Bound: CapOpp(bound)}
}

// Negated returns the negation of the fact: not(v >= b) is v <= b-1.
func (i IntegerLiteral) Negated() IntegerLiteral {
	return IntegerLiteral{Var: NegationOf(i.Var), Bound: CapAdd(CapOpp(i.Bound), 1)}
}

func (i IntegerLiteral) String() string {
	return fmt.Sprintf("i%d>=%d", i.Var, i.Bound)
}

// AffineExpression is the value `Coeff*Var + Offset`. The coefficient is kept
// strictly positive by construction; negative coefficients are normalized
// onto the negated variable. A constant expression has Var ==
// NoIntegerVariable and holds its value in Offset.
type AffineExpression struct {
	Var    IntegerVariable
	Coeff  int64
	Offset int64
}

// NewAffineExpression builds a normalized affine expression.
func NewAffineExpression(v IntegerVariable, coeff, offset int64) AffineExpression {
	if v == NoIntegerVariable || coeff == 0 {
		return AffineExpression{Var: NoIntegerVariable, Offset: offset}
	}
	if coeff < 0 {
		return AffineExpression{Var: NegationOf(v), Coeff: CapOpp(coeff), Offset: offset}
	}
	return AffineExpression{Var: v, Coeff: coeff, Offset: offset}
}

// ConstantAffine returns the affine expression with the fixed value `c`.
func ConstantAffine(c int64) AffineExpression {
	return AffineExpression{Var: NoIntegerVariable, Offset: c}
}

// IsConstant returns true if the expression does not reference a variable.
func (a AffineExpression) IsConstant() bool {
	return a.Var == NoIntegerVariable
}

// Negated returns the affine expression for `-(Coeff*Var + Offset)`.
func (a AffineExpression) Negated() AffineExpression {
	if a.IsConstant() {
		return ConstantAffine(CapOpp(a.Offset))
	}
	return AffineExpression{Var: NegationOf(a.Var), Coeff: a.Coeff, Offset: CapOpp(a.Offset)}
}

// ValueAt evaluates the expression for the given variable value.
func (a AffineExpression) ValueAt(varValue int64) int64 {
	if a.IsConstant() {
		return a.Offset
	}
	return CapAdd(CapProd(a.Coeff, varValue), a.Offset)
}

// GreaterOrEqual returns the bound fact equivalent to `expr >= bound`.
// The expression must not be constant.
func (a AffineExpression) GreaterOrEqual(bound int64) IntegerLiteral {
	return GreaterOrEqual(a.Var, CeilRatio(CapSub(bound, a.Offset), a.Coeff))
}

// LowerOrEqual returns the bound fact equivalent to `expr <= bound`.
// The expression must not be constant.
func (a AffineExpression) LowerOrEqual(bound int64) IntegerLiteral {
	return LowerOrEqual(a.Var, FloorRatio(CapSub(bound, a.Offset), a.Coeff))
}

func (a AffineExpression) String() string {
	if a.IsConstant() {
		return fmt.Sprintf("%d", a.Offset)
	}
	if a.Offset == 0 {
		return fmt.Sprintf("%d*i%d", a.Coeff, a.Var)
	}
	return fmt.Sprintf("%d*i%d+%d", a.Coeff, a.Var, a.Offset)
}

// CapAdd adds two int64 with clamping at math.MinInt64/math.MaxInt64. The
// sentinels are absorbing: once a computation saturates it stays saturated,
// and callers must treat a saturated result as "no usable information", never
// as a valid bound.
func CapAdd(a, b int64) int64 {
	if a == math.MinInt64 || a == math.MaxInt64 {
		return a
	}
	if b == math.MinInt64 || b == math.MaxInt64 {
		return b
	}
	s := a + b
	if b > 0 && s < a {
		return math.MaxInt64
	}
	if b < 0 && s > a {
		return math.MinInt64
	}
	return s
}

// CapSub subtracts with clamping, see CapAdd.
func CapSub(a, b int64) int64 {
	return CapAdd(a, CapOpp(b))
}

// CapOpp negates with clamping: the two sentinels map onto each other.
func CapOpp(a int64) int64 {
	switch a {
	case math.MinInt64:
		return math.MaxInt64
	case math.MaxInt64:
		return math.MinInt64
	}
	return -a
}

// CapProd multiplies with clamping, see CapAdd.
func CapProd(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	sameSign := (a > 0) == (b > 0)
	if a == math.MinInt64 || b == math.MinInt64 {
		if a == 1 {
			return b
		}
		if b == 1 {
			return a
		}
		if sameSign {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	p := a * b
	if p/b != a {
		if sameSign {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return p
}

// CeilRatio returns ceil(num/den) for den > 0.
func CeilRatio(num, den int64) int64 {
	q := num / den
	if num%den != 0 && num > 0 {
		q++
	}
	return q
}

// FloorRatio returns floor(num/den) for den > 0.
func FloorRatio(num, den int64) int64 {
	q := num / den
	if num%den != 0 && num < 0 {
		q--
	}
	return q
}
