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

// BinaryRelation is the level-zero fact `A - B <= Rhs` between two affine
// expressions.
type BinaryRelation struct {
	A, B AffineExpression
	Rhs  int64
}

// BinaryRelationRepository stores level-zero difference relations between
// affine expressions, typically fed from precedence constraints of the
// model. Relations hold unconditionally, so propagators may use them in
// explanations without adding any reason fact.
type BinaryRelationRepository struct {
	relations []BinaryRelation
	byVarPair map[[2]IntegerVariable][]int
	byVar     map[IntegerVariable][]int
	timestamp int64
}

// NewBinaryRelationRepository returns an empty repository.
func NewBinaryRelationRepository() *BinaryRelationRepository {
	return &BinaryRelationRepository{
		byVarPair: make(map[[2]IntegerVariable][]int),
		byVar:     make(map[IntegerVariable][]int),
	}
}

// Add records the fact `a - b <= rhs`. Both expressions must reference a
// variable. The contrapositive `(-b) - (-a) <= rhs` is stored with it so
// queries on negated expressions resolve too.
func (r *BinaryRelationRepository) Add(a, b AffineExpression, rhs int64) {
	r.addOne(a, b, rhs)
	r.addOne(b.Negated(), a.Negated(), rhs)
	r.timestamp++
}

func (r *BinaryRelationRepository) addOne(a, b AffineExpression, rhs int64) {
	idx := len(r.relations)
	r.relations = append(r.relations, BinaryRelation{A: a, B: b, Rhs: rhs})
	key := [2]IntegerVariable{a.Var, b.Var}
	r.byVarPair[key] = append(r.byVarPair[key], idx)
	r.byVar[a.Var] = append(r.byVar[a.Var], idx)
	if b.Var != a.Var {
		r.byVar[b.Var] = append(r.byVar[b.Var], idx)
	}
}

// Timestamp increases on every Add, so callers can cache derived structures
// and rebuild them only when the repository changed.
func (r *BinaryRelationRepository) Timestamp() int64 { return r.timestamp }

// UpperBound returns the smallest recorded upper bound on `a - b`, matching
// stored relations whose expressions use the same variables with the same
// coefficients. The second result is false when no relation applies.
func (r *BinaryRelationRepository) UpperBound(a, b AffineExpression) (int64, bool) {
	if a.IsConstant() || b.IsConstant() {
		return 0, false
	}
	best := int64(0)
	found := false
	for _, idx := range r.byVarPair[[2]IntegerVariable{a.Var, b.Var}] {
		rel := r.relations[idx]
		if rel.A.Coeff != a.Coeff || rel.B.Coeff != b.Coeff {
			continue
		}
		// a - b = (A - B) + (a.Offset - A.Offset) - (b.Offset - B.Offset).
		bound := CapAdd(rel.Rhs, CapSub(CapSub(a.Offset, rel.A.Offset), CapSub(b.Offset, rel.B.Offset)))
		if !found || bound < best {
			best = bound
			found = true
		}
	}
	return best, found
}

// RelationsContaining returns the indices into Relations of every relation
// mentioning v or its negation.
func (r *BinaryRelationRepository) RelationsContaining(v IntegerVariable) []int {
	out := append([]int(nil), r.byVar[v]...)
	return append(out, r.byVar[NegationOf(v)]...)
}

// Relations returns the stored relations. The slice is owned by the
// repository.
func (r *BinaryRelationRepository) Relations() []BinaryRelation { return r.relations }
