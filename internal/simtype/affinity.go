package simtype

import (
	"strconv"

	corev1 "k8s.io/api/core/v1"
)

// Taint and Toleration reuse k8s.io/api/core/v1's vocabulary for effects
// and operators rather than inventing parallel enums, matching the pack's
// node-scheduling packages (karpenter-core's pkg/scheduling, the teacher's
// NodeGroupSpec.Taints field).
type Taint struct {
	Key    string
	Value  string
	Effect corev1.TaintEffect // NoSchedule or PreferNoSchedule only
}

type Toleration struct {
	Key      string
	Operator corev1.TolerationOperator // Exists or Equal
	Value    string
	Effect   corev1.TaintEffect
}

// Tolerates reports whether toleration t matches taint taint, per spec.md
// §3: empty-key Exists matches everything; otherwise keys and effects must
// be equal, and the operator must be Exists, or Equal with equal values.
func (t Toleration) Tolerates(taint Taint) bool {
	if t.Key == "" && t.Operator == corev1.TolerationOpExists {
		return true
	}
	if t.Key != taint.Key || t.Effect != taint.Effect {
		return false
	}
	switch t.Operator {
	case corev1.TolerationOpExists:
		return true
	case corev1.TolerationOpEqual:
		return t.Value == taint.Value
	default:
		return false
	}
}

// TolerationsTolerateAll reports whether every taint in taints is tolerated
// by at least one toleration in tolerations.
func TolerationsTolerateAll(tolerations []Toleration, taints []Taint) bool {
	for _, taint := range taints {
		tolerated := false
		for _, tol := range tolerations {
			if tol.Tolerates(taint) {
				tolerated = true
				break
			}
		}
		if !tolerated {
			return false
		}
	}
	return true
}

// MatchExpression is one label-match clause of a node affinity term.
type MatchExpression struct {
	Key      string
	Operator corev1.NodeSelectorOperator // In, NotIn, Exists, DoesNotExist, Gt, Lt
	Values   []string
}

// Matches evaluates the expression against a node's labels.
func (m MatchExpression) Matches(labels map[string]string) bool {
	val, present := labels[m.Key]
	switch m.Operator {
	case corev1.NodeSelectorOpExists:
		return present
	case corev1.NodeSelectorOpDoesNotExist:
		return !present
	case corev1.NodeSelectorOpIn:
		if !present {
			return false
		}
		for _, v := range m.Values {
			if v == val {
				return true
			}
		}
		return false
	case corev1.NodeSelectorOpNotIn:
		if !present {
			return true
		}
		for _, v := range m.Values {
			if v == val {
				return false
			}
		}
		return true
	case corev1.NodeSelectorOpGt, corev1.NodeSelectorOpLt:
		if !present || len(m.Values) != 1 {
			return false
		}
		have, err1 := strconv.ParseInt(val, 10, 64)
		want, err2 := strconv.ParseInt(m.Values[0], 10, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if m.Operator == corev1.NodeSelectorOpGt {
			return have > want
		}
		return have < want
	default:
		return false
	}
}

// Term is a conjunction (AND) of match expressions.
type Term struct {
	Expressions []MatchExpression
}

// Matches reports whether every expression in the term matches.
func (t Term) Matches(labels map[string]string) bool {
	for _, expr := range t.Expressions {
		if !expr.Matches(labels) {
			return false
		}
	}
	return true
}

// WeightedTerm is a preferred-scheduling term: a term plus the score it
// contributes when matched.
type WeightedTerm struct {
	Weight int32
	Term   Term
}

// NodeAffinity holds the required (OR-of-ANDs, hard) and preferred
// (weighted, soft) node affinity terms of a pod.
type NodeAffinity struct {
	Required  []Term
	Preferred []WeightedTerm
}

// AdmitsNode reports whether the required terms admit the given node's
// labels: empty required list admits everything; otherwise at least one
// term must match (disjunction of conjunctions).
func (a NodeAffinity) AdmitsNode(labels map[string]string) bool {
	if len(a.Required) == 0 {
		return true
	}
	for _, term := range a.Required {
		if term.Matches(labels) {
			return true
		}
	}
	return false
}

// PreferenceScore sums the weights of every matched preferred term.
func (a NodeAffinity) PreferenceScore(labels map[string]string) int64 {
	var score int64
	for _, wt := range a.Preferred {
		if wt.Term.Matches(labels) {
			score += int64(wt.Weight)
		}
	}
	return score
}
