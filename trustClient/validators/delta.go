package validators

import "fmt"

// Delta is the outcome of reconciling a fetched list against the known set.
// Unchanged records carry the label from the new list.
type Delta struct {
	Added     Set `json:"added"`
	Removed   Set `json:"removed"`
	Unchanged Set `json:"unchanged"`
}

// Changed reports whether the merge added or removed anything.
func (d Delta) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Diff partitions the keys of two normalized sets. It panics when the result
// breaks the partition invariants.
func Diff(prior, next Set) Delta {
	d := diff(prior, next)
	if err := verify(prior, next, d); err != nil {
		panic(fmt.Sprintf("validator reconciliation corrupted: %v", err))
	}
	return d
}

// diff walks two normalized sets once and partitions their keys.
func diff(prior, next Set) Delta {
	d := Delta{
		Added:     make(Set, 0),
		Removed:   make(Set, 0),
		Unchanged: make(Set, 0, min(len(prior), len(next))),
	}

	i, j := 0, 0
	for i < len(prior) && j < len(next) {
		switch c := prior[i].PublicKey.Compare(next[j].PublicKey); {
		case c < 0:
			d.Removed = append(d.Removed, prior[i])
			i++
		case c > 0:
			d.Added = append(d.Added, next[j])
			j++
		default:
			d.Unchanged = append(d.Unchanged, next[j])
			i++
			j++
		}
	}
	d.Removed = append(d.Removed, prior[i:]...)
	d.Added = append(d.Added, next[j:]...)
	return d
}
