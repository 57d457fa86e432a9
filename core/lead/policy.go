package lead

import "github.com/pkg/errors"

// TransitionPolicy decides whether a lead may move from one stage to another.
// It is only consulted for from != to.
type TransitionPolicy func(from, to Stage) bool

// AnyOtherStage permits every move to a known stage. It is the default policy;
// GraphPolicy narrows it to an explicit funnel.
func AnyOtherStage(from, to Stage) bool {
	return to.IsValid() && from != to
}

// GraphPolicy permits only the moves listed in graph (from -> allowed targets).
func GraphPolicy(graph map[Stage][]Stage) TransitionPolicy {
	return func(from, to Stage) bool {
		for _, st := range graph[from] {
			if st == to {
				return true
			}
		}
		return false
	}
}

var errBrokenHistory = errors.New("broken stage history")

// Replay folds a lead's history, oldest first, back into its current stage.
func Replay(history []StageHistoryEntry) (Stage, error) {
	var current *Stage
	for i, entry := range history {
		if i == 0 {
			if entry.FromStage != nil {
				return "", errors.Wrap(errBrokenHistory, "first entry must be the creation entry")
			}
		} else if entry.FromStage == nil || *entry.FromStage != *current {
			return "", errors.Wrapf(errBrokenHistory, "entry %s does not start from %s", entry.ID, *current)
		}
		to := entry.ToStage
		current = &to
	}
	if current == nil {
		return "", errors.Wrap(errBrokenHistory, "no entries")
	}
	return *current, nil
}
