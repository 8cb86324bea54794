package workflow

import (
	"fmt"
	"sort"
)

// ValidateChapterGraph checks the declared chapter dependency relation.
// It rejects, in order of detection per chapter:
//
//   - dependencies naming a chapter number that does not exist
//     (invalid dependency)
//   - dependencies on an equal or later chapter number (forward
//     dependency) — later chapters may depend only on strictly earlier
//     ones, which guarantees acyclicity when enforced at creation time
//   - cycles in the transitive closure (circular dependency), kept as a
//     defense-in-depth check for states built outside the spawning path
//
// The traversal uses an explicit stack, so validation cost does not grow
// the call stack with input size. The validator performs no mutation.
func ValidateChapterGraph(chapters []*Chapter) error {
	byNumber := make(map[int]*Chapter, len(chapters))
	for _, ch := range chapters {
		byNumber[ch.Number] = ch
	}

	for _, ch := range chapters {
		for _, dep := range ch.DependsOn {
			if _, ok := byNumber[dep]; !ok {
				return NewFatal(StageChapterSpawning, CodeInvalidDependency,
					fmt.Sprintf("chapter %d declares invalid dependency on nonexistent chapter %d", ch.Number, dep), nil)
			}
			if dep >= ch.Number {
				return NewFatal(StageChapterSpawning, CodeForwardDependency,
					fmt.Sprintf("chapter %d declares forward dependency on chapter %d; chapters may depend only on earlier chapters", ch.Number, dep), nil)
			}
		}
	}

	for _, ch := range chapters {
		if err := checkCycleFrom(ch, byNumber); err != nil {
			return err
		}
	}

	return nil
}

// checkCycleFrom walks the transitive dependency closure of origin with an
// explicit stack; revisiting the origin's number means a cycle.
func checkCycleFrom(origin *Chapter, byNumber map[int]*Chapter) error {
	visited := make(map[int]bool)
	stack := append([]int(nil), origin.DependsOn...)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n == origin.Number {
			return NewFatal(StageChapterSpawning, CodeCircularDependency,
				fmt.Sprintf("circular dependency detected involving chapter %d", origin.Number), nil)
		}
		if visited[n] {
			continue
		}
		visited[n] = true

		if dep, ok := byNumber[n]; ok {
			stack = append(stack, dep.DependsOn...)
		}
	}

	return nil
}

// ReadyChapters returns the chapters eligible for dispatch: pending, with
// every dependency completed. The result is sorted by chapter number so
// scheduling order is deterministic.
func ReadyChapters(chapters []*Chapter) []*Chapter {
	status := make(map[int]ChapterStatus, len(chapters))
	for _, ch := range chapters {
		status[ch.Number] = ch.Status
	}

	var ready []*Chapter
	for _, ch := range chapters {
		if ch.Status != ChapterPending {
			continue
		}
		ok := true
		for _, dep := range ch.DependsOn {
			if status[dep] != ChapterCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, ch)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		return ready[i].Number < ready[j].Number
	})
	return ready
}
