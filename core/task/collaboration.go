package task

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Beccio00/homeworks-web-app/core/user"
)

// MaxCollaborations is the number of tasks of the same teacher two students may share.
// A pair that already reached it cannot be grouped again.
const MaxCollaborations = 2

// HistoryLookup counts the tasks of a teacher whose group contains both students.
type HistoryLookup func(ctx context.Context, teacherID, studentID1, studentID2 string) (int, error)

// Collaboration is the number of tasks of one teacher shared by a pair of students.
// Student1.ID sorts before Student2.ID.
type Collaboration struct {
	Student1 user.Profile `json:"student1"`
	Student2 user.Profile `json:"student2"`
	Count    int          `json:"count"`
}

// pair is an unordered pair of student IDs, stored sorted.
type pair [2]string

func newPair(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a, b}
}

// groupPairs enumerates the distinct pairs of distinct IDs, in input order.
func groupPairs(ids []string) []pair {
	seen := make(map[pair]struct{})
	var pairs []pair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[i] == ids[j] {
				continue
			}
			p := newPair(ids[i], ids[j])
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// ValidateGroup decides whether the students may form a new group under teacherID.
// It returns a *CollaborationError listing every pair that already shares MaxCollaborations tasks or more,
// or the wrapped lookup error if any count could not be read. Group size is not checked here.
func ValidateGroup(ctx context.Context, lookup HistoryLookup, teacherID string, studentIDs []string) error {
	pairs := groupPairs(studentIDs)
	counts := make([]int, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			n, err := lookup(gctx, teacherID, p[0], p[1])
			if err != nil {
				return errors.Wrapf(err, "counting collaborations of %s and %s", p[0], p[1])
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var problematic []Collaboration
	for i, p := range pairs {
		if counts[i] >= MaxCollaborations {
			problematic = append(problematic, Collaboration{
				Student1: user.Profile{ID: p[0]},
				Student2: user.Profile{ID: p[1]},
				Count:    counts[i],
			})
		}
	}
	if len(problematic) > 0 {
		return &CollaborationError{Pairs: problematic}
	}
	return nil
}
