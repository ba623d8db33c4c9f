package task

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Beccio00/homeworks-web-app/core/user"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrTaskClosed = errors.New("task is closed and cannot be modified")
	ErrNoAnswer   = errors.New("cannot score task without an answer")
	ErrNotOwner   = errors.New("task belongs to another teacher")
	ErrNotMember  = errors.New("you are not part of this task group")
)

// CollaborationError rejects a group in which some pairs of students already worked together too often.
// It is a policy outcome, never an infrastructure failure.
type CollaborationError struct {
	Pairs []Collaboration
}

func (err CollaborationError) Error() string {
	names := make([]string, 0, len(err.Pairs))
	for _, p := range err.Pairs {
		names = append(names, fmt.Sprintf("%s & %s (%d tasks)", label(p.Student1), label(p.Student2), p.Count))
	}
	return fmt.Sprintf(
		"some students in this group have already collaborated together in %d or more tasks: %s",
		MaxCollaborations, strings.Join(names, ", "),
	)
}

func label(p user.Profile) string {
	if name := p.FullName(); name != "" {
		return name
	}
	return p.ID
}
