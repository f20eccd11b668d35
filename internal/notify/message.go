package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task"
	userentity "github.com/ovaphlow/pitchfork/service-task-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/utilities"
)

// Subjects of the notifications this service sends.
const (
	SubjectAssigned      = "Task Assigned"
	SubjectStatusUpdated = "Task Status Updated"
	SubjectOverdueDigest = "Daily Overdue Tasks Summary"
)

// Message is one email waiting for delivery.
type Message struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps a message with a fresh id and creation time.
func NewMessage(to, subject, body string) Message {
	return Message{
		ID:        utilities.NewKSUID(),
		To:        to,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// Recipients resolves assignees; *user.UserService satisfies it.
type Recipients interface {
	GetByID(ctx context.Context, id int64) (*userentity.User, error)
}

// Decide returns the notification a committed task mutation calls for, or
// nil when none is due. At most one message is produced:
//
//   - created with an assignee: "Task Assigned" to the assignee;
//   - updated with a new non-null assignee: "Task Assigned" to the new assignee;
//   - updated with the same assignee and a new status: "Task Status Updated"
//     to the assignee.
//
// An assignee id that no longer resolves to a user produces nothing.
func Decide(ctx context.Context, ev task.Event, users Recipients) (*Message, error) {
	t := ev.New
	switch ev.Kind {
	case task.EventCreated:
		if t.AssignedUserID == nil {
			return nil, nil
		}
		return assigned(ctx, users, *t.AssignedUserID, t.Title)
	case task.EventUpdated:
		if ev.Old == nil {
			return nil, fmt.Errorf("update event for task %d has no previous state", t.ID)
		}
		if !sameAssignee(ev.Old.AssignedUserID, t.AssignedUserID) {
			if t.AssignedUserID == nil {
				return nil, nil
			}
			return assigned(ctx, users, *t.AssignedUserID, t.Title)
		}
		if ev.Old.Status == t.Status || t.AssignedUserID == nil {
			return nil, nil
		}
		u, err := lookup(ctx, users, *t.AssignedUserID)
		if err != nil || u == nil {
			return nil, err
		}
		body := fmt.Sprintf("Status of task '%s' changed from %s to %s", t.Title, ev.Old.Status, t.Status)
		m := NewMessage(u.Email, SubjectStatusUpdated, body)
		return &m, nil
	}
	return nil, nil
}

func assigned(ctx context.Context, users Recipients, userID int64, title string) (*Message, error) {
	u, err := lookup(ctx, users, userID)
	if err != nil || u == nil {
		return nil, err
	}
	m := NewMessage(u.Email, SubjectAssigned, fmt.Sprintf("You have been assigned task: %s", title))
	return &m, nil
}

// lookup returns nil without error for an unknown user.
func lookup(ctx context.Context, users Recipients, id int64) (*userentity.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
