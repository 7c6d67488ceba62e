package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskhub-notify/internal/domain"
)

const deadlineLayout = "2006-01-02 15:04 MST"

func defaultChannels(channels []domain.Channel) []domain.Channel {
	if len(channels) == 0 {
		return []domain.Channel{domain.ChannelInApp}
	}
	return channels
}

func taskMetadata(task domain.TaskRef) map[string]any {
	return map[string]any{"task_id": task.ID.String()}
}

func (s *service) NotifyTaskAssigned(ctx context.Context, assigneeID uuid.UUID, task domain.TaskRef, assignedBy string, channels ...domain.Channel) (*domain.Notification, error) {
	msg := fmt.Sprintf("You have been assigned \"%s\"", task.Title)
	if assignedBy != "" {
		msg = fmt.Sprintf("%s assigned you \"%s\"", assignedBy, task.Title)
	}

	return s.Send(ctx, SendInput{
		UserID:   assigneeID,
		Title:    "New task assigned",
		Message:  msg,
		Type:     domain.NotifInfo,
		Channels: defaultChannels(channels),
		Metadata: taskMetadata(task),
	})
}

func (s *service) NotifyTaskCompleted(ctx context.Context, recipientID uuid.UUID, task domain.TaskRef, completedBy string, channels ...domain.Channel) (*domain.Notification, error) {
	msg := fmt.Sprintf("\"%s\" was marked as completed", task.Title)
	if completedBy != "" {
		msg = fmt.Sprintf("%s completed \"%s\"", completedBy, task.Title)
	}

	return s.Send(ctx, SendInput{
		UserID:   recipientID,
		Title:    "Task completed",
		Message:  msg,
		Type:     domain.NotifSuccess,
		Channels: defaultChannels(channels),
		Metadata: taskMetadata(task),
	})
}

func (s *service) NotifyDeadlineReminder(ctx context.Context, recipientID uuid.UUID, task domain.TaskRef, channels ...domain.Channel) (*domain.Notification, error) {
	due := "soon"
	if task.Deadline != nil {
		due = task.Deadline.UTC().Format(deadlineLayout)
	}

	metadata := taskMetadata(task)
	if task.Deadline != nil {
		metadata["deadline"] = task.Deadline.UTC().Format(time.RFC3339)
	}

	return s.Send(ctx, SendInput{
		UserID:      recipientID,
		Title:       "Deadline approaching",
		Message:     fmt.Sprintf("\"%s\" is due %s", task.Title, due),
		Type:        domain.NotifWarning,
		Channels:    defaultChannels(channels),
		Metadata:    metadata,
		TemplateKey: "deadline_reminder",
		TemplateVariables: map[string]any{
			"task_id":    task.ID.String(),
			"task_title": task.Title,
			"deadline":   due,
		},
	})
}
