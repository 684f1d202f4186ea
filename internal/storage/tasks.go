package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// ErrTaskNotFound is returned for an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

// AddTask stores a new open task for userID and returns it with its id.
func (s *Storage) AddTask(guildID, userID, text string, now time.Time) (Task, error) {
	var task Task
	err := s.update(guildID, func(r *Record) error {
		r.NextTaskID++
		task = Task{ID: r.NextTaskID, UserID: userID, Text: text, CreatedAt: now}
		r.Tasks = append(r.Tasks, task)
		return nil
	})
	return task, err
}

// Tasks lists the tasks of userID, open ones first, each group by id.
func (s *Storage) Tasks(guildID, userID string) ([]Task, error) {
	record, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	var out []Task
	for _, t := range record.Tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b Task) int {
		if a.Done() != b.Done() {
			if a.Done() {
				return 1
			}
			return -1
		}
		return a.ID - b.ID
	})
	return out, nil
}

// CompleteTask marks an open task of userID as done.
func (s *Storage) CompleteTask(guildID, userID string, id int, now time.Time) (Task, error) {
	var done Task
	err := s.update(guildID, func(r *Record) error {
		i := slices.IndexFunc(r.Tasks, func(t Task) bool { return t.ID == id && t.UserID == userID })
		if i < 0 {
			return fmt.Errorf("%w: #%d", ErrTaskNotFound, id)
		}
		if r.Tasks[i].Done() {
			return fmt.Errorf("task #%d is already done", id)
		}
		tasks := slices.Clone(r.Tasks)
		at := now
		tasks[i].DoneAt = &at
		r.Tasks = tasks
		done = tasks[i]
		return nil
	})
	return done, err
}

// PruneTasks removes tasks completed before cutoff and returns how many were
// dropped.
func (s *Storage) PruneTasks(guildID string, cutoff time.Time) (int, error) {
	removed := 0
	err := s.update(guildID, func(r *Record) error {
		kept := make([]Task, 0, len(r.Tasks))
		for _, t := range r.Tasks {
			if t.Done() && t.DoneAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		r.Tasks = kept
		return nil
	})
	return removed, err
}

// RunTaskCleaner prunes tasks completed more than retention ago in every
// guild returned by guilds, once per interval until ctx is done.
func RunTaskCleaner(ctx context.Context, store *Storage, guilds func() []string, interval, retention time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, g := range guilds() {
				n, err := store.PruneTasks(g, now.Add(-retention))
				if err != nil {
					logger.Error("prune tasks", zap.String("guild", g), zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Debug("pruned tasks", zap.String("guild", g), zap.Int("count", n))
				}
			}
		}
	}
}
