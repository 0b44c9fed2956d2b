package task

import (
	"slices"
)

// Set is an ordered, deduplicating collection of tasks. It is not safe for
// concurrent use; the store guards it with its own lock.
type Set struct {
	items []Task
}

// NewSet returns a set holding the given tasks, duplicates dropped.
func NewSet(tasks ...Task) *Set {
	s := &Set{}
	for _, t := range tasks {
		s.Insert(t)
	}
	return s
}

func (s *Set) search(t Task) (int, bool) {
	return slices.BinarySearchFunc(s.items, t, Task.Compare)
}

// Insert adds t. It reports false when an equal task is already present.
func (s *Set) Insert(t Task) bool {
	i, found := s.search(t)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, t)
	return true
}

// Remove deletes the task equal to t. It reports false when none matched.
func (s *Set) Remove(t Task) bool {
	i, found := s.search(t)
	if !found {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

func (s *Set) Contains(t Task) bool {
	_, found := s.search(t)
	return found
}

func (s *Set) Len() int {
	return len(s.items)
}

// Items returns a copy of the tasks in set order.
func (s *Set) Items() []Task {
	return slices.Clone(s.items)
}

// SortByDatetime sorts tasks by due time, breaking ties by task order.
func SortByDatetime(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		if c := a.Datetime.Compare(b.Datetime); c != 0 {
			return c
		}
		return a.Compare(b)
	})
}
