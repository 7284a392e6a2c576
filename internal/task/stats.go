package task

// TaskStats 汇总任务的状态分布与更新时间范围。
type TaskStats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// InFlight 返回尚未到达终态的任务数量。
func (s TaskStats) InFlight() int { return s.Pending + s.Running }

func (s *TaskStats) add(t *Task) {
	s.Total++
	switch t.Status {
	case StatusPending:
		s.Pending++
	case StatusRunning:
		s.Running++
	case StatusSucceeded:
		s.Succeeded++
	case StatusFailed:
		s.Failed++
	}
	s.NewestUpdatedAt = max(s.NewestUpdatedAt, t.UpdatedAt)
	if s.OldestUpdatedAt == 0 || t.UpdatedAt < s.OldestUpdatedAt {
		s.OldestUpdatedAt = t.UpdatedAt
	}
}
