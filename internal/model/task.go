package model

// Task represents a single checklist item inside a room.
type Task struct {
	ID        int64  `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	Completed bool   `json:"completed" yaml:"completed"`
}

// Progress returns the completion percentage of tasks rounded half up.
// An empty list is 0% done.
func Progress(tasks []Task) int {
	total := len(tasks)
	if total == 0 {
		return 0
	}
	done := CountCompleted(tasks)
	// round(100*done/total) without floats: floor((200*done + total) / (2*total)).
	return (200*done + total) / (2 * total)
}

// CountCompleted returns how many tasks are done.
func CountCompleted(tasks []Task) int {
	n := 0
	for _, task := range tasks {
		if task.Completed {
			n++
		}
	}
	return n
}
