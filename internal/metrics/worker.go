package metrics

import "time"

// TaskCompleted records a successful task run
func TaskCompleted(task string, duration time.Duration) {
	TasksTotal.WithLabelValues(task, "completed").Inc()
	TaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// TaskFailed records a failed task run
func TaskFailed(task string, duration time.Duration) {
	TasksTotal.WithLabelValues(task, "failed").Inc()
	TaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// TaskDisabled records a task that returned a permanent error
func TaskDisabled(task string) {
	TasksTotal.WithLabelValues(task, "disabled").Inc()
}

// Purged records items removed by a retention pass
func Purged(target string, n int) {
	if n > 0 {
		RetentionPurgedTotal.WithLabelValues(target).Add(float64(n))
	}
}
