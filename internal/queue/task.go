package queue

type TaskType string

const (
	// TaskTypeBackfill warms the day cache for a newly connected user.
	TaskTypeBackfill TaskType = "withings_backfill"
)

type Task struct {
	TaskType TaskType
	UserID   string
	Days     int
	TraceID  *string
	Attempt  int
}
