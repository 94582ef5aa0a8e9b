package taskname

const (
	// Weekly cycle tasks
	InstantiateUser = "engine:instantiate:user"
	VerifyUser      = "engine:verify:user"

	// Batch fan-out
	InstantiateAll = "engine:instantiate:all"
	VerifyAll      = "engine:verify:all"

	// Downstream notifications
	NotifyTaskVerified = "notify:task:verified"
	NotifyScoreUpdated = "notify:score:updated"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
