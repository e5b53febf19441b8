package jobs

// JobRequest creates a cron job. Schedule syntax is
// "every <duration> [between HH:MM-HH:MM]".
type JobRequest struct {
	Name      string `json:"name" binding:"required"`
	TableName string `json:"tableName" binding:"required"`
	Folder    string `json:"folder"`
	Schedule  string `json:"schedule" binding:"required"`
	Enabled   *bool  `json:"enabled"`
}
