package sync

// RunRequest triggers one synchronization cycle.
type RunRequest struct {
	TableName string `json:"tableName" binding:"required"`
	Mode      string `json:"mode"` // "", "full" or "incremental"
}

// ConfigRequest creates or replaces a sync config. The table name comes from
// the URL path.
type ConfigRequest struct {
	SpreadsheetID string `json:"spreadsheetId" binding:"required"`
	SheetName     string `json:"sheetName" binding:"required"`
	Folder        string `json:"folder"`
	StartRow      int64  `json:"startRow"`
	HasHeader     *bool  `json:"hasHeader"`
	Incremental   bool   `json:"incremental"`
}
