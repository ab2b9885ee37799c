package dto

// DashboardStats carries the headline counters of the admin dashboard.
type DashboardStats struct {
	Tenants  int64 `json:"tenants"`
	Users    int64 `json:"users"`
	Exams    int64 `json:"exams"`
	Attempts int64 `json:"attempts"`
}

// AdminDashboardResponse aggregates the admin landing view.
type AdminDashboardResponse struct {
	Stats   DashboardStats   `json:"stats"`
	Tenants []TenantResponse `json:"tenants"`
	Users   []UserResponse   `json:"users"`
	Exams   []ExamResponse   `json:"exams"`
}

// AccessLogRow is one access-log line, localized for the viewing admin.
type AccessLogRow struct {
	Time      string `json:"time"`
	IP        string `json:"ip"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	UserID    *uint  `json:"user_id,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// DeletionLogRow is one exam-deletion record.
type DeletionLogRow struct {
	ExamID       uint   `json:"exam_id"`
	ExamTitle    string `json:"exam_title"`
	InstructorID uint   `json:"instructor_id"`
	DeletedLocal string `json:"deleted_local"`
	Note         string `json:"note,omitempty"`
}

// AttemptLogRow is one attempt in the activity listing.
type AttemptLogRow struct {
	AttemptID      uint     `json:"attempt_id"`
	ExamID         uint     `json:"exam_id"`
	StudentID      uint     `json:"student_id"`
	StartedLocal   string   `json:"started_local"`
	SubmittedLocal string   `json:"submitted_local,omitempty"`
	ScorePercent   *float64 `json:"score_percent,omitempty"`
}

// AdminLogsResponse serves either the access view or the application view.
type AdminLogsResponse struct {
	View      string           `json:"view"`
	Access    []AccessLogRow   `json:"access,omitempty"`
	Deletions []DeletionLogRow `json:"deletions,omitempty"`
	Attempts  []AttemptLogRow  `json:"attempts,omitempty"`
}
