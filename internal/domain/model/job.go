package model

import "time"

// Статусы вакансии.
const (
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

// Job: вакансия компании.
type Job struct {
	// ID: UUID вакансии
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	// CompanyName: заполняется JOIN-ом при чтении, не хранится в jobs
	CompanyName string `json:"companyName"`
	Title       string `json:"title"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description"`
	// SalaryRange: свободный текст («200–250k»)
	SalaryRange string `json:"salaryRange,omitempty"`
	// Status: open или closed
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOpen: вакансия принимает отклики.
func (j *Job) IsOpen() bool {
	return j.Status == JobStatusOpen
}

// Overview: агрегированная статистика площадки для администратора.
type Overview struct {
	Companies  int `json:"companies"`
	Candidates int `json:"candidates"`
	Jobs       int `json:"jobs"`
	OpenJobs   int `json:"openJobs"`
}
