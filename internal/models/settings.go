package models

import (
	"database/sql/driver"
	"time"
)

// SchoolConfigKey is the settings row holding the branding document.
const SchoolConfigKey = "school_config"

// SchoolConfig is the institution branding and session calendar.
type SchoolConfig struct {
	Name        string `json:"name" validate:"required,max=200"`
	Slogan      string `json:"slogan" validate:"max=200"`
	Session     string `json:"session" validate:"required,max=20"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ExamTitle   string `json:"exam_title" validate:"max=200"`
	ExamContent string `json:"exam_content" validate:"max=2000"`
	Language    string `json:"language" validate:"required,oneof=en hi"`
}

// DefaultSchoolConfig is served until the first settings update.
func DefaultSchoolConfig() SchoolConfig {
	return SchoolConfig{
		Name:        "Skyline Heights International",
		Slogan:      "Pioneering Future Leaders",
		Session:     "2024-25",
		StartDate:   "2024-04-01",
		EndDate:     "2025-03-31",
		ExamTitle:   "Final Term 2024",
		ExamContent: "Examinations starting next month. Please ensure all dues are cleared.",
		Language:    "en",
	}
}

func (c SchoolConfig) Value() (driver.Value, error) {
	return jsonValue(c, "school config")
}

func (c *SchoolConfig) Scan(value interface{}) error {
	return scanJSON(value, c, "school config")
}

// Setting is a row of the key/value settings table.
type Setting struct {
	Key       string       `db:"key"`
	Value     SchoolConfig `db:"value"`
	UpdatedAt time.Time    `db:"updated_at"`
}
