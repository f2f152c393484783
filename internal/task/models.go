package task

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day, encoded in JSON as YYYY-MM-DD.
type Date struct {
	time.Time
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp, whose date part is
// kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Task is a unit of work owned by exactly one group.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Notes     string    `json:"notes"`
	Deadline  Date      `json:"deadline"`
	Status    bool      `json:"status"`
	GroupID   string    `json:"groupId"`
	GroupName string    `json:"groupName"`
	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddInput is the request to create a task. GroupID defaults to the
// requester's General group.
type AddInput struct {
	Name     string `json:"name"`
	Notes    string `json:"notes"`
	Deadline string `json:"deadline"`
	GroupID  string `json:"groupId"`
}

// UpdateInput replaces a task's editable fields. An empty GroupID keeps the
// task in its current group.
type UpdateInput struct {
	Name     string `json:"name"`
	Notes    string `json:"notes"`
	Deadline string `json:"deadline"`
	GroupID  string `json:"groupId"`
}

// Fields are the validated values a store writes.
type Fields struct {
	Name     string
	Notes    string
	Deadline Date
	GroupID  string
}
