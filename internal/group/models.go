package group

import "time"

// General is the name of the default group every user owns. It can be
// neither renamed nor deleted.
const General = "General"

// Group is a named collection of tasks administered by one user.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AdminID   string    `json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is the public view of a user in a group's member list.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
