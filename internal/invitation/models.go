package invitation

import "time"

// Status is the state of an invitation. Pending is the only state with
// outgoing transitions.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Invitation offers ReceiverID membership in GroupID.
type Invitation struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	GroupID    string     `json:"groupId"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Notification is a pending invitation as its receiver sees it.
type Notification struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    Sender    `json:"sender"`
	Group     GroupRef  `json:"group"`
}

type Sender struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
