package events

import "time"

// AccountRegistered is published after a successful registration.
type AccountRegistered struct {
	AccountID int64     `json:"accountId"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	At        time.Time `json:"at"`
}

// ComplaintSubmitted is published after a complaint is stored. Anonymous
// complaints carry no account reference.
type ComplaintSubmitted struct {
	ComplaintID int64     `json:"complaintId"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Title       string    `json:"title"`
	At          time.Time `json:"at"`
}
