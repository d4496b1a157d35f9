package models

// Account types recognized by the chat service.
const (
	AccountTypeStudent    = "student"
	AccountTypeInstructor = "instructor"
	AccountTypeAdmin      = "admin"
)

// User is the chat service's read-model of a platform user. Only the fields
// needed for sender identity in pushed events are kept here.
type User struct {
	ID          int    `db:"id" json:"id"`
	FirstName   string `db:"first_name" json:"first_name"`
	LastName    string `db:"last_name" json:"last_name"`
	AvatarURL   string `db:"avatar_url" json:"avatar_url,omitempty"`
	AccountType string `db:"account_type" json:"account_type"`
}

// Identity is the minimal sender identity attached to pushed events.
// Server-internal fields never leave through this type.
type Identity struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Identity projects the user onto its public form.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, AvatarURL: u.AvatarURL}
}
