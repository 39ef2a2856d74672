package model

const UserCollection = "user"

// UserModel is the persisted account; only the fields the gateway's
// collaborators touch.
type UserModel struct {
	ID            string   `bson:"_id"`
	Username      string   `bson:"username"`
	Blocked       []string `bson:"blocked,omitempty"`
	Status        string   `bson:"status,omitempty"`
	StatusMessage string   `bson:"status_message,omitempty"`
	LastSeenMS    int64    `bson:"last_seen_ms,omitempty"`
}

func (u *UserModel) HasBlocked(otherID string) bool {
	for _, b := range u.Blocked {
		if b == otherID {
			return true
		}
	}
	return false
}
