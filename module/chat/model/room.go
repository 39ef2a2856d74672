package model

const RoomCollection = "room"

// RoomModel is the persisted room entity; its Members list is the source
// of truth for membership (the gateway's live index is only derived).
type RoomModel struct {
	ID          string   `bson:"_id"`
	Name        string   `bson:"name"`
	CreatorID   string   `bson:"creator_id"`
	Members     []string `bson:"members"`
	Admins      []string `bson:"admins,omitempty"`
	Muted       []string `bson:"muted,omitempty"`
	Banned      []string `bson:"banned,omitempty"`
	Open        bool     `bson:"open,omitempty"` // open rooms accept any non-banned user
	MaxMembers  int      `bson:"max_members,omitempty"`
	CreatedAtMS int64    `bson:"created_at_ms"`
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (r *RoomModel) HasMember(userID string) bool { return contains(r.Members, userID) }
func (r *RoomModel) HasAdmin(userID string) bool {
	return contains(r.Admins, userID) || r.CreatorID == userID
}
func (r *RoomModel) IsMuted(userID string) bool  { return contains(r.Muted, userID) }
func (r *RoomModel) IsBanned(userID string) bool { return contains(r.Banned, userID) }

// Full reports whether the member cap is reached; zero means unlimited.
func (r *RoomModel) Full() bool {
	return r.MaxMembers > 0 && len(r.Members) >= r.MaxMembers
}
