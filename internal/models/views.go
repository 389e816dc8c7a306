package models

import "time"

// UserLite is the compact public view of a user.
type UserLite struct {
	ID        string  `json:"user_id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// ParentPostLite is the compact view of a reply's parent.
type ParentPostLite struct {
	ID    string    `json:"post_id"`
	Title string    `json:"title"`
	Owner *UserLite `json:"owner"`
}

// PostLite is the feed entry view.
type PostLite struct {
	ID          string          `json:"post_id"`
	Title       string          `json:"title"`
	Published   time.Time       `json:"published"`
	IsReply     bool            `json:"is_reply"`
	Owner       *UserLite       `json:"owner"`
	PictureURLs []string        `json:"picture_urls"`
	ParentPost  *ParentPostLite `json:"parent_post"`
}

// PostFull is the single post view.
type PostFull struct {
	PostLite
	Text           string    `json:"text"`
	LastUpdated    time.Time `json:"last_updated"`
	PopularityRate int       `json:"popularity_rate"`
	LikeCount      int       `json:"like_count"`
	Liked          bool      `json:"liked"`
	Reposted       bool      `json:"reposted"`
}

// UserProfile is the profile view with relationships.
type UserProfile struct {
	ID        string     `json:"user_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Joined    time.Time  `json:"joined"`
	AvatarURL *string    `json:"avatar_url"`
	Followed  []UserLite `json:"followed"`
	Followers []UserLite `json:"followers"`
	Posts     []PostLite `json:"posts"`
}

// TokenPair is returned on register and login.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAtAccess  time.Time `json:"expires_at_access"`
	ExpiresAtRefresh time.Time `json:"expires_at_refresh"`
}

// AccessToken is returned on refresh.
type AccessToken struct {
	AccessToken     string    `json:"access_token"`
	ExpiresAtAccess time.Time `json:"expires_at_access"`
}

// ChatToken is the capability used to open a chat socket.
type ChatToken struct {
	Token     string    `json:"token"`
	RoomID    string    `json:"room_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChatRoomView lists a room for its participants.
type ChatRoomView struct {
	ID            string     `json:"room_id"`
	IsGroup       bool       `json:"is_group"`
	Name          string     `json:"name,omitempty"`
	Approved      bool       `json:"approved"`
	LastMessageAt time.Time  `json:"last_message_time"`
	Participants  []UserLite `json:"participants"`
}

// MessageView is a message as delivered to clients.
type MessageView struct {
	ID          string    `json:"message_id"`
	RoomID      string    `json:"room_id"`
	OwnerID     *string   `json:"owner_id"`
	Text        string    `json:"text"`
	Sent        time.Time `json:"sent"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewMessageView builds the client view of m.
func NewMessageView(m *Message) MessageView {
	return MessageView{
		ID:          m.ID,
		RoomID:      m.RoomID,
		OwnerID:     m.OwnerID,
		Text:        m.Text,
		Sent:        m.SentAt,
		LastUpdated: m.LastUpdatedAt,
	}
}
