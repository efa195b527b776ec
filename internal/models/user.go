package models

// UserInfo is the display information the user directory exposes.
type UserInfo struct {
	ID          int    `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	AvatarColor string `db:"avatar_color" json:"avatar_color"`
	ClanEmoji   string `db:"clan_emoji" json:"clan_emoji"`
}
