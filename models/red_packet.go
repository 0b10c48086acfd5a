package models

import "time"

// RedPacket is one logged monetary gift. Records are never edited after
// creation; Year is fixed at creation time and is the main filter dimension.
type RedPacket struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_red_packets_user_year,priority:1" json:"user_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Source    string    `gorm:"size:64;not null;default:''" json:"source"`
	Note      string    `gorm:"size:255;not null;default:''" json:"note"`
	Year      int       `gorm:"not null;index:idx_red_packets_user_year,priority:2;index:idx_red_packets_year" json:"year"`
	CreatedAt time.Time `gorm:"not null;index:idx_red_packets_created_at" json:"created_at"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// TableName pins the relation name used by the SQL queries.
func (RedPacket) TableName() string { return "red_packets" }

// OwnerLabel returns the owner's username when the relation is loaded.
func (r RedPacket) OwnerLabel() string {
	if r.User != nil {
		return r.User.Username
	}
	return ""
}
