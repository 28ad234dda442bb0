package vote

import "time"

// Value is a cast vote. "No vote" is the absence of a row and reads as 0.
type Value int

const (
	Down Value = -1
	None Value = 0
	Up   Value = 1
)

func (v Value) Valid() bool { return v == Up || v == Down }

type Vote struct {
	PostID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Value     Value     `gorm:"type:smallint;not null;check:chk_votes_value,value IN (-1,1)" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Outcome string

const (
	Created   Outcome = "created"
	Flipped   Outcome = "flipped"
	Unchanged Outcome = "unchanged"
)

type CastReq struct {
	Value Value `json:"value"`
}

// Event is published on votes.cast whenever points change.
type Event struct {
	PostID  uint64    `json:"post_id"`
	UserID  uint64    `json:"user_id"`
	Value   Value     `json:"value"`
	Points  int64     `json:"points"`
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
}
