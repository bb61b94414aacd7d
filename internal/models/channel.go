package models

import (
	"errors"
	"time"
)

// Channel is a conversation between two participants.
type Channel struct {
	ID        int       `db:"id" json:"id"`
	UserID0   int       `db:"user_id0" json:"user_id0"`
	UserID1   int       `db:"user_id1" json:"user_id1"`
	Type      string    `db:"type" json:"type"`
	Archived  bool      `db:"archived" json:"archived"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChannelFilter narrows a channel listing. A nil field is not applied.
type ChannelFilter struct {
	UserID   *int
	Type     string
	Archived bool
	All      bool
}

// ChannelCount is one bucket of the channel activity report.
type ChannelCount struct {
	Period    string `db:"period" json:"period"`
	ChatCount int    `db:"chat_count" json:"chat_count"`
}

// ChannelState is the lifecycle position of a channel.
type ChannelState int

const (
	ChannelActive ChannelState = iota
	ChannelArchived
	ChannelDeleted
)

var ErrChannelTerminal = errors.New("channel is already deleted")

func (s ChannelState) String() string {
	switch s {
	case ChannelActive:
		return "active"
	case ChannelArchived:
		return "archived"
	case ChannelDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// State derives the lifecycle state from the persisted row.
func (c Channel) State() ChannelState {
	if c.Archived {
		return ChannelArchived
	}
	return ChannelActive
}

// Participants returns both participant identities.
func (c Channel) Participants() Participants {
	return Participants{UserID0: c.UserID0, UserID1: c.UserID1}
}

// NextOnClose returns the state a close request moves a channel into.
func NextOnClose(current ChannelState) (ChannelState, error) {
	switch current {
	case ChannelActive:
		return ChannelArchived, nil
	case ChannelArchived:
		return ChannelDeleted, nil
	default:
		return current, ErrChannelTerminal
	}
}

// CloseOutcome names which branch a close request took.
type CloseOutcome string

const (
	CloseArchived CloseOutcome = "archived"
	CloseDeleted  CloseOutcome = "deleted"
)

// CloseResult is the committed effect of one close request. Review is set only
// on the archive branch.
type CloseResult struct {
	Outcome CloseOutcome
	Channel Channel
	Review  *Review
}

// Participants identifies the two sides of a channel. The JSON names are the
// ones connected clients already consume.
type Participants struct {
	UserID0 int `db:"user_id0" json:"userId0"`
	UserID1 int `db:"user_id1" json:"userId1"`
}

// Other returns the participant that is not senderID. When senderID matches
// neither side, UserID0 is returned.
func (p Participants) Other(senderID int) int {
	if p.UserID0 == senderID {
		return p.UserID1
	}
	return p.UserID0
}

// Recipients lists the non-zero participants once each, so a channel whose two
// sides are the same user does not receive every event twice.
func (p Participants) Recipients() []int {
	out := make([]int, 0, 2)
	if p.UserID0 != 0 {
		out = append(out, p.UserID0)
	}
	if p.UserID1 != 0 && p.UserID1 != p.UserID0 {
		out = append(out, p.UserID1)
	}
	return out
}
