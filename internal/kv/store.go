// Package kv stores the mini-app's social routing data: wallet-to-FID
// mappings, notification tokens, the broadcast audience, per-round
// participant lists, and cached profile info. None of it is authoritative
// game state; the contract is.
package kv

import (
	"context"
	"time"

	"github.com/miniis3/lotteryd/internal/farcaster"
)

// Key layout under the configured prefix.
const (
	keyAddressFID   = "address_fid:"  // + lowercase address -> fid
	keyNotification = "notification:" // + fid -> NotificationDetails JSON
	keyUsers        = "users"         // set of opted-in fids
	keyUserInfo     = "user_info:"    // + fid -> UserInfo JSON
	keyParticipants = "participants_round_" // + round -> []Participant JSON
)

// participantTTL bounds how long a round's participant list is kept. Rounds
// are daily, so a day is enough.
const participantTTL = 24 * time.Hour

// Participant is one recorded (number, address) pick for a round.
type Participant struct {
	Number   string `json:"number"`
	Address  string `json:"address"`
	FID      int64  `json:"fid,omitempty"`
	Username string `json:"username,omitempty"`
}

// UserInfo is a cached Farcaster profile.
type UserInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Store is the key-value collaborator interface. Absence of a mapping is not
// an error: lookups return zero values for missing keys.
type Store interface {
	SetAddressFID(ctx context.Context, address string, fid int64) error
	// FIDByAddress returns 0 when no mapping exists.
	FIDByAddress(ctx context.Context, address string) (int64, error)

	SetNotificationDetails(ctx context.Context, fid int64, details farcaster.NotificationDetails) error
	// NotificationDetails returns nil when the user has no token.
	NotificationDetails(ctx context.Context, fid int64) (*farcaster.NotificationDetails, error)
	DeleteNotificationDetails(ctx context.Context, fid int64) error

	AddUserFID(ctx context.Context, fid int64) error
	RemoveUserFID(ctx context.Context, fid int64) error
	AllUserFIDs(ctx context.Context) ([]int64, error)

	AddParticipant(ctx context.Context, round uint64, p Participant) error
	Participants(ctx context.Context, round uint64) ([]Participant, error)

	SetUserInfo(ctx context.Context, fid int64, info UserInfo) error
	// UserInfo returns nil on a cache miss.
	UserInfo(ctx context.Context, fid int64) (*UserInfo, error)
}
