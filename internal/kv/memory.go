package kv

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/miniis3/lotteryd/internal/farcaster"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	addressFIDs   map[string]int64
	notifications map[int64]farcaster.NotificationDetails
	users         map[int64]struct{}
	participants  map[uint64][]Participant
	userInfo      map[int64]UserInfo
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		addressFIDs:   make(map[string]int64),
		notifications: make(map[int64]farcaster.NotificationDetails),
		users:         make(map[int64]struct{}),
		participants:  make(map[uint64][]Participant),
		userInfo:      make(map[int64]UserInfo),
	}
}

func (s *MemoryStore) SetAddressFID(_ context.Context, address string, fid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addressFIDs[strings.ToLower(address)] = fid
	return nil
}

func (s *MemoryStore) FIDByAddress(_ context.Context, address string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addressFIDs[strings.ToLower(address)], nil
}

func (s *MemoryStore) SetNotificationDetails(_ context.Context, fid int64, details farcaster.NotificationDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[fid] = details
	return nil
}

func (s *MemoryStore) NotificationDetails(_ context.Context, fid int64) (*farcaster.NotificationDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	details, ok := s.notifications[fid]
	if !ok {
		return nil, nil
	}
	return &details, nil
}

func (s *MemoryStore) DeleteNotificationDetails(_ context.Context, fid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notifications, fid)
	return nil
}

func (s *MemoryStore) AddUserFID(_ context.Context, fid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[fid] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveUserFID(_ context.Context, fid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, fid)
	return nil
}

func (s *MemoryStore) AllUserFIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fids := make([]int64, 0, len(s.users))
	for fid := range s.users {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })
	return fids, nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, round uint64, p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants[round] {
		if existing.Number == p.Number {
			return nil
		}
	}
	s.participants[round] = append(s.participants[round], p)
	return nil
}

func (s *MemoryStore) Participants(_ context.Context, round uint64) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]Participant, len(s.participants[round]))
	copy(list, s.participants[round])
	return list, nil
}

func (s *MemoryStore) SetUserInfo(_ context.Context, fid int64, info UserInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userInfo[fid] = info
	return nil
}

func (s *MemoryStore) UserInfo(_ context.Context, fid int64) (*UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.userInfo[fid]
	if !ok {
		return nil, nil
	}
	return &info, nil
}
