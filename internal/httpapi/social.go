package httpapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/miniis3/lotteryd/internal/kv"
)

func (h *Handler) setAddressFID(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
		FID     int64  `json:"fid"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Address == "" || payload.FID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("address and fid are required"))
		return
	}

	if err := h.store.SetAddressFID(r.Context(), payload.Address, payload.FID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) getFIDs(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Addresses []string `json:"addresses"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result := make(map[string]*int64, len(payload.Addresses))
	for _, address := range payload.Addresses {
		fid, err := h.store.FIDByAddress(r.Context(), address)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if fid == 0 {
			result[address] = nil
			continue
		}
		result[address] = &fid
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Round    uint64 `json:"round"`
		Number   string `json:"number"`
		Address  string `json:"address"`
		FID      int64  `json:"fid,omitempty"`
		Username string `json:"username,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Number == "" || payload.Address == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("number and address are required"))
		return
	}

	p := kv.Participant{
		Number:   payload.Number,
		Address:  payload.Address,
		FID:      payload.FID,
		Username: payload.Username,
	}
	if err := h.store.AddParticipant(r.Context(), payload.Round, p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type participantView struct {
	Number string `json:"number"`
	User   string `json:"user"`
	Round  string `json:"round"`
}

func (h *Handler) getParticipants(w http.ResponseWriter, r *http.Request) {
	roundParam := r.URL.Query().Get("round")
	if roundParam == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("round parameter is required"))
		return
	}
	round, err := strconv.ParseUint(roundParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid round number"))
		return
	}

	participants, err := h.store.Participants(r.Context(), round)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sort.Slice(participants, func(i, j int) bool {
		a, _ := strconv.Atoi(participants[i].Number)
		b, _ := strconv.Atoi(participants[j].Number)
		return a < b
	})

	views := make([]participantView, 0, len(participants))
	for _, p := range participants {
		user := p.Username
		if user == "" {
			user = truncateAddress(p.Address)
		}
		views = append(views, participantView{Number: p.Number, User: user, Round: roundParam})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) updateParticipant(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Round   uint64 `json:"round"`
		Number  int    `json:"number"`
		Address string `json:"address"`
		FID     int64  `json:"fid,omitempty"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Address == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("address is required"))
		return
	}

	username := ""
	if payload.FID > 0 {
		info, err := h.userInfo(r, payload.FID)
		if err != nil {
			h.log.WithError(err).WithField("fid", payload.FID).Warn("profile lookup failed")
		} else if info != nil {
			username = info.Username
		}
	}

	p := kv.Participant{
		Number:   fmt.Sprintf("%02d", payload.Number),
		Address:  payload.Address,
		FID:      payload.FID,
		Username: username,
	}
	if err := h.store.AddParticipant(r.Context(), payload.Round, p); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// userInfo returns the cached profile for a FID, filling the cache from the
// social graph API on a miss.
func (h *Handler) userInfo(r *http.Request, fid int64) (*kv.UserInfo, error) {
	info, err := h.store.UserInfo(r.Context(), fid)
	if err != nil || info != nil {
		return info, err
	}
	if h.users == nil {
		return nil, nil
	}

	users, err := h.users.FetchBulkUsers(r.Context(), []int64{fid})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	fresh := kv.UserInfo{Username: users[0].Username, DisplayName: users[0].DisplayName}
	if err := h.store.SetUserInfo(r.Context(), fid, fresh); err != nil {
		h.log.WithError(err).WithField("fid", fid).Warn("profile cache write failed")
	}
	return &fresh, nil
}

func (h *Handler) getUsers(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FIDs []int64 `json:"fids"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(payload.FIDs) == 0 {
		writeJSON(w, http.StatusOK, map[string]kv.UserInfo{})
		return
	}
	if h.users == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("social graph API not configured"))
		return
	}

	users, err := h.users.FetchBulkUsers(r.Context(), payload.FIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	result := make(map[string]kv.UserInfo, len(users))
	for _, u := range users {
		info := kv.UserInfo{Username: u.Username, DisplayName: u.DisplayName}
		result[strconv.FormatInt(u.FID, 10)] = info
		if err := h.store.SetUserInfo(r.Context(), u.FID, info); err != nil {
			h.log.WithError(err).WithField("fid", u.FID).Warn("profile cache write failed")
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func truncateAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
