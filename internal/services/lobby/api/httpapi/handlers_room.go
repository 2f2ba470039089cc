package httpapi

import (
	"net/http"

	"github.com/louisbranch/ensemble.live/internal/platform/requestctx"
	"github.com/louisbranch/ensemble.live/internal/services/lobby/domain/room"
)

type createRoomRequest struct {
	LiveID           int64 `json:"live_id"`
	SelectDifficulty int   `json:"select_difficulty"`
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

type listRoomRequest struct {
	LiveID int64 `json:"live_id"`
}

type roomInfo struct {
	RoomID          string `json:"room_id"`
	LiveID          int64  `json:"live_id"`
	JoinedUserCount int    `json:"joined_user_count"`
	MaxUserCount    int    `json:"max_user_count"`
}

type listRoomResponse struct {
	RoomInfoList []roomInfo `json:"room_info_list"`
}

type joinRoomRequest struct {
	RoomID           string `json:"room_id"`
	SelectDifficulty int    `json:"select_difficulty"`
}

type joinRoomResponse struct {
	JoinRoomResult int `json:"join_room_result"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type roomUser struct {
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	LeaderCardID     int64  `json:"leader_card_id"`
	SelectDifficulty int    `json:"select_difficulty"`
	IsMe             bool   `json:"is_me"`
	IsHost           bool   `json:"is_host"`
}

type waitRoomResponse struct {
	Status       int        `json:"status"`
	RoomUserList []roomUser `json:"room_user_list"`
}

type endRoomRequest struct {
	RoomID         string  `json:"room_id"`
	JudgeCountList []int64 `json:"judge_count_list"`
	Score          int64   `json:"score"`
}

type resultUser struct {
	UserID         string  `json:"user_id"`
	JudgeCountList []int64 `json:"judge_count_list"`
	Score          int64   `json:"score"`
}

type resultRoomResponse struct {
	ResultUserList []resultUser `json:"result_user_list"`
}

func (s *Server) handleRoomCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	difficulty, err := room.ParseDifficulty(req.SelectDifficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	roomID, err := s.rooms.CreateRoom(r.Context(), requestctx.UserIDFromContext(r.Context()), req.LiveID, difficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createRoomResponse{RoomID: roomID})
}

func (s *Server) handleRoomList(w http.ResponseWriter, r *http.Request) {
	var req listRoomRequest
	if !s.decode(w, r, &req) {
		return
	}

	summaries, err := s.rooms.ListOpenRooms(r.Context(), req.LiveID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	infos := make([]roomInfo, 0, len(summaries))
	for _, summary := range summaries {
		infos = append(infos, roomInfo{
			RoomID:          summary.RoomID,
			LiveID:          summary.LiveID,
			JoinedUserCount: summary.JoinedCount,
			MaxUserCount:    summary.MaxCount,
		})
	}
	writeJSON(w, http.StatusOK, listRoomResponse{RoomInfoList: infos})
}

func (s *Server) handleRoomJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	difficulty, err := room.ParseDifficulty(req.SelectDifficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.rooms.JoinRoom(r.Context(), requestctx.UserIDFromContext(r.Context()), req.RoomID, difficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinRoomResponse{JoinRoomResult: int(result)})
}

func (s *Server) handleRoomWait(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !s.decode(w, r, &req) {
		return
	}

	userID := requestctx.UserIDFromContext(r.Context())
	status, users, err := s.rooms.WaitRoom(r.Context(), userID, req.RoomID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, waitRoomResponse{
		Status:       int(status),
		RoomUserList: roomUserList(users),
	})
}

func (s *Server) handleRoomStart(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.rooms.StartRoom(r.Context(), requestctx.UserIDFromContext(r.Context()), req.RoomID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRoomEnd(w http.ResponseWriter, r *http.Request) {
	var req endRoomRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.rooms.EndRoom(r.Context(), requestctx.UserIDFromContext(r.Context()), req.RoomID, req.JudgeCountList, req.Score)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRoomResult(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !s.decode(w, r, &req) {
		return
	}

	results, err := s.rooms.RoomResult(r.Context(), requestctx.UserIDFromContext(r.Context()), req.RoomID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	users := make([]resultUser, 0, len(results))
	for _, result := range results {
		users = append(users, resultUser{
			UserID:         result.UserID,
			JudgeCountList: result.JudgeCounts,
			Score:          result.Score,
		})
	}
	writeJSON(w, http.StatusOK, resultRoomResponse{ResultUserList: users})
}

func (s *Server) handleRoomLeave(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.rooms.LeaveRoom(r.Context(), requestctx.UserIDFromContext(r.Context()), req.RoomID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func roomUserList(users []room.WaitUser) []roomUser {
	list := make([]roomUser, 0, len(users))
	for _, u := range users {
		list = append(list, roomUser{
			UserID:           u.UserID,
			Name:             u.Name,
			LeaderCardID:     u.LeaderCardID,
			SelectDifficulty: int(u.Difficulty),
			IsMe:             u.IsMe,
			IsHost:           u.IsHost,
		})
	}
	return list
}
