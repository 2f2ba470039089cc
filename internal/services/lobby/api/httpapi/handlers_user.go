package httpapi

import (
	"net/http"

	"github.com/louisbranch/ensemble.live/internal/platform/requestctx"
)

type createUserRequest struct {
	Name         string `json:"name"`
	LeaderCardID int64  `json:"leader_card_id"`
}

type createUserResponse struct {
	UserToken string `json:"user_token"`
}

type userResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LeaderCardID int64  `json:"leader_card_id"`
}

type updateUserRequest struct {
	Name         string `json:"name"`
	LeaderCardID int64  `json:"leader_card_id"`
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	_, token, err := s.identity.Register(r.Context(), req.Name, req.LeaderCardID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createUserResponse{UserToken: token})
}

func (s *Server) handleUserMe(w http.ResponseWriter, r *http.Request) {
	found, err := s.identity.Get(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:           found.ID,
		Name:         found.Name,
		LeaderCardID: found.LeaderCardID,
	})
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !s.decode(w, r, &req) {
		return
	}

	_, err := s.identity.Update(r.Context(), requestctx.UserIDFromContext(r.Context()), req.Name, req.LeaderCardID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
