package api

import (
	"net/http"

	"github.com/unearthedapp/unearthed-server/internal/http/response"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

func (s *Server) handleAIChat(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req service.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.AI.Chat(r.Context(), caller, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

func (s *Server) handleAIBlindSpots(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	resp, err := s.services.AI.BlindSpots(r.Context(), caller)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

func (s *Server) handleAIRecommendations(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	resp, err := s.services.AI.Recommendations(r.Context(), caller)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}
