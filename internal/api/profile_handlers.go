package api

import (
	"net/http"

	"github.com/unearthedapp/unearthed-server/internal/http/response"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	profile, err := s.services.Profiles.Get(r.Context(), caller.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, profile, s.logger)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req service.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	profile, err := s.services.Profiles.Update(r.Context(), caller.UserID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, profile, s.logger)
}

func (s *Server) handleConnectNotion(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req service.ConnectNotionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	profile, err := s.services.Profiles.ConnectNotion(r.Context(), caller.UserID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, profile, s.logger)
}

func (s *Server) handleConnectCapacities(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req service.ConnectCapacitiesRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	profile, err := s.services.Profiles.ConnectCapacities(r.Context(), caller.UserID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, profile, s.logger)
}

func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	var event service.BillingEvent
	if err := decodeJSON(r, &event); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.services.Profiles.HandleBillingEvent(r.Context(), event); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{"status": "processed"}, s.logger)
}
