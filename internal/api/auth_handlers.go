package api

import (
	"net/http"

	"encoding/json/v2"

	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/http/response"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

func decodeJSON(r *http.Request, v any) error {
	if err := json.UnmarshalRead(r.Body, v); err != nil {
		return domainerrors.Validation("invalid JSON request body")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.Auth.Register(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, resp, s.logger)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.Auth.Login(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	user, err := s.services.Auth.GetUser(r.Context(), caller.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, user, s.logger)
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req service.CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.APIKeys.Create(r.Context(), caller.UserID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, resp, s.logger)
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	keys, err := s.services.APIKeys.List(r.Context(), caller.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, keys, s.logger)
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	if err := s.services.APIKeys.Delete(r.Context(), caller.UserID, pathParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}
