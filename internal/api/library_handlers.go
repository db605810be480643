package api

import (
	"net/http"
	"strconv"

	"github.com/unearthedapp/unearthed-server/internal/http/response"
	"github.com/unearthedapp/unearthed-server/internal/search"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

func (s *Server) handleCreateSources(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var reqs []service.SourceRequest
	if err := decodeJSON(r, &reqs); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.Ingest.CreateSources(r.Context(), caller.UserID, reqs)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	sources, err := s.services.Sources.List(r.Context(), caller.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, sources, s.logger)
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	detail, err := s.services.Sources.Get(r.Context(), caller.UserID, pathParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, detail, s.logger)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req service.UpdateSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	src, err := s.services.Sources.Update(r.Context(), caller.UserID, pathParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, src, s.logger)
}

func (s *Server) handleCreateQuotes(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var reqs []service.QuoteRequest
	if err := decodeJSON(r, &reqs); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.Ingest.CreateQuotes(r.Context(), caller.UserID, reqs)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

func (s *Server) handleKindleImport(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Books []service.KindleBook `json:"books"`
	}
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp, err := s.services.Ingest.KindleImport(r.Context(), caller.UserID, req.Books)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

func (s *Server) handleGetReflection(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	reflection, err := s.services.Reflection.GetOrCreate(r.Context(), caller.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if reflection == nil {
		// Nothing to reflect on yet.
		response.NoContent(w)
		return
	}

	response.Success(w, reflection, s.logger)
}

func (s *Server) handleAttachTag(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	tag, err := s.services.Tags.Attach(r.Context(), caller.UserID, pathParam(r, "id"), req.Name)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, tag, s.logger)
}

func (s *Server) handleDetachTag(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	err := s.services.Tags.Detach(r.Context(), caller.UserID, pathParam(r, "id"), pathParam(r, "tagID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	tags, err := s.services.Tags.List(r.Context(), caller.UserID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, tags, s.logger)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.userCaller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	params := search.DefaultParams(caller.UserID, q.Get("q"))
	if types, found := q["type"]; found {
		params.Types = types
	}
	if tags, found := q["tag"]; found {
		params.Tags = tags
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 100 {
		params.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		params.Offset = offset
	}

	result, err := s.searchIndex.Search(r.Context(), params)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, result, s.logger)
}
