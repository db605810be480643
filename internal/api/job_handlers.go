package api

import (
	"net/http"
	"strconv"

	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/http/response"
)

func (s *Server) handleJobDailyEmail(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Delivery.RunDailyEmail(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, report, s.logger)
}

func (s *Server) handleJobCapacities(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.Delivery.RunCapacities(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, report, s.logger)
}

func (s *Server) handleJobNotionEnqueue(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.NotionSync.Enqueue(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, report, s.logger)
}

func (s *Server) handleJobNotionSync(w http.ResponseWriter, r *http.Request) {
	shard, err := strconv.Atoi(pathParam(r, "shard"))
	if err != nil || shard < 0 || shard >= s.services.NotionSync.Shards() {
		response.HandleError(w, domainerrors.Validationf("shard must be an integer in [0,%d)", s.services.NotionSync.Shards()), s.logger)
		return
	}

	report, err := s.services.NotionSync.RunShard(r.Context(), shard)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, report, s.logger)
}
