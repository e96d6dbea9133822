package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/internal/reconcile"
	"github.com/courtneys-list/vendors/internal/survey"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  s.deps.Matcher.Cache().Stats(),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Matcher.Progress(r.Context(), chi.URLParam(r, "community"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleExact(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Matcher.ExactMatches(r.Context(), chi.URLParam(r, "community"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFuzzy(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Matcher.FuzzyMatches(r.Context(), chi.URLParam(r, "community"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Matcher.Unmatched(r.Context(), chi.URLParam(r, "community"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type approveRequest struct {
	RatingIDs      []string `json:"rating_ids"`
	VendorID       string   `json:"vendor_id"`
	CrossCommunity bool     `json:"cross_community"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.deps.Approver.Approve(r.Context(), chi.URLParam(r, "community"), req.RatingIDs, req.VendorID,
		reconcile.ApproveOptions{CrossCommunity: req.CrossCommunity})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated_count": n})
}

func (s *Server) handleApproveExact(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Bulk.ApproveAllExact(r.Context(), chi.URLParam(r, "community"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var req reconcile.CreateVendorRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Community = chi.URLParam(r, "community")
	id, err := s.deps.Approver.CreateVendorFromSurvey(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"new_vendor_id": id})
}

type copyRequest struct {
	TargetCommunity string   `json:"target_community"`
	RatingIDs       []string `json:"rating_ids,omitempty"`
}

func (s *Server) handleCopyVendor(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sourceID := chi.URLParam(r, "id")

	if len(req.RatingIDs) == 0 {
		id, err := s.deps.Approver.CopyVendorToCommunity(r.Context(), sourceID, req.TargetCommunity)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"new_vendor_id": id, "updated_count": 0})
		return
	}

	id, n, err := s.deps.Approver.CopyAndLink(r.Context(), sourceID, req.TargetCommunity, req.RatingIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_vendor_id": id, "updated_count": n})
}

func (s *Server) handleSearchVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, eris.Wrapf(errBadRequest, "api: invalid limit %q", v))
			return
		}
		limit = n
	}
	vs, err := s.deps.Approver.SearchVendors(r.Context(), q.Get("category"), q.Get("q"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if vs == nil {
		vs = []model.Vendor{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	if s.deps.Places == nil {
		s.writeError(w, r, errPlacesDisabled)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, r, eris.Wrap(errBadRequest, "api: q is required"))
		return
	}
	resp, err := s.deps.Places.TextSearch(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitSurvey(w http.ResponseWriter, r *http.Request) {
	var sub survey.Submission
	if err := decode(w, r, &sub); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Importer.Submit(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Store.GetPreference(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type preferenceRequest struct {
	Value      string `json:"value"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

func (s *Server) handlePutPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.TTLSeconds < 0 {
		s.writeError(w, r, eris.Wrap(errBadRequest, "api: ttl_seconds must be positive"))
		return
	}
	ttl := s.cfg.PreferenceTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	p := model.Preference{
		Key:       chi.URLParam(r, "key"),
		Value:     req.Value,
		ExpiresAt: s.now().Add(ttl).UTC().Truncate(time.Second),
	}
	if err := s.deps.Store.SetPreference(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePreference(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeletePreference(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
