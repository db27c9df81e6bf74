package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-shields/internal/hostpattern"
	"github.com/JakeFAU/site-shields/internal/metrics"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
	"github.com/JakeFAU/site-shields/internal/state"
)

const maxBodyBytes = 1 << 20

type patternsResponse struct {
	URL      string   `json:"url"`
	Patterns []string `json:"patterns"`
}

type resolveResponse struct {
	URL      string              `json:"url"`
	Found    bool                `json:"found"`
	Settings sitesettings.Record `json:"settings"`
	Matched  []string            `json:"matched"`
}

type activeResponse struct {
	URL      string   `json:"url"`
	Settings any      `json:"settings"`
	Matched  []string `json:"matched"`
}

type noScriptResponse struct {
	Pattern string          `json:"pattern"`
	Origins map[string]bool `json:"origins"`
}

type flashRequest struct {
	URL     string `json:"url"`
	Private bool   `json:"private"`
}

type publishersRequest struct {
	Publishers []string `json:"publishers"`
}

type pinsRequest struct {
	Pins map[string]float64 `json:"pins"`
}

type settingRequest struct {
	Key   string             `json:"key"`
	Value sitesettings.Value `json:"value"`
}

type resourceRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) getPatterns(w http.ResponseWriter, r *http.Request) {
	location, ok := s.requireURL(w, r)
	if !ok {
		return
	}
	patterns := hostpattern.CandidatePatterns(location)
	if patterns == nil {
		patterns = []string{}
	}
	s.writeJSON(w, http.StatusOK, patternsResponse{URL: location, Patterns: patterns})
}

func (s *Server) getResolve(w http.ResponseWriter, r *http.Request) {
	location, ok := s.requireURL(w, r)
	if !ok {
		return
	}
	private, ok := s.privateParam(w, r)
	if !ok {
		return
	}
	res := s.manager.Resolve(location, private)
	metrics.ObserveResolution(private, res.Found(), len(res.Matched))

	resp := resolveResponse{
		URL:      location,
		Found:    res.Found(),
		Settings: res.Settings,
		Matched:  res.Matched,
	}
	if resp.Settings == nil {
		resp.Settings = sitesettings.Record{}
	}
	if resp.Matched == nil {
		resp.Matched = []string{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getActive(w http.ResponseWriter, r *http.Request) {
	location, ok := s.requireURL(w, r)
	if !ok {
		return
	}
	private, ok := s.privateParam(w, r)
	if !ok {
		return
	}
	settings, res := s.manager.Active(location, private)
	metrics.ObserveResolution(private, res.Found(), len(res.Matched))

	matched := res.Matched
	if matched == nil {
		matched = []string{}
	}
	s.writeJSON(w, http.StatusOK, activeResponse{URL: location, Settings: settings, Matched: matched})
}

func (s *Server) getDefaults(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.Defaults().Record())
}

func (s *Server) getContentSettings(w http.ResponseWriter, r *http.Request) {
	private, ok := s.privateParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.ContentSettings(private))
}

func (s *Server) getSiteSettings(w http.ResponseWriter, r *http.Request) {
	private, ok := s.privateParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.SiteSettings(private))
}

func (s *Server) changeSiteSetting(w http.ResponseWriter, r *http.Request) {
	var req state.SiteSettingChange
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "change_site_setting", s.manager.ChangeSiteSetting(req))
}

func (s *Server) removeSiteSetting(w http.ResponseWriter, r *http.Request) {
	var req state.SiteSettingRemoval
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "remove_site_setting", s.manager.RemoveSiteSetting(req))
}

func (s *Server) clearSiteSettings(w http.ResponseWriter, r *http.Request) {
	var req state.SiteSettingsClear
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "clear_site_settings", s.manager.ClearSiteSettings(req))
}

func (s *Server) getNoScriptExceptions(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		s.writeError(w, http.StatusBadRequest, "pattern query parameter is required")
		return
	}
	private, ok := s.privateParam(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, noScriptResponse{
		Pattern: pattern,
		Origins: s.manager.NoScriptExceptions(pattern, private),
	})
}

func (s *Server) addNoScriptExceptions(w http.ResponseWriter, r *http.Request) {
	var req state.NoScriptExceptionsChange
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "add_noscript_exceptions", s.manager.AddNoScriptExceptions(req))
}

func (s *Server) allowFlash(always bool) http.HandlerFunc {
	action := "allow_flash_once"
	if always {
		action = "allow_flash_always"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req flashRequest
		if !s.decode(w, r, &req) {
			return
		}
		var err error
		if always {
			err = s.manager.AllowFlashAlways(req.URL, req.Private)
		} else {
			err = s.manager.AllowFlashOnce(req.URL, req.Private)
		}
		s.apply(w, action, err)
	}
}

func (s *Server) enablePublishers(w http.ResponseWriter, r *http.Request) {
	var req publishersRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "enable_undefined_publishers", s.manager.EnableUndefinedPublishers(req.Publishers))
}

func (s *Server) pinPublishers(w http.ResponseWriter, r *http.Request) {
	var req pinsRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "change_ledger_pinned_percentages", s.manager.ChangeLedgerPinnedPercentages(req.Pins))
}

func (s *Server) changeSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.apply(w, "change_setting", s.manager.ChangeSetting(req.Key, req.Value))
}

func (s *Server) setResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		s.writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	name := chi.URLParam(r, "name")
	s.apply(w, "set_resource_enabled", s.manager.SetResourceEnabled(name, *req.Enabled))
}

// apply records the action outcome and writes the response for it.
func (s *Server) apply(w http.ResponseWriter, action string, err error) {
	metrics.ObserveAction(action, err)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("action failed", zap.String("action", action), zap.Error(err))
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "applied", "action": action})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeError(w, status, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func (s *Server) requireURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	location := r.URL.Query().Get("url")
	if location == "" {
		s.writeError(w, http.StatusBadRequest, "url query parameter is required")
		return "", false
	}
	return location, true
}

func (s *Server) privateParam(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("private")
	if raw == "" {
		return false, true
	}
	private, err := strconv.ParseBool(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "private must be a boolean")
		return false, false
	}
	return private, true
}
