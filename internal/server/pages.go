package server

import (
	"net/http"

	"noticeboard/pkg/types"
)

func (s *Service) handleBoard(w http.ResponseWriter, r *http.Request) {
	notices, err := s.notices.List(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list notices for board")
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	data := types.BoardPageData{
		Title:   "Notice Board",
		Notices: notices,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "page.index", data); err != nil {
		s.logger.WithError(err).Error("failed to render board page")
		s.internalServerError(w)
		return
	}
}

func (s *Service) handleAdmin(w http.ResponseWriter, r *http.Request) {
	notices, err := s.notices.List(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list notices for admin")
		s.internalServerError(w)
		return
	}

	data := types.AdminPageData{
		Title:   "Manage Notices",
		Error:   r.URL.Query().Get("error"),
		Notices: notices,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "page.admin", data); err != nil {
		s.logger.WithError(err).Error("failed to render admin page")
		s.internalServerError(w)
		return
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Service) internalServerError(w http.ResponseWriter) {
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
