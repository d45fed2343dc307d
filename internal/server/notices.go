package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"noticeboard/pkg/types"

	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 32 << 20

// handleListNotices serves the public JSON feed the viewer page polls and
// re-fetches after an update_notices push.
func (s *Service) handleListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.notices.List(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list notices")
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(notices); err != nil {
		s.logger.WithError(err).Error("failed to encode notices")
	}
}

func (s *Service) handlePostNotice(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromContext(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "no file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	n, err := s.notices.Add(r.Context(), title, header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrMissingTitle):
			http.Error(w, "title is required", http.StatusBadRequest)
		case errors.Is(err, types.ErrInvalidUpload):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, types.ErrDisallowedType):
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		default:
			s.logger.WithError(err).Error("failed to add notice")
			s.internalServerError(w)
		}
		return
	}

	s.logger.WithFields(logrus.Fields{
		"notice_id": n.ID,
		"file_type": n.FileType,
		"user_id":   userID,
	}).Info("notice added")

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Service) handleDeleteNotice(w http.ResponseWriter, r *http.Request) {
	noticeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid notice id", http.StatusBadRequest)
		return
	}

	if err := s.notices.Remove(r.Context(), noticeID); err != nil {
		if errors.Is(err, types.ErrNoticeNotFound) {
			http.Error(w, "notice not found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("failed to delete notice")
		s.internalServerError(w)
		return
	}

	s.logger.WithField("notice_id", noticeID).Info("notice deleted")

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
