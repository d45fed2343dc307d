package server

import (
	"errors"
	"net/http"

	"noticeboard/pkg/types"

	"golang.org/x/crypto/bcrypt"
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (s *Service) handleGetLogin(w http.ResponseWriter, r *http.Request) {

	cookie, err := r.Cookie(s.config.CookieName)
	if err == nil {
		var userID int64
		if s.cookie.Decode(s.config.CookieName, cookie.Value, &userID) == nil {
			s.logger.Info("user is already logged in, redirecting to admin")
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}

		// Stale or key-rotated cookie; expire it so the form is reachable.
		s.clearSessionCookie(w)
	}

	err = s.templates.ExecuteTemplate(w, "page.login", &types.LoginPageData{Title: "Login"})
	if err != nil {
		s.logger.WithError(err).Error("failed to render login page")
		s.internalServerError(w)
		return
	}
}

func (s *Service) handlePostLogin(w http.ResponseWriter, r *http.Request) {

	if err := r.ParseForm(); err != nil {
		s.logger.WithError(err).Error("failed to parse login form")
		s.internalServerError(w)
		return
	}

	var login = new(loginForm)
	if err := decoder.Decode(login, r.Form); err != nil {
		s.logger.WithError(err).Error("failed to decode login form")
		s.internalServerError(w)
		return
	}

	user, err := s.users.UserByUsername(r.Context(), login.Username)
	if err != nil {
		if !errors.Is(err, types.ErrUserNotFound) {
			s.logger.WithError(err).Error("failed to fetch user for login")
			s.internalServerError(w)
			return
		}
		s.renderLoginError(w)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(login.Password)) != nil {
		s.renderLoginError(w)
		return
	}

	encoded, err := s.cookie.Encode(s.config.CookieName, user.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode session cookie")
		s.internalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    encoded,
		HttpOnly: true,
		Secure:   s.config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   s.config.SessionMaxAgeSec,
		Path:     "/",
	})

	s.logger.WithField("user_id", user.ID).Info("user logged in")

	// Check to see if this login attempt was the result of an unauthed redirect
	redirectCookie, err := r.Cookie(cookieRedirectName)
	if err == nil {
		path := redirectCookie.Value
		s.clearRedirectCookie(w)
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Service) renderLoginError(w http.ResponseWriter) {
	w.WriteHeader(http.StatusUnauthorized)
	err := s.templates.ExecuteTemplate(w, "page.login", &types.LoginPageData{
		Title: "Login",
		Error: "Invalid username or password",
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to render login page")
	}
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Service) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.config.Environment == "production",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Path:     "/",
	})
}
