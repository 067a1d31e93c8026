package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/coworklab/parley/pkg/services"
	"github.com/coworklab/parley/pkg/wire"
)

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeRegisterRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, err := s.svc.Auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{User: user})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := wire.DecodeLoginRequest(body)
	if err != nil {
		writeBadRequest(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, cookie, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrBadCredentials) {
			writeUnauthorized(w, "bad credentials")
			return
		}
		writeServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    cookie,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.cfg.Security.SessionTTL),
	})
	writeJSON(w, http.StatusOK, loginResponse{User: user})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Auth.Me(r.Context(), currentUserID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
