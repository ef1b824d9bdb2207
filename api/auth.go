package api

import (
	"net/http"

	"github.com/billbatista/budgetwise/eventlogger"
	"github.com/billbatista/budgetwise/middleware"
	"github.com/billbatista/budgetwise/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var c credentials
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}

	registered, err := h.Users.Register(ctx, c.Email, c.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.Sessions.Create(ctx, registered.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, sess)

	h.audit(eventlogger.NewEvent(
		eventlogger.WithType("user.registered"),
		eventlogger.WithData(map[string]string{
			"user_id":    registered.ID.String(),
			"email":      registered.Email,
			"session_id": sess.ID.String(),
		}),
	))

	writeJSON(w, http.StatusCreated, map[string]any{"user": registered, "session": sess})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var c credentials
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.Users.Authenticate(ctx, c.Email, c.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.Sessions.Create(ctx, u.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, sess)

	h.audit(eventlogger.NewEvent(
		eventlogger.WithType("user.logged_in"),
		eventlogger.WithData(map[string]string{
			"user_id":    u.ID.String(),
			"email":      u.Email,
			"session_id": sess.ID.String(),
		}),
	))

	writeJSON(w, http.StatusOK, map[string]any{"user": u, "session": sess})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := middleware.Token(r); token != "" {
		if err := h.Sessions.Delete(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:   session.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
