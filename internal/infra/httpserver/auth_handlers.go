package httpserver

import (
	"net/http"
	"strings"

	appauth "github.com/bryanwahyu/bloodreport-ai/internal/application/auth"
	"github.com/bryanwahyu/bloodreport-ai/internal/middleware"
)

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	in := appauth.RegisterInput{
		Username:     strings.TrimSpace(req.FormValue("username")),
		Email:        strings.TrimSpace(req.FormValue("email")),
		MobileNumber: strings.TrimSpace(req.FormValue("mobile_number")),
		Password:     req.FormValue("password"),
		FullName:     middleware.SanitizeString(req.FormValue("full_name")),
	}
	checks := []error{
		middleware.ValidateUsername(in.Username),
		middleware.ValidateEmail(in.Email),
		middleware.ValidateMobile(in.MobileNumber),
		middleware.ValidatePassword(in.Password),
		middleware.ValidateFullName(in.FullName),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	id, err := r.auth.Register(req.Context(), in)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User registered successfully",
		"user_id": id,
	})
	return nil
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	// OAuth2 password form sends "username"
	identifier := strings.TrimSpace(req.FormValue("identifier"))
	if identifier == "" {
		identifier = strings.TrimSpace(req.FormValue("username"))
	}
	password := req.FormValue("password")
	if identifier == "" || password == "" {
		return appauth.ErrInvalidCredentials
	}

	tok, err := r.auth.Login(req.Context(), identifier, password)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, tok)
	return nil
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) error {
	middleware.WriteJSON(w, http.StatusOK, middleware.UserFromContext(req.Context()))
	return nil
}
