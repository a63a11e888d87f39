package httpserver

import (
	"net/http"
	"strconv"

	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/middleware"
)

// authForm echoes the submitted address back after a failed attempt.
type authForm struct {
	Email string
}

func (r *Router) handleLanding(w http.ResponseWriter, req *http.Request) error {
	p := page{Title: "Reclaim AI"}
	if ws := workspaceFrom(req.Context()); ws != nil {
		p.User = ws.Session.User()
	}
	r.render(w, req, http.StatusOK, "landing", p)
	return nil
}

func (r *Router) handleLoginPage(w http.ResponseWriter, req *http.Request) error {
	r.render(w, req, http.StatusOK, "login", page{Title: "Login", Data: authForm{}})
	return nil
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	ws := workspaceFrom(req.Context())
	if err := req.ParseForm(); err != nil {
		return failure.Validation("invalid form: %v", err)
	}
	email := middleware.SanitizeString(req.PostFormValue("email"))
	password := req.PostFormValue("password")

	if _, err := ws.Session.SignIn(req.Context(), email, password); err != nil {
		r.metrics.Record(middleware.EventSignIn, outcome(err))
		r.log.Warn("sign in failed", "workspace", ws.ID, "error", err)
		ws.Notices.Error(failure.Message(err))
		r.render(w, req, http.StatusOK, "login", page{Title: "Login", Data: authForm{Email: email}})
		return nil
	}
	r.metrics.Record(middleware.EventSignIn, middleware.OutcomeSuccess)
	ws.Notices.Success("Login successful!")
	http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
	return nil
}

func (r *Router) handleRegisterPage(w http.ResponseWriter, req *http.Request) error {
	r.render(w, req, http.StatusOK, "register", page{Title: "Register", Data: authForm{}})
	return nil
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	ws := workspaceFrom(req.Context())
	if err := req.ParseForm(); err != nil {
		return failure.Validation("invalid form: %v", err)
	}
	email := middleware.SanitizeString(req.PostFormValue("email"))
	password := req.PostFormValue("password")
	confirm := req.PostFormValue("confirmPassword")

	fail := func(msg string, err error) error {
		r.metrics.Record(middleware.EventSignUp, outcome(err))
		ws.Notices.Error(msg)
		r.render(w, req, http.StatusOK, "register", page{Title: "Register", Data: authForm{Email: email}})
		return nil
	}
	if email != "" {
		if err := middleware.ValidateEmail(email); err != nil {
			return fail("Please enter a valid email address", failure.Validation("email"))
		}
	}
	if password != "" && password == confirm {
		if err := middleware.ValidatePassword(password); err != nil {
			return fail(err.Error(), failure.Validation("password"))
		}
	}

	if _, err := ws.Session.SignUp(req.Context(), email, password, confirm); err != nil {
		r.log.Warn("sign up failed", "workspace", ws.ID, "error", err)
		return fail(failure.Message(err), err)
	}
	r.metrics.Record(middleware.EventSignUp, middleware.OutcomeSuccess)
	ws.Notices.Success("Registration successful! Please check your email to verify your account.")
	http.Redirect(w, req, "/login", http.StatusSeeOther)
	return nil
}

// handleLogout signs out and drops the workspace so the next request
// starts clean.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) error {
	ws := workspaceFrom(req.Context())
	if err := ws.Session.SignOut(req.Context()); err != nil {
		r.log.Warn("sign out failed", "workspace", ws.ID, "error", err)
	}
	r.registry.Discard(ws.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     r.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, req, "/", http.StatusSeeOther)
	return nil
}

type onboardingStep struct {
	Title       string
	Description string
	PIN         bool
}

var onboardingSteps = []onboardingStep{
	{
		Title:       "Welcome to Jenga",
		Description: "A secure space to collect and manage evidence of digital abuse. Your safety is our priority.",
	},
	{
		Title:       "Easy Evidence Upload",
		Description: "Upload screenshots, screen recordings, and other files directly from your device. We will guide you through the process.",
	},
	{
		Title:       "Set Your Security PIN",
		Description: "Create a PIN to protect your account. You can also use biometrics for faster access.",
		PIN:         true,
	},
}

type onboardingView struct {
	Step   int
	Number int
	Total  int
	Last   bool
	Page   onboardingStep
}

func stepFrom(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	if n >= len(onboardingSteps) {
		return len(onboardingSteps) - 1
	}
	return n
}

func (r *Router) handleOnboarding(w http.ResponseWriter, req *http.Request) error {
	ws := workspaceFrom(req.Context())
	step := stepFrom(req.URL.Query().Get("step"))
	r.render(w, req, http.StatusOK, "onboarding", page{
		Title: "Onboarding",
		User:  ws.Session.User(),
		Data: onboardingView{
			Step:   step,
			Number: step + 1,
			Total:  len(onboardingSteps),
			Last:   step == len(onboardingSteps)-1,
			Page:   onboardingSteps[step],
		},
	})
	return nil
}

// handleOnboardingNext advances one step; the PIN is not stored.
func (r *Router) handleOnboardingNext(w http.ResponseWriter, req *http.Request) error {
	ws := workspaceFrom(req.Context())
	step := stepFrom(req.PostFormValue("step"))
	if step >= len(onboardingSteps)-1 {
		ws.Notices.Success("Onboarding complete!")
		http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
		return nil
	}
	http.Redirect(w, req, "/onboarding?step="+strconv.Itoa(step+1), http.StatusSeeOther)
	return nil
}
