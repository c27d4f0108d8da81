// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up the HTTP routes and middleware chains for the
// Mailsmith API. Everything under /api requires a session; the AI and
// auth endpoints carry per-IP rate limits on top.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mailsmith/internal/handlers"
	"mailsmith/internal/middleware"
	"mailsmith/internal/session"
)

// New creates the configured chi router with all middleware and route
// groups wired up. secureCookies marks the CSRF cookie Secure; off for
// local development.
func New(sessionStore *session.Store, api *handlers.API, auth *handlers.Auth, users *handlers.Users, secureCookies bool) chi.Router {
	r := chi.NewRouter()

	// Global middleware - applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(sessionStore))
	r.Use(middleware.NewCSRF(secureCookies))

	// Health check - no auth.
	r.Get("/health", healthHandler)

	// Credential endpoints get a tight limiter; the AI endpoints a looser
	// one sized for interactive use.
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	aiLimiter := middleware.NewRateLimiter(30, time.Minute)

	r.Route("/api", func(r chi.Router) {
		// Login is the only endpoint reachable without a session.
		r.With(authLimiter.Middleware).Post("/auth/login", auth.Login)

		// 2FA endpoints require auth but NOT completed 2FA.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.With(authLimiter.Middleware).Post("/auth/2fa/setup", auth.TwoFASetup)
			r.With(authLimiter.Middleware).Post("/auth/2fa/verify", auth.TwoFAVerify)
			r.Post("/auth/logout", auth.Logout)
		})

		// Fully authenticated API.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Get("/auth/me", auth.Me)

			// Streaming generation.
			r.Group(func(r chi.Router) {
				r.Use(aiLimiter.Middleware)
				r.Post("/template/generate", api.Generate)
				r.Post("/template/regenerate", api.Regenerate)
				r.Post("/template/cancel", api.CancelGeneration)
				r.Post("/template/render-ready", api.RenderReady)
			})

			// Templates, versions, previews, chat.
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", api.ListTemplates)
				r.Post("/", api.CreateTemplate)
				r.Get("/{id}", api.GetTemplate)
				r.Put("/{id}", api.UpdateTemplate)
				r.Delete("/{id}", api.DeleteTemplate)
				r.Get("/{id}/versions", api.ListVersions)
				r.Post("/{id}/versions/{vid}/restore", api.RestoreVersion)
				r.Get("/{id}/preview", api.GetPreview)
				r.Put("/{id}/preview", api.PutPreview)
				r.Get("/{id}/messages", api.ListMessages)
				r.Post("/{id}/messages", api.CreateMessage)
			})
			r.Put("/messages/{id}", api.UpdateMessage)

			// Image studio.
			r.With(aiLimiter.Middleware).Post("/image/generate", api.GenerateImage)
			r.Get("/download-image", api.DownloadImage)
			r.Route("/images", func(r chi.Router) {
				r.Get("/", api.ListImages)
				r.Post("/", api.UploadImage)
				r.Delete("/{id}", api.DeleteImage)
			})

			// Brand kit.
			r.Get("/brand-kit", api.GetBrandKit)
			r.Put("/brand-kit", api.PutBrandKit)

			// User management - admin only.
			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/", users.List)
				r.Post("/", users.Create)
				r.Post("/{id}/reset-2fa", users.ResetTwoFA)
				r.Delete("/{id}", users.Delete)
			})
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
