// Copyright (c) 2026 Lumina Labs. All rights reserved.
// Author: dev@lumina-labs.io

/*
Package idserver is an in-memory implementation of the Lumina identity
service, bundled for development and integration testing.

It implements the exact remote contract the client speaks — registration
with OTP verification, login, password reset, token refresh, profile fetch,
logout, and the two demo resource endpoints — without any external
infrastructure.

Architecture:

  - Handlers: chi router, one handler per endpoint, FastAPI-style
    {"detail": ...} error envelopes to match the production service.
  - Tokens: HS256-signed access tokens plus opaque rotated refresh tokens.
  - OTPs: generated per request, logged for the developer, retrievable via
    [Server.LastOTP] for tests.
  - Rate limiting: per-phone limiter on the OTP-issuing endpoints.

This server is NOT hardened for production use. It exists so `lumina
dev-server` gives a complete local loop with zero setup.
*/
package idserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// # Token Parameters

const (
	// accessTokenTTL is deliberately short so development exercises the
	// renewal path without waiting.
	accessTokenTTL = 15 * time.Minute

	issuer = "lumina-dev"
)

// otpRate allows a small burst of OTP requests per phone number, then one
// every 20 seconds — enough for development, enough to exercise 429 handling.
var otpRate = rate.Every(20 * time.Second)

const otpBurst = 3

// # Server Definition

// Server is the in-memory identity service.
type Server struct {
	store  *memoryStore
	secret []byte
	log    *slog.Logger

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter

	otpMu   sync.Mutex
	lastOTP map[string]string
}

// New constructs a development identity server signing tokens with secret.
func New(secret string, log *slog.Logger) *Server {
	return &Server{
		store:    newMemoryStore(),
		secret:   []byte(secret),
		log:      log,
		limiters: make(map[string]*rate.Limiter),
		lastOTP:  make(map[string]string),
	}
}

// LastOTP returns the most recent code delivered to a phone number.
//
// Development servers have no SMS gateway; codes are logged and retrievable
// here so tests and scripted flows can complete verification.
func (server *Server) LastOTP(phoneNumber string) (string, bool) {
	server.otpMu.Lock()
	defer server.otpMu.Unlock()

	otp, ok := server.lastOTP[phoneNumber]
	return otp, ok
}

// Routes returns the full endpoint surface.
func (server *Server) Routes() chi.Router {
	router := chi.NewRouter()

	// Identity endpoints
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", server.register)
		r.Post("/verify-registration", server.verifyRegistration)
		r.Post("/login", server.login)
		r.Post("/forgot-password", server.forgotPassword)
		r.Post("/reset-password", server.resetPassword)
		r.Post("/refresh", server.refresh)
		r.Post("/logout", server.logout)
		r.Get("/me", server.me)
	})

	// Demo resource endpoints consuming the session
	router.Post("/search", server.search)
	router.Post("/images/generate", server.generateImage)

	return router
}

// # Request/Response Shapes

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type verifyRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type resetRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
	NewPassword string `json:"new_password"`
}

// userPayload is the wire form of an account, matching the client's Profile.
type userPayload struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPayload(user *account) userPayload {
	return userPayload{
		ID:          user.ID,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        user.Role,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
	}
}

// # Handlers

/*
register starts a pending registration and "delivers" an OTP.

POST /auth/register

Response:
  - 200: {message, phone_number, temp_id}
  - 409: Email already registered
  - 429: OTP rate limit exceeded for this phone
*/
func (server *Server) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if !server.decode(writer, request, &input) {
		return
	}

	if server.store.emailTaken(input.Email) {
		server.writeError(writer, http.StatusConflict, "Email is already registered")
		return
	}

	if !server.allowOTP(input.PhoneNumber) {
		server.writeError(writer, http.StatusTooManyRequests, "Too many OTP requests. Try again shortly.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		server.writeError(writer, http.StatusInternalServerError, "Failed to process password")
		return
	}

	pending := &pendingRegistration{
		TempID:       uuid.NewString(),
		Email:        input.Email,
		PasswordHash: string(hash),
		PhoneNumber:  input.PhoneNumber,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		OTP:          newOTP(),
		ExpiresAt:    time.Now().Add(otpTTL),
	}
	server.store.createPending(pending)
	server.deliverOTP(pending.PhoneNumber, pending.OTP)

	server.writeJSON(writer, http.StatusOK, map[string]string{
		"message":      "OTP sent to your phone",
		"phone_number": pending.PhoneNumber,
		"temp_id":      pending.TempID,
	})
}

/*
verifyRegistration completes a pending registration.

POST /auth/verify-registration

The submission is re-validated: the email and password must match what was
registered, mirroring the production service's behavior that forces the
client to resubmit them.

Response:
  - 200: {access_token, refresh_token, token_type, user}
  - 400: Invalid or expired OTP
  - 401: Resubmitted identity does not match the pending registration
*/
func (server *Server) verifyRegistration(writer http.ResponseWriter, request *http.Request) {
	var input verifyRequest
	if !server.decode(writer, request, &input) {
		return
	}

	pending, ok := server.store.findPending(input.PhoneNumber)
	if !ok || pending.OTP != input.OTPCode {
		server.writeError(writer, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	// Re-validate identity + password against the original submission.
	if input.Email != pending.Email ||
		bcrypt.CompareHashAndPassword([]byte(pending.PasswordHash), []byte(input.Password)) != nil {
		server.writeError(writer, http.StatusUnauthorized, "Identity does not match the pending registration")
		return
	}

	user := server.store.promotePending(pending)
	server.issueSession(writer, user)
}

/*
login authenticates an account.

POST /auth/login

Response:
  - 200: {access_token, refresh_token, token_type, user}
  - 401: Invalid email or password
*/
func (server *Server) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if !server.decode(writer, request, &input) {
		return
	}

	user, ok := server.store.findByEmail(input.Email)
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		server.writeError(writer, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	server.issueSession(writer, user)
}

/*
forgotPassword delivers a password-reset OTP.

POST /auth/forgot-password

Response:
  - 200: {message}
  - 404: No account with this phone number
  - 429: OTP rate limit exceeded for this phone
*/
func (server *Server) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotRequest
	if !server.decode(writer, request, &input) {
		return
	}

	if _, ok := server.store.findByPhone(input.PhoneNumber); !ok {
		server.writeError(writer, http.StatusNotFound, "No account with this phone number")
		return
	}

	if !server.allowOTP(input.PhoneNumber) {
		server.writeError(writer, http.StatusTooManyRequests, "Too many OTP requests. Try again shortly.")
		return
	}

	otp := newOTP()
	server.store.setResetOTP(input.PhoneNumber, otp)
	server.deliverOTP(input.PhoneNumber, otp)

	server.writeJSON(writer, http.StatusOK, map[string]string{
		"message": "OTP sent to your phone",
	})
}

/*
resetPassword completes the forgot-password flow.

POST /auth/reset-password

Response:
  - 200: {message}
  - 400: Invalid or expired OTP
  - 404: No account with this phone number
*/
func (server *Server) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetRequest
	if !server.decode(writer, request, &input) {
		return
	}

	user, ok := server.store.findByPhone(input.PhoneNumber)
	if !ok {
		server.writeError(writer, http.StatusNotFound, "No account with this phone number")
		return
	}

	if !server.store.consumeResetOTP(input.PhoneNumber, input.OTPCode) {
		server.writeError(writer, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		server.writeError(writer, http.StatusInternalServerError, "Failed to process password")
		return
	}

	server.store.updatePassword(user.ID, string(hash))

	// Force re-login everywhere after a password change.
	server.store.revokeSession(user.ID)

	server.writeJSON(writer, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}

/*
refresh rotates the token pair.

POST /auth/refresh

The bearer is the current access token, accepted even when expired — the
live refresh token on file is what authorizes the rotation.

Response:
  - 200: {access_token, refresh_token, token_type, user}
  - 401: Unknown token or revoked session
*/
func (server *Server) refresh(writer http.ResponseWriter, request *http.Request) {
	user, ok := server.userFromBearer(request, true)
	if !ok || !server.store.hasSession(user.ID) {
		server.writeError(writer, http.StatusUnauthorized, "Session is no longer valid")
		return
	}

	server.issueSession(writer, user)
}

// logout revokes the live session. Idempotent.
//
// POST /auth/logout
func (server *Server) logout(writer http.ResponseWriter, request *http.Request) {
	user, ok := server.userFromBearer(request, false)
	if !ok {
		server.writeError(writer, http.StatusUnauthorized, "Authentication required")
		return
	}

	server.store.revokeSession(user.ID)
	writer.WriteHeader(http.StatusNoContent)
}

// me returns the authenticated user's full profile.
//
// GET /auth/me
func (server *Server) me(writer http.ResponseWriter, request *http.Request) {
	user, ok := server.userFromBearer(request, false)
	if !ok {
		server.writeError(writer, http.StatusUnauthorized, "Authentication required")
		return
	}

	server.writeJSON(writer, http.StatusOK, toPayload(user))
}

// search returns canned results for an authenticated query.
//
// POST /search
func (server *Server) search(writer http.ResponseWriter, request *http.Request) {
	if _, ok := server.userFromBearer(request, false); !ok {
		server.writeError(writer, http.StatusUnauthorized, "Authentication required")
		return
	}

	var input struct {
		Query string `json:"query"`
	}
	if !server.decode(writer, request, &input) {
		return
	}

	server.writeJSON(writer, http.StatusOK, map[string]interface{}{
		"results": []map[string]string{
			{
				"id":          uuid.NewString(),
				"title":       fmt.Sprintf("Result for %q", input.Query),
				"description": "Canned development search result",
				"url":         "https://example.com/result",
			},
		},
	})
}

// generateImage returns a placeholder image URL for an authenticated prompt.
//
// POST /images/generate
func (server *Server) generateImage(writer http.ResponseWriter, request *http.Request) {
	if _, ok := server.userFromBearer(request, false); !ok {
		server.writeError(writer, http.StatusUnauthorized, "Authentication required")
		return
	}

	var input struct {
		Prompt string `json:"prompt"`
	}
	if !server.decode(writer, request, &input) {
		return
	}

	server.writeJSON(writer, http.StatusOK, map[string]string{
		"image_url": "https://images.example.com/" + uuid.NewString() + ".png",
		"prompt":    input.Prompt,
	})
}

// # Token Plumbing

// devClaims is the access token payload.
type devClaims struct {
	jwt.RegisteredClaims
	Email string `json:"eml"`
}

// issueSession rotates the refresh token, signs a fresh access token, and
// writes the standard token-issuing response body.
func (server *Server) issueSession(writer http.ResponseWriter, user *account) {
	now := time.Now()
	claims := devClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
		Email: user.Email,
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(server.secret)
	if err != nil {
		server.writeError(writer, http.StatusInternalServerError, "Failed to sign token")
		return
	}

	refreshToken := server.store.rotateRefresh(user.ID)

	server.writeJSON(writer, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"user":          toPayload(user),
	})
}

// userFromBearer resolves the account behind the Authorization header.
//
// allowExpired relaxes claim validation for the refresh endpoint, where an
// expired access token is the expected input.
func (server *Server) userFromBearer(request *http.Request, allowExpired bool) (*account, bool) {
	header := request.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, false
	}

	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	claims := &devClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return server.secret, nil
	}, options...)
	if err != nil || !parsed.Valid {
		return nil, false
	}

	return server.store.findByID(claims.Subject)
}

// # OTP Delivery & Rate Limiting

// allowOTP enforces the per-phone limiter on OTP-issuing endpoints.
func (server *Server) allowOTP(phoneNumber string) bool {
	server.limMu.Lock()
	defer server.limMu.Unlock()

	limiter, ok := server.limiters[phoneNumber]
	if !ok {
		limiter = rate.NewLimiter(otpRate, otpBurst)
		server.limiters[phoneNumber] = limiter
	}
	return limiter.Allow()
}

// deliverOTP stands in for the SMS gateway: log it, remember it for tests.
func (server *Server) deliverOTP(phoneNumber, otp string) {
	server.otpMu.Lock()
	server.lastOTP[phoneNumber] = otp
	server.otpMu.Unlock()

	server.log.Info("idserver: OTP issued",
		slog.String("phone_number", phoneNumber),
		slog.String("otp", otp),
	)
}

// # HTTP Helpers

func (server *Server) decode(writer http.ResponseWriter, request *http.Request, target interface{}) bool {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		server.writeError(writer, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

func (server *Server) writeJSON(writer http.ResponseWriter, status int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

// writeError emits the FastAPI-style error envelope the client expects.
func (server *Server) writeError(writer http.ResponseWriter, status int, detail string) {
	server.writeJSON(writer, status, map[string]string{"detail": detail})
}
