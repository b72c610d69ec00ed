package backendtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/domain"
)

// accessClaims mirrors the claims the hosted auth service puts in its
// access tokens.
type accessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type tokenPayload struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
	User         domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAuthError(w, http.StatusBadRequest, "bad_json", "Could not parse request body as JSON")
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if !strings.Contains(email, "@") {
		writeAuthError(w, http.StatusBadRequest, "validation_failed", "Unable to validate email address: invalid format")
		return
	}
	if len(body.Password) < minPassword {
		writeAuthError(w, http.StatusUnprocessableEntity, "weak_password", fmt.Sprintf("Password should be at least %d characters.", minPassword))
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		writeAuthError(w, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
		return
	}
	a := &account{id: uuid.New(), email: email, password: body.Password, confirmed: !s.requireConfirmation}
	s.accounts[email] = a
	s.mu.Unlock()

	if !a.confirmed {
		writeJSON(w, http.StatusOK, domain.User{ID: a.id, Email: a.email})
		return
	}
	// Auto-confirmed projects answer sign up with a full session.
	tok, err := s.issueSession(a)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "unexpected_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	switch grant := r.URL.Query().Get("grant_type"); grant {
	case "password":
		s.passwordGrant(w, r)
	case "refresh_token":
		s.refreshGrant(w, r)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant_type "+grant)
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Could not parse request body as JSON")
		return
	}

	s.mu.Lock()
	var a account
	found, ok := s.accounts[strings.ToLower(strings.TrimSpace(body.Email))]
	if ok {
		a = *found
	}
	s.mu.Unlock()
	if !ok || a.password != body.Password {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "Invalid login credentials")
		return
	}
	if !a.confirmed {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "Email not confirmed")
		return
	}

	tok, err := s.issueSession(&a)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Could not parse request body as JSON")
		return
	}

	s.mu.Lock()
	sid, ok := s.refreshTokens[body.RefreshToken]
	var a *account
	if ok {
		// Rotation: a refresh token is single use.
		delete(s.refreshTokens, body.RefreshToken)
		a = s.accountByIDLocked(s.sessions[sid])
	}
	s.mu.Unlock()
	if !ok || a == nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "Invalid Refresh Token: Refresh Token Not Found")
		return
	}

	tok, err := s.mintTokens(a, sid)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, err := s.verify(bearerToken(r))
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: "+err.Error())
		return
	}

	s.mu.Lock()
	_, live := s.sessions[claims.SessionID]
	if live {
		s.dropSessionLocked(claims.SessionID)
	}
	s.mu.Unlock()
	if !live {
		writeAuthError(w, http.StatusForbidden, "session_not_found", "Session from session_id claim in JWT does not exist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	claims, err := s.verify(bearerToken(r))
	if err != nil {
		writeAuthError(w, http.StatusUnauthorized, "bad_jwt", "invalid JWT: "+err.Error())
		return
	}

	s.mu.Lock()
	_, live := s.sessions[claims.SessionID]
	uid, _ := uuid.Parse(claims.Subject)
	a := s.accountByIDLocked(uid)
	s.mu.Unlock()
	if !live {
		writeAuthError(w, http.StatusForbidden, "session_not_found", "Session from session_id claim in JWT does not exist")
		return
	}
	if a == nil {
		writeAuthError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, domain.User{ID: a.id, Email: a.email})
}

// issueSession opens a new session for a and mints its first token pair.
func (s *Server) issueSession(a *account) (*tokenPayload, error) {
	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = a.id
	s.mu.Unlock()
	return s.mintTokens(a, sid)
}

func (s *Server) mintTokens(a *account, sid string) (*tokenPayload, error) {
	s.mu.Lock()
	now := s.now()
	ttl := s.accessTTL
	s.mu.Unlock()

	exp := now.Add(ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.id.String(),
			Issuer:    s.URL + "/auth/v1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:     a.email,
		Role:      "authenticated",
		SessionID: sid,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refresh] = sid
	s.mu.Unlock()

	return &tokenPayload{
		AccessToken:  signed,
		TokenType:    "bearer",
		ExpiresIn:    int64(ttl / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         domain.User{ID: a.id, Email: a.email},
	}, nil
}

// verify checks the signature and expiry of an access token.
func (s *Server) verify(raw string) (*accessClaims, error) {
	if raw == "" {
		return nil, errors.New("missing token")
	}
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (s *Server) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func (s *Server) accountByIDLocked(id uuid.UUID) *account {
	for _, a := range s.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
