package backendtest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/domain"
)

// rowFilter is the subset of the table API's horizontal filtering the
// client uses: eq on id and user_id.
type rowFilter struct {
	id     uuid.UUID
	userID uuid.UUID
}

func parseFilter(r *http.Request) (rowFilter, bool) {
	var f rowFilter
	q := r.URL.Query()
	for key, dst := range map[string]*uuid.UUID{"id": &f.id, "user_id": &f.userID} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, ok := strings.CutPrefix(raw, "eq.")
		if !ok {
			return f, false
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return f, false
		}
		*dst = id
	}
	return f, true
}

// visible applies the row policy (owner only) and the request filter.
func (f rowFilter) visible(is domain.Issue, caller uuid.UUID) bool {
	if is.UserID != caller {
		return false
	}
	if f.id != uuid.Nil && is.ID != f.id {
		return false
	}
	if f.userID != uuid.Nil && is.UserID != f.userID {
		return false
	}
	return true
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(r)
	if !ok {
		writeRestError(w, http.StatusBadRequest, "22P02", "invalid input syntax for type uuid")
		return
	}
	caller := callerID(r)

	s.mu.Lock()
	out := []domain.Issue{}
	for _, is := range s.issues {
		if f.visible(is, caller) {
			out = append(out, is)
		}
	}
	s.mu.Unlock()

	switch r.URL.Query().Get("order") {
	case "created_at.desc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case "created_at.asc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInsertIssue(w http.ResponseWriter, r *http.Request) {
	var body domain.NewIssue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeRestError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}
	if body.UserID != callerID(r) {
		writeRestError(w, http.StatusForbidden, "42501", `new row violates row-level security policy for table "issues"`)
		return
	}
	if body.Status == "" {
		body.Status = domain.DefaultStatus
	}
	if !domain.ValidStatus(body.Status) {
		writeRestError(w, http.StatusBadRequest, "23514", `new row for relation "issues" violates check constraint "issues_status_check"`)
		return
	}

	s.mu.Lock()
	s.issues = append(s.issues, domain.Issue{
		ID:          uuid.New(),
		UserID:      body.UserID,
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		CreatedAt:   s.nextCreatedAt(),
	})
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(r)
	if !ok || f.id == uuid.Nil {
		writeRestError(w, http.StatusBadRequest, "21000", "UPDATE requires a WHERE clause")
		return
	}
	var body struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeRestError(w, http.StatusBadRequest, "PGRST102", "Empty or invalid json")
		return
	}
	if !domain.ValidStatus(body.Status) {
		writeRestError(w, http.StatusBadRequest, "23514", `new row for relation "issues" violates check constraint "issues_status_check"`)
		return
	}

	caller := callerID(r)
	s.mu.Lock()
	for i := range s.issues {
		if f.visible(s.issues[i], caller) {
			s.issues[i].Status = body.Status
		}
	}
	s.mu.Unlock()
	// Rows hidden by the policy are silently unaffected, as in the real API.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(r)
	if !ok || f.id == uuid.Nil {
		writeRestError(w, http.StatusBadRequest, "21000", "DELETE requires a WHERE clause")
		return
	}

	caller := callerID(r)
	s.mu.Lock()
	kept := s.issues[:0]
	for _, is := range s.issues {
		if !f.visible(is, caller) {
			kept = append(kept, is)
		}
	}
	s.issues = kept
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
