package keylinetest

import (
	"net/http"

	"github.com/keylineid/keyline-go/pkg/httpx"
	"github.com/keylineid/keyline-go/pkg/keyline"
)

type sessionsEnvelope struct {
	Sessions []keyline.Session `json:"sessions"`
}

type revokeSessionBody struct {
	SessionID string `json:"session_id"`
}

type revokedEnvelope struct {
	Revoked int `json:"revoked"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	u, sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	records := s.store.sessionsForUser(u.ID)
	out := make([]keyline.Session, 0, len(records))
	for _, rec := range records {
		out = append(out, sessionJSON(rec, rec.ID == sess.ID))
	}
	httpx.WriteJSON(w, http.StatusOK, sessionsEnvelope{Sessions: out})
}

func (s *Server) handleSessionCurrent(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	current := sessionJSON(sess, true)
	httpx.WriteJSON(w, http.StatusOK, keyline.SessionCheck{Valid: true, Session: &current})
}

func (s *Server) handleSessionRevoke(w http.ResponseWriter, r *http.Request) {
	u, _, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var body revokeSessionBody
	if !decodeJSON(w, r, &body) {
		return
	}

	// Another user's session ID answers 404 exactly like a nonexistent one.
	target, found := s.store.session(body.SessionID)
	if !found || target.UserID != u.ID {
		httpx.WriteError(w, http.StatusNotFound, "NotFound", "session not found")
		return
	}
	s.store.revokeSession(body.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionRevokeOthers(w http.ResponseWriter, r *http.Request) {
	u, sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	n := s.store.revokeOtherSessions(u.ID, sess.ID.String())
	httpx.WriteJSON(w, http.StatusOK, revokedEnvelope{Revoked: n})
}

func sessionJSON(rec *sessionRecord, current bool) keyline.Session {
	return keyline.Session{
		ID:         rec.ID.String(),
		UserID:     rec.UserID.String(),
		CreatedAt:  rec.CreatedAt,
		LastSeenAt: rec.LastSeenAt,
		UserAgent:  rec.UserAgent,
		IP:         rec.IP,
		Current:    current,
	}
}
