package keylinetest

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/keylineid/keyline-go/pkg/idx"
)

// store holds all provider state in memory behind one mutex. Load methods
// return copies so handlers never read a record another request is mutating;
// every mutation goes through a store method that takes the lock.
type store struct {
	mu sync.Mutex

	users    map[string]*userRecord // keyed by user ID
	emails   map[string]string      // lowercased email -> user ID
	sessions map[string]*sessionRecord
	clients  map[string]*clientRecord
	codes    map[string]*authCodeRecord // keyed by code fingerprint
	refresh  map[string]*refreshRecord  // keyed by token fingerprint
	mfa      map[string]*mfaChallengeRecord
}

func newStore() *store {
	return &store{
		users:    make(map[string]*userRecord),
		emails:   make(map[string]string),
		sessions: make(map[string]*sessionRecord),
		clients:  make(map[string]*clientRecord),
		codes:    make(map[string]*authCodeRecord),
		refresh:  make(map[string]*refreshRecord),
		mfa:      make(map[string]*mfaChallengeRecord),
	}
}

type userRecord struct {
	ID            idx.ID
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool

	// MFASecret is set at enrollment; MFAEnabled flips at activation.
	MFAEnabled bool
	MFASecret  string

	// BackupCodes holds fingerprints of unused recovery codes.
	BackupCodes map[string]struct{}

	CreatedAt time.Time
}

func (u *userRecord) clone() *userRecord {
	c := *u
	c.BackupCodes = make(map[string]struct{}, len(u.BackupCodes))
	for k := range u.BackupCodes {
		c.BackupCodes[k] = struct{}{}
	}
	return &c
}

type sessionRecord struct {
	ID         idx.ID
	UserID     idx.ID
	CreatedAt  time.Time
	LastSeenAt time.Time
	UserAgent  string
	IP         string
	Revoked    bool
}

func (s *sessionRecord) clone() *sessionRecord {
	c := *s
	return &c
}

type clientRecord struct {
	ID           string
	SecretHash   string // empty means a public client
	RedirectURIs []string
}

type authCodeRecord struct {
	Hash                string // fingerprint of the code, never the code itself
	ClientID            string
	RedirectURI         string
	UserID              idx.ID
	SessionID           idx.ID
	Scope               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
}

type refreshRecord struct {
	Hash      string // fingerprint of the opaque token
	UserID    idx.ID
	ClientID  string
	SessionID idx.ID
	Scope     string
	ExpiresAt time.Time
	Revoked   bool
}

type mfaChallengeRecord struct {
	Hash      string // fingerprint of the challenge token
	UserID    idx.ID
	Attempts  int
	ExpiresAt time.Time
}

// --- users ---

func (st *store) createUser(email, name, passwordHash string, now time.Time) (*userRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	key := lowerEmail(email)
	if _, taken := st.emails[key]; taken {
		return nil, false
	}

	u := &userRecord{
		ID:            idx.New(),
		Email:         email,
		Name:          name,
		PasswordHash:  passwordHash,
		EmailVerified: true,
		BackupCodes:   make(map[string]struct{}),
		CreatedAt:     now,
	}
	st.users[u.ID.String()] = u
	st.emails[key] = u.ID.String()
	return u.clone(), true
}

func (st *store) userByEmail(email string) (*userRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id, ok := st.emails[lowerEmail(email)]
	if !ok {
		return nil, false
	}
	return st.users[id].clone(), true
}

func (st *store) userByID(id string) (*userRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	u, ok := st.users[id]
	if !ok {
		return nil, false
	}
	return u.clone(), true
}

// updateUser applies fn to the live record under the lock. It reports
// whether the user exists.
func (st *store) updateUser(id string, fn func(*userRecord)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	u, ok := st.users[id]
	if !ok {
		return false
	}
	fn(u)
	return true
}

// consumeBackupCode removes the code with the given fingerprint and reports
// whether it existed. Each code works exactly once.
func (st *store) consumeBackupCode(userID, fingerprint string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	u, ok := st.users[userID]
	if !ok {
		return false
	}
	if _, ok := u.BackupCodes[fingerprint]; !ok {
		return false
	}
	delete(u.BackupCodes, fingerprint)
	return true
}

// --- sessions ---

func (st *store) createSession(userID idx.ID, userAgent, ip string, now time.Time) *sessionRecord {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := &sessionRecord{
		ID:         idx.New(),
		UserID:     userID,
		CreatedAt:  now,
		LastSeenAt: now,
		UserAgent:  userAgent,
		IP:         ip,
	}
	st.sessions[sess.ID.String()] = sess
	return sess.clone()
}

func (st *store) session(id string) (*sessionRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

func (st *store) touchSession(id string, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[id]; ok {
		sess.LastSeenAt = now
	}
}

func (st *store) revokeSession(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[id]
	if !ok || sess.Revoked {
		return false
	}
	sess.Revoked = true
	return true
}

// revokeOtherSessions revokes every live session of the user except keep and
// returns how many it revoked.
func (st *store) revokeOtherSessions(userID idx.ID, keep string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, sess := range st.sessions {
		if sess.UserID == userID && !sess.Revoked && id != keep {
			sess.Revoked = true
			n++
		}
	}
	return n
}

// sessionsForUser returns the user's live sessions ordered oldest first.
// ULIDs sort chronologically, so ordering by ID is ordering by creation.
func (st *store) sessionsForUser(userID idx.ID) []*sessionRecord {
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []*sessionRecord
	for _, sess := range st.sessions {
		if sess.UserID == userID && !sess.Revoked {
			out = append(out, sess.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- clients ---

func (st *store) putClient(c *clientRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.clients[c.ID] = c
}

func (st *store) client(id string) (*clientRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	c, ok := st.clients[id]
	if !ok {
		return nil, false
	}
	cc := *c
	cc.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	return &cc, true
}

// --- authorization codes ---

func (st *store) putAuthCode(rec *authCodeRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.codes[rec.Hash] = rec
}

// consumeAuthCode atomically looks up a code by fingerprint and marks it
// used. A second consume of the same code fails, as does an expired one.
func (st *store) consumeAuthCode(hash string, now time.Time) (*authCodeRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.codes[hash]
	if !ok || rec.Used || now.After(rec.ExpiresAt) {
		return nil, false
	}
	rec.Used = true
	cc := *rec
	return &cc, true
}

// --- refresh tokens ---

func (st *store) putRefresh(rec *refreshRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.refresh[rec.Hash] = rec
}

// rotateRefresh atomically revokes a live refresh token and returns its
// record, so exactly one caller wins a concurrent double-spend.
func (st *store) rotateRefresh(hash string, now time.Time) (*refreshRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.refresh[hash]
	if !ok || rec.Revoked || now.After(rec.ExpiresAt) {
		return nil, false
	}
	rec.Revoked = true
	cc := *rec
	return &cc, true
}

// --- MFA challenges ---

func (st *store) putMFAChallenge(rec *mfaChallengeRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.mfa[rec.Hash] = rec
}

func (st *store) mfaChallenge(hash string, now time.Time) (*mfaChallengeRecord, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.mfa[hash]
	if !ok || now.After(rec.ExpiresAt) {
		return nil, false
	}
	cc := *rec
	return &cc, true
}

// bumpMFAAttempts increments the failed-attempt counter and returns the new
// count. The challenge is deleted once the limit is hit.
func (st *store) bumpMFAAttempts(hash string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok := st.mfa[hash]
	if !ok {
		return maxMFAAttempts
	}
	rec.Attempts++
	if rec.Attempts >= maxMFAAttempts {
		delete(st.mfa, hash)
	}
	return rec.Attempts
}

func (st *store) deleteMFAChallenge(hash string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.mfa, hash)
}

func lowerEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
