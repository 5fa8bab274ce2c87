package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/planauth/internal/model"
	"github.com/hitoshi/planauth/internal/repository"
)

// memStore はユニーク制約を再現するインメモリのストア。
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	accounts map[string]*model.LinkedAccount
	sessions map[string]*model.Session
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		accounts: make(map[string]*model.LinkedAccount),
		sessions: make(map[string]*model.Session),
	}
}

func accountKey(provider, providerID string) string {
	return provider + "\x00" + providerID
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func (s *memStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *memStore) accountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// --- UserRepository ---

type memUserRepo struct{ *memStore }

func (r memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r memUserRepo) insertLocked(user *model.User) error {
	if _, ok := r.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, u := range r.users {
		if u.Email == user.Email || u.StripeCustomerID == user.StripeCustomerID {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r memUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(user)
}

func (r memUserRepo) CreateWithLinkedAccount(_ context.Context, user *model.User, account *model.LinkedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := memAccountRepo(r).checkLocked(account); err != nil {
		return err
	}
	if err := r.insertLocked(user); err != nil {
		return err
	}
	c := *account
	r.accounts[accountKey(account.ProviderName, account.ProviderID)] = &c
	return nil
}

func (r memUserRepo) UpdateEmail(_ context.Context, id, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range r.users {
		if other.ID != id && other.Email == email {
			return repository.ErrDuplicate
		}
	}
	u.Email = email
	return nil
}

func (r memUserRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	for k, a := range r.accounts {
		if a.UserID == id {
			delete(r.accounts, k)
		}
	}
	for k, s := range r.sessions {
		if s.UserID == id {
			delete(r.sessions, k)
		}
	}
	return nil
}

// --- LinkedAccountRepository ---

type memAccountRepo struct{ *memStore }

func (r memAccountRepo) checkLocked(account *model.LinkedAccount) error {
	if _, ok := r.accounts[accountKey(account.ProviderName, account.ProviderID)]; ok {
		return repository.ErrDuplicate
	}
	for _, a := range r.accounts {
		if a.UserID == account.UserID && a.ProviderName == account.ProviderName {
			return repository.ErrDuplicate
		}
	}
	return nil
}

func (r memAccountRepo) FindByProvider(_ context.Context, provider, providerID string) (*model.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountKey(provider, providerID)]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

func (r memAccountRepo) Create(_ context.Context, account *model.LinkedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[account.UserID]; !ok {
		return fmt.Errorf("foreign key violation: user %s", account.UserID)
	}
	if err := r.checkLocked(account); err != nil {
		return err
	}
	c := *account
	r.accounts[accountKey(account.ProviderName, account.ProviderID)] = &c
	return nil
}

func (r memAccountRepo) ListByUserID(_ context.Context, userID string) ([]*model.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.LinkedAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- SessionRepository ---

type memSessionRepo struct{ *memStore }

func (r memSessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *session
	r.sessions[session.ID] = &c
	return nil
}

func (r memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (r memSessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r memSessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, k)
		}
	}
	return nil
}

func (r memSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, s := range r.sessions {
		if !before.Before(s.ExpiresAt) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

var (
	_ repository.UserRepository          = memUserRepo{}
	_ repository.LinkedAccountRepository = memAccountRepo{}
	_ repository.SessionRepository       = memSessionRepo{}
)

// --- collaborators ---

// plainHasher はテスト用の可逆なハッシュ。bcryptのコストを避ける。
type plainHasher struct {
	hashErr error
}

func (h plainHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h plainHasher) Verify(hash, password string) bool {
	return hash == "hashed:"+password
}

// fakeCustomers は作成した顧客IDを連番で払い出す。
type fakeCustomers struct {
	mu      sync.Mutex
	created []string
	err     error
}

func (c *fakeCustomers) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("cus_%d", len(c.created)+1)
	c.created = append(c.created, id)
	return id, nil
}

// fakeSigner は署名の代わりに接頭辞を付ける。
type fakeSigner struct{}

func (fakeSigner) Sign(sessionID string, _ time.Time) (string, error) {
	return "signed." + sessionID, nil
}

func (fakeSigner) Verify(token string) (string, error) {
	const prefix = "signed."
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", ErrInvalidToken
	}
	return token[len(prefix):], nil
}

// fakeProvider は固定のプロフィールを返すOAuthProvider。
type fakeProvider struct {
	name        string
	profile     *OAuthProfile
	exchangeErr error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "token-" + code}, nil
}

func (p *fakeProvider) FetchProfile(_ context.Context, _ *oauth2.Token) (*OAuthProfile, error) {
	return p.profile, nil
}

// fixedClock はテスト用の時計。
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store     *memStore
	customers *fakeCustomers
	clock     *fixedClock
	resolver  *Resolver
	sessions  *SessionManager
}

func newTestEnv() *testEnv {
	store := newMemStore()
	customers := &fakeCustomers{}
	clock := &fixedClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	resolver := NewResolver(memUserRepo{store}, memAccountRepo{store}, plainHasher{}, customers)
	resolver.now = clock.Now

	sessions := NewSessionManager(memSessionRepo{store}, memUserRepo{store}, fakeSigner{}, 0)
	sessions.now = clock.Now

	return &testEnv{
		store:     store,
		customers: customers,
		clock:     clock,
		resolver:  resolver,
		sessions:  sessions,
	}
}
