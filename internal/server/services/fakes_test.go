package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/logging"
	"github.com/dmitrijs2005/recordapi/internal/server/auth"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/datarecords"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/users"
)

// memStore backs the fake repositories. Transactions are not modelled here;
// sqlmock checks that Begin/Commit/Rollback happen where expected.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*models.User
	tokens  map[string]*models.RefreshToken
	records map[int64]*models.DataRecord

	// err, when set, is returned by every repository call.
	err error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int64]*models.User{},
		tokens:  map[string]*models.RefreshToken{},
		records: map[int64]*models.DataRecord{},
	}
}

func (m *memStore) id() int64 { m.nextID++; return m.nextID }

type fakeRepoManager struct{ s *memStore }

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return (*fakeUsers)(f.s) }
func (f *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return (*fakeTokens)(f.s)
}
func (f *fakeRepoManager) DataRecords(dbx.DBTX) datarecords.Repository { return (*fakeRecords)(f.s) }

// --- users ---

type fakeUsers memStore

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := *u
	c.ID = (*memStore)(f).id()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	f.users[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByUsername(_ context.Context, name string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Username == name })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) mutate(id int64, fn func(u *models.User)) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	c := *u
	return &c, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id int64, upd models.ProfileUpdate) (*models.User, error) {
	return f.mutate(id, func(u *models.User) {
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.FullName != nil {
			u.FullName = upd.FullName
		}
		if upd.ClearFullName {
			u.FullName = nil
		}
	})
}

func (f *fakeUsers) AdminUpdate(_ context.Context, id int64, upd models.AdminUserUpdate) (*models.User, error) {
	return f.mutate(id, func(u *models.User) {
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.FullName != nil {
			u.FullName = upd.FullName
		}
		if upd.ClearFullName {
			u.FullName = nil
		}
		if upd.IsActive != nil {
			u.IsActive = *upd.IsActive
		}
		if upd.IsSuperuser != nil {
			u.IsSuperuser = *upd.IsSuperuser
		}
	})
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	_, err := f.mutate(id, func(u *models.User) { u.HashedPassword = hash })
	return err
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	_, err := f.mutate(id, func(u *models.User) { u.LastLoginAt = &at })
	return err
}

func (f *fakeUsers) List(_ context.Context, p models.Page) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	all := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		c := *u
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, p), nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), f.err
}

func window[T any](all []T, p models.Page) []T {
	if p.Skip >= len(all) {
		return []T{}
	}
	end := min(p.Skip+p.Limit, len(all))
	return all[p.Skip:end]
}

// --- refresh tokens ---

type fakeTokens memStore

func (f *fakeTokens) Create(_ context.Context, t *models.RefreshToken) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := *t
	c.ID = (*memStore)(f).id()
	c.IsActive = true
	c.CreatedAt = time.Now()
	f.tokens[c.Token] = &c
	out := c
	return &out, nil
}

func (f *fakeTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTokens) deactivate(t *models.RefreshToken) {
	now := time.Now()
	t.IsActive = false
	t.RevokedAt = &now
}

func (f *fakeTokens) Consume(_ context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tokens[token]
	if !ok || !t.IsActive {
		return nil, common.ErrorNotFound
	}
	before := *t
	f.deactivate(t)
	return &before, nil
}

func (f *fakeTokens) Revoke(_ context.Context, userID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	t, ok := f.tokens[token]
	if !ok || !t.IsActive || t.UserID != userID {
		return common.ErrorNotFound
	}
	f.deactivate(t)
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, t := range f.tokens {
		if t.UserID == userID && t.IsActive {
			f.deactivate(t)
			n++
		}
	}
	return n, nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, t := range f.tokens {
		if t.ExpiresAt.Before(before) {
			delete(f.tokens, k)
			n++
		}
	}
	return n, f.err
}

func (f *fakeTokens) active(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tokens {
		if t.UserID == userID && t.IsActive {
			n++
		}
	}
	return n
}

// --- data records ---

type fakeRecords memStore

func (f *fakeRecords) Create(_ context.Context, r *models.DataRecord) (*models.DataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := *r
	c.ID = (*memStore)(f).id()
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	f.records[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeRecords) get(match func(*models.DataRecord) bool) (*models.DataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.records {
		if match(r) {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRecords) GetByID(_ context.Context, id int64) (*models.DataRecord, error) {
	return f.get(func(r *models.DataRecord) bool { return r.ID == id })
}

func (f *fakeRecords) GetByName(_ context.Context, name string) (*models.DataRecord, error) {
	return f.get(func(r *models.DataRecord) bool { return r.Name == name })
}

func (f *fakeRecords) filtered(flt models.DataRecordFilter) []*models.DataRecord {
	var out []*models.DataRecord
	for _, r := range f.records {
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if flt.NameSearch != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(flt.NameSearch)) {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeRecords) List(_ context.Context, flt models.DataRecordFilter) ([]*models.DataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return window(f.filtered(flt), flt.Page), nil
}

func (f *fakeRecords) Count(_ context.Context, flt models.DataRecordFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.filtered(flt))), f.err
}

func (f *fakeRecords) Update(_ context.Context, id int64, upd models.DataRecordUpdate) (*models.DataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = upd.Description
	}
	if upd.ClearDescription {
		r.Description = nil
	}
	if upd.Config != nil && *upd.Config != nil {
		r.Config = *upd.Config
	}
	if upd.ClearConfig {
		r.Config = nil
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	r.UpdatedAt = time.Now()
	c := *r
	return &c, nil
}

func (f *fakeRecords) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.records[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.records, id)
	return nil
}

// --- publisher ---

type fakePublisher struct {
	mu        sync.Mutex
	published []int64
	removed   []int64
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, rec *models.DataRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, rec.ID)
	return p.err
}

func (p *fakePublisher) Remove(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, id)
	return p.err
}

// --- wiring ---

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	store  *memStore
	mock   sqlmock.Sqlmock
	db     *sql.DB
	hasher *auth.Hasher
	issuer *auth.Issuer
	tokens *TokenService
	auth   *AuthService
	data   *DataService
	pub    *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	store := newMemStore()
	rm := &fakeRepoManager{s: store}
	hasher := auth.NewHasher(bcrypt.MinCost)
	issuer := auth.NewIssuer(testSecret, 30*time.Minute)
	tokens := NewTokenService(db, rm, issuer, 7*24*time.Hour)
	pub := &fakePublisher{}

	return &fixture{
		store:  store,
		mock:   mock,
		db:     db,
		hasher: hasher,
		issuer: issuer,
		tokens: tokens,
		auth:   NewAuthService(db, rm, hasher, tokens, logging.Nop()),
		data:   NewDataService(db, rm, pub, logging.Nop()),
		pub:    pub,
	}
}

// seedUser stores a user directly, bypassing Register.
func (f *fixture) seedUser(t *testing.T, username, password string, active, superuser bool) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := (*fakeUsers)(f.store).Create(context.Background(), &models.User{
		Username:       username,
		Email:          username + "@x.io",
		HashedPassword: hash,
		IsActive:       active,
		IsSuperuser:    superuser,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) expectTx(commit bool) {
	f.mock.ExpectBegin()
	if commit {
		f.mock.ExpectCommit()
	} else {
		f.mock.ExpectRollback()
	}
}
