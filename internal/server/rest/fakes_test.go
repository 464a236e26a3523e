package rest

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/services"
)

// fakeAuth keeps users in memory. Methods without a hook behave like a
// minimal happy-path implementation.
type fakeAuth struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	nextID int64

	loginFn   func(username, password string) (*models.TokenPair, error)
	refreshFn func(token string) (*models.TokenPair, error)
	logoutFn  func(p *models.User, token string) error
	changeFn  func(id int64, current, next string) error
	profileFn func(id int64) (*models.User, error)
	issue     func(u *models.User) string

	lastMeta models.ClientMeta
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[int64]*models.User{}}
}

func (f *fakeAuth) add(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	f.users[u.ID] = &u
	return &u
}

func (f *fakeAuth) byName(name string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == name {
			return u
		}
	}
	return nil
}

func (f *fakeAuth) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	if in.Password == "short" {
		return nil, common.ErrWeakPassword
	}
	if f.byName(in.Username) != nil {
		return nil, common.ErrUsernameTaken
	}
	return f.add(models.User{Username: in.Username, Email: in.Email, FullName: in.FullName, HashedPassword: in.Password, IsActive: true}), nil
}

func (f *fakeAuth) Login(_ context.Context, username, password string, meta models.ClientMeta) (*models.TokenPair, error) {
	f.lastMeta = meta
	if f.loginFn != nil {
		return f.loginFn(username, password)
	}
	u := f.byName(username)
	if u == nil || u.HashedPassword != password {
		return nil, common.ErrInvalidCredentials
	}
	return &models.TokenPair{AccessToken: f.issue(u), RefreshToken: "refresh-" + u.Username, TokenType: "bearer", ExpiresIn: 1800}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string, _ models.ClientMeta) (*models.TokenPair, error) {
	return f.refreshFn(token)
}

func (f *fakeAuth) Logout(_ context.Context, p *models.User, token string) error {
	if f.logoutFn != nil {
		return f.logoutFn(p, token)
	}
	return nil
}

func (f *fakeAuth) LogoutAll(context.Context, *models.User) (int64, error) { return 3, nil }

func (f *fakeAuth) GetProfile(_ context.Context, id int64) (*models.User, error) {
	if f.profileFn != nil {
		return f.profileFn(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeAuth) UpdateProfile(_ context.Context, id int64, upd models.ProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	if upd.Email != nil {
		for _, o := range f.users {
			if o.Email == *upd.Email && o.ID != id {
				return nil, common.ErrEmailTaken
			}
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = upd.FullName
	}
	if upd.ClearFullName {
		u.FullName = nil
	}
	c := *u
	return &c, nil
}

func (f *fakeAuth) ChangePassword(_ context.Context, id int64, current, next string) error {
	return f.changeFn(id, current, next)
}

func (f *fakeAuth) ListUsers(_ context.Context, _ *models.User, p models.Page) ([]*models.User, int64, models.Page, error) {
	p, err := services.NormalizePage(p)
	if err != nil {
		return nil, 0, p, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(f.users))
	for id := int64(1); id <= f.nextID; id++ {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	total := int64(len(out))
	if p.Skip >= len(out) {
		return nil, total, p, nil
	}
	return out[p.Skip:min(p.Skip+p.Limit, len(out))], total, p, nil
}

func (f *fakeAuth) GetUser(ctx context.Context, _ *models.User, id int64) (*models.User, error) {
	return f.GetProfile(ctx, id)
}

func (f *fakeAuth) AdminUpdateUser(_ context.Context, _ *models.User, id int64, upd models.AdminUserUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	c := *u
	return &c, nil
}

func (f *fakeAuth) RevokeUserTokens(_ context.Context, _ *models.User, id int64) (int64, error) {
	if _, ok := f.users[id]; !ok {
		return 0, common.ErrUserNotFound
	}
	return 2, nil
}

// fakeData is an in-memory record store.
type fakeData struct {
	mu      sync.Mutex
	records map[int64]*models.DataRecord
	nextID  int64
	lastFlt models.DataRecordFilter
	lastUpd models.DataRecordUpdate
	listErr error
}

func newFakeData() *fakeData { return &fakeData{records: map[int64]*models.DataRecord{}} }

func (f *fakeData) Create(_ context.Context, p *models.User, in services.DataInput) (*models.DataRecord, error) {
	if p == nil {
		return nil, common.ErrorUnauthorized
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Name == in.Name {
			return nil, common.ErrNameTaken
		}
	}
	if in.Status == "" {
		in.Status = models.StatusActive
	}
	f.nextID++
	r := &models.DataRecord{ID: f.nextID, Name: in.Name, Description: in.Description, Config: in.Config, Status: in.Status,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.records[r.ID] = r
	return r, nil
}

func (f *fakeData) Get(_ context.Context, _ *models.User, id int64) (*models.DataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeData) List(_ context.Context, _ *models.User, flt models.DataRecordFilter) (*services.RecordPage, error) {
	f.lastFlt = flt
	if f.listErr != nil {
		return nil, f.listErr
	}
	page, err := services.NormalizePage(flt.Page)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var data []*models.DataRecord
	for id := f.nextID; id >= 1; id-- {
		if r, ok := f.records[id]; ok && (flt.Status == "" || r.Status == flt.Status) {
			data = append(data, r)
		}
	}
	return &services.RecordPage{Total: int64(len(data)), Skip: page.Skip, Limit: page.Limit, Data: data}, nil
}

func (f *fakeData) Update(_ context.Context, p *models.User, id int64, upd models.DataRecordUpdate) (*models.DataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpd = upd
	r, ok := f.records[id]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	if upd.Description != nil {
		r.Description = upd.Description
	}
	if upd.ClearDescription {
		r.Description = nil
	}
	if upd.Config != nil {
		r.Config = *upd.Config
	}
	if upd.ClearConfig {
		r.Config = nil
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	return r, nil
}

func (f *fakeData) Delete(_ context.Context, _ *models.User, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return common.ErrRecordNotFound
	}
	delete(f.records, id)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }
