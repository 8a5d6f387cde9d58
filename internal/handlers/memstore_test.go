package handlers_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tendering/db"
	"tendering/models"
)

// memStore - хранилище в памяти с теми же ошибками, что и настоящие реализации
type memStore struct {
	mu sync.Mutex

	seq        int64
	users      map[int64]*models.User
	userTypes  map[int64]*models.UserType
	categories map[int64]*models.Category
	subs       map[int64][]int64 // user -> categories
	tenders    map[int64]*models.Tender
	versions   map[int64][]models.TenderVersion
	bids       map[int64]*models.Bid
	feedback   map[int64]*models.Feedback

	pingErr  error
	failWith error // если задана, возвращается всеми методами чтения списков
}

func newMemStore() *memStore {
	m := &memStore{
		users:      map[int64]*models.User{},
		userTypes:  map[int64]*models.UserType{},
		categories: map[int64]*models.Category{},
		subs:       map[int64][]int64{},
		tenders:    map[int64]*models.Tender{},
		versions:   map[int64][]models.TenderVersion{},
		bids:       map[int64]*models.Bid{},
		feedback:   map[int64]*models.Feedback{},
	}
	for _, name := range []string{models.RoleCity, models.RoleCompany, models.RoleCitizen, models.RoleAdmin} {
		m.seq++
		m.userTypes[m.seq] = &models.UserType{ID: m.seq, Name: name}
	}
	return m
}

func (m *memStore) next() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

// Users

func (m *memStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Email == u.Email {
			return db.ErrConflict
		}
	}
	if !m.hasType(u.UserType) {
		return db.ErrConflict
	}
	u.ID = m.next()
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	u.Categories, u.Tenders, u.Bids = []int64{}, []int64{}, []int64{}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) hasType(name string) bool {
	for _, t := range m.userTypes {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (m *memStore) withRelations(u models.User) models.User {
	u.Categories = append([]int64{}, m.subs[u.ID]...)
	u.Tenders, u.Bids = []int64{}, []int64{}
	for _, t := range m.sortedTenders() {
		if t.StaffID == u.ID {
			u.Tenders = append(u.Tenders, t.ID)
		}
	}
	for _, b := range m.sortedBids() {
		if b.BidderID == u.ID {
			u.Bids = append(u.Bids, b.ID)
		}
	}
	return u
}

func (m *memStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := m.withRelations(*u)
	return &out, nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memStore) ListUsers(ctx context.Context, userType string, limit, offset int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.User
	for _, id := range sortedKeys(m.users) {
		u := m.users[id]
		if userType == "" || u.UserType == userType {
			all = append(all, m.withRelations(*u))
		}
	}
	return page(all, limit, offset), nil
}

func (m *memStore) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return db.ErrNotFound
	}
	for _, other := range m.users {
		if other.ID != u.ID && other.Email == u.Email {
			return db.ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return db.ErrNotFound
	}
	for _, t := range m.tenders {
		if t.StaffID == id {
			return db.ErrConflict
		}
	}
	delete(m.users, id)
	delete(m.subs, id)
	for bid, b := range m.bids {
		if b.BidderID == id {
			delete(m.bids, bid)
		}
	}
	for fid, f := range m.feedback {
		if f.UserID == id {
			delete(m.feedback, fid)
		}
	}
	for _, t := range m.tenders {
		if t.WinnerID != nil && *t.WinnerID == id {
			t.WinnerID = nil
		}
	}
	return nil
}

func (m *memStore) SetLoginState(ctx context.Context, id int64, failed int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.ErrNotFound
	}
	u.FailedLoginAttempts, u.LockedUntil = failed, lockedUntil
	return nil
}

func (m *memStore) SetUserCategories(ctx context.Context, userID int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return db.ErrNotFound
	}
	for _, id := range ids {
		if _, ok := m.categories[id]; !ok {
			return db.ErrConflict
		}
	}
	m.subs[userID] = append([]int64{}, ids...)
	return nil
}

func (m *memStore) ListUsersWithCategories(ctx context.Context) ([]models.UserWithCategories, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserWithCategories{}
	for _, id := range sortedKeys(m.users) {
		u := m.withRelations(*m.users[id])
		cats := []models.Category{}
		for _, cid := range u.Categories {
			cats = append(cats, *m.categories[cid])
		}
		out = append(out, models.UserWithCategories{User: u, CategoryList: cats})
	}
	return out, nil
}

// User types

func (m *memStore) CreateUserType(ctx context.Context, t *models.UserType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasType(t.Name) {
		return db.ErrConflict
	}
	t.ID = m.next()
	cp := *t
	m.userTypes[t.ID] = &cp
	return nil
}

func (m *memStore) GetUserType(ctx context.Context, id int64) (*models.UserType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.userTypes[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetUserTypeByName(ctx context.Context, name string) (*models.UserType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.userTypes {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) ListUserTypes(ctx context.Context) ([]models.UserType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserType{}
	for _, id := range sortedKeys(m.userTypes) {
		out = append(out, *m.userTypes[id])
	}
	return out, nil
}

func (m *memStore) UpdateUserType(ctx context.Context, t *models.UserType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.userTypes[t.ID]
	if !ok {
		return db.ErrNotFound
	}
	for _, u := range m.users {
		if u.UserType == cur.Name {
			u.UserType = t.Name
		}
	}
	cp := *t
	m.userTypes[t.ID] = &cp
	return nil
}

func (m *memStore) DeleteUserType(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.userTypes[id]
	if !ok {
		return db.ErrNotFound
	}
	for _, u := range m.users {
		if u.UserType == cur.Name {
			return db.ErrConflict
		}
	}
	delete(m.userTypes, id)
	return nil
}

// Categories

func (m *memStore) CreateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.categories {
		if other.Name == c.Name {
			return db.ErrConflict
		}
	}
	c.ID, c.CreatedAt, c.Users = m.next(), time.Now(), []int64{}
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *memStore) categoryWithUsers(c models.Category) models.Category {
	c.Users = []int64{}
	for _, uid := range sortedKeys(m.users) {
		for _, cid := range m.subs[uid] {
			if cid == c.ID {
				c.Users = append(c.Users, uid)
			}
		}
	}
	return c
}

func (m *memStore) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := m.categoryWithUsers(*c)
	return &out, nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := []models.Category{}
	for _, id := range sortedKeys(m.categories) {
		out = append(out, m.categoryWithUsers(*m.categories[id]))
	}
	return out, nil
}

func (m *memStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.categories[c.ID]
	if !ok {
		return db.ErrNotFound
	}
	cur.Name = c.Name
	return nil
}

func (m *memStore) DeleteCategory(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.categories, id)
	for uid, ids := range m.subs {
		kept := ids[:0]
		for _, cid := range ids {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		m.subs[uid] = kept
	}
	for _, t := range m.tenders {
		if t.CategoryID != nil && *t.CategoryID == id {
			t.CategoryID = nil
		}
	}
	return nil
}

func (m *memStore) ListCategoryUsers(ctx context.Context, categoryID int64) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, uid := range sortedKeys(m.users) {
		for _, cid := range m.subs[uid] {
			if cid == categoryID {
				out = append(out, m.withRelations(*m.users[uid]))
			}
		}
	}
	return out, nil
}

// Tenders

func (m *memStore) CreateTender(ctx context.Context, t *models.Tender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID, t.Version, t.Bids = m.next(), 1, []int64{}
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	cp := *t
	m.tenders[t.ID] = &cp
	m.versions[t.ID] = append(m.versions[t.ID], t.Snapshot())
	return nil
}

func (m *memStore) tenderWithBids(t models.Tender) models.Tender {
	t.Bids = []int64{}
	for _, b := range m.sortedBids() {
		if b.TenderID == t.ID {
			t.Bids = append(t.Bids, b.ID)
		}
	}
	return t
}

func (m *memStore) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	out := m.tenderWithBids(*t)
	return &out, nil
}

func (m *memStore) ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var all []models.Tender
	for _, t := range m.sortedTenders() {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.StaffID > 0 && t.StaffID != f.StaffID {
			continue
		}
		if len(f.CategoryIDs) > 0 && (t.CategoryID == nil || !contains(f.CategoryIDs, *t.CategoryID)) {
			continue
		}
		if !f.ClosesAfter.IsZero() && !t.CloseDate.After(f.ClosesAfter) {
			continue
		}
		all = append(all, m.tenderWithBids(t))
	}
	return page(all, limit, offset), nil
}

func (m *memStore) ListExpiredOpenTenders(ctx context.Context, now time.Time) ([]models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Tender{}
	for _, t := range m.sortedTenders() {
		if t.Status == models.TenderOpen && !t.CloseDate.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTender(ctx context.Context, t *models.Tender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tenders[t.ID]
	if !ok {
		return db.ErrNotFound
	}
	if cur.Version != t.Version {
		return db.ErrConflict
	}
	t.Version++
	cp := *t
	m.tenders[t.ID] = &cp
	m.versions[t.ID] = append(m.versions[t.ID], t.Snapshot())
	return nil
}

func (m *memStore) AwardTender(ctx context.Context, t *models.Tender, winningBidID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tenders[t.ID]
	if !ok {
		return db.ErrNotFound
	}
	if w, ok := m.bids[winningBidID]; !ok || w.TenderID != t.ID {
		return db.ErrNotFound
	}
	if cur.Status != models.TenderOpen && cur.Status != models.TenderPending {
		return db.ErrConflict
	}
	for _, b := range m.bids {
		if b.TenderID == t.ID {
			b.IsWinner = b.ID == winningBidID
		}
	}
	t.Version++
	cp := *t
	m.tenders[t.ID] = &cp
	m.versions[t.ID] = append(m.versions[t.ID], t.Snapshot())
	return nil
}

func (m *memStore) DeleteTender(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenders[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.tenders, id)
	delete(m.versions, id)
	for bid, b := range m.bids {
		if b.TenderID == id {
			delete(m.bids, bid)
		}
	}
	for fid, f := range m.feedback {
		if f.TenderID != nil && *f.TenderID == id {
			delete(m.feedback, fid)
		}
	}
	return nil
}

func (m *memStore) GetTenderVersion(ctx context.Context, tenderID int64, version int) (*models.TenderVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[tenderID] {
		if v.Version == version {
			cp := v
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) ListTenderVersions(ctx context.Context, tenderID int64) ([]models.TenderVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TenderVersion{}, m.versions[tenderID]...), nil
}

// Bids

func (m *memStore) CreateBid(ctx context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.bids {
		if other.BidderID == b.BidderID && other.TenderID == b.TenderID {
			return db.ErrConflict
		}
	}
	b.ID = m.next()
	b.CreatedAt, b.UpdatedAt = time.Now(), time.Now()
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *memStore) GetBid(ctx context.Context, id int64) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) UpdateBid(ctx context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bids[b.ID]
	if !ok {
		return db.ErrNotFound
	}
	cur.BiddingPrice = b.BiddingPrice
	return nil
}

func (m *memStore) DeleteBid(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bids[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.bids, id)
	return nil
}

func (m *memStore) ListTenderBids(ctx context.Context, tenderID int64) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Bid{}
	for _, b := range m.sortedBids() {
		if b.TenderID == tenderID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListUserBids(ctx context.Context, bidderID int64, limit, offset int) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Bid
	for _, b := range m.sortedBids() {
		if b.BidderID == bidderID {
			all = append(all, b)
		}
	}
	return page(all, limit, offset), nil
}

func (m *memStore) ListBids(ctx context.Context, limit, offset int) ([]models.BidView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.BidView
	for _, b := range m.sortedBids() {
		v := models.BidView{Bid: b}
		if u, ok := m.users[b.BidderID]; ok {
			v.Bidder = u.Summary()
		}
		if t, ok := m.tenders[b.TenderID]; ok {
			v.TenderName = t.Name
		}
		all = append(all, v)
	}
	return page(all, limit, offset), nil
}

// Feedback

func (m *memStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID, f.CreatedAt = m.next(), time.Now()
	cp := *f
	m.feedback[f.ID] = &cp
	return nil
}

func (m *memStore) GetFeedback(ctx context.Context, id int64) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feedback[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) ListFeedback(ctx context.Context, f models.FeedbackFilter, limit, offset int) ([]models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Feedback
	for _, id := range sortedKeys(m.feedback) {
		item := m.feedback[id]
		if f.TenderID > 0 && (item.TenderID == nil || *item.TenderID != f.TenderID) {
			continue
		}
		if f.UserID > 0 && item.UserID != f.UserID {
			continue
		}
		all = append(all, *item)
	}
	return page(all, limit, offset), nil
}

func (m *memStore) DeleteFeedback(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.feedback[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.feedback, id)
	return nil
}

func (m *memStore) GetStats(ctx context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	st := &models.Stats{UsersByType: map[string]int{}, TendersByStatus: map[string]int{}}
	for _, u := range m.users {
		st.UsersByType[u.UserType]++
	}
	for _, t := range m.tenders {
		st.TendersByStatus[string(t.Status)]++
	}
	st.BidCount, st.FeedbackCount, st.CategoryCount = len(m.bids), len(m.feedback), len(m.categories)
	return st, nil
}

// помощники

func (m *memStore) sortedTenders() []models.Tender {
	out := make([]models.Tender, 0, len(m.tenders))
	for _, id := range sortedKeys(m.tenders) {
		out = append(out, *m.tenders[id])
	}
	return out
}

func (m *memStore) sortedBids() []models.Bid {
	out := make([]models.Bid, 0, len(m.bids))
	for _, id := range sortedKeys(m.bids) {
		out = append(out, *m.bids[id])
	}
	return out
}

func sortedKeys[V any](items map[int64]V) []int64 {
	keys := make([]int64, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var errStorage = errors.New("storage unavailable")
