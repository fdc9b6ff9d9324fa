// Package memory is a single-process implementation of domain.Store. Transactions run one at a
// time against a private copy of the state that replaces the live state only on success.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zagip/zagip-game/internal/domain"
)

type pairKey struct {
	parentID int64
	userID   int64
}

type state struct {
	users       map[int64]*domain.User
	items       map[int64]*domain.Item
	auctions    map[int64]*domain.Auction
	codes       map[int64]*domain.RedeemableCode
	codeUsages  map[pairKey]domain.CodeUsage
	tasks       map[int64]*domain.Task
	completions map[pairKey]domain.TaskCompletion

	nextUserID    int64
	nextItemID    int64
	nextAuctionID int64
	nextCodeID    int64
	nextTaskID    int64
}

func newState() *state {
	return &state{
		users:       make(map[int64]*domain.User),
		items:       make(map[int64]*domain.Item),
		auctions:    make(map[int64]*domain.Auction),
		codes:       make(map[int64]*domain.RedeemableCode),
		codeUsages:  make(map[pairKey]domain.CodeUsage),
		tasks:       make(map[int64]*domain.Task),
		completions: make(map[pairKey]domain.TaskCompletion),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, u := range s.users {
		c.users[id] = u.Clone()
	}
	for id, it := range s.items {
		c.items[id] = it.Clone()
	}
	for id, a := range s.auctions {
		c.auctions[id] = a.Clone()
	}
	for id, code := range s.codes {
		cp := *code
		c.codes[id] = &cp
	}
	for k, v := range s.codeUsages {
		c.codeUsages[k] = v
	}
	for id, t := range s.tasks {
		cp := *t
		c.tasks[id] = &cp
	}
	for k, v := range s.completions {
		c.completions[k] = v
	}
	c.nextUserID = s.nextUserID
	c.nextItemID = s.nextItemID
	c.nextAuctionID = s.nextAuctionID
	c.nextCodeID = s.nextCodeID
	c.nextTaskID = s.nextTaskID
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() {}

type tx struct {
	st  *state
	now func() time.Time
}

var _ domain.Tx = (*tx)(nil)

// users

func (t *tx) UserByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u.Clone(), nil
}

func (t *tx) UserByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	for _, u := range t.st.users {
		if u.TelegramID == telegramID {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrNotFound
	}
	for _, u := range t.sortedUsers() {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) LockUsers(_ context.Context, ids ...int64) (map[int64]*domain.User, error) {
	out := make(map[int64]*domain.User, len(ids))
	for _, id := range ids {
		u, ok := t.st.users[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		out[id] = u.Clone()
	}
	return out, nil
}

func (t *tx) CreateUser(_ context.Context, u *domain.User) error {
	for _, existing := range t.st.users {
		if existing.TelegramID == u.TelegramID {
			return domain.ErrDuplicate
		}
	}
	t.st.nextUserID++
	u.ID = t.st.nextUserID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now()
	}
	u.UpdatedAt = u.CreatedAt
	t.st.users[u.ID] = u.Clone()
	return nil
}

func (t *tx) UpdateUser(_ context.Context, u *domain.User) error {
	if _, ok := t.st.users[u.ID]; !ok {
		return domain.ErrNotFound
	}
	u.UpdatedAt = t.now()
	t.st.users[u.ID] = u.Clone()
	return nil
}

func (t *tx) ClearPinnedItem(_ context.Context, itemID int64) error {
	for _, u := range t.st.users {
		u.Unpin(itemID)
	}
	return nil
}

func (t *tx) TopUsersByBalance(_ context.Context, limit int) ([]*domain.User, error) {
	users := t.sortedUsers()
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Balance > users[j].Balance
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return cloneUsers(users), nil
}

func (t *tx) UsersReferredBy(_ context.Context, userID int64) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range t.sortedUsers() {
		if u.ReferredBy != nil && *u.ReferredBy == userID {
			out = append(out, u)
		}
	}
	return cloneUsers(out), nil
}

func (t *tx) sortedUsers() []*domain.User {
	users := make([]*domain.User, 0, len(t.st.users))
	for _, u := range t.st.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func cloneUsers(in []*domain.User) []*domain.User {
	out := make([]*domain.User, len(in))
	for i, u := range in {
		out[i] = u.Clone()
	}
	return out
}

// items

func (t *tx) ItemByID(_ context.Context, id int64) (*domain.Item, error) {
	it, ok := t.st.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return it.Clone(), nil
}

func (t *tx) LockItem(ctx context.Context, id int64) (*domain.Item, error) {
	return t.ItemByID(ctx, id)
}

func (t *tx) CreateItems(_ context.Context, items []*domain.Item) error {
	for _, it := range items {
		t.st.nextItemID++
		it.ID = t.st.nextItemID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = t.now()
		}
		t.st.items[it.ID] = it.Clone()
	}
	return nil
}

func (t *tx) UpdateItemOwner(_ context.Context, itemID int64, ownerID *int64) error {
	it, ok := t.st.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	if ownerID == nil {
		it.OwnerID = nil
	} else {
		v := *ownerID
		it.OwnerID = &v
	}
	return nil
}

func (t *tx) DeleteItem(_ context.Context, id int64) error {
	if _, ok := t.st.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.st.items, id)
	for aid, a := range t.st.auctions {
		if a.ItemID == id {
			delete(t.st.auctions, aid)
		}
	}
	return nil
}

func (t *tx) CountItemsWithImage(_ context.Context, imageURL string) (int, error) {
	n := 0
	for _, it := range t.st.items {
		if it.ImageURL == imageURL {
			n++
		}
	}
	return n, nil
}

func (t *tx) UnownedItems(_ context.Context) ([]*domain.Item, error) {
	return t.filterItems(func(it *domain.Item) bool { return it.OwnerID == nil }), nil
}

func (t *tx) ItemsOwnedBy(_ context.Context, userID int64, excludeListed bool) ([]*domain.Item, error) {
	listed := make(map[int64]bool)
	if excludeListed {
		for _, a := range t.st.auctions {
			if a.Active() {
				listed[a.ItemID] = true
			}
		}
	}
	return t.filterItems(func(it *domain.Item) bool {
		return it.OwnedBy(userID) && !listed[it.ID]
	}), nil
}

func (t *tx) filterItems(keep func(*domain.Item) bool) []*domain.Item {
	var out []*domain.Item
	for _, it := range t.st.items {
		if keep(it) {
			out = append(out, it.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// auctions

func (t *tx) CreateAuction(_ context.Context, a *domain.Auction) error {
	if a.Active() {
		for _, existing := range t.st.auctions {
			if existing.ItemID == a.ItemID && existing.Active() {
				return domain.ErrDuplicate
			}
		}
	}
	t.st.nextAuctionID++
	a.ID = t.st.nextAuctionID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = t.now()
	}
	t.st.auctions[a.ID] = a.Clone()
	return nil
}

func (t *tx) LockAuction(_ context.Context, id int64) (*domain.Auction, error) {
	a, ok := t.st.auctions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (t *tx) ActiveAuctionForItem(_ context.Context, itemID int64) (*domain.Auction, error) {
	for _, a := range t.st.auctions {
		if a.ItemID == itemID && a.Active() {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) UpdateAuction(_ context.Context, a *domain.Auction) error {
	if _, ok := t.st.auctions[a.ID]; !ok {
		return domain.ErrNotFound
	}
	t.st.auctions[a.ID] = a.Clone()
	return nil
}

func (t *tx) ActiveAuctions(_ context.Context) ([]*domain.AuctionListing, error) {
	return t.listings(func(a *domain.Auction) bool { return a.Active() }), nil
}

func (t *tx) AuctionsBySeller(_ context.Context, sellerID int64) ([]*domain.AuctionListing, error) {
	return t.listings(func(a *domain.Auction) bool { return a.SellerID == sellerID }), nil
}

func (t *tx) listings(keep func(*domain.Auction) bool) []*domain.AuctionListing {
	var out []*domain.AuctionListing
	for _, a := range t.st.auctions {
		if !keep(a) {
			continue
		}
		it, ok := t.st.items[a.ItemID]
		if !ok {
			continue
		}
		l := &domain.AuctionListing{Auction: *a.Clone(), Item: *it.Clone()}
		if seller, ok := t.st.users[a.SellerID]; ok {
			l.SellerUsername = seller.Username
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// codes

func (t *tx) LockCodeByValue(_ context.Context, code string) (*domain.RedeemableCode, error) {
	for _, c := range t.st.codes {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) CreateCode(_ context.Context, c *domain.RedeemableCode) error {
	for _, existing := range t.st.codes {
		if existing.Code == c.Code {
			return domain.ErrDuplicate
		}
	}
	t.st.nextCodeID++
	c.ID = t.st.nextCodeID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.now()
	}
	cp := *c
	t.st.codes[c.ID] = &cp
	return nil
}

func (t *tx) UpdateCodeUses(_ context.Context, codeID int64, currentUses int) error {
	c, ok := t.st.codes[codeID]
	if !ok {
		return domain.ErrNotFound
	}
	c.CurrentUses = currentUses
	return nil
}

func (t *tx) Codes(_ context.Context) ([]*domain.RedeemableCode, error) {
	out := make([]*domain.RedeemableCode, 0, len(t.st.codes))
	for _, c := range t.st.codes {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) DeleteCode(_ context.Context, id int64) error {
	if _, ok := t.st.codes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.st.codes, id)
	for k := range t.st.codeUsages {
		if k.parentID == id {
			delete(t.st.codeUsages, k)
		}
	}
	return nil
}

func (t *tx) HasCodeUsage(_ context.Context, codeID, userID int64) (bool, error) {
	_, ok := t.st.codeUsages[pairKey{codeID, userID}]
	return ok, nil
}

func (t *tx) InsertCodeUsage(_ context.Context, u *domain.CodeUsage) error {
	k := pairKey{u.CodeID, u.UserID}
	if _, ok := t.st.codeUsages[k]; ok {
		return domain.ErrDuplicate
	}
	t.st.codeUsages[k] = *u
	return nil
}

func (t *tx) CountCodeUsagesByUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for k := range t.st.codeUsages {
		if k.userID == userID {
			n++
		}
	}
	return n, nil
}

// tasks

func (t *tx) TaskByID(_ context.Context, id int64) (*domain.Task, error) {
	task, ok := t.st.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (t *tx) CreateTask(_ context.Context, task *domain.Task) error {
	t.st.nextTaskID++
	task.ID = t.st.nextTaskID
	if task.CreatedAt.IsZero() {
		task.CreatedAt = t.now()
	}
	cp := *task
	t.st.tasks[task.ID] = &cp
	return nil
}

func (t *tx) Tasks(_ context.Context, activeOnly bool) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, task := range t.st.tasks {
		if activeOnly && !task.Active {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) DeleteTask(_ context.Context, id int64) error {
	if _, ok := t.st.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.st.tasks, id)
	for k := range t.st.completions {
		if k.parentID == id {
			delete(t.st.completions, k)
		}
	}
	return nil
}

func (t *tx) HasTaskCompletion(_ context.Context, taskID, userID int64) (bool, error) {
	_, ok := t.st.completions[pairKey{taskID, userID}]
	return ok, nil
}

func (t *tx) InsertTaskCompletion(_ context.Context, c *domain.TaskCompletion) error {
	k := pairKey{c.TaskID, c.UserID}
	if _, ok := t.st.completions[k]; ok {
		return domain.ErrDuplicate
	}
	t.st.completions[k] = *c
	return nil
}

func (t *tx) CountTaskCompletionsByUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for k := range t.st.completions {
		if k.userID == userID {
			n++
		}
	}
	return n, nil
}
