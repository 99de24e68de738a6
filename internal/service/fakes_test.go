package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/queue"
	"github.com/iliyamo/hall-calendar/internal/repository"
)

// fakeBookingStore mimics the unique indexes and the rollback behaviour of
// the SQL repository.
type fakeBookingStore struct {
	mu         sync.Mutex
	bookings   []model.Booking
	nextID     uint64
	halls      map[uint64]string
	insertErrs []error
	listErr    error

	// rows holds one mutex per booking; Lock keeps it until the
	// surrounding WithTx returns, like SELECT ... FOR UPDATE.
	rows   map[uint64]*sync.Mutex
	locked []uint64
	onGet  func(id uint64)
}

type fakeTxKey struct{}

type fakeTx struct{ held []*sync.Mutex }

func newFakeBookingStore(halls map[uint64]string) *fakeBookingStore {
	return &fakeBookingStore{nextID: 1, halls: halls}
}

func (f *fakeBookingStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	snapshot := append([]model.Booking(nil), f.bookings...)
	next := f.nextID
	f.mu.Unlock()

	if _, nested := ctx.Value(fakeTxKey{}).(*fakeTx); !nested {
		tx := &fakeTx{}
		ctx = context.WithValue(ctx, fakeTxKey{}, tx)
		defer func() {
			for _, m := range tx.held {
				m.Unlock()
			}
		}()
	}

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.bookings = snapshot
		f.nextID = next
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeBookingStore) SlotTaken(_ context.Context, hallID uint64, date model.Date, slot model.Slot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.HallID == hallID && b.Date == date && b.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) CodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookingStore) Insert(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, e := range f.bookings {
		if e.HallID == b.HallID && e.Date == b.Date && e.Slot == b.Slot {
			return repository.ErrSlotTaken
		}
		if e.Code == b.Code {
			return repository.ErrDuplicateCode
		}
	}
	b.ID = f.nextID
	f.nextID++
	f.bookings = append(f.bookings, *b)
	return nil
}

func (f *fakeBookingStore) view(b model.Booking) model.BookingView {
	return model.BookingView{Booking: b, HallName: f.halls[b.HallID]}
}

func (f *fakeBookingStore) Lock(ctx context.Context, id uint64) error {
	f.mu.Lock()
	found := false
	for _, b := range f.bookings {
		if b.ID == id {
			found = true
			break
		}
	}
	if !found {
		f.mu.Unlock()
		return repository.ErrBookingNotFound
	}
	if f.rows == nil {
		f.rows = map[uint64]*sync.Mutex{}
	}
	m, ok := f.rows[id]
	if !ok {
		m = &sync.Mutex{}
		f.rows[id] = m
	}
	f.locked = append(f.locked, id)
	f.mu.Unlock()

	m.Lock()
	if tx, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		tx.held = append(tx.held, m)
	} else {
		m.Unlock()
	}
	return nil
}

func (f *fakeBookingStore) lockedIDs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.locked...)
}

func (f *fakeBookingStore) GetByID(_ context.Context, id uint64) (model.BookingView, error) {
	f.mu.Lock()
	hook := f.onGet
	var (
		v   model.BookingView
		err = repository.ErrBookingNotFound
	)
	for _, b := range f.bookings {
		if b.ID == id {
			v, err = f.view(b), nil
			break
		}
	}
	f.mu.Unlock()
	if hook != nil && err == nil {
		hook(id)
	}
	return v, err
}

func (f *fakeBookingStore) UpdateDetails(_ context.Context, b model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookings {
		if f.bookings[i].ID == b.ID {
			cur := &f.bookings[i]
			cur.ClientName, cur.Phone, cur.Address = b.ClientName, b.Phone, b.Address
			cur.Financials = b.Financials
			return nil
		}
	}
	return repository.ErrBookingNotFound
}

func (f *fakeBookingStore) MarkConfirmed(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookings {
		if f.bookings[i].ID == id {
			f.bookings[i].Status = model.StatusConfirmed
			t := at
			f.bookings[i].ConfirmedAt = &t
			return nil
		}
	}
	return repository.ErrBookingNotFound
}

func (f *fakeBookingStore) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookings {
		if f.bookings[i].ID == id {
			f.bookings = append(f.bookings[:i], f.bookings[i+1:]...)
			return nil
		}
	}
	return repository.ErrBookingNotFound
}

func (f *fakeBookingStore) List(_ context.Context, q repository.ListQuery) ([]model.BookingView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	term := strings.ToLower(strings.TrimSpace(q.Term))
	out := []model.BookingView{}
	for _, b := range f.bookings {
		if q.HallID != 0 && b.HallID != q.HallID {
			continue
		}
		if q.OwnerID != 0 && b.UserID != q.OwnerID {
			continue
		}
		if !q.From.IsZero() && b.Date.Before(q.From.Time) {
			continue
		}
		if !q.To.IsZero() && !b.Date.Before(q.To.Time) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(b.Code), term) &&
			!strings.Contains(strings.ToLower(b.ClientName), term) &&
			!strings.Contains(strings.ToLower(b.Phone), term) {
			continue
		}
		out = append(out, f.view(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBookingStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

type fakeHallStore struct {
	halls []model.Hall
}

func (f *fakeHallStore) GetByID(_ context.Context, id uint64) (model.Hall, error) {
	for _, h := range f.halls {
		if h.ID == id {
			return h, nil
		}
	}
	return model.Hall{}, repository.ErrHallNotFound
}

func (f *fakeHallStore) ListWithCounts(_ context.Context) ([]model.HallSummary, error) {
	out := make([]model.HallSummary, 0, len(f.halls))
	for _, h := range f.halls {
		out = append(out, model.HallSummary{Hall: h})
	}
	return out, nil
}

type fakeUserStore struct {
	users map[uint64]model.User
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
	err    error
}

func (p *fakePublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// sequenceCodes hands out the given codes in order, then falls back to
// the random generator.
func sequenceCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return NewBookingCode()
		}
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
}
