// Package memory хранилище в памяти процесса. Повторяет семантику postgres-реализации:
// блокировки строк до конца транзакции, SKIP LOCKED, savepoint-ы с откатом по журналу отмены.
// Чтение без изоляции (видны незакоммиченные изменения других транзакций), кроме подарочных пулов:
// их пригодность другие транзакции оценивают по закоммиченному образу строки.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
)

type rowLock struct {
	owner    *txn
	released chan struct{}
}

// txn корневая транзакция или savepoint внутри неё
type txn struct {
	root   *txn
	parent *txn
	undo   []func()
	held   []uuid.UUID // только у корня
}

// giftImage образ пула до изменения незавершённой транзакцией
type giftImage struct {
	owner   *txn
	gift    model.Gift
	existed bool
}

type db struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	order       map[uuid.UUID]int64 // порядок вставки, для стабильной сортировки
	locks       map[uuid.UUID]*rowLock
	users       map[uuid.UUID]model.User
	offers      map[uuid.UUID]model.Offer
	slots       map[uuid.UUID]model.Slot
	gifts       map[uuid.UUID]model.Gift
	requests    map[uuid.UUID]model.Request
	engagements map[uuid.UUID]model.Engagement
	reviews     map[uuid.UUID]model.Review

	giftBefore map[uuid.UUID]giftImage
}

type Queries struct {
	db *db
	tx *txn // nil - автокоммит
}

var _ repository.Queries = (*Queries)(nil)

type Store struct {
	*Queries
}

var _ repository.Store = (*Store)(nil)

type Option func(*db)

// WithClock подменяет источник времени для created_at
func WithClock(now func() time.Time) Option {
	return func(d *db) { d.now = now }
}

func NewStore(opts ...Option) *Store {
	d := &db{
		now:         time.Now,
		order:       make(map[uuid.UUID]int64),
		locks:       make(map[uuid.UUID]*rowLock),
		users:       make(map[uuid.UUID]model.User),
		offers:      make(map[uuid.UUID]model.Offer),
		slots:       make(map[uuid.UUID]model.Slot),
		gifts:       make(map[uuid.UUID]model.Gift),
		requests:    make(map[uuid.UUID]model.Request),
		engagements: make(map[uuid.UUID]model.Engagement),
		reviews:     make(map[uuid.UUID]model.Review),
		giftBefore:  make(map[uuid.UUID]giftImage),
	}
	for _, opt := range opts {
		opt(d)
	}
	return &Store{Queries: &Queries{db: d}}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (q *Queries) InTx(ctx context.Context, fn func(repository.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	t := &txn{parent: q.tx}
	if q.tx == nil {
		t.root = t
	} else {
		t.root = q.tx.root
	}

	finished := false
	defer func() {
		if !finished {
			q.db.rollback(t)
		}
	}()

	if err := fn(&Queries{db: q.db, tx: t}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	q.db.commit(t)
	finished = true
	return nil
}

// exec выполняет fn в текущей транзакции, в автокоммите открывает транзакцию на один вызов
func (q *Queries) exec(fn func(t *txn) error) error {
	if q.tx != nil {
		return fn(q.tx)
	}

	t := &txn{}
	t.root = t
	if err := fn(t); err != nil {
		q.db.rollback(t)
		return err
	}
	q.db.commit(t)
	return nil
}

func (d *db) commit(t *txn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t.parent != nil {
		t.parent.undo = append(t.parent.undo, t.undo...)
		t.undo = nil
		return
	}
	t.undo = nil
	d.releaseLocked(t)
}

func (d *db) rollback(t *txn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	if t.parent == nil {
		d.releaseLocked(t)
	}
}

// releaseLocked снимает блокировки корневой транзакции, d.mu должен быть захвачен
func (d *db) releaseLocked(root *txn) {
	for _, id := range root.held {
		if l, ok := d.locks[id]; ok && l.owner == root {
			close(l.released)
			delete(d.locks, id)
		}
	}
	root.held = nil

	for id, img := range d.giftBefore {
		if img.owner == root {
			delete(d.giftBefore, id)
		}
	}
}

// lock блокирует строку до конца корневой транзакции. Повторный захват своей строки проходит сразу.
// wait=false: false, если строка занята другой транзакцией.
func (d *db) lock(ctx context.Context, t *txn, id uuid.UUID, wait bool) (bool, error) {
	root := t.root
	for {
		d.mu.Lock()
		l, ok := d.locks[id]
		if !ok {
			d.locks[id] = &rowLock{owner: root, released: make(chan struct{})}
			root.held = append(root.held, id)
			d.mu.Unlock()
			return true, nil
		}
		if l.owner == root {
			d.mu.Unlock()
			return true, nil
		}
		ch := l.released
		d.mu.Unlock()

		if !wait {
			return false, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return false, fmt.Errorf("lock row: %w", ctx.Err())
		}
	}
}

// record добавляет шаг отмены, d.mu должен быть захвачен
func (t *txn) record(fn func()) {
	t.undo = append(t.undo, fn)
}

// nextLocked выдаёт id, время и порядковый номер новой строки, d.mu должен быть захвачен
func (d *db) nextLocked() (uuid.UUID, time.Time) {
	id := uuid.New()
	d.seq++
	d.order[id] = d.seq
	return id, d.now().UTC()
}

// before порядок created_at, затем порядок вставки
func (d *db) before(aID uuid.UUID, aAt time.Time, bID uuid.UUID, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return d.order[aID] < d.order[bID]
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var (
	errGiftNotFound       = errors.New("gift not found")
	errEngagementNotFound = errors.New("engagement not found")
)
