package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/models"
	goredis "github.com/redis/go-redis/v9"
)

// memLedger is an in-memory AccountStore, TransactionStore and UserFinder. It hands
// out copies so that, like a database, nothing changes until Save is called.
type memLedger struct {
	mu           sync.Mutex
	users        map[int64]models.AccountUser
	accounts     map[int64]models.Account
	transactions []models.Transaction
	nextID       int64

	saveAccountErr error
	saveTxErr      error
	txCalls        int
}

func newMemLedger() *memLedger {
	return &memLedger{
		users:    map[int64]models.AccountUser{},
		accounts: map[int64]models.Account{},
	}
}

func (m *memLedger) addUser(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = models.AccountUser{ID: id, Name: name}
}

func (m *memLedger) addAccount(a models.Account) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		m.nextID++
		a.ID = m.nextID
	} else if a.ID > m.nextID {
		m.nextID = a.ID
	}
	m.accounts[a.ID] = a
	return &a
}

func (m *memLedger) addTransaction(tx models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	tx.ID = m.nextID
	m.transactions = append(m.transactions, tx)
}

func (m *memLedger) account(id int64) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func (m *memLedger) ledger() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Transaction(nil), m.transactions...)
}

func (m *memLedger) FindUserByID(ctx context.Context, id int64) (*models.AccountUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.New(apperr.UserNotFound)
	}
	return &u, nil
}

func (m *memLedger) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, apperr.New(apperr.AccountNotFound)
	}
	return &a, nil
}

func (m *memLedger) FindByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.AccountNumber == accountNumber {
			return &a, nil
		}
	}
	return nil, apperr.New(apperr.AccountNotFound)
}

func (m *memLedger) FindLastIssuedNumber(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := ""
	for _, a := range m.accounts {
		if a.AccountNumber > last {
			last = a.AccountNumber
		}
	}
	return last, last != "", nil
}

func (m *memLedger) CountByUser(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.accounts {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) FindAllByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memLedger) Save(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveAccountErr != nil {
		return m.saveAccountErr
	}
	if account.ID == 0 {
		for _, a := range m.accounts {
			if a.AccountNumber == account.AccountNumber {
				return apperr.New(apperr.InvalidRequest)
			}
		}
		m.nextID++
		account.ID = m.nextID
	}
	m.accounts[account.ID] = *account
	return nil
}

// memTransactions adapts memLedger to TransactionStore; Save is taken by accounts.
type memTransactions struct{ *memLedger }

func (m memTransactions) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.TransactionID == transactionID {
			return &tx, nil
		}
	}
	return nil, apperr.New(apperr.TransactionNotFound)
}

func (m memTransactions) Save(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveTxErr != nil {
		return m.saveTxErr
	}
	if tx.ID != 0 {
		return errors.New("transaction already stored")
	}
	m.nextID++
	tx.ID = m.nextID
	m.transactions = append(m.transactions, *tx)
	return nil
}

// WithinTransaction makes memLedger a Transactor: on error every account and
// ledger write made by fn is undone.
func (m *memLedger) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	accounts := make(map[int64]models.Account, len(m.accounts))
	for id, a := range m.accounts {
		accounts[id] = a
	}
	transactions := append([]models.Transaction(nil), m.transactions...)
	m.txCalls++
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.accounts = accounts
		m.transactions = transactions
		m.mu.Unlock()
		return err
	}
	return nil
}

// ctxAccounts fails writes on a finished context the way database/sql does, and
// runs afterSave once a balance write has landed.
type ctxAccounts struct {
	*memLedger
	afterSave func()
}

func (a ctxAccounts) Save(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.memLedger.Save(ctx, account); err != nil {
		return err
	}
	if a.afterSave != nil {
		a.afterSave()
	}
	return nil
}

type ctxTransactions struct{ memTransactions }

func (t ctxTransactions) Save(ctx context.Context, tx *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.memTransactions.Save(ctx, tx)
}

type publishedEvent struct {
	stream    string
	eventType string
	data      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{stream: stream, eventType: eventType, data: data})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

type recordingViews struct {
	mu    sync.Mutex
	views []models.TransactionView
}

func (v *recordingViews) CacheTransactionView(ctx context.Context, view *models.TransactionView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.views = append(v.views, *view)
}

// newTestGuard returns an AccountGuard on a miniredis-backed RedisLocker.
func newTestGuard(t *testing.T, opts lock.Options) (*lock.AccountGuard, *lock.RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.NewRedisLocker(client, nil)
	return lock.NewAccountGuard(locker, opts, nil), locker, mr
}

func quickLockOptions() lock.Options {
	return lock.Options{WaitTimeout: 100 * time.Millisecond, LeaseTimeout: 15 * time.Second, RetryDelay: 10 * time.Millisecond}
}

// fixedClock returns a settable clock.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
