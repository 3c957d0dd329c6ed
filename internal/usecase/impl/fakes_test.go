package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"jwtauth/internal/domain/entity"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is the committed state shared by all fake transactions.
type memStore struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*entity.Account
	identities map[string]*entity.OAuthIdentity
	active     map[uuid.UUID]*entity.ActiveRefreshToken
	history    map[string]*entity.RefreshTokenHistoryEntry
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[uuid.UUID]*entity.Account),
		identities: make(map[string]*entity.OAuthIdentity),
		active:     make(map[uuid.UUID]*entity.ActiveRefreshToken),
		history:    make(map[string]*entity.RefreshTokenHistoryEntry),
	}
}

func identityKey(provider entity.ProviderType, subject string) string {
	return provider.String() + "|" + subject
}

func (s *memStore) addAccount(account *entity.Account) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	copied := *account
	s.accounts[account.ID] = &copied

	return account
}

func (s *memStore) activeCount(accountID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[accountID]; ok {
		return 1
	}

	return 0
}

func (s *memStore) activeToken(accountID uuid.UUID) *entity.ActiveRefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.active[accountID]
	if !ok {
		return nil
	}
	copied := *token

	return &copied
}

func (s *memStore) historyEntry(hash string) *entity.RefreshTokenHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.history[hash]
	if !ok {
		return nil
	}
	copied := *entry

	return &copied
}

func (s *memStore) accountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.accounts)
}

func (s *memStore) identityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.identities)
}

func (s *memStore) findAccountByUsername(username string) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Username == username {
			copied := *account

			return &copied
		}
	}

	return nil
}

// fakeTx collects undo steps; rollback replays them in reverse under store.mu.
type fakeTx struct {
	store *memStore
	undo  []func()
}

func (tx *fakeTx) rollback() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// fakeTxManager serializes Execute calls, which stands in for the account row
// lock. ExecuteDetached runs outside that lock and is never undone by the
// rollback of an enclosing Execute.
type fakeTxManager struct {
	store *memStore
	txMu  sync.Mutex

	detachedCalls atomic.Int64
	failDetached  atomic.Int64

	// inExecute counts open Execute calls; nestedDetached counts detached
	// transactions started while one was open.
	inExecute      atomic.Int64
	nestedDetached atomic.Int64
}

func newFakeTxManager(store *memStore) *fakeTxManager {
	return &fakeTxManager{store: store}
}

func (tm *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	tm.inExecute.Add(1)
	defer tm.inExecute.Add(-1)

	return tm.run(fn)
}

func (tm *fakeTxManager) ExecuteDetached(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	tm.detachedCalls.Add(1)
	if tm.inExecute.Load() > 0 {
		tm.nestedDetached.Add(1)
	}
	if tm.failDetached.Load() > 0 {
		tm.failDetached.Add(-1)

		return errors.New("detached transaction failed")
	}

	return tm.run(fn)
}

func (tm *fakeTxManager) run(fn func(repository.RepositoryFactory) error) error {
	tx := &fakeTx{store: tm.store}
	if err := fn(&fakeRepoFactory{tx: tx}); err != nil {
		tx.rollback()

		return err
	}

	return nil
}

type fakeRepoFactory struct {
	tx *fakeTx
}

func (f *fakeRepoFactory) AccountRepo() repository.AccountRepository {
	return &fakeAccountRepo{tx: f.tx}
}

func (f *fakeRepoFactory) OAuthIdentityRepo() repository.OAuthIdentityRepository {
	return &fakeIdentityRepo{tx: f.tx}
}

func (f *fakeRepoFactory) RefreshTokenRepo() repository.RefreshTokenRepository {
	return &fakeRefreshRepo{tx: f.tx}
}

func (f *fakeRepoFactory) RefreshTokenHistoryRepo() repository.RefreshTokenHistoryRepository {
	return &fakeHistoryRepo{tx: f.tx}
}

// --- accounts ---

type fakeAccountRepo struct {
	tx *fakeTx
}

func newDirectAccountRepo(store *memStore) *fakeAccountRepo {
	return &fakeAccountRepo{tx: &fakeTx{store: store}}
}

func (r *fakeAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *account

	return &copied, nil
}

func (r *fakeAccountRepo) FindByUsername(_ context.Context, username string) (*entity.Account, error) {
	if account := r.tx.store.findAccountByUsername(username); account != nil {
		return account, nil
	}

	return nil, repository.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Email != nil && *account.Email == email {
			copied := *account

			return &copied, nil
		}
	}

	return nil, repository.ErrAccountNotFound
}

func (r *fakeAccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (r *fakeAccountRepo) Create(_ context.Context, account *entity.Account) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return repository.ErrUsernameConflict
		}
		if existing.Email != nil && account.Email != nil && *existing.Email == *account.Email {
			return repository.ErrEmailConflict
		}
	}

	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	copied := *account
	s.accounts[account.ID] = &copied

	id := account.ID
	r.tx.undo = append(r.tx.undo, func() { delete(s.accounts, id) })

	return nil
}

func (r *fakeAccountRepo) Update(_ context.Context, account *entity.Account) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	previous := *existing
	existing.Nickname = account.Nickname
	existing.ProfileImageURL = account.ProfileImageURL

	r.tx.undo = append(r.tx.undo, func() { *existing = previous })

	return nil
}

func (r *fakeAccountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	_, err := r.FindByID(ctx, id)

	return err
}

// --- identities ---

type fakeIdentityRepo struct {
	tx *fakeTx
}

func (r *fakeIdentityRepo) FindByProviderAndSubject(_ context.Context, provider entity.ProviderType, subjectID string) (*entity.OAuthIdentity, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityKey(provider, subjectID)]
	if !ok {
		return nil, repository.ErrOAuthIdentityNotFound
	}
	copied := *identity

	return &copied, nil
}

func (r *fakeIdentityRepo) Create(_ context.Context, identity *entity.OAuthIdentity) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(identity.Provider, identity.ProviderSubjectID)
	if _, ok := s.identities[key]; ok {
		return repository.ErrOAuthIdentityConflict
	}
	if _, ok := s.accounts[identity.AccountID]; !ok {
		return repository.ErrAccountNotFound
	}

	identity.ID = uuid.New()
	copied := *identity
	s.identities[key] = &copied

	r.tx.undo = append(r.tx.undo, func() { delete(s.identities, key) })

	return nil
}

func (r *fakeIdentityRepo) UpdateDisplay(_ context.Context, identity *entity.OAuthIdentity) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(identity.Provider, identity.ProviderSubjectID)
	existing, ok := s.identities[key]
	if !ok {
		return repository.ErrOAuthIdentityNotFound
	}
	previous := *existing
	existing.RefreshDisplay(entity.ProviderProfile{
		Email:     identity.ProviderEmail,
		Nickname:  identity.ProviderNickname,
		AvatarURL: identity.ProviderAvatarURL,
	})

	r.tx.undo = append(r.tx.undo, func() { *existing = previous })

	return nil
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	tx *fakeTx
}

func (r *fakeRefreshRepo) FindActiveByAccount(_ context.Context, accountID uuid.UUID) (*entity.ActiveRefreshToken, error) {
	if token := r.tx.store.activeToken(accountID); token != nil {
		return token, nil
	}

	return nil, repository.ErrRefreshTokenNotFound
}

func (r *fakeRefreshRepo) ReplaceActive(_ context.Context, next *entity.ActiveRefreshToken, consumedAt time.Time) (*entity.ActiveRefreshToken, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var retired *entity.ActiveRefreshToken
	if current, ok := s.active[next.AccountID]; ok {
		if err := r.retireLocked(current, consumedAt); err != nil {
			return nil, err
		}
		copied := *current
		retired = &copied
	}

	next.ID = uuid.New()
	copied := *next
	s.active[next.AccountID] = &copied

	accountID := next.AccountID
	r.tx.undo = append(r.tx.undo, func() { delete(s.active, accountID) })

	return retired, nil
}

func (r *fakeRefreshRepo) RetireActive(_ context.Context, token *entity.ActiveRefreshToken, consumedAt time.Time) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.active[token.AccountID]
	if !ok || current.ID != token.ID || current.TokenHash != token.TokenHash {
		return repository.ErrRefreshTokenNotFound
	}

	return r.retireLocked(current, consumedAt)
}

// retireLocked expects store.mu to be held.
func (r *fakeRefreshRepo) retireLocked(current *entity.ActiveRefreshToken, consumedAt time.Time) error {
	s := r.tx.store
	if _, ok := s.history[current.TokenHash]; ok {
		return repository.ErrHistoryEntryConflict
	}

	entry := current.Retire(consumedAt)
	entry.ID = uuid.New()
	s.history[entry.TokenHash] = entry
	delete(s.active, current.AccountID)

	restored := *current
	r.tx.undo = append(r.tx.undo, func() {
		delete(s.history, restored.TokenHash)
		s.active[restored.AccountID] = &restored
	})

	return nil
}

func (r *fakeRefreshRepo) DeleteAllActive(_ context.Context, accountID uuid.UUID) (int64, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.active[accountID]
	if !ok {
		return 0, nil
	}
	delete(s.active, accountID)

	restored := *current
	r.tx.undo = append(r.tx.undo, func() { s.active[accountID] = &restored })

	return 1, nil
}

type fakeHistoryRepo struct {
	tx *fakeTx
}

func (r *fakeHistoryRepo) Append(_ context.Context, entry *entity.RefreshTokenHistoryEntry) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history[entry.TokenHash]; ok {
		return repository.ErrHistoryEntryConflict
	}
	entry.ID = uuid.New()
	copied := *entry
	s.history[entry.TokenHash] = &copied

	hash := entry.TokenHash
	r.tx.undo = append(r.tx.undo, func() { delete(s.history, hash) })

	return nil
}

func (r *fakeHistoryRepo) FindByTokenHash(_ context.Context, tokenHash string) (*entity.RefreshTokenHistoryEntry, error) {
	if entry := r.tx.store.historyEntry(tokenHash); entry != nil {
		return entry, nil
	}

	return nil, repository.ErrHistoryEntryNotFound
}

func (r *fakeHistoryRepo) IncrementReuseCount(_ context.Context, id uuid.UUID) (int, error) {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.history {
		if entry.ID == id {
			entry.ReuseCount++
			target := entry
			r.tx.undo = append(r.tx.undo, func() { target.ReuseCount-- })

			return entry.ReuseCount, nil
		}
	}

	return 0, repository.ErrHistoryEntryNotFound
}

// --- token primitives ---

type fakeCodec struct {
	counter atomic.Int64
}

func (c *fakeCodec) Issue(account *entity.Account) (string, error) {
	return fmt.Sprintf("access.%s.%s.%d", account.Username, account.Role, c.counter.Add(1)), nil
}

func (c *fakeCodec) Verify(token string) (*service.AccessTokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] != "access" {
		return nil, errors.New("malformed")
	}

	return &service.AccessTokenClaims{Username: parts[1], Role: entity.Role(parts[2])}, nil
}

func (c *fakeCodec) AccessTokenTTL() time.Duration {
	return 30 * time.Minute
}

type fakeGenerator struct {
	counter atomic.Int64
	err     error
}

func (g *fakeGenerator) Generate() (string, error) {
	if g.err != nil {
		return "", g.err
	}

	return fmt.Sprintf("refresh-%d", g.counter.Add(1)), nil
}

type fakeTokenHasher struct{}

func (fakeTokenHasher) Hash(raw string) string {
	return "digest:" + raw
}

func (h fakeTokenHasher) Matches(raw, digest string) bool {
	return h.Hash(raw) == digest
}

type fakePasswordHasher struct {
	err error
}

func (h *fakePasswordHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}

	return "hashed:" + password, nil
}

func (h *fakePasswordHasher) Check(password, hash string) bool {
	return hash == "hashed:"+password
}

// --- oauth collaborators ---

type fakeGateway struct {
	mu        sync.Mutex
	users     map[string]*service.NormalizedUserInfo
	exchanged []string
	delay     time.Duration
	err       error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{users: make(map[string]*service.NormalizedUserInfo)}
}

func (g *fakeGateway) withUser(code string, info *service.NormalizedUserInfo) *fakeGateway {
	g.users["token-for-"+code] = info

	return g
}

func (g *fakeGateway) ExchangeCode(ctx context.Context, _ entity.ProviderType, code string) (string, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}

	g.mu.Lock()
	g.exchanged = append(g.exchanged, code)
	g.mu.Unlock()

	return "token-for-" + code, nil
}

func (g *fakeGateway) FetchUserInfo(_ context.Context, _ entity.ProviderType, accessToken string) (*service.NormalizedUserInfo, error) {
	info, ok := g.users[accessToken]
	if !ok {
		return nil, errors.New("unknown provider token")
	}
	copied := *info

	return &copied, nil
}

func (g *fakeGateway) AuthorizationURL(provider entity.ProviderType, state string) (string, error) {
	return "https://provider.example/" + strings.ToLower(provider.String()) + "?state=" + state, nil
}

type fakeIDTokenVerifier struct {
	info *service.NormalizedUserInfo
	err  error
}

func (v *fakeIDTokenVerifier) Verify(_ context.Context, _ string) (*service.NormalizedUserInfo, error) {
	if v.err != nil {
		return nil, v.err
	}
	copied := *v.info

	return &copied, nil
}

type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]entity.ProviderType
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]entity.ProviderType)}
}

func (s *fakeStateStore) Save(_ context.Context, state string, provider entity.ProviderType, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state] = provider

	return nil
}

func (s *fakeStateStore) Consume(_ context.Context, state string, provider entity.ProviderType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.states[state]
	delete(s.states, state)

	return ok && stored == provider, nil
}
