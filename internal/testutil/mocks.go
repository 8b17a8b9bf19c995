package testutil

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func paginate[T any](items []T, page domain.Page) []T {
	if page.Skip >= len(items) {
		return []T{}
	}
	end := page.Skip + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Skip:end]
}

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	mu       sync.Mutex
	ByID     map[uuid.UUID]*domain.User
	CreateFn func(user *domain.User) (*domain.User, error)
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		ByID: make(map[uuid.UUID]*domain.User),
	}
}

// AddUser adds a user to the mock repository (helper for tests)
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.ByID[user.ID] = user
}

// Create stores a new user, enforcing unique username and email
func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if m.CreateFn != nil {
		return m.CreateFn(user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.ByID {
		if strings.EqualFold(u.Username, user.Username) {
			return nil, domain.ErrUsernameTaken
		}
		if strings.EqualFold(u.Email, user.Email) {
			return nil, domain.ErrEmailTaken
		}
	}
	created := *user
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.ByID[created.ID] = &created
	return &created, nil
}

// GetByID retrieves a user by ID
func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.ByID[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// GetByUsername retrieves a user by username
func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.ByID {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// GetByEmail retrieves a user by email
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.ByID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// List returns users ordered by creation time
func (m *MockUserRepository) List(ctx context.Context, page domain.Page) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*domain.User, 0, len(m.ByID))
	for _, u := range m.ByID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return paginate(users, page), nil
}

// Update replaces a stored user
func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByID[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	updated := *user
	updated.UpdatedAt = time.Now()
	m.ByID[user.ID] = &updated
	return &updated, nil
}

// UpdatePassword replaces a user's password hash
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.ByID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

// Delete removes a user
func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ByID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.ByID, id)
	return nil
}

// MockLoanApplicationRepository is a mock implementation of domain.LoanApplicationRepository.
// Approve writes the generated schedule into Schedules.
type MockLoanApplicationRepository struct {
	mu        sync.Mutex
	Loans     map[int32]*domain.LoanApplication
	NextID    int32
	Schedules *MockRepaymentScheduleRepository
	ApproveFn func(id int32, review domain.LoanReview, schedule []*domain.RepaymentScheduleEntry) (*domain.LoanApplication, error)
	// BeforeUpdate runs at the start of Update, outside the lock
	BeforeUpdate func(id int32)
}

// NewMockLoanApplicationRepository creates a new MockLoanApplicationRepository
func NewMockLoanApplicationRepository(schedules *MockRepaymentScheduleRepository) *MockLoanApplicationRepository {
	return &MockLoanApplicationRepository{
		Loans:     make(map[int32]*domain.LoanApplication),
		NextID:    1,
		Schedules: schedules,
	}
}

// AddLoan adds a loan to the mock repository (helper for tests)
func (m *MockLoanApplicationRepository) AddLoan(loan *domain.LoanApplication) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.ID == 0 {
		loan.ID = m.NextID
		m.NextID++
	} else if loan.ID >= m.NextID {
		m.NextID = loan.ID + 1
	}
	m.Loans[loan.ID] = loan
}

// Create stores a new application
func (m *MockLoanApplicationRepository) Create(ctx context.Context, loan *domain.LoanApplication) (*domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *loan
	created.ID = m.NextID
	m.NextID++
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.Loans[created.ID] = &created
	return &created, nil
}

// GetByID retrieves an application by ID
func (m *MockLoanApplicationRepository) GetByID(ctx context.Context, id int32) (*domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan, ok := m.Loans[id]; ok {
		copied := *loan
		return &copied, nil
	}
	return nil, domain.ErrLoanNotFound
}

func (m *MockLoanApplicationRepository) sorted(filter func(*domain.LoanApplication) bool) []*domain.LoanApplication {
	loans := make([]*domain.LoanApplication, 0, len(m.Loans))
	for _, l := range m.Loans {
		if filter(l) {
			loans = append(loans, l)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].ID > loans[j].ID })
	return loans
}

// List returns applications newest first
func (m *MockLoanApplicationRepository) List(ctx context.Context, page domain.Page) ([]*domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return paginate(m.sorted(func(*domain.LoanApplication) bool { return true }), page), nil
}

// ListByApplicant returns one applicant's applications newest first
func (m *MockLoanApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID, page domain.Page) ([]*domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return paginate(m.sorted(func(l *domain.LoanApplication) bool { return l.ApplicantID == applicantID }), page), nil
}

// Update replaces a stored application if its status is still expected
func (m *MockLoanApplicationRepository) Update(ctx context.Context, loan *domain.LoanApplication, expected domain.LoanStatus) (*domain.LoanApplication, error) {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(loan.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Loans[loan.ID]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	if stored.Status != expected {
		return nil, domain.ErrLoanTransitionInvalid
	}
	updated := *loan
	updated.UpdatedAt = time.Now()
	m.Loans[loan.ID] = &updated
	return &updated, nil
}

// Approve marks the application approved and stores its schedule
func (m *MockLoanApplicationRepository) Approve(ctx context.Context, id int32, review domain.LoanReview, schedule []*domain.RepaymentScheduleEntry) (*domain.LoanApplication, error) {
	if m.ApproveFn != nil {
		return m.ApproveFn(id, review, schedule)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	if !loan.Status.IsReviewable() {
		return nil, domain.ErrLoanNotReviewable
	}
	if m.Schedules != nil {
		if err := m.Schedules.insert(id, schedule); err != nil {
			return nil, err
		}
	}
	applyReview(loan, domain.LoanStatusApproved, review)
	copied := *loan
	return &copied, nil
}

// Reject marks the application rejected
func (m *MockLoanApplicationRepository) Reject(ctx context.Context, id int32, review domain.LoanReview) (*domain.LoanApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	if !loan.Status.IsReviewable() {
		return nil, domain.ErrLoanNotReviewable
	}
	applyReview(loan, domain.LoanStatusRejected, review)
	copied := *loan
	return &copied, nil
}

func applyReview(loan *domain.LoanApplication, status domain.LoanStatus, review domain.LoanReview) {
	reviewer := review.ReviewerID
	reviewedAt := review.ReviewedAt
	loan.Status = status
	loan.ReviewedByID = &reviewer
	loan.ReviewedAt = &reviewedAt
	if review.Comments != nil {
		loan.ReviewComments = review.Comments
	}
	loan.UpdatedAt = time.Now()
}

// MockRepaymentScheduleRepository is a mock implementation of domain.RepaymentScheduleRepository
type MockRepaymentScheduleRepository struct {
	mu      sync.Mutex
	Entries map[int32]*domain.RepaymentScheduleEntry
	NextID  int32
}

// NewMockRepaymentScheduleRepository creates a new MockRepaymentScheduleRepository
func NewMockRepaymentScheduleRepository() *MockRepaymentScheduleRepository {
	return &MockRepaymentScheduleRepository{
		Entries: make(map[int32]*domain.RepaymentScheduleEntry),
		NextID:  1,
	}
}

func (m *MockRepaymentScheduleRepository) insert(loanID int32, schedule []*domain.RepaymentScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.LoanID == loanID {
			return domain.ErrScheduleAlreadyCreated
		}
	}
	for _, e := range schedule {
		stored := *e
		stored.ID = m.NextID
		stored.LoanID = loanID
		m.NextID++
		m.Entries[stored.ID] = &stored
	}
	return nil
}

// AddSchedule stores entries for a loan (helper for tests)
func (m *MockRepaymentScheduleRepository) AddSchedule(loanID int32, schedule []*domain.RepaymentScheduleEntry) {
	_ = m.insert(loanID, schedule)
}

// GetByID retrieves one entry
func (m *MockRepaymentScheduleRepository) GetByID(ctx context.Context, id int32) (*domain.RepaymentScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Entries[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, domain.ErrScheduleEntryNotFound
}

func (m *MockRepaymentScheduleRepository) byLoan(loanID int32) []*domain.RepaymentScheduleEntry {
	entries := make([]*domain.RepaymentScheduleEntry, 0)
	for _, e := range m.Entries {
		if e.LoanID == loanID {
			copied := *e
			entries = append(entries, &copied)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].InstallmentNumber < entries[j].InstallmentNumber })
	return entries
}

// ListByLoan returns a loan's full schedule in installment order
func (m *MockRepaymentScheduleRepository) ListByLoan(ctx context.Context, loanID int32) ([]*domain.RepaymentScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byLoan(loanID), nil
}

// ListByLoanPage returns a page of a loan's schedule
func (m *MockRepaymentScheduleRepository) ListByLoanPage(ctx context.Context, loanID int32, page domain.Page) ([]*domain.RepaymentScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return paginate(m.byLoan(loanID), page), nil
}

// CountByLoan returns the number of entries in a loan's schedule
func (m *MockRepaymentScheduleRepository) CountByLoan(ctx context.Context, loanID int32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byLoan(loanID)), nil
}

// MarkMissed flags pending unsettled entries due before cutoff
func (m *MockRepaymentScheduleRepository) MarkMissed(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.Entries {
		if e.Status == domain.RepaymentStatusPending && !e.IsSettled() && e.DueDate.Before(cutoff) {
			e.Status = domain.RepaymentStatusMissed
			n++
		}
	}
	return n, nil
}

// MockPaymentRepository is a mock implementation of domain.PaymentRepository
// operating on the entries of a MockRepaymentScheduleRepository
type MockPaymentRepository struct {
	mu        sync.Mutex
	Payments  []*domain.Payment
	NextID    int32
	Schedules *MockRepaymentScheduleRepository
	Loans     *MockLoanApplicationRepository
}

// NewMockPaymentRepository creates a new MockPaymentRepository
func NewMockPaymentRepository(schedules *MockRepaymentScheduleRepository, loans *MockLoanApplicationRepository) *MockPaymentRepository {
	return &MockPaymentRepository{
		NextID:    1,
		Schedules: schedules,
		Loans:     loans,
	}
}

// Record applies the payment to the entry and appends it to the ledger
func (m *MockPaymentRepository) Record(ctx context.Context, payment *domain.Payment, apply func(entry *domain.RepaymentScheduleEntry) error) (*domain.Payment, *domain.RepaymentScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.TransactionReference == payment.TransactionReference {
			return nil, nil, domain.ErrPaymentReferenceTaken
		}
	}

	m.Schedules.mu.Lock()
	stored, ok := m.Schedules.Entries[payment.ScheduleID]
	if !ok {
		m.Schedules.mu.Unlock()
		return nil, nil, domain.ErrScheduleEntryNotFound
	}
	working := *stored
	if err := apply(&working); err != nil {
		m.Schedules.mu.Unlock()
		return nil, nil, err
	}
	*stored = working
	allSettled := true
	for _, e := range m.Schedules.Entries {
		if e.LoanID == working.LoanID && !e.IsSettled() {
			allSettled = false
		}
	}
	m.Schedules.mu.Unlock()

	if allSettled && m.Loans != nil {
		m.Loans.mu.Lock()
		if loan, ok := m.Loans.Loans[working.LoanID]; ok && loan.Status.HasSchedule() {
			loan.Status = domain.LoanStatusPaidOff
		}
		m.Loans.mu.Unlock()
	}

	created := *payment
	created.ID = m.NextID
	created.LoanID = working.LoanID
	created.CreatedAt = time.Now()
	m.NextID++
	m.Payments = append(m.Payments, &created)
	return &created, &working, nil
}

// ListByLoan returns a loan's payments newest first
func (m *MockPaymentRepository) ListByLoan(ctx context.Context, loanID int32, page domain.Page) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payments := make([]*domain.Payment, 0)
	for i := len(m.Payments) - 1; i >= 0; i-- {
		if m.Payments[i].LoanID == loanID {
			payments = append(payments, m.Payments[i])
		}
	}
	return paginate(payments, page), nil
}

// GetByReference looks a payment up by transaction reference
func (m *MockPaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.TransactionReference == reference {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

// MockLoanDocumentRepository is a mock implementation of domain.LoanDocumentRepository
type MockLoanDocumentRepository struct {
	mu        sync.Mutex
	Documents map[uuid.UUID]*domain.LoanDocument
}

// NewMockLoanDocumentRepository creates a new MockLoanDocumentRepository
func NewMockLoanDocumentRepository() *MockLoanDocumentRepository {
	return &MockLoanDocumentRepository{
		Documents: make(map[uuid.UUID]*domain.LoanDocument),
	}
}

// Create stores document metadata
func (m *MockLoanDocumentRepository) Create(ctx context.Context, doc *domain.LoanDocument) (*domain.LoanDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *doc
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.CreatedAt = time.Now()
	m.Documents[created.ID] = &created
	return &created, nil
}

// GetByID retrieves a document of a loan
func (m *MockLoanDocumentRepository) GetByID(ctx context.Context, loanID int32, id uuid.UUID) (*domain.LoanDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.Documents[id]; ok && doc.LoanID == loanID {
		return doc, nil
	}
	return nil, domain.ErrDocumentNotFound
}

// ListByLoan returns a loan's documents oldest first
func (m *MockLoanDocumentRepository) ListByLoan(ctx context.Context, loanID int32) ([]*domain.LoanDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]*domain.LoanDocument, 0)
	for _, d := range m.Documents {
		if d.LoanID == loanID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	return docs, nil
}

// Delete removes a document of a loan
func (m *MockLoanDocumentRepository) Delete(ctx context.Context, loanID int32, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.Documents[id]; !ok || doc.LoanID != loanID {
		return domain.ErrDocumentNotFound
	}
	delete(m.Documents, id)
	return nil
}

// MockCache is an in-memory cache.Cache
type MockCache struct {
	mu     sync.Mutex
	Values map[string][]byte
	Hits   int
	Sets   int
}

// NewMockCache creates a new MockCache
func NewMockCache() *MockCache {
	return &MockCache{Values: make(map[string][]byte)}
}

// Get returns a cached value
func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Values[key]
	if ok {
		m.Hits++
	}
	return v, ok
}

// Set stores a value
func (m *MockCache) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Values[key] = value
	m.Sets++
	return nil
}

// MockObjectStore is an in-memory storage.ObjectStore
type MockObjectStore struct {
	mu       sync.Mutex
	Objects  map[string][]byte
	UploadFn func(key string, data []byte) error
}

// NewMockObjectStore creates a new MockObjectStore
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

// Upload stores an object
func (m *MockObjectStore) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.UploadFn != nil {
		if err := m.UploadFn(key, data); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = data
	return key, nil
}

// Delete removes an object
func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	return nil
}

// GeneratePresignedURL returns a fake URL for key
func (m *MockObjectStore) GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + key + "?expires=" + expiry.String(), nil
}

// Keys returns the stored object keys in sorted order
func (m *MockObjectStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.Objects))
	for k := range m.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PublishedEvent is an event captured by MockEventPublisher
type PublishedEvent struct {
	UserID    uuid.UUID
	Reviewers bool
	Event     websocket.Event
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records an event for a user
func (m *MockEventPublisher) Publish(userID uuid.UUID, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{UserID: userID, Event: event})
}

// PublishToReviewers records an event for reviewers
func (m *MockEventPublisher) PublishToReviewers(event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{Reviewers: true, Event: event})
}

// Types returns the recorded event types in publish order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Event.Type
	}
	return types
}

// MockRecorder counts domain metric observations
type MockRecorder struct {
	mu           sync.Mutex
	Applications map[string]int
	Approved     int
	Rejected     int
	Payments     int
	PaidAmount   decimal.Decimal
	Missed       int64
}

// NewMockRecorder creates a new MockRecorder
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{Applications: make(map[string]int)}
}

func (m *MockRecorder) LoanApplicationSubmitted(loanType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Applications[loanType]++
}

func (m *MockRecorder) LoanApproved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Approved++
}

func (m *MockRecorder) LoanRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejected++
}

func (m *MockRecorder) PaymentRecorded(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments++
	m.PaidAmount = m.PaidAmount.Add(decimal.NewFromFloat(amount))
}

func (m *MockRecorder) EntriesMissed(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Missed += n
}
