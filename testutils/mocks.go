package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockSender satisfies verification.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	args := m.Called(ctx, email, code, ttl)
	return args.Error(0)
}

// RecordingSender keeps every delivered code, keyed by email, for tests that need to
// read the code back.
type RecordingSender struct {
	mu    sync.Mutex
	codes map[string][]string
	Err   error
}

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{codes: make(map[string][]string)}
}

func (r *RecordingSender) SendVerificationCode(_ context.Context, email, code string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[email] = append(r.codes[email], code)
	return r.Err
}

func (r *RecordingSender) Last(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := r.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (r *RecordingSender) Count(email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes[email])
}
