package tx

import "context"

// MockManager is a test implementation of Manager that runs the function
// without a real transaction. Use in unit tests to avoid database
// dependencies.
type MockManager struct {
	// RunFunc overrides the default passthrough behavior when set.
	RunFunc func(ctx context.Context, fn func(ctx context.Context) error) error

	// Calls counts RunInTransaction invocations.
	Calls int
}

// RunInTransaction implements Manager.
func (m *MockManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	if m.RunFunc != nil {
		return m.RunFunc(ctx, fn)
	}
	return fn(ctx)
}

// Ensure compile-time interface compliance.
var _ Manager = (*MockManager)(nil)
