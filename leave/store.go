package leave

import (
	"context"

	"github.com/warp/leave-ledger/ledger"
)

// EmployeeStore reads employee leave data and writes the cached balance.
type EmployeeStore interface {
	// GetEmployee returns *ledger.NotFoundError for unknown ids.
	GetEmployee(ctx context.Context, id ledger.EmployeeID) (*Employee, error)

	ListEmployees(ctx context.Context) ([]Employee, error)

	// CreateEmployee inserts a new employee record. The cached balance is
	// left at zero until the first sync.
	CreateEmployee(ctx context.Context, e Employee) error

	// UpdateEmployee replaces the config and legacy fields. Unknown ids
	// return *ledger.NotFoundError. The cached balance is left alone.
	UpdateEmployee(ctx context.Context, e Employee) error

	// SaveCachedBalance overwrites the denormalized balance fields.
	// Only the Synchronizer calls this.
	SaveCachedBalance(ctx context.Context, id ledger.EmployeeID, c CachedBalance) error
}

// Repository is everything one unit of work touches.
type Repository interface {
	ledger.Store
	EmployeeStore
}

// TxRepository runs a unit of work inside one database transaction.
// If fn returns an error the transaction is rolled back.
type TxRepository interface {
	Repository
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Notifier is told about balance changes after the transaction commits.
// Dispatch (email, push) lives outside this package.
type Notifier interface {
	BalanceChanged(ctx context.Context, employeeID ledger.EmployeeID, summary ledger.Summary)
}
