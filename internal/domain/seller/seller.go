package seller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested seller does not exist.
var ErrNotFound = errors.New("seller not found")

// Seller is an account that owns catalog products. Products of a seller that
// has not been approved by an admin are hidden from customer-facing reads.
type Seller struct {
	ID         string
	Email      string
	Username   string
	Addresses  []json.RawMessage
	IsApproved bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository defines persistence operations for sellers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Seller, error)
	GetByIDs(ctx context.Context, ids []string) ([]Seller, error)
	List(ctx context.Context) ([]Seller, error)
	SetApproval(ctx context.Context, id string, approved bool) (*Seller, error)
}

// ApprovedSet returns the ids of approved sellers among the given ones.
func ApprovedSet(ctx context.Context, repo Repository, ids []string) (map[string]bool, error) {
	approved := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return approved, nil
	}
	sellers, err := repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get sellers")
	}
	for _, s := range sellers {
		if s.IsApproved {
			approved[s.ID] = true
		}
	}
	return approved, nil
}
