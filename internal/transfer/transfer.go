// Package transfer defines the external asset-custody collaborator. The vault
// treats every transfer as all-or-nothing: a failure here rolls back the whole
// enclosing operation.
package transfer

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrRejected indicates the custodian refused the transfer, for example for
// insufficient allowance or funds on the external side.
var ErrRejected = errors.New("transfer rejected by custodian")

// Request describes one asset movement between the vault and an account.
type Request struct {
	Account   string
	Asset     string
	Amount    uint64
	Reference string
}

// Receipt captures the custodian's acknowledgement.
type Receipt struct {
	Reference string
	Status    string
}

// Transferor is a connector to the external custodian holding the actual
// tokens. Implementations must either apply the transfer fully or fail with
// no effect.
type Transferor interface {
	TransferIn(ctx context.Context, req Request) (Receipt, error)
	TransferOut(ctx context.Context, req Request) (Receipt, error)
}

// StaticTransferor simulates a custodian that approves everything. Used in
// development and as the default wiring when no connector is configured.
type StaticTransferor struct{}

// TransferIn approves the inbound movement with a synthetic reference.
func (StaticTransferor) TransferIn(_ context.Context, req Request) (Receipt, error) {
	return Receipt{Reference: reference(req), Status: "settled"}, nil
}

// TransferOut approves the outbound movement with a synthetic reference.
func (StaticTransferor) TransferOut(_ context.Context, req Request) (Receipt, error) {
	return Receipt{Reference: reference(req), Status: "settled"}, nil
}

func reference(req Request) string {
	if req.Reference != "" {
		return req.Reference
	}
	return uuid.NewString()
}
