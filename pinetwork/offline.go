package pinetwork

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const (
	OpAuthenticate = "authenticate"
	OpCreate       = "create"
	OpComplete     = "complete"
	OpCancel       = "cancel"
	OpGet          = "get"
)

// Offline is an in-process Network. It backs local runs without a
// PI_API_KEY and the tests of packages that need a payment network.
// Unknown access tokens authenticate as a user named after the token.
type Offline struct {
	mu       sync.Mutex
	users    map[string]User
	payments map[string]*Payment
	failures map[string]error
	calls    map[string]int
}

var _ Network = (*Offline)(nil)

func NewOffline() *Offline {
	return &Offline{
		users:    make(map[string]User),
		payments: make(map[string]*Payment),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (o *Offline) AddUser(accessToken string, u User) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.users[accessToken] = u
}

// Fail makes every later call of op return err; a nil err clears it.
func (o *Offline) Fail(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.failures, op)
		return
	}
	o.failures[op] = err
}

// Calls reports how many times op was invoked, failed calls included.
func (o *Offline) Calls(op string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[op]
}

// Payment returns a copy of the stored payment.
func (o *Offline) Payment(id string) (Payment, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.payments[id]
	if !ok {
		return Payment{}, false
	}
	return clonePayment(p), true
}

// Settle marks a payment as completed by the user's wallet, as if the
// developer-completion step happened out of band.
func (o *Offline) Settle(id, txid string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.payments[id]; ok {
		p.Status.TransactionVerified = true
		p.Status.DeveloperCompleted = true
		p.Transaction = &Transaction{TxID: txid, Verified: true}
	}
}

// Abandon marks a payment as cancelled by the user.
func (o *Offline) Abandon(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.payments[id]; ok {
		p.Status.UserCancelled = true
	}
}

func (o *Offline) AuthenticateUser(_ context.Context, accessToken string) (*User, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enter(OpAuthenticate); err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	if u, ok := o.users[accessToken]; ok {
		return &u, nil
	}
	return &User{UID: "offline-" + accessToken, Username: accessToken}, nil
}

func (o *Offline) CreatePayment(_ context.Context, args PaymentArgs) (*Payment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enter(OpCreate); err != nil {
		return nil, err
	}
	p := &Payment{
		Identifier: uuid.NewString(),
		UserUID:    args.UID,
		Amount:     args.Amount,
		Memo:       args.Memo,
		Metadata:   args.Metadata,
		Status:     PaymentFlags{DeveloperApproved: true},
	}
	o.payments[p.Identifier] = p
	out := clonePayment(p)
	return &out, nil
}

func (o *Offline) CompletePayment(_ context.Context, paymentID, txid string) (*Payment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.lookup(OpComplete, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.Cancelled || p.Status.UserCancelled {
		return nil, fmt.Errorf("%w: payment %s is cancelled", ErrRequest, paymentID)
	}
	p.Status.TransactionVerified = true
	p.Status.DeveloperCompleted = true
	p.Transaction = &Transaction{TxID: txid, Verified: true}
	out := clonePayment(p)
	return &out, nil
}

func (o *Offline) CancelPayment(_ context.Context, paymentID string) (*Payment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.lookup(OpCancel, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.DeveloperCompleted {
		return nil, fmt.Errorf("%w: payment %s is already completed", ErrRequest, paymentID)
	}
	p.Status.Cancelled = true
	out := clonePayment(p)
	return &out, nil
}

func (o *Offline) GetPaymentStatus(_ context.Context, paymentID string) (*Payment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, err := o.lookup(OpGet, paymentID)
	if err != nil {
		return nil, err
	}
	out := clonePayment(p)
	return &out, nil
}

func (o *Offline) enter(op string) error {
	o.calls[op]++
	return o.failures[op]
}

func (o *Offline) lookup(op, paymentID string) (*Payment, error) {
	if err := o.enter(op); err != nil {
		return nil, err
	}
	p, ok := o.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", ErrRequest, paymentID)
	}
	return p, nil
}

func clonePayment(p *Payment) Payment {
	out := *p
	if p.Transaction != nil {
		tx := *p.Transaction
		out.Transaction = &tx
	}
	return out
}
