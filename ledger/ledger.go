// Package ledger implements the simulated cash account: an append-only
// sequence of transaction records answered with request/response semantics.
// Requests are never errors; a request the account cannot honour is declined
// and the reason travels back in the Response.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var ErrNegativeInitialDeposit = errors.New("initial deposit must not be negative")

type Kind int

const (
	Deposit Kind = iota + 1
	Withdrawal
)

func (k Kind) String() string {
	switch k {
	case Deposit:
		return "Deposit"
	case Withdrawal:
		return "Withdrawal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Outcome int

const (
	Approved  Outcome = iota + 1 // withdrawal honoured
	Confirmed                    // deposit honoured
	Declined
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "Approved"
	case Confirmed:
		return "Confirmed"
	case Declined:
		return "Declined"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

type DeclineReason int

const (
	NoReason DeclineReason = iota
	InsufficientFunds
	NegativeAmountRequested
	NegativeAmountDeposited
)

func (r DeclineReason) String() string {
	switch r {
	case NoReason:
		return ""
	case InsufficientFunds:
		return "InsufficientFunds"
	case NegativeAmountRequested:
		return "NegativeAmountRequested"
	case NegativeAmountDeposited:
		return "NegativeAmountDeposited"
	}
	return fmt.Sprintf("DeclineReason(%d)", int(r))
}

// Record is one line of the audit trail. Declined requests are recorded too,
// with NewBalance equal to PreviousBalance.
type Record struct {
	Seq             int
	Kind            Kind
	Outcome         Outcome
	Reason          DeclineReason
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
}

type Response struct {
	Outcome Outcome
	Reason  DeclineReason
	Record  Record
}

// Ok reports whether the request was approved or confirmed.
func (r Response) Ok() bool {
	return r.Outcome != Declined
}

// Listener observes every appended record, including the initial deposit.
// It runs with the ledger locked and must not call back into it.
type Listener func(Record)

type Option func(*Ledger)

func WithListener(fn Listener) Option {
	return func(l *Ledger) { l.listener = fn }
}

type Ledger struct {
	mu       sync.Mutex
	records  []Record
	listener Listener
}

// New opens an account with a single confirmed deposit of initial.
func New(initial decimal.Decimal, opts ...Option) (*Ledger, error) {
	if initial.IsNegative() {
		return nil, fmt.Errorf("ledger: %w: %s", ErrNegativeInitialDeposit, initial)
	}
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	l.appendLocked(Record{
		Kind:            Deposit,
		Outcome:         Confirmed,
		Amount:          initial,
		PreviousBalance: decimal.Zero,
		NewBalance:      initial,
	})
	return l, nil
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked()
}

// History returns a copy of the records in the order they were appended.
func (l *Ledger) History() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Ledger) SubmitWithdrawal(amount decimal.Decimal) Response {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked()
	rec := Record{
		Kind:            Withdrawal,
		Amount:          amount,
		PreviousBalance: bal,
		NewBalance:      bal,
	}
	switch {
	case amount.IsNegative():
		rec.Outcome, rec.Reason = Declined, NegativeAmountRequested
	case amount.GreaterThan(bal):
		rec.Outcome, rec.Reason = Declined, InsufficientFunds
	default:
		rec.Outcome = Approved
		rec.NewBalance = bal.Sub(amount)
	}
	return l.respondLocked(rec)
}

func (l *Ledger) SubmitDeposit(amount decimal.Decimal) Response {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked()
	rec := Record{
		Kind:            Deposit,
		Amount:          amount,
		PreviousBalance: bal,
		NewBalance:      bal,
	}
	if amount.IsNegative() {
		rec.Outcome, rec.Reason = Declined, NegativeAmountDeposited
	} else {
		rec.Outcome = Confirmed
		rec.NewBalance = bal.Add(amount)
	}
	return l.respondLocked(rec)
}

func (l *Ledger) respondLocked(rec Record) Response {
	rec = l.appendLocked(rec)
	return Response{Outcome: rec.Outcome, Reason: rec.Reason, Record: rec}
}

func (l *Ledger) appendLocked(rec Record) Record {
	rec.Seq = len(l.records)
	l.records = append(l.records, rec)
	if l.listener != nil {
		l.listener(rec)
	}
	return rec
}

func (l *Ledger) balanceLocked() decimal.Decimal {
	return l.records[len(l.records)-1].NewBalance
}
