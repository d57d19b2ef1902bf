package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func newLedger(t *testing.T, initial float64) *Ledger {
	t.Helper()
	l, err := New(d(initial))
	require.NoError(t, err)
	return l
}

func TestNewRecordsInitialDeposit(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 10000)
	h := l.History()
	require.Len(t, h, 1)
	assert.Equal(t, Deposit, h[0].Kind)
	assert.Equal(t, Confirmed, h[0].Outcome)
	assert.True(t, h[0].PreviousBalance.IsZero())
	assert.True(t, h[0].NewBalance.Equal(d(10000)))
	assert.True(t, l.Balance().Equal(d(10000)))
}

func TestNewRejectsNegativeInitialDeposit(t *testing.T) {
	t.Parallel()

	_, err := New(d(-1))
	assert.ErrorIs(t, err, ErrNegativeInitialDeposit)
}

func TestScenario(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 10000)

	r := l.SubmitWithdrawal(d(10))
	assert.Equal(t, Approved, r.Outcome)
	assert.Equal(t, NoReason, r.Reason)
	assert.True(t, r.Ok())
	assert.True(t, l.Balance().Equal(d(9990)))

	r = l.SubmitWithdrawal(d(50000))
	assert.Equal(t, Declined, r.Outcome)
	assert.Equal(t, InsufficientFunds, r.Reason)
	assert.False(t, r.Ok())
	assert.True(t, l.Balance().Equal(d(9990)))

	r = l.SubmitDeposit(d(-1))
	assert.Equal(t, Declined, r.Outcome)
	assert.Equal(t, NegativeAmountDeposited, r.Reason)
	assert.True(t, l.Balance().Equal(d(9990)))
}

func TestDeclineReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		submit func(*Ledger) Response
		want   Outcome
		reason DeclineReason
		bal    float64
	}{
		{"withdraw all", func(l *Ledger) Response { return l.SubmitWithdrawal(d(100)) }, Approved, NoReason, 0},
		{"withdraw zero", func(l *Ledger) Response { return l.SubmitWithdrawal(d(0)) }, Approved, NoReason, 100},
		{"withdraw negative", func(l *Ledger) Response { return l.SubmitWithdrawal(d(-5)) }, Declined, NegativeAmountRequested, 100},
		{"overdraw by a cent", func(l *Ledger) Response { return l.SubmitWithdrawal(d(100.01)) }, Declined, InsufficientFunds, 100},
		{"deposit", func(l *Ledger) Response { return l.SubmitDeposit(d(5.5)) }, Confirmed, NoReason, 105.5},
		{"deposit negative", func(l *Ledger) Response { return l.SubmitDeposit(d(-0.01)) }, Declined, NegativeAmountDeposited, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newLedger(t, 100)
			r := tt.submit(l)
			assert.Equal(t, tt.want, r.Outcome)
			assert.Equal(t, tt.reason, r.Reason)
			assert.True(t, l.Balance().Equal(d(tt.bal)), "balance %s", l.Balance())
		})
	}
}

func TestHistoryIsAppendOnlyAuditTrail(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 50)
	l.SubmitWithdrawal(d(20))
	l.SubmitWithdrawal(d(100))
	l.SubmitDeposit(d(5))

	h := l.History()
	require.Len(t, h, 4)
	for i, rec := range h {
		assert.Equal(t, i, rec.Seq)
		if i > 0 {
			assert.True(t, rec.PreviousBalance.Equal(h[i-1].NewBalance))
		}
		if rec.Outcome == Declined {
			assert.True(t, rec.NewBalance.Equal(rec.PreviousBalance))
		}
	}
	assert.True(t, l.Balance().Equal(h[len(h)-1].NewBalance))

	// mutating the copy must not leak into the ledger
	h[0].NewBalance = d(1e9)
	assert.True(t, l.History()[0].NewBalance.Equal(d(50)))
}

func TestBalanceEqualsApprovedFlows(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 50; run++ {
		initial := decimal.NewFromInt(int64(rng.Intn(10000)))
		l, err := New(initial)
		require.NoError(t, err)

		want := initial
		for i := 0; i < 200; i++ {
			amt := decimal.NewFromInt(int64(rng.Intn(4000) - 1000))
			if rng.Intn(2) == 0 {
				before := l.Balance()
				r := l.SubmitWithdrawal(amt)
				if r.Ok() {
					want = want.Sub(amt)
				} else {
					assert.True(t, l.Balance().Equal(before))
				}
			} else {
				before := l.Balance()
				r := l.SubmitDeposit(amt)
				if r.Ok() {
					want = want.Add(amt)
				} else {
					assert.True(t, l.Balance().Equal(before))
				}
			}
			require.False(t, l.Balance().IsNegative())
		}
		assert.True(t, want.Equal(l.Balance()), "want %s got %s", want, l.Balance())
	}
}

func TestListenerSeesEveryRecord(t *testing.T) {
	t.Parallel()

	var got []Record
	l, err := New(d(10), WithListener(func(r Record) { got = append(got, r) }))
	require.NoError(t, err)

	l.SubmitWithdrawal(d(20))
	l.SubmitDeposit(d(1))

	require.Len(t, got, 3)
	assert.Equal(t, Confirmed, got[0].Outcome)
	assert.Equal(t, InsufficientFunds, got[1].Reason)
	assert.Equal(t, Deposit, got[2].Kind)
}
