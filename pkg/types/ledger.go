package types

import (
	"context"
	"fmt"
)

// Funding parameters shared by every revision. They do not change across an
// upgrade.
const (
	// FundingGoal is the number of unique contributors required before the
	// administrator may withdraw.
	FundingGoal = 5

	// MinimumFundingV1 is the smallest contribution revision 1 accepts (0.001).
	MinimumFundingV1 = Coin / 1000

	// MinimumFundingV2 is the smallest contribution revision 2 accepts (0.0005).
	MinimumFundingV2 = Coin / 2000
)

// Revision identifies which logic set is authoritative over the persisted
// state. It only increases, by exactly one, through a migration hook.
type Revision int

// Known revisions. RevisionNone is the tag of a ledger that has not been
// initialized.
const (
	RevisionNone Revision = 0
	Revision1    Revision = 1
	Revision2    Revision = 2
)

// Logic references the upgrade controller can point execution at.
const (
	LogicContributionV1 = "contribution-ledger/v1"
	LogicRefundableV2   = "refundable-ledger/v2"
)

// State is the single long-lived record every revision reads and writes.
// Fields added by later revisions are additive: a record written by revision 1
// loads unchanged and simply leaves them at their zero values.
type State struct {
	// Administrator may withdraw, toggle refunds, and authorize upgrades.
	Administrator Identity

	// Revision is the currently authoritative logic revision.
	Revision Revision

	// Logic is the logic reference execution is currently pointed at.
	Logic string

	// Contributors lists unique identities in first-contribution order.
	// Append-only.
	Contributors []Identity

	// HasContributed mirrors Contributors for constant-time membership checks.
	HasContributed map[Identity]bool

	// AmountByContributor holds cumulative value contributed under revision 2.
	// Identities that only contributed under revision 1 have no entry.
	AmountByContributor map[Identity]Amount

	// RefundsEnabled gates the revision 2 refund path.
	RefundsEnabled bool
}

// NewState returns the state created by a first initialization.
func NewState(admin Identity) *State {
	return &State{
		Administrator:       admin,
		Revision:            Revision1,
		Logic:               LogicContributionV1,
		HasContributed:      make(map[Identity]bool),
		AmountByContributor: make(map[Identity]Amount),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Contributors = append([]Identity(nil), s.Contributors...)
	c.HasContributed = make(map[Identity]bool, len(s.HasContributed))
	for k, v := range s.HasContributed {
		c.HasContributed[k] = v
	}
	c.AmountByContributor = make(map[Identity]Amount, len(s.AmountByContributor))
	for k, v := range s.AmountByContributor {
		c.AmountByContributor[k] = v
	}
	return &c
}

// GoalMet reports whether the unique contributor count has reached
// FundingGoal.
func (s *State) GoalMet() bool {
	return len(s.Contributors) >= FundingGoal
}

// AddContributor appends id if it has not contributed before. It reports
// whether id was new.
func (s *State) AddContributor(id Identity) bool {
	if s.HasContributed[id] {
		return false
	}
	if s.HasContributed == nil {
		s.HasContributed = make(map[Identity]bool)
	}
	s.Contributors = append(s.Contributors, id)
	s.HasContributed[id] = true
	return true
}

// Validate checks the structural invariants of a loaded state. It returns an
// error wrapping ErrCorruptState on failure.
func (s *State) Validate() error {
	if s.Revision != Revision1 && s.Revision != Revision2 {
		return fmt.Errorf("%w: unknown revision %d", ErrCorruptState, s.Revision)
	}
	if err := s.Administrator.Validate(); err != nil {
		return fmt.Errorf("%w: administrator: %v", ErrCorruptState, err)
	}
	if len(s.Contributors) != len(s.HasContributed) {
		return fmt.Errorf("%w: %d contributors but %d membership entries",
			ErrCorruptState, len(s.Contributors), len(s.HasContributed))
	}
	seen := make(map[Identity]bool, len(s.Contributors))
	for _, id := range s.Contributors {
		if seen[id] {
			return fmt.Errorf("%w: duplicate contributor %s", ErrCorruptState, id)
		}
		if !s.HasContributed[id] {
			return fmt.Errorf("%w: contributor %s missing from membership set", ErrCorruptState, id)
		}
		seen[id] = true
	}
	if s.Revision == Revision1 && len(s.AmountByContributor) > 0 {
		return fmt.Errorf("%w: revision 1 state carries tracked amounts", ErrCorruptState)
	}
	return nil
}

// Status is a consistent read of the ledger's public state.
type Status struct {
	Administrator    Identity `json:"administrator"`
	Revision         Revision `json:"revision"`
	Logic            string   `json:"logic"`
	ContributorCount int      `json:"contributor_count"`
	FundingGoal      int      `json:"funding_goal"`
	GoalMet          bool     `json:"goal_met"`
	Balance          Amount   `json:"balance"`
	MinimumFunding   Amount   `json:"minimum_funding"`

	// RefundsEnabled is nil under revision 1, which has no refund path.
	RefundsEnabled *bool `json:"refunds_enabled,omitempty"`
}

// Contributor is one entry of the contributor list, in first-contribution
// order.
type Contributor struct {
	Identity Identity `json:"identity"`
	Position int      `json:"position"`

	// AmountFunded is nil under revision 1, which tracks no amounts.
	AmountFunded *Amount `json:"amount_funded,omitempty"`
}

// Ledger is the entry-point surface of the active revision. Every mutating
// call is all-or-nothing: it either completes, including any outbound
// transfer, or leaves all state as it was.
type Ledger interface {
	// Initialize creates the state with caller as administrator.
	// Returns ErrAlreadyInitialized if the state already exists.
	Initialize(ctx context.Context, caller Identity) error

	// Contribute accepts value from caller. Returns ErrBelowMinimum when value
	// is under the active revision's minimum.
	Contribute(ctx context.Context, caller Identity, value Amount) error

	// Withdraw transfers the whole custody balance to the administrator and
	// returns the amount transferred.
	Withdraw(ctx context.Context, caller Identity) (Amount, error)

	// Refund returns caller's tracked revision 2 contribution.
	// Returns ErrNotSupported under revision 1.
	Refund(ctx context.Context, caller Identity) (Amount, error)

	// ToggleRefunds flips the refund switch and returns the new value.
	// Returns ErrNotSupported under revision 1.
	ToggleRefunds(ctx context.Context, caller Identity) (bool, error)

	// AuthorizeUpgrade allows the upgrade controller to repoint execution at
	// logic within the current call. Only the administrator may authorize.
	// The authorization ends with the call, so calling it on its own only
	// checks the caller and leaves no state or event behind.
	AuthorizeUpgrade(ctx context.Context, caller Identity, logic string) error

	// MigrateToV2 is the one-shot revision 2 migration hook.
	MigrateToV2(ctx context.Context, caller Identity) error

	GoalMet(ctx context.Context) (bool, error)
	ContributorCount(ctx context.Context) (int, error)
	Balance(ctx context.Context) (Amount, error)
	Contributors(ctx context.Context) ([]Identity, error)
	HasContributed(ctx context.Context, id Identity) (bool, error)
	Revision(ctx context.Context) (Revision, error)
	MinimumFunding(ctx context.Context) (Amount, error)
	AmountFunded(ctx context.Context, id Identity) (Amount, error)
	RefundsEnabled(ctx context.Context) (bool, error)
	Status(ctx context.Context) (Status, error)

	// Roster returns every contributor with its tracked amount, read from one
	// committed state.
	Roster(ctx context.Context) ([]Contributor, error)
}

// Receiver is implemented by parties whose own logic runs when value is
// transferred to them. The ledger passed in is bound to the in-flight call, so
// calls made through it are reentrant and observe the caller's pending
// effects. Returning an error rejects the transfer.
type Receiver interface {
	OnReceive(ctx context.Context, from Identity, amount Amount, ledger Ledger) error
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx context.Context, from Identity, amount Amount, ledger Ledger) error

// OnReceive calls f.
func (f ReceiverFunc) OnReceive(ctx context.Context, from Identity, amount Amount, ledger Ledger) error {
	return f(ctx, from, amount, ledger)
}
