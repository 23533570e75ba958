package ledger

import (
	"context"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

// Upgrade is the upgrade controller. In one call it asks the active revision
// to authorize caller's upgrade to logic, repoints execution at logic, and
// runs that logic's one-shot migration hook. Any failure rolls back all three
// steps, so the state is either fully on the new revision or untouched.
func (e *Engine) Upgrade(ctx context.Context, caller types.Identity, logic string) error {
	var target types.Revision
	err := e.call(ctx, opUpgrade, func(f *frame) error {
		view := api{r: &callView{f: f}}
		if err := view.AuthorizeUpgrade(ctx, caller, logic); err != nil {
			return err
		}

		rev, ok := logics[logic]
		if !ok {
			return f.reject(opUpgrade, types.ErrUnknownLogic, caller)
		}
		f.w.state.Logic = logic

		target = rev.tag()
		return view.migrate(ctx, rev, caller)
	})
	if err != nil {
		return err
	}

	e.log.Info().
		Str("caller", caller.String()).
		Str("logic", logic).
		Int("revision", int(target)).
		Msg("ledger upgraded")
	return nil
}

// Logics returns the logic references the controller can point at.
func Logics() []string {
	return []string{types.LogicContributionV1, types.LogicRefundableV2}
}
