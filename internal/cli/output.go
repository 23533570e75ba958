package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/mesh-intelligence/cofund/pkg/types"
)

var (
	good = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

// emit writes v as indented JSON in --json mode, otherwise text.
func (a *app) emit(w io.Writer, v any, text string) error {
	if a.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// renderStatus formats a status for the terminal.
func renderStatus(st types.Status) string {
	var b strings.Builder

	goal := warn("goal not met")
	if st.GoalMet {
		goal = good("goal met")
	}
	refunds := "n/a"
	if st.RefundsEnabled != nil {
		refunds = bad("disabled")
		if *st.RefundsEnabled {
			refunds = good("enabled")
		}
	}

	fmt.Fprintf(&b, "%s %d (%s)\n", bold("Revision:     "), st.Revision, st.Logic)
	fmt.Fprintf(&b, "%s %s\n", bold("Administrator:"), st.Administrator)
	fmt.Fprintf(&b, "%s %d/%d, %s\n", bold("Contributors: "), st.ContributorCount, st.FundingGoal, goal)
	fmt.Fprintf(&b, "%s %s\n", bold("Balance:      "), st.Balance)
	fmt.Fprintf(&b, "%s %s\n", bold("Minimum:      "), st.MinimumFunding)
	fmt.Fprintf(&b, "%s %s", bold("Refunds:      "), refunds)
	return b.String()
}

// renderEvent formats one event as a single line.
func renderEvent(e types.Event) string {
	parts := []string{e.CreatedAt.Format(time.RFC3339), "r" + fmt.Sprint(int(e.Revision)), e.Kind}
	if e.Who != "" {
		parts = append(parts, e.Who.String())
	}
	switch e.Kind {
	case types.EventContributed, types.EventWithdrawn, types.EventRefunded:
		parts = append(parts, e.Amount.String())
	case types.EventRefundsToggled:
		parts = append(parts, fmt.Sprintf("enabled=%t", e.Enabled))
	case types.EventUpgradeAuthorized, types.EventMigrated:
		parts = append(parts, e.Logic)
	}
	return strings.Join(parts, "  ")
}
