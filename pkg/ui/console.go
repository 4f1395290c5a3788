// Package ui provides the Bubble Tea dashboard for the prediction market AMM.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	ammapp "github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
)

var _ ammapp.EventPublisher = (*ConsolePrinter)(nil)

// ConsolePrinter writes committed events as text, for -cli mode.
type ConsolePrinter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsolePrinter creates a printer on w, or stdout when w is nil.
func NewConsolePrinter(w io.Writer) *ConsolePrinter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsolePrinter{out: w}
}

// Start prints the banner.
func (p *ConsolePrinter) Start(source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "Prediction Market AMM")
	fmt.Fprintln(p.out, "=====================")
	fmt.Fprintf(p.out, "Source: %s\n", source)
}

// Publish prints one event.
func (p *ConsolePrinter) Publish(_ context.Context, e domain.Event) error {
	row := ActivityRow(e)
	yes, no := prices(e)

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(p.out, "%-18s market #%d  %s\n", e.Kind, e.MarketID, e.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(p.out, "  Account:        %s\n", e.Account.Hex())
	switch e.Kind {
	case domain.EventBuy:
		fmt.Fprintf(p.out, "  Paid:           %s for %s %s shares (fee %s)\n",
			row.Collateral.String(), row.Shares.String(), row.Outcome, row.Fee.String())
	case domain.EventSell:
		fmt.Fprintf(p.out, "  Sold:           %s %s shares for %s (fee %s)\n",
			row.Shares.String(), row.Outcome, row.Collateral.String(), row.Fee.String())
	case domain.EventAddLiquidity, domain.EventRemoveLiquidity:
		fmt.Fprintf(p.out, "  Collateral:     %s\n", row.Collateral.String())
		fmt.Fprintf(p.out, "  LP shares:      %s\n", row.Shares.String())
	case domain.EventResolve:
		fmt.Fprintf(p.out, "  Outcome:        %s\n", row.Outcome)
	case domain.EventRedeem:
		fmt.Fprintf(p.out, "  Payout:         %s\n", row.Collateral.String())
	}
	fmt.Fprintf(p.out, "  Prices:         YES %s  NO %s\n", yes.StringFixed(4), no.StringFixed(4))
	return nil
}

// Status prints an event source state change.
func (p *ConsolePrinter) Status(name, state, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if detail != "" {
		fmt.Fprintf(p.out, "[%s] %s: %s (%s)\n", time.Now().Format("15:04:05"), name, state, detail)
		return
	}
	fmt.Fprintf(p.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, state)
}

// Stop prints the closing line.
func (p *ConsolePrinter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "")
	fmt.Fprintln(p.out, "Stopped")
}
