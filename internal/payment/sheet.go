// Package payment models the third-party payment sheet as a message
// boundary: the client sends an Intent and later receives one terminal
// Outcome. A completed sheet is not proof of settlement; that is confirmed
// server-side and never observed here.
package payment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

type Contact struct {
	Name  string
	Email string
	Phone string
}

type Intent struct {
	KeyID        string
	Amount       int64
	Currency     string
	MerchantName string
	Description  string
	OrderToken   string
	Prefill      Contact
}

// MinorUnits converts a rupee amount to paise.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota + 1
	OutcomeCancelled
)

type Outcome struct {
	Kind       OutcomeKind
	PaymentRef string
	Reason     string
}

func Completed(ref string) Outcome {
	return Outcome{Kind: OutcomeCompleted, PaymentRef: ref}
}

func Cancelled(reason string) Outcome {
	return Outcome{Kind: OutcomeCancelled, Reason: reason}
}

// Sheet opens a payment sheet out of process. The returned channel yields
// exactly one Outcome.
type Sheet interface {
	Open(ctx context.Context, intent Intent) (<-chan Outcome, error)
}

type SheetFunc func(ctx context.Context, intent Intent) Outcome

func (f SheetFunc) Open(ctx context.Context, intent Intent) (<-chan Outcome, error) {
	ch := make(chan Outcome, 1)
	go func() {
		ch <- f(ctx, intent)
	}()
	return ch, nil
}

// Await opens the sheet and blocks for its terminal event. Every failure
// mode, including a sheet that cannot be opened, is reported as a
// cancellation because the client cannot tell them apart.
func Await(ctx context.Context, sheet Sheet, intent Intent) Outcome {
	ch, err := sheet.Open(ctx, intent)
	if err != nil {
		return Cancelled(err.Error())
	}
	select {
	case outcome, ok := <-ch:
		if !ok || outcome.Kind != OutcomeCompleted {
			if outcome.Reason == "" {
				outcome.Reason = "payment sheet closed"
			}
			return Cancelled(outcome.Reason)
		}
		return outcome
	case <-ctx.Done():
		return Cancelled(ctx.Err().Error())
	}
}

// PromptSheet shows the intent on out and reads the user's answer from in:
// "paid <reference>" completes, anything else cancels.
type PromptSheet struct {
	mu  sync.Mutex
	in  *bufio.Scanner
	out io.Writer
}

func NewPromptSheet(in io.Reader, out io.Writer) *PromptSheet {
	return &PromptSheet{in: bufio.NewScanner(in), out: out}
}

func (p *PromptSheet) Open(ctx context.Context, intent Intent) (<-chan Outcome, error) {
	amount := decimal.New(intent.Amount, -2)
	if _, err := fmt.Fprintf(p.out, "%s\n%s\nPay %s %s (order %s) as %s <%s>\nType 'paid <reference>' or 'cancel': ",
		intent.MerchantName, intent.Description, intent.Currency, amount.StringFixed(2),
		intent.OrderToken, intent.Prefill.Name, intent.Prefill.Email); err != nil {
		return nil, fmt.Errorf("show payment sheet: %w", err)
	}

	ch := make(chan Outcome, 1)
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		ch <- p.read()
	}()
	return ch, nil
}

func (p *PromptSheet) read() Outcome {
	if !p.in.Scan() {
		return Cancelled("no answer")
	}
	fields := strings.Fields(p.in.Text())
	if len(fields) == 2 && strings.EqualFold(fields[0], "paid") {
		return Completed(fields[1])
	}
	return Cancelled("cancelled by user")
}
