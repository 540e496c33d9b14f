// Package setup hosts the interactive order entry wizard for desk
// operators working from a terminal instead of the HTTP API.
package setup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/ravilg/fxdesk/internal/entity"
	"github.com/ravilg/fxdesk/internal/services/rates"
	"github.com/ravilg/fxdesk/internal/services/reconcile"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// OrderBook is the slice of storage the wizard needs.
type OrderBook interface {
	CreateOrder(ctx context.Context, o entity.Order) (int64, error)
	ListCurrencies(ctx context.Context) (map[string]entity.Currency, error)
}

// RunTUI walks an operator through creating a single order: pair,
// amounts, rate and flex mode, with the counter leg derived the same
// way the HTTP API derives it.
func RunTUI(ctx context.Context, book OrderBook) error {
	var (
		pairStr       string
		customerIDStr string
		amountBuyStr  string
		rateStr       string
		flex          bool
		remarks       string
		confirm       bool
	)

	currencies, err := book.ListCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load currency board: %w", err)
	}
	lookup := rates.LookupFrom(currencies)

	// step 1: pair
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("FXDESK ORDER WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Book a new exchange order from the terminal.\n"))

	fmt.Println(stepStyle.Render("STEP 1: CURRENCY PAIR"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pair").
				Description("Must contain underscore (e.g. USDT_MMK)").
				Value(&pairStr).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("pair cannot be empty")
					}
					if !strings.Contains(s, "_") {
						return fmt.Errorf("invalid format: must be FROM_TO (e.g. USDT_MMK)")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: customer
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FXDESK ORDER WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: CUSTOMER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Customer ID").
				Description("Numeric id from the customer register").
				Value(&customerIDStr).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 3: amounts
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FXDESK ORDER WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: AMOUNT AND RATE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Buy Amount").
				Description("Amount the desk buys from the customer").
				Value(&amountBuyStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Rate").
				Description("Quoted exchange rate for this order").
				Value(&rateStr).
				Validate(validatePositiveDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 4: order mode
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FXDESK ORDER WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: ORDER MODE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[bool]().
				Title("Fixed or Flex?").
				Description("Flex orders settle on actual amounts recorded later").
				Options(
					huh.NewOption("Fixed", false),
					huh.NewOption("Flex", true),
				).
				Value(&flex),
			huh.NewInput().
				Title("Remarks").
				Description("Optional note shown on the order").
				Value(&remarks),
		),
	).Run()
	if err != nil {
		return err
	}

	pair := parsePair(pairStr)
	customerID, _ := decimal.NewFromString(customerIDStr)
	amountBuy, _ := decimal.NewFromString(amountBuyStr)
	rate, _ := decimal.NewFromString(rateStr)

	amountSell, err := rates.DeriveOtherLeg(amountBuy, rate, pair.From, pair.To, rates.BaseFrom, lookup)
	if err != nil {
		return fmt.Errorf("failed to derive the payment leg: %w", err)
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FXDESK ORDER WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	base := rates.ResolveBase(pair.From, pair.To, lookup)
	summary := fmt.Sprintf(
		"Pair: %s\nCustomer: %s\nReceive: %s %s\nPay: %s %s\nRate: %s (base: %s)\nMode: %s\n",
		pair.String(), customerIDStr,
		amountBuy, pair.From,
		amountSell, pair.To,
		rate, base,
		modeLabel(flex),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Book this order?").
				Affirmative("Yes, book it").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("order entry cancelled by operator")
	}

	order := wizardOrder(pair, customerID.IntPart(), amountBuy, amountSell, rate, flex, remarks)

	id, err := book.CreateOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to book order: %w", err)
	}

	funding := reconcile.Reconcile(amountBuy, nil, reconcile.DefaultTolerances().Funding)
	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf(
		"\n✓ Order #%d booked. Awaiting funding: %s %s.", id, funding.Shortfall, pair.From)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

// wizardOrder assembles the booking request. Empty remarks stay
// absent so the stored order matches one created without the field.
func wizardOrder(pair entity.Pair, customerID int64, amountBuy, amountSell, rate decimal.Decimal, flex bool, remarks string) entity.Order {
	order := entity.Order{
		CustomerID: customerID,
		Pair:       pair,
		AmountBuy:  amountBuy,
		AmountSell: amountSell,
		Rate:       rate,
		IsFlex:     flex,
		Status:     entity.StatusPending,
	}
	if remarks != "" {
		order.Remarks = entity.Some(remarks)
	}
	return order
}

func modeLabel(flex bool) string {
	if flex {
		return "flex"
	}
	return "fixed"
}

func parsePair(s string) entity.Pair {
	parts := strings.SplitN(s, "_", 2)
	return entity.Pair{
		From: strings.ToUpper(strings.TrimSpace(parts[0])),
		To:   strings.ToUpper(strings.TrimSpace(parts[1])),
	}
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validatePositiveInt(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return fmt.Errorf("must be a whole number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}
