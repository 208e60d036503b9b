package templating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ms-payment-tracking/internal/models"
)

func testContext() models.EmailContext {
	email := "ann@example.com"
	return models.EmailContext{
		Profile: models.Profile{
			ProfileID:            1,
			FullName:             "Ann",
			Email:                &email,
			TotalDue:             100,
			InitialConfirmedPaid: 40,
		},
		ConfirmedTotal: 40,
		Remaining:      60,
		EventName:      "Summer Ball",
		Bank: models.BankDetails{
			AccountName:   "Events Ltd",
			AccountNumber: "12345678",
			SortCode:      "01-02-03",
		},
		DashboardURL: "https://pay.example.com",
	}
}

func TestRenderSubstitutesNameAndRemaining(t *testing.T) {
	r := NewRenderer("GBP")

	out := r.Render("{name} owes {remaining}", testContext())

	assert.Equal(t, "Ann owes £60.00", out)
}

func TestRenderAcceptsBothBracketForms(t *testing.T) {
	r := NewRenderer("GBP")

	out := r.Render("[name] owes {remaining} of [total_due]", testContext())

	assert.Equal(t, "Ann owes £60.00 of £100.00", out)
}

func TestRenderIsCaseInsensitive(t *testing.T) {
	r := NewRenderer("GBP")

	out := r.Render("{Name} / [EVENT_NAME]", testContext())

	assert.Equal(t, "Ann / Summer Ball", out)
}

func TestRenderRepeatedPlaceholders(t *testing.T) {
	r := NewRenderer("GBP")

	out := r.Render("{name}, yes {name}!", testContext())

	assert.Equal(t, "Ann, yes Ann!", out)
}

func TestRenderUnknownPlaceholderPassesThrough(t *testing.T) {
	r := NewRenderer("GBP")

	assert.Equal(t, "Hello [bogus]", r.Render("Hello {bogus}", testContext()))
	assert.Equal(t, "Hello [bogus]", r.Render("Hello [bogus]", testContext()))
}

func TestRenderEmptyTemplate(t *testing.T) {
	r := NewRenderer("GBP")

	assert.Equal(t, "", r.Render("", testContext()))
}

func TestRenderPercentPaidBoundary(t *testing.T) {
	r := NewRenderer("GBP")

	ctx := testContext()
	ctx.Profile.TotalDue = 0
	ctx.ConfirmedTotal = 0

	assert.Equal(t, "100", r.Render("{percent_paid}", ctx))
}

func TestPercentPaidRounding(t *testing.T) {
	assert.Equal(t, 100, PercentPaid(0, 0))
	assert.Equal(t, 100, PercentPaid(0, 50))
	assert.Equal(t, 40, PercentPaid(100, 40))
	assert.Equal(t, 33, PercentPaid(300, 100))
	assert.Equal(t, 67, PercentPaid(300, 200))
}

func TestRenderDeadlineValues(t *testing.T) {
	r := NewRenderer("GBP")

	ctx := testContext()
	ctx.Deadline = &models.Deadline{
		DeadlineID:      7,
		Label:           "Final balance",
		DueDate:         time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		SuggestedAmount: 250,
	}
	ctx.DaysAway = 7

	out := r.Render("{deadline_label} due {deadline_date} in {days_away} days, pay {suggested_amount}", ctx)

	assert.Equal(t, "Final balance due 15 January 2026 in 7 days, pay £250.00", out)
}

func TestRenderPaymentValues(t *testing.T) {
	r := NewRenderer("GBP")

	paidAt := time.Date(2026, time.February, 3, 12, 30, 0, 0, time.UTC)
	ctx := testContext()
	ctx.Payment = &models.Payment{
		PaymentID: 9,
		Amount:    75.5,
		Note:      "bank transfer",
		Status:    models.PaymentStatusConfirmed,
		PaidAt:    &paidAt,
	}

	out := r.Render("{payment_amount} ({payment_note}) on {payment_date}: {payment_status}", ctx)

	assert.Equal(t, "£75.50 (bank transfer) on 3 February 2026: confirmed", out)
}

func TestRenderSnapshotFreeContextRendersEmptyForSnapshotNames(t *testing.T) {
	r := NewRenderer("GBP")

	out := r.Render("x{payment_amount}y{deadline_label}z", testContext())

	assert.Equal(t, "xyz", out)
}

func TestRenderDeterministic(t *testing.T) {
	r := NewRenderer("GBP")
	ctx := testContext()

	first := r.Render("{name} {remaining} {percent_paid}", ctx)
	second := r.Render("{name} {remaining} {percent_paid}", ctx)

	assert.Equal(t, first, second)
}

func TestCurrencyFallbackForUnknownCode(t *testing.T) {
	r := NewRenderer("XXX")

	assert.Equal(t, "XXX 60.00", r.Currency(60))
}

func TestCurrencyGrouping(t *testing.T) {
	r := NewRenderer("GBP")

	assert.Equal(t, "£1,234.50", r.Currency(1234.5))
}
