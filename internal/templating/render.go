package templating

import (
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ms-payment-tracking/internal/models"
)

// placeholderPattern matches {name} and [name] placeholders. The two bracket
// forms are equivalent; names are matched case-insensitively at lookup time.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}|\[([A-Za-z][A-Za-z0-9_]*)\]`)

// longDateLayout renders dates as e.g. "15 January 2026".
const longDateLayout = "2 January 2006"

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// Renderer substitutes EmailContext values into template text. It is
// stateless after construction and safe for concurrent use.
type Renderer struct {
	currencyCode string
	symbol       string
	printer      *message.Printer
}

// NewRenderer builds a renderer for the given ISO currency code. Unknown
// codes fall back to "CODE " prefixed amounts rather than failing.
func NewRenderer(currencyCode string) *Renderer {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = "GBP"
	}
	if _, err := currency.ParseISO(code); err != nil {
		log.Printf("Unrecognized currency code %q, amounts will be prefixed with it verbatim", code)
	}

	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}

	return &Renderer{
		currencyCode: code,
		symbol:       symbol,
		printer:      message.NewPrinter(language.BritishEnglish),
	}
}

// Render substitutes all recognized placeholders in text with values from
// ctx. Unknown placeholder names are left in the output as "[name]" so a
// malformed template degrades visibly instead of failing the send. An empty
// template renders as an empty string.
func (r *Renderer) Render(text string, ctx models.EmailContext) string {
	if text == "" {
		return ""
	}

	vars := r.variables(ctx)

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[strings.ToLower(name)]; ok {
			return value
		}
		return "[" + name + "]"
	})
}

// Currency formats a monetary amount with the configured currency symbol and
// locale-grouped two-decimal number.
func (r *Renderer) Currency(amount float64) string {
	return r.symbol + r.printer.Sprintf("%.2f", amount)
}

// PercentPaid is the integer percentage of the total that has been paid,
// defined as 100 when nothing is due.
func PercentPaid(totalDue, paid float64) int {
	if totalDue == 0 {
		return 100
	}
	return int(math.Round(100 * paid / totalDue))
}

// variables flattens the context into the recognized placeholder values.
func (r *Renderer) variables(ctx models.EmailContext) map[string]string {
	email := ""
	if ctx.Profile.Email != nil {
		email = *ctx.Profile.Email
	}

	vars := map[string]string{
		"name":                ctx.Profile.FullName,
		"email":               email,
		"total_due":           r.Currency(ctx.Profile.TotalDue),
		"confirmed_paid":      r.Currency(ctx.ConfirmedTotal),
		"remaining":           r.Currency(ctx.Remaining),
		"percent_paid":        strconv.Itoa(PercentPaid(ctx.Profile.TotalDue, ctx.ConfirmedTotal)),
		"event_name":          ctx.EventName,
		"bank_account_name":   ctx.Bank.AccountName,
		"bank_account_number": ctx.Bank.AccountNumber,
		"bank_sort_code":      ctx.Bank.SortCode,
		"dashboard_url":       ctx.DashboardURL,
		"signup_link":         ctx.SignupLink,

		// Snapshot-dependent names render empty, not bracketed, when the
		// context has no payment or deadline attached.
		"payment_amount":          "",
		"payment_note":            "",
		"payment_date":            "",
		"payment_status":          "",
		"deadline_label":          "",
		"deadline_date":           "",
		"deadline_label_deadline": "",
		"days_away":               "",
		"suggested_amount":        "",
	}

	if p := ctx.Payment; p != nil {
		vars["payment_amount"] = r.Currency(p.Amount)
		vars["payment_note"] = p.Note
		vars["payment_status"] = string(p.Status)
		paymentDate := p.CreatedAt
		if p.PaidAt != nil {
			paymentDate = *p.PaidAt
		}
		vars["payment_date"] = longDate(paymentDate)
	}

	if d := ctx.Deadline; d != nil {
		vars["deadline_label"] = d.Label
		vars["deadline_date"] = longDate(d.DueDate)
		vars["deadline_label_deadline"] = d.Label + " deadline"
		vars["days_away"] = strconv.Itoa(ctx.DaysAway)
		vars["suggested_amount"] = r.Currency(d.SuggestedAmount)
	}

	return vars
}

func longDate(t time.Time) string {
	return t.Format(longDateLayout)
}
