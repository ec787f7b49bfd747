package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultExpenseCodes maps expense categories to catalogue item codes.
var DefaultExpenseCodes = map[string]string{
	"transport":        "02_051_0108_1_1",
	"travel":           "04_590_0125_6_1",
	"activity":         "04_210_0125_6_1",
	"consumables":      "03_092_0103_1_1",
	"meal":             "04_210_0125_6_1",
	"default":          "04_210_0125_6_1",
	"program_expenses": "04_210_0125_6_1",
}

const defaultCategory = "default"

// ExpenseMapper converts approved expenses into fixed-price line items.
type ExpenseMapper struct {
	codes   map[string]string
	lookup  catalogue.Lookup
	newID   func() string
	logger  *slog.Logger
	workers int
}

// NewExpenseMapper creates a mapper. codes extends DefaultExpenseCodes; lookup
// is optional and only used to name items.
func NewExpenseMapper(codes map[string]string, lookup catalogue.Lookup, logger *slog.Logger) *ExpenseMapper {
	merged := make(map[string]string, len(DefaultExpenseCodes)+len(codes))
	for k, v := range DefaultExpenseCodes {
		merged[k] = v
	}
	for k, v := range codes {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExpenseMapper{codes: merged, lookup: lookup, newID: uuid.NewString, logger: logger, workers: 8}
}

// ItemCode returns the catalogue code for an expense: its own code when set,
// otherwise the category mapping, otherwise the default mapping.
func (m *ExpenseMapper) ItemCode(exp Expense) string {
	if exp.ItemCode != "" {
		return exp.ItemCode
	}
	if code, ok := m.codes[strings.ToLower(strings.TrimSpace(exp.Category))]; ok {
		return code
	}
	return m.codes[defaultCategory]
}

// Convert maps each expense to one line item. Conversions run concurrently and
// items[i] always corresponds to expenses[i].
func (m *ExpenseMapper) Convert(ctx context.Context, expenses []Expense) ([]lineitem.LineItem, error) {
	items := make([]lineitem.LineItem, len(expenses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, exp := range expenses {
		g.Go(func() error {
			items[i] = m.convert(gctx, exp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (m *ExpenseMapper) convert(ctx context.Context, exp Expense) lineitem.LineItem {
	code := m.ItemCode(exp)
	amount := lineitem.Round(exp.Amount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	desc := strings.TrimSpace(exp.Description)
	if m.lookup != nil && code != "" {
		if item, err := m.lookup.GetItem(ctx, code); err == nil {
			if desc == "" {
				desc = item.Name
			} else {
				desc = fmt.Sprintf("%s: %s", item.Name, desc)
			}
		} else {
			m.logger.Debug("expense item name lookup failed", "item_code", code, "expense_id", exp.ID, "error", err)
		}
	}
	if desc == "" {
		desc = fmt.Sprintf("Expense (%s)", exp.Category)
	}

	one := decimal.NewFromInt(1)
	return lineitem.LineItem{
		ID:          m.newID(),
		Date:        civil(exp.Date),
		ItemCode:    code,
		Description: desc,
		Quantity:    one,
		Rate:        amount,
		UnitPrice:   amount,
		TotalPrice:  lineitem.Total(one, amount),
		Provenance:  lineitem.ProvenanceExpense,
		Compliant:   true,
		Source:      lineitem.Source{Kind: lineitem.SourceExpense, ID: exp.ID},
	}
}
