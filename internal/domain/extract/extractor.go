package extract

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/shopspring/decimal"
)

// Extractor turns schedules and worked time into unpriced line items.
type Extractor struct {
	newID  func() string
	logger *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{newID: uuid.NewString, logger: logger}
}

// Extract builds skeleton line items for one assignment within r. Schedule
// entries in range with a positive duration are used; if there are none, one
// item is synthesized per worked-time record in range using the assignment's
// designated item code. Hours are set; Quantity holds the hours until pricing
// decides the unit.
func (e *Extractor) Extract(a Assignment, subject Subject, worked []WorkedTime, r DateRange) []lineitem.LineItem {
	region := a.Region
	if region == "" {
		region = subject.Region
	}

	items := e.fromSchedule(a, region, r)
	if len(items) > 0 {
		return items
	}
	return e.fromWorkedTime(a, region, worked, r)
}

func (e *Extractor) fromSchedule(a Assignment, region catalogue.Region, r DateRange) []lineitem.LineItem {
	var items []lineitem.LineItem
	for _, entry := range a.Schedule {
		if !r.Contains(entry.Date) {
			continue
		}
		hours, err := WorkedHours(entry.Start, entry.End, entry.BreakMinutes)
		if err != nil {
			e.logger.Warn("skipping schedule entry with bad times",
				"schedule_entry_id", entry.ID, "assignment_id", a.ID, "error", err)
			continue
		}
		if !hours.IsPositive() {
			continue
		}

		code := entry.ItemCode
		if code == "" {
			code = a.ItemCode
		}
		tier := catalogue.TierStandard
		if entry.HighIntensity {
			tier = catalogue.TierHighIntensity
		}
		items = append(items, e.skeleton(entry.Date, code, entry.Notes, hours, region, tier,
			lineitem.Source{Kind: lineitem.SourceSchedule, ID: entry.ID}))
	}
	sortByDate(items)
	return items
}

func (e *Extractor) fromWorkedTime(a Assignment, region catalogue.Region, worked []WorkedTime, r DateRange) []lineitem.LineItem {
	var items []lineitem.LineItem
	for _, w := range worked {
		if w.AssignmentID != "" && w.AssignmentID != a.ID {
			continue
		}
		if !r.Contains(w.Date) {
			continue
		}
		hours, err := WorkedHours(w.Start, w.End, w.BreakMinutes)
		if err != nil {
			e.logger.Warn("worked time record has bad times, billing zero hours",
				"worked_time_id", w.ID, "assignment_id", a.ID, "error", err)
			hours = decimal.Zero
		}
		items = append(items, e.skeleton(w.Date, a.ItemCode, w.Notes, hours, region, catalogue.TierStandard,
			lineitem.Source{Kind: lineitem.SourceWorkedTime, ID: w.ID}))
	}
	sortByDate(items)
	return items
}

func (e *Extractor) skeleton(date time.Time, code, notes string, hours decimal.Decimal, region catalogue.Region, tier catalogue.Tier, src lineitem.Source) lineitem.LineItem {
	return lineitem.LineItem{
		ID:          e.newID(),
		Date:        civil(date),
		ItemCode:    code,
		Description: notes,
		Hours:       hours,
		Quantity:    hours,
		Region:      region,
		Tier:        tier,
		Provenance:  lineitem.ProvenanceMissing,
		Source:      src,
	}
}

func sortByDate(items []lineitem.LineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.Before(items[j].Date)
	})
}
