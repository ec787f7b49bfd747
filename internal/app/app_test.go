package app_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/supportbill/internal/app"
	"github.com/rpggio/supportbill/internal/config"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/sqlite"
	"github.com/rpggio/supportbill/internal/testserver"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	tenantID = "tenant-1"
	token    = "secret-token"
	itemCode = "01_011_0107_1_1"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seed stores one catalogue item and a subject with five scheduled hours in
// the first week of March 2026.
func seed(t *testing.T, ts *testserver.TestServer) {
	t.Helper()
	ctx := context.Background()

	item := catalogue.SupportItem{
		Code: itemCode,
		Name: "Assistance With Self-Care Activities - Standard - Weekday Daytime",
		Unit: catalogue.UnitHour,
	}
	item.SetCap(catalogue.TierStandard, "NSW", dec("67.56"))
	item.SetCap(catalogue.TierHighIntensity, "NSW", dec("70.00"))
	_, err := ts.App.Catalogue.Import(ctx, []catalogue.SupportItem{item})
	require.NoError(t, err)

	require.NoError(t, ts.App.Roster.UpsertSubject(ctx, &extract.Subject{
		ID: "subj-1", TenantID: tenantID, Name: "Sam", Email: "sam@example.com", Region: "NSW",
	}))
	require.NoError(t, ts.App.Roster.CreateAssignment(ctx, &extract.Assignment{
		ID: "asg-1", TenantID: tenantID, SubjectID: "subj-1", ItemCode: itemCode, Active: true,
		Schedule: []extract.ScheduleEntry{
			{ID: "s1", Date: day(2), Start: "09:00", End: "12:00"},
			{ID: "s2", Date: day(3), Start: "09:00", End: "11:30", BreakMinutes: 30},
		},
	}))
}

type generateResult struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	LineItems []struct {
		ItemCode   string          `json:"item_code"`
		Provenance string          `json:"provenance"`
		UnitPrice  decimal.Decimal `json:"unit_price"`
		TotalPrice decimal.Decimal `json:"total_price"`
	} `json:"line_items"`
	Unpriced []struct {
		ItemCode string `json:"item_code"`
	} `json:"unpriced"`
	Summary struct {
		ItemCount   int             `json:"item_count"`
		TotalAmount decimal.Decimal `json:"total_amount"`
		TotalHours  decimal.Decimal `json:"total_hours"`
	} `json:"summary"`
	Prompts []struct {
		ID       string          `json:"id"`
		ItemCode string          `json:"item_code"`
		Cap      decimal.Decimal `json:"cap"`
	} `json:"prompts"`
}

func generateArgs(sessionID string) map[string]any {
	args := map[string]any{
		"subject_id": "subj-1",
		"start_date": "2026-03-01",
		"end_date":   "2026-03-07",
	}
	if sessionID != "" {
		args["session_id"] = sessionID
	}
	return args
}

func TestPricePromptWorkflow(t *testing.T) {
	ts := testserver.New(t, token, tenantID)
	seed(t, ts)
	c := ts.Connect(t, "alice")

	var first generateResult
	c.MustCall(t, "generate_invoice", generateArgs(""), &first)
	require.Equal(t, "awaiting_prices", first.Status)
	require.NotEmpty(t, first.SessionID)
	require.Empty(t, first.LineItems)
	require.Len(t, first.Unpriced, 2)
	require.Len(t, first.Prompts, 1)
	require.True(t, first.Prompts[0].Cap.Equal(dec("67.56")))

	// A second run in the same session does not raise the prompt again.
	var again generateResult
	c.MustCall(t, "generate_invoice", generateArgs(first.SessionID), &again)
	require.Len(t, again.Prompts, 1)
	require.Equal(t, first.Prompts[0].ID, again.Prompts[0].ID)

	require.Equal(t, "PENDING_PROMPTS", c.CallError(t, "complete_session", map[string]any{"session_id": first.SessionID}))

	var pending struct {
		Count int `json:"count"`
	}
	c.MustCall(t, "list_pending_prompts", map[string]any{"session_id": first.SessionID}, &pending)
	require.Equal(t, 1, pending.Count)

	var resolved struct {
		Prompt struct {
			Status     string `json:"status"`
			Resolution struct {
				ResolvedBy string `json:"resolved_by"`
			} `json:"resolution"`
		} `json:"prompt"`
		Overrides []struct {
			Outcome  string `json:"outcome"`
			Override struct {
				SubjectID string          `json:"subject_id"`
				Mode      string          `json:"mode"`
				Price     decimal.Decimal `json:"price"`
				Approval  string          `json:"approval"`
			} `json:"override"`
		} `json:"overrides"`
	}
	c.MustCall(t, "resolve_price_prompt", map[string]any{
		"prompt_id":               first.Prompts[0].ID,
		"price":                   60,
		"save_as_subject_pricing": true,
	}, &resolved)
	require.Equal(t, "resolved", resolved.Prompt.Status)
	require.Equal(t, "alice", resolved.Prompt.Resolution.ResolvedBy)
	require.Len(t, resolved.Overrides, 1)
	require.Equal(t, "created", resolved.Overrides[0].Outcome)
	require.Equal(t, "subj-1", resolved.Overrides[0].Override.SubjectID)
	require.Equal(t, "fixed", resolved.Overrides[0].Override.Mode)
	require.Equal(t, "approved", resolved.Overrides[0].Override.Approval)
	require.True(t, resolved.Overrides[0].Override.Price.Equal(dec("60")))

	var ready generateResult
	c.MustCall(t, "generate_invoice", generateArgs(first.SessionID), &ready)
	require.Equal(t, "ready", ready.Status)
	require.Len(t, ready.LineItems, 2)
	for _, li := range ready.LineItems {
		require.Equal(t, "subject-specific", li.Provenance)
		require.True(t, li.UnitPrice.Equal(dec("60")))
	}
	require.True(t, ready.Summary.TotalHours.Equal(dec("5")))
	require.True(t, ready.Summary.TotalAmount.Equal(dec("300")))

	var completed struct {
		Status      string `json:"status"`
		CompletedBy string `json:"completed_by"`
	}
	c.MustCall(t, "complete_session", map[string]any{"session_id": first.SessionID}, &completed)
	require.Equal(t, "completed", completed.Status)
	require.Equal(t, "alice", completed.CompletedBy)

	require.Equal(t, "SESSION_CLOSED", c.CallError(t, "generate_invoice", generateArgs(first.SessionID)))

	var log struct {
		Events []struct {
			Action string `json:"action"`
			Actor  string `json:"actor"`
		} `json:"events"`
	}
	c.MustCall(t, "get_audit_log", map[string]any{"action": "price_prompt_resolved"}, &log)
	require.Len(t, log.Events, 1)
	require.Equal(t, "alice", log.Events[0].Actor)
}

func TestCatalogueDefaults(t *testing.T) {
	ts := testserver.New(t, token, tenantID)
	seed(t, ts)
	c := ts.Connect(t, "alice")

	var settings struct {
		CatalogueDefaults bool `json:"catalogue_defaults"`
	}
	c.MustCall(t, "set_catalogue_defaults", map[string]any{"enabled": true}, &settings)
	require.True(t, settings.CatalogueDefaults)

	var res generateResult
	c.MustCall(t, "generate_invoice", generateArgs(""), &res)
	require.Equal(t, "ready", res.Status)
	require.Len(t, res.LineItems, 2)
	require.Equal(t, "catalogue-default", res.LineItems[0].Provenance)
	require.True(t, res.Summary.TotalAmount.Equal(dec("337.80")))
}

func TestFallbackRateFromConfig(t *testing.T) {
	ts := testserver.New(t, token, tenantID, func(cfg *config.Config) {
		cfg.Billing.FallbackRates = map[string]string{tenantID: "45.00"}
	})
	seed(t, ts)
	c := ts.Connect(t, "alice")

	var res generateResult
	c.MustCall(t, "generate_invoice", generateArgs(""), &res)
	require.Equal(t, "ready", res.Status)
	require.Equal(t, "fallback-rate", res.LineItems[0].Provenance)
	require.True(t, res.Summary.TotalAmount.Equal(dec("225")))
}

func TestOverrideAboveCapNeedsApproval(t *testing.T) {
	ts := testserver.New(t, token, tenantID)
	seed(t, ts)
	c := ts.Connect(t, "bob")

	var set struct {
		Outcome  string `json:"outcome"`
		Override struct {
			ID       string `json:"id"`
			Approval string `json:"approval"`
		} `json:"override"`
	}
	c.MustCall(t, "set_pricing_override", map[string]any{
		"item_code":  itemCode,
		"subject_id": "subj-1",
		"price":      80,
		"reason":     "complex needs",
	}, &set)
	require.Equal(t, "created", set.Outcome)
	require.Equal(t, "pending", set.Override.Approval)

	type resolution struct {
		Price      decimal.Decimal `json:"price"`
		Provenance string          `json:"provenance"`
		ExceedsCap bool            `json:"exceeds_cap"`
	}
	priceArgs := map[string]any{"item_code": itemCode, "subject_id": "subj-1"}

	var before resolution
	c.MustCall(t, "resolve_price", priceArgs, &before)
	require.Equal(t, "missing", before.Provenance)

	c.MustCall(t, "set_override_approval", map[string]any{
		"override_id": set.Override.ID,
		"approval":    "approved",
	}, nil)

	var after resolution
	c.MustCall(t, "resolve_price", priceArgs, &after)
	require.Equal(t, "subject-specific", after.Provenance)
	require.True(t, after.Price.Equal(dec("80")))
	require.True(t, after.ExceedsCap)

	var history struct {
		Version int64 `json:"version"`
		History []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	c.MustCall(t, "get_pricing_override", map[string]any{"override_id": set.Override.ID}, &history)
	require.Len(t, history.History, 2)
	require.Equal(t, "created", history.History[0].Action)
	require.Equal(t, "approved", history.History[1].Action)
}

func TestValidateLineItems(t *testing.T) {
	ts := testserver.New(t, token, tenantID)
	seed(t, ts)
	c := ts.Connect(t, "alice")

	var res struct {
		IsValid bool `json:"is_valid"`
		Items   []struct {
			Valid  bool `json:"valid"`
			Issues []struct {
				Code string `json:"code"`
			} `json:"issues"`
		} `json:"items"`
		Summary struct {
			CompliantAmount decimal.Decimal `json:"compliant_amount"`
		} `json:"summary"`
	}
	c.MustCall(t, "validate_line_items", map[string]any{
		"line_items": []map[string]any{
			{"item_code": itemCode, "quantity": 2, "unit_price": 60},
			{"item_code": itemCode, "quantity": 1, "unit_price": 80},
		},
	}, &res)
	require.False(t, res.IsValid)
	require.True(t, res.Items[0].Valid)
	require.False(t, res.Items[1].Valid)
	require.Equal(t, "exceeds_cap", res.Items[1].Issues[0].Code)
	require.True(t, res.Summary.CompliantAmount.Equal(dec("187.56")))
}

func TestBulkReportsPerSubjectFailures(t *testing.T) {
	ts := testserver.New(t, token, tenantID, func(cfg *config.Config) {
		cfg.Billing.CatalogueDefaults = true
	})
	seed(t, ts)
	c := ts.Connect(t, "alice")

	var res struct {
		Success   bool `json:"success"`
		Succeeded int  `json:"succeeded"`
		Failed    int  `json:"failed"`
		Failures  []struct {
			SubjectID string `json:"subject_id"`
		} `json:"failures"`
	}
	c.MustCall(t, "generate_bulk_invoices", map[string]any{
		"subjects": []map[string]any{
			{"subject_id": "subj-1", "start_date": "2026-03-01", "end_date": "2026-03-07"},
			{"subject_id": "nobody", "start_date": "2026-03-01", "end_date": "2026-03-07"},
		},
	}, &res)
	require.True(t, res.Success)
	require.Equal(t, 1, res.Succeeded)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, "nobody", res.Failures[0].SubjectID)
}

func TestSearchCatalogue(t *testing.T) {
	ts := testserver.New(t, token, tenantID)
	seed(t, ts)
	c := ts.Connect(t, "alice")

	var res struct {
		Count   int `json:"count"`
		Results []struct {
			Code string `json:"code"`
		} `json:"results"`
	}
	c.MustCall(t, "search_catalogue", map[string]any{"query": "self-care"}, &res)
	require.Equal(t, 1, res.Count)
	require.Equal(t, itemCode, res.Results[0].Code)

	require.Equal(t, "ITEM_NOT_FOUND", c.CallError(t, "get_catalogue_item", map[string]any{"item_code": "missing"}))
}

func TestTenantsAreIsolated(t *testing.T) {
	ts := testserver.New(t, token, tenantID)
	seed(t, ts)
	require.NoError(t, ts.App.APIKeys.Add(context.Background(), "other-token", "tenant-2", "other"))

	c := ts.Connect(t, "alice")
	var res generateResult
	c.MustCall(t, "generate_invoice", generateArgs(""), &res)
	require.Len(t, res.Prompts, 1)

	other := ts.ConnectWithToken(t, "other-token", "mallory")
	require.Equal(t, "PROMPT_NOT_FOUND", other.CallError(t, "get_price_prompt", map[string]any{"prompt_id": res.Prompts[0].ID}))
	require.Equal(t, "SUBJECT_NOT_FOUND", other.CallError(t, "generate_invoice", generateArgs("")))
}

func TestMCPRejectsMissingToken(t *testing.T) {
	ts := testserver.New(t, token, tenantID)

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/mcp", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewRejectsBadFallbackRate(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations())

	cfg := config.Default()
	cfg.Billing.FallbackRates = map[string]string{tenantID: "-1"}
	_, err = app.New(context.Background(), db, cfg, nil)
	require.ErrorIs(t, err, config.ErrInvalid)
}
