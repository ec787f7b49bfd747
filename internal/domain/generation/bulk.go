package generation

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/metrics"
	"github.com/rpggio/supportbill/internal/validate"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type subjectOutcome struct {
	subjectID string
	result    *Result
	err       error
}

// GenerateBulk runs Generate for many subjects. Subjects are split into batches
// of BatchSize; batches run one after another and the subjects of a batch run
// concurrently. A failing subject is recorded and never stops its siblings.
func (s *Service) GenerateBulk(ctx context.Context, req BulkRequest) (result *BulkResult, err error) {
	batchSize, err := s.validateBulk(req)
	if err != nil {
		return nil, err
	}

	out := &BulkResult{
		Success:   true,
		Successes: []SubjectSuccess{},
		Failures:  []SubjectFailure{},
		Summary: BulkSummary{
			TotalAmount:   decimal.Zero,
			ServiceAmount: decimal.Zero,
			ExpenseAmount: decimal.Zero,
		},
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("bulk generation aborted", "tenant_id", req.TenantID, "panic", r)
			out.Success = false
			result = out
			err = fmt.Errorf("%w: %v", ErrBulkAborted, r)
		}
	}()

	for start := 0; start < len(req.Subjects); start += batchSize {
		end := min(start+batchSize, len(req.Subjects))
		outcomes := s.runBatch(ctx, req, req.Subjects[start:end])
		out.Summary.Batches++
		metrics.BulkBatches.Inc()

		for _, o := range outcomes {
			out.Processed++
			if o.err != nil {
				out.Failed++
				out.Failures = append(out.Failures, SubjectFailure{SubjectID: o.subjectID, Error: o.err.Error()})
				metrics.BulkSubjects.WithLabelValues("failed").Inc()
				s.logger.Warn("bulk subject failed", "tenant_id", req.TenantID, "subject_id", o.subjectID, "error", o.err)
				continue
			}
			out.Succeeded++
			out.Successes = append(out.Successes, successOf(o))
			out.Summary.TotalItems += o.result.Summary.ItemCount
			out.Summary.TotalAmount = out.Summary.TotalAmount.Add(o.result.Summary.TotalAmount)
			out.Summary.ServiceAmount = out.Summary.ServiceAmount.Add(o.result.Summary.ServiceAmount)
			out.Summary.ExpenseAmount = out.Summary.ExpenseAmount.Add(o.result.Summary.ExpenseAmount)
			out.Summary.PendingPrompts += len(o.result.Prompts)
			metrics.BulkSubjects.WithLabelValues("succeeded").Inc()
		}
	}

	if s.deps.Audit != nil {
		s.deps.Audit.Record(ctx, audit.Event{
			TenantID:   req.TenantID,
			Action:     audit.ActionBulkGenerated,
			EntityType: "bulk_generation",
			Actor:      req.RequesterID,
			NewValues: map[string]any{
				"processed":    out.Processed,
				"succeeded":    out.Succeeded,
				"failed":       out.Failed,
				"total_amount": out.Summary.TotalAmount.StringFixed(2),
			},
			Metadata: map[string]any{"batch_size": batchSize, "batches": out.Summary.Batches},
		})
	}

	s.logger.Info("bulk generation finished",
		"tenant_id", req.TenantID,
		"processed", out.Processed,
		"succeeded", out.Succeeded,
		"failed", out.Failed,
		"batches", out.Summary.Batches,
	)
	return out, nil
}

func (s *Service) validateBulk(req BulkRequest) (int, error) {
	if err := validate.Struct(req, ErrInvalidInput); err != nil {
		return 0, err
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = s.defaultBatchSize
	}
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return 0, fmt.Errorf("%w: batch_size must be between %d and %d, got %d",
			ErrInvalidInput, MinBatchSize, MaxBatchSize, req.BatchSize)
	}
	return batchSize, nil
}

// runBatch generates every subject of a batch concurrently. Each goroutine
// writes only its own slot, and slots are read after Wait.
func (s *Service) runBatch(ctx context.Context, req BulkRequest, batch []BulkSubject) []subjectOutcome {
	outcomes := make([]subjectOutcome, len(batch))
	var g errgroup.Group
	for i, subj := range batch {
		g.Go(func() error {
			outcomes[i] = s.runSubject(ctx, req, subj)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Service) runSubject(ctx context.Context, req BulkRequest, subj BulkSubject) (out subjectOutcome) {
	out.subjectID = subj.SubjectID
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("bulk subject panicked",
				"subject_id", subj.SubjectID, "panic", r, "stack", string(debug.Stack()))
			out.result = nil
			out.err = fmt.Errorf("subject %s: unexpected failure: %v", subj.SubjectID, r)
		}
	}()

	res, err := s.Generate(ctx, Request{
		TenantID:         req.TenantID,
		SubjectID:        subj.SubjectID,
		RequesterID:      req.RequesterID,
		StartDate:        subj.StartDate,
		EndDate:          subj.EndDate,
		SkipPricePrompts: req.SkipPricePrompts,
	})
	out.result = res
	out.err = err
	return out
}

func successOf(o subjectOutcome) SubjectSuccess {
	r := o.result
	return SubjectSuccess{
		SubjectID:      o.subjectID,
		SessionID:      r.SessionID,
		Status:         r.Status,
		ItemCount:      r.Summary.ItemCount,
		TotalAmount:    r.Summary.TotalAmount,
		ServiceAmount:  r.Summary.ServiceAmount,
		ExpenseAmount:  r.Summary.ExpenseAmount,
		PendingPrompts: len(r.Prompts),
		DroppedItems:   r.Summary.DroppedCount,
		Compliance:     r.Validation.Summary.CompliancePercentage,
	}
}
