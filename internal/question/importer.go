package question

import (
	"context"
	"errors"
	"sync"

	"github.com/learning-notebook/question-service/internal/logging"
)

// importOutcome is a single record's result, slotted by input position so
// the tally reports errors in input order.
type importOutcome struct {
	identifier string
	err        error
}

// Import applies normalize-and-create to each payload independently with
// bounded concurrency. A malformed or conflicting record is tallied and
// skipped; it never aborts the batch.
func (s *Service) Import(ctx context.Context, payloads []map[string]any) ImportResult {
	result := ImportResult{Total: len(payloads)}
	if len(payloads) == 0 {
		return result
	}

	workers := s.opts.ImportConcurrency
	if workers > len(payloads) {
		workers = len(payloads)
	}

	jobs := make(chan int)
	outcomes := make([]importOutcome, len(payloads))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = s.importOne(ctx, payloads[idx])
			}
		}()
	}
	for idx := range payloads {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for _, outcome := range outcomes {
		if outcome.err == nil {
			result.Success++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, ImportError{
			Identifier: outcome.identifier,
			Message:    s.importErrorMessage(ctx, outcome.identifier, outcome.err),
		})
	}

	if result.Success > 0 {
		s.invalidate(ctx)
	}
	return result
}

// importErrorMessage sanitizes per-record failures the same way the HTTP
// layer does: domain sentinels keep their message, storage error detail
// stays in the server log.
func (s *Service) importErrorMessage(ctx context.Context, identifier string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		return err.Error()
	default:
		logger := logging.FromContext(ctx)
		logger.Error().Err(err).Str("identifier", identifier).Msg("import record failed")
		return "storage operation failed"
	}
}

func (s *Service) importOne(ctx context.Context, raw map[string]any) importOutcome {
	outcome := importOutcome{identifier: "unknown"}

	// Report the caller-supplied id when there is one; generated ids say
	// nothing useful about which input record failed.
	if raw != nil {
		if suppliedID := asString(Resolve(raw)[FieldID]); suppliedID != "" {
			outcome.identifier = suppliedID
		}
	}

	rec, err := s.buildRecord(raw)
	if err != nil {
		outcome.err = err
		return outcome
	}

	if _, err := s.gateway.Create(ctx, rec); err != nil {
		outcome.err = err
	}
	return outcome
}
