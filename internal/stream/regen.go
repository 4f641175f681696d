package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bubblewire/bubblewire/internal/bubble"
	"github.com/bubblewire/bubblewire/internal/prompts"
	"github.com/bubblewire/bubblewire/internal/validate"
)

// validated runs both contract validators against the authoritative document
// and, when one demands it, performs the single regeneration round-trip. The
// returned document is always usable: on any regeneration failure the
// original document wins and the violation is only logged.
func (p *Pipeline) validated(ctx context.Context, req GenerateRequest, doc *bubble.ResponseDocument, log *slog.Logger) *bubble.ResponseDocument {
	var question *validate.SurveyQuestionContext
	if p.surveys != nil {
		q, err := p.surveys.ActiveSurveyContext(ctx, req.SessionID)
		if err != nil {
			log.Warn("survey context unavailable", "error", err)
		} else {
			question = q
		}
	}

	phrases := p.options().Phrases
	var failed []validate.Result
	if r := validate.ValidateSurvey(doc, question); r.NeedsRegeneration() {
		failed = append(failed, r)
	}
	if r := validate.ValidateDynamic(doc, phrases); r.NeedsRegeneration() {
		failed = append(failed, r)
	}
	if len(failed) == 0 {
		return doc
	}
	if ctx.Err() != nil {
		// Consumer is gone; never start a regeneration call for it.
		return doc
	}

	log.Info("contract validation failed, regenerating once", "errors", allErrors(failed))
	regenerated, err := p.regenerate(ctx, req, failed)
	if err != nil {
		log.Warn("regeneration did not improve the result", "error", err)
		return doc
	}
	if ctx.Err() != nil {
		// The call was allowed to finish, but its result is discarded.
		return doc
	}

	for _, f := range failed {
		switch f.(type) {
		case validate.SurveyResult:
			if r := validate.ValidateSurvey(regenerated, question); r.NeedsRegeneration() {
				log.Warn("regenerated document still violates the survey contract", "errors", r.Errors())
				return doc
			}
		case validate.DynamicResult:
			if r := validate.ValidateDynamic(regenerated, phrases); r.NeedsRegeneration() {
				log.Warn("regenerated document still violates content expectations", "errors", r.Errors())
				return doc
			}
		}
	}
	return regenerated
}

// regenerate issues the single corrective, non-streaming backend call with
// the augmented instruction and parses its result authoritatively. Same
// model, temperature and token budget as the original call.
func (p *Pipeline) regenerate(ctx context.Context, req GenerateRequest, failed []validate.Result) (*bubble.ResponseDocument, error) {
	instruction := prompts.RegenerationInstruction(req.UserMessage, failed)
	// Detached from cancellation: an in-flight corrective call may finish;
	// the caller discards the result if the consumer disconnected meanwhile.
	callCtx := context.WithoutCancel(ctx)
	text, err := p.backend.Complete(callCtx, p.backendRequest(req, instruction))
	if err != nil {
		return nil, fmt.Errorf("regeneration call: %w", err)
	}
	doc, err := ParseAuthoritative(text)
	if err != nil {
		return nil, fmt.Errorf("regenerated document: %w", err)
	}
	return doc, nil
}

func allErrors(failed []validate.Result) []string {
	var errs []string
	for _, f := range failed {
		errs = append(errs, f.Errors()...)
	}
	return errs
}
