// Package repair recovers study documents from model output that is supposed
// to be one JSON object but often arrives wrapped in prose or code fences, or
// with broken JSON syntax.
//
// Recovery is an ordered list of attempts. Each attempt is a pure text
// transformation; the first whose output decodes into a schema-conformant
// document wins. Attempts are grouped into four stages: direct, strip,
// normalize and extract.
package repair

import (
	"fmt"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

const (
	StageDirect    = "direct"
	StageStrip     = "strip"
	StageNormalize = "normalize"
	StageExtract   = "extract"
)

// Attempt is one step of the cascade. prev is the text produced by the
// previous attempt, raw the original model output.
type Attempt struct {
	Stage string
	Step  string
	Apply func(prev, raw string) string
}

func onPrev(f func(string) string) func(prev, raw string) string {
	return func(prev, _ string) string { return f(prev) }
}

func extract(span func(string) string) func(prev, raw string) string {
	return func(_, raw string) string {
		return normalizeAll(closeBrackets(span(stripFences(raw))))
	}
}

// Cascade is the default attempt order.
var Cascade = []Attempt{
	{StageDirect, "as-is", func(_, raw string) string { return raw }},
	{StageStrip, "fences-and-span", func(_, raw string) string { return matchingSpan(stripFences(raw)) }},
	{StageNormalize, "string-escapes", onPrev(normalizeStrings)},
	{StageNormalize, "missing-commas", onPrev(insertMissingCommas)},
	{StageNormalize, "trailing-commas", onPrev(stripTrailingCommas)},
	{StageNormalize, "bare-keys", onPrev(quoteBareKeys)},
	{StageNormalize, "scalar-values", onPrev(normalizeValues)},
	{StageExtract, "summary-anchor", extract(anchoredSpan)},
	{StageExtract, "outer-span", extract(outerSpan)},
	{StageExtract, "fragments", func(_, raw string) string { return mergeFragments(stripFences(raw)) }},
}

// Result is a recovered document plus the attempt that produced it.
type Result struct {
	Document *models.PartialDocument
	Stage    string
	Step     string
}

// Repair recovers a PartialDocument from raw model output.
func Repair(raw string) (*models.PartialDocument, error) {
	res, err := RepairWithTrace(raw)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// RepairWithTrace is Repair that also reports which attempt succeeded.
func RepairWithTrace(raw string) (*Result, error) {
	return Run(Cascade, raw)
}

// Run applies attempts in order. Attempts whose output was already tried are
// skipped.
func Run(attempts []Attempt, raw string) (*Result, error) {
	tried := make(map[string]struct{}, len(attempts))
	prev := raw
	for _, a := range attempts {
		text := a.Apply(prev, raw)
		prev = text
		if _, seen := tried[text]; seen {
			continue
		}
		tried[text] = struct{}{}

		if doc, ok := decode(text); ok {
			return &Result{Document: doc, Stage: a.Stage, Step: a.Step}, nil
		}
	}
	return nil, errs.New(errs.KindMalformedResponse, "repair", fmt.Errorf("no attempt out of %d produced a valid document", len(attempts)))
}
