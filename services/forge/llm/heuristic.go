// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"strings"
	"unicode"

	"github.com/AleutianAI/graphforge/services/forge/kg"
)

// orgSuffixes mark a capitalized span as an organization.
var orgSuffixes = []string{"Inc", "Inc.", "Corp", "Corp.", "Ltd", "Ltd.", "LLC", "GmbH", "Company"}

// relationCues map a textual cue to the emitted predicate. The relation is
// read cue-inverted: "X founded by Y" yields (Y, FOUNDED, X).
var relationCues = map[string]string{
	"founded by":  "FOUNDED",
	"acquired by": "ACQUIRED",
	"created by":  "CREATED",
	"led by":      "LEADS",
	"owned by":    "OWNS",
}

// HeuristicExtractor is a deterministic, offline Extractor.
//
// Description:
//
//	Scans for spans of capitalized tokens and classifies them with simple
//	rules: corporate suffixes mark an ORG, a multi-word span following a
//	"by" cue marks a PERSON. It exists so pipelines run without network
//	access and so tests are reproducible; accuracy is not the point.
//
// Thread Safety: stateless, safe for concurrent use.
type HeuristicExtractor struct{}

// NewHeuristicExtractor returns the stateless heuristic extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

type span struct {
	text     string
	afterBy  bool
	startIdx int
}

// ExtractEntities finds capitalized spans and classifies them.
func (h *HeuristicExtractor) ExtractEntities(_ context.Context, text string) ([]kg.Entity, error) {
	spans := capitalizedSpans(text)

	seen := make(map[string]bool)
	var entities []kg.Entity
	for _, sp := range spans {
		name := strings.TrimRight(sp.text, ",")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		label := classify(name, sp.afterBy)
		entities = append(entities, kg.Entity{Name: name, Label: label, Confidence: 0.5})
	}
	return entities, nil
}

// ExtractRelations pairs entities around textual cue phrases.
func (h *HeuristicExtractor) ExtractRelations(_ context.Context, text string, entities []kg.Entity) ([]kg.Relation, error) {
	lower := strings.ToLower(text)

	var relations []kg.Relation
	for cue, predicate := range relationCues {
		idx := strings.Index(lower, cue)
		if idx < 0 {
			continue
		}

		// Subject: last entity mentioned after the cue.
		// Object: last entity mentioned before it.
		var subject, object string
		for _, e := range entities {
			pos := strings.Index(text, e.Name)
			if pos < 0 {
				continue
			}
			if pos < idx {
				object = e.Name
			} else if subject == "" {
				subject = e.Name
			}
		}
		if subject != "" && object != "" {
			relations = append(relations, kg.Relation{
				Subject:    subject,
				Predicate:  predicate,
				Object:     object,
				Confidence: 0.5,
			})
		}
	}
	return relations, nil
}

// capitalizedSpans groups consecutive capitalized tokens into spans and
// remembers whether the span directly follows a "by" token.
func capitalizedSpans(text string) []span {
	tokens := strings.Fields(text)

	var spans []span
	var current []string
	afterBy := false
	start := -1

	flush := func(idx int) {
		if len(current) > 0 {
			spans = append(spans, span{
				text:     strings.TrimRight(strings.Join(current, " "), "."),
				afterBy:  afterBy,
				startIdx: start,
			})
			current = nil
			afterBy = false
			start = -1
		}
		_ = idx
	}

	prev := ""
	for i, tok := range tokens {
		if isCapitalized(tok) {
			if len(current) == 0 {
				start = i
				afterBy = strings.EqualFold(prev, "by")
			}
			current = append(current, strings.TrimRight(tok, ",;:"))
			// Sentence-final token ends the span.
			if strings.HasSuffix(tok, ".") && !isOrgSuffix(strings.TrimRight(tok, ".")) {
				flush(i)
			}
		} else {
			flush(i)
		}
		prev = strings.TrimRight(tok, ".,;:")
	}
	flush(len(tokens))
	return spans
}

func isCapitalized(tok string) bool {
	for _, r := range tok {
		return unicode.IsUpper(r)
	}
	return false
}

func isOrgSuffix(word string) bool {
	for _, suffix := range orgSuffixes {
		if strings.TrimRight(word, ".") == strings.TrimRight(suffix, ".") {
			return true
		}
	}
	return false
}

func classify(name string, afterBy bool) string {
	for _, word := range strings.Fields(name) {
		if isOrgSuffix(word) {
			return kg.LabelOrg
		}
	}
	if afterBy {
		return kg.LabelPerson
	}
	if len(strings.Fields(name)) >= 2 {
		return kg.LabelPerson
	}
	return kg.LabelMisc
}
