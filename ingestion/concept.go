package ingestion

import (
	"context"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/nahisaho/YAGOKORO-sub003/kinderr"
	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
)

// ConceptExtractorOptions configures ConceptExtractor.
type ConceptExtractorOptions struct {
	MinFrequency        int
	MaxConcepts         int
	IncludeProperNouns   bool
}

// ConceptExtractor performs language-agnostic noun-phrase extraction across
// chunks using prose/v2's POS tagger, grouping consecutive noun tags
// (NN, NNS, NNP, NNPS) into candidate phrases.
type ConceptExtractor struct{}

// Extract implements ConceptExtractor(chunks, opts) -> {concepts, cooccurrences}.
func (ConceptExtractor) Extract(ctx context.Context, chunks []knowledge.TextChunk, opts ConceptExtractorOptions) ([]knowledge.Concept, []knowledge.ConceptCooccurrence, error) {
	frequency := map[string]int{}
	sourceChunks := map[string]map[string]struct{}{}
	pairCounts := map[[2]string]int{}
	maxPair := 0

	for _, chunk := range chunks {
		phrases, err := nounPhrases(chunk.Content, opts.IncludeProperNouns)
		if err != nil {
			return nil, nil, kinderr.Wrap(kinderr.TransientIO, err, "noun-phrase extraction failed for chunk %s", chunk.ID)
		}

		seen := map[string]struct{}{}
		for _, phrase := range phrases {
			norm := knowledge.Normalize(phrase)
			if norm == "" {
				continue
			}
			frequency[norm]++
			if sourceChunks[norm] == nil {
				sourceChunks[norm] = map[string]struct{}{}
			}
			sourceChunks[norm][chunk.ID] = struct{}{}
			seen[norm] = struct{}{}
		}

		unique := make([]string, 0, len(seen))
		for c := range seen {
			unique = append(unique, c)
		}
		for i := 0; i < len(unique); i++ {
			for j := i + 1; j < len(unique); j++ {
				pair := orderedPair(unique[i], unique[j])
				pairCounts[pair]++
				if pairCounts[pair] > maxPair {
					maxPair = pairCounts[pair]
				}
			}
		}
	}

	maxFrequency := 0
	for _, f := range frequency {
		if f > maxFrequency {
			maxFrequency = f
		}
	}

	var concepts []knowledge.Concept
	for text, freq := range frequency {
		if freq < opts.MinFrequency {
			continue
		}
		chunks := make([]string, 0, len(sourceChunks[text]))
		for id := range sourceChunks[text] {
			chunks = append(chunks, id)
		}
		importance := 0.0
		if maxFrequency > 0 {
			importance = float64(freq) / float64(maxFrequency)
		}
		concepts = append(concepts, knowledge.Concept{
			Text:         text,
			Frequency:    freq,
			Importance:   importance,
			SourceChunks: chunks,
		})
	}

	if opts.MaxConcepts > 0 && len(concepts) > opts.MaxConcepts {
		concepts = topConceptsByImportance(concepts, opts.MaxConcepts)
	}

	kept := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		kept[c.Text] = struct{}{}
	}

	var cooccurrences []knowledge.ConceptCooccurrence
	for pair, count := range pairCounts {
		if _, ok := kept[pair[0]]; !ok {
			continue
		}
		if _, ok := kept[pair[1]]; !ok {
			continue
		}
		strength := 0.0
		if maxPair > 0 {
			strength = float64(count) / float64(maxPair)
		}
		cooccurrences = append(cooccurrences, knowledge.ConceptCooccurrence{
			ConceptA: pair[0],
			ConceptB: pair[1],
			Strength: strength,
			Count:    count,
		})
	}

	return concepts, cooccurrences, nil
}

func orderedPair(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func topConceptsByImportance(concepts []knowledge.Concept, n int) []knowledge.Concept {
	sorted := append([]knowledge.Concept(nil), concepts...)
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Importance > sorted[i].Importance {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	return sorted[:n]
}

var nounTags = map[string]struct{}{
	"NN": {}, "NNS": {}, "NNP": {}, "NNPS": {},
}

// nounPhrases tags text with prose/v2 and groups consecutive noun tokens
// into phrases; properNounsOnly restricts to NNP/NNPS tags.
func nounPhrases(text string, properNounsOnly bool) ([]string, error) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	var phrases []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			phrases = append(phrases, strings.Join(current, " "))
			current = nil
		}
	}

	for _, tok := range doc.Tokens() {
		_, isNoun := nounTags[tok.Tag]
		isProper := tok.Tag == "NNP" || tok.Tag == "NNPS"
		match := isNoun && (!properNounsOnly || isProper)
		if match {
			current = append(current, tok.Text)
		} else {
			flush()
		}
	}
	flush()
	return phrases, nil
}
