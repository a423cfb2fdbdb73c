// explainer.go implements the path explainer (C7.c, spec §4.6): a
// template-based natural-language description per path, built from
// per-relation-type phrase maps that are configurable and locale-aware (at
// least en and ja), an optional LLM-polished variant, and a key_relations
// list pairing endpoint names with the relation description. On LLM
// failure it falls back to the template result (spec §7: "Path reasoner
// falls back to template explanation on LLM failure"). Locale identity
// uses golang.org/x/text/language.Tag (teacher's own text-processing
// dependency) rather than inventing a bespoke locale string type.
package path

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/nahisaho/YAGOKORO-sub003/knowledge"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
)

// PhraseMap maps a relation type to a verb phrase describing source->target,
// e.g. "USES_TECHNIQUE" -> "uses". Explanation renders
// "<source> <phrase> <target>".
type PhraseMap map[knowledge.RelationType]string

// DefaultPhraseMaps covers every closed RelationType for English and
// Japanese (spec §4.6's "at least ja and en").
var DefaultPhraseMaps = map[language.Tag]PhraseMap{
	language.English: {
		knowledge.RelDevelopedBy:   "was developed by",
		knowledge.RelUsesTechnique: "uses",
		knowledge.RelBasedOn:       "is based on",
		knowledge.RelEmployedAt:    "is employed at",
		knowledge.RelEvaluatedOn:   "is evaluated on",
		knowledge.RelAuthored:      "authored",
		knowledge.RelMemberOf:      "is a member of",
		knowledge.RelImproves:      "improves",
		knowledge.RelDerivedFrom:   "is derived from",
		knowledge.RelBelongsTo:     "belongs to",
		knowledge.RelCites:         "cites",
	},
	language.Japanese: {
		knowledge.RelDevelopedBy:   "は次によって開発された:",
		knowledge.RelUsesTechnique: "は次を使用する:",
		knowledge.RelBasedOn:       "は次に基づく:",
		knowledge.RelEmployedAt:    "は次に所属する:",
		knowledge.RelEvaluatedOn:   "は次で評価される:",
		knowledge.RelAuthored:      "は次を執筆した:",
		knowledge.RelMemberOf:      "は次のメンバーである:",
		knowledge.RelImproves:      "は次を改善する:",
		knowledge.RelDerivedFrom:   "は次から派生した:",
		knowledge.RelBelongsTo:     "は次に属する:",
		knowledge.RelCites:         "は次を引用する:",
	},
}

// KeyRelation pairs the endpoint names of a single hop with its
// human-readable relation description.
type KeyRelation struct {
	SourceName string
	TargetName string
	Relation   knowledge.RelationType
	Phrase     string
}

// Explanation is the per-path output of Explainer.Explain.
type Explanation struct {
	Template     string
	Polished     string // empty if no LLM client was available or it failed
	KeyRelations []KeyRelation
}

// Explainer renders natural-language descriptions of paths.
type Explainer struct {
	LLM        llmclient.Client // optional
	PhraseMaps map[language.Tag]PhraseMap
	Locale     language.Tag
}

// NewExplainer constructs an Explainer for locale, defaulting to English
// phrase maps when locale is unset or unrecognised.
func NewExplainer(llm llmclient.Client, locale language.Tag) *Explainer {
	return &Explainer{LLM: llm, PhraseMaps: DefaultPhraseMaps, Locale: locale}
}

func (e *Explainer) phrasesFor(locale language.Tag) PhraseMap {
	if pm, ok := e.PhraseMaps[locale]; ok {
		return pm
	}
	return e.PhraseMaps[language.English]
}

// Explain builds the template description, key relations, and (if an LLM
// client is configured) an LLM-polished variant for path p.
func (e *Explainer) Explain(ctx context.Context, p knowledge.Path) Explanation {
	phrases := e.phrasesFor(e.Locale)

	var sb strings.Builder
	var keyRelations []KeyRelation
	for i, step := range p.Steps {
		if i == 0 {
			sb.WriteString(step.Entity.Name)
			continue
		}
		prev := p.Steps[i-1].Entity
		phrase, ok := phrases[step.Relation.Type]
		if !ok {
			phrase = strings.ToLower(strings.ReplaceAll(string(step.Relation.Type), "_", " "))
		}
		sb.WriteString(fmt.Sprintf(" %s %s", phrase, step.Entity.Name))
		keyRelations = append(keyRelations, KeyRelation{
			SourceName: prev.Name,
			TargetName: step.Entity.Name,
			Relation:   step.Relation.Type,
			Phrase:     phrase,
		})
	}
	template := sb.String()

	result := Explanation{Template: template, KeyRelations: keyRelations}

	if e.LLM == nil {
		return result
	}
	polished, err := e.polish(ctx, template)
	if err != nil {
		return result // fall back to template result (spec §7)
	}
	result.Polished = polished
	return result
}

func (e *Explainer) polish(ctx context.Context, template string) (string, error) {
	prompt := fmt.Sprintf("Rewrite this fact as one natural, fluent sentence without changing its meaning:\n%s", template)
	resp, err := e.LLM.Chat(ctx, []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}, llmclient.ChatOptions{Temperature: 0.3})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
