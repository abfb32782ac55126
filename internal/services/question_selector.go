package services

import (
	"sort"
	"strings"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

// QuestionSelector picks check-in questions for a child.
type QuestionSelector interface {
	Select(checkInType string, traits []string, recent []*types.LogEntry) []types.Question
}

type questionSelector struct {
	bank knowledge.QuestionBank
	kb   *knowledge.Base
	max  int
}

func NewQuestionSelector(kb *knowledge.Base, maxQuestions int) QuestionSelector {
	if maxQuestions <= 0 {
		maxQuestions = DefaultEngineConfig().MaxCheckInQuestions
	}
	return &questionSelector{bank: kb.Questions, kb: kb, max: maxQuestions}
}

// Select prefers traits without a recommendation in recent entries and
// interleaves their templates round-robin. Emergency and initial sessions get
// no questions.
func (q *questionSelector) Select(checkInType string, traits []string, recent []*types.LogEntry) []types.Question {
	if checkInType != types.CheckInTypeWeekly {
		return nil
	}
	order := q.traitOrder(traits, recent)

	var out []types.Question
	for round := 0; len(out) < q.max; round++ {
		added := false
		for _, name := range order {
			tmpls := q.templatesFor(name)
			if round >= len(tmpls) {
				continue
			}
			out = append(out, types.Question{
				Index:     len(out),
				TraitName: name,
				Text:      tmpls[round].Text,
				Options:   append([]string(nil), tmpls[round].Options...),
			})
			added = true
			if len(out) == q.max {
				break
			}
		}
		if !added {
			break
		}
	}
	if len(out) == 0 {
		for _, t := range q.bank.General {
			if len(out) == q.max {
				break
			}
			out = append(out, types.Question{Index: len(out), Text: t.Text, Options: append([]string(nil), t.Options...)})
		}
	}
	return out
}

// traitOrder returns the uncovered traits, or every trait when all were covered recently.
func (q *questionSelector) traitOrder(traits []string, recent []*types.LogEntry) []string {
	covered := coveredTraits(recent)
	var fresh, all []string
	seen := map[string]bool{}
	for _, t := range traits {
		name := q.canonical(t)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		all = append(all, name)
		if !covered[key] {
			fresh = append(fresh, name)
		}
	}
	sort.Strings(all)
	sort.Strings(fresh)
	if len(fresh) > 0 {
		return fresh
	}
	return all
}

func (q *questionSelector) canonical(name string) string {
	if ref, ok := q.kb.Trait(name); ok {
		return ref.TraitName
	}
	return strings.TrimSpace(name)
}

func (q *questionSelector) templatesFor(trait string) []knowledge.QuestionTemplate {
	if t, ok := q.bank.ByTrait[trait]; ok {
		return t
	}
	for k, t := range q.bank.ByTrait {
		if strings.EqualFold(k, trait) {
			return t
		}
	}
	return nil
}

// coveredTraits lists lower-cased trait names that appear in any recent entry's recommendations.
func coveredTraits(recent []*types.LogEntry) map[string]bool {
	out := map[string]bool{}
	for _, e := range recent {
		for _, name := range e.TraitsCovered() {
			out[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}
	return out
}
