package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

type Detection struct {
	Topics         []string `json:"topics"`
	EmergencyFlags []string `json:"emergency_flags"`
}

// TopicDetector runs the configured rule table over a transcript. Topics are
// scanned on every turn; emergency flags only on parent turns so assistant
// safety advice cannot raise them.
type TopicDetector interface {
	Detect(turns []types.Turn, childTraits []types.MatchedTrait) Detection
}

type compiledRule struct {
	rule     knowledge.TopicRule
	trait    string
	patterns []*regexp.Regexp
}

type topicDetector struct {
	rules []compiledRule
}

func NewTopicDetector(kb *knowledge.Base) (TopicDetector, error) {
	out := make([]compiledRule, 0, len(kb.TopicRules))
	for _, r := range kb.TopicRules {
		cr := compiledRule{rule: r}
		if r.Trait != "" {
			ref, ok := kb.Trait(r.Trait)
			if !ok {
				return nil, fmt.Errorf("rule %q: unknown trait %q", r.ID, r.Trait)
			}
			cr.trait = ref.TraitName
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(knowledge.WordPattern(p))
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.ID, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		out = append(out, cr)
	}
	return &topicDetector{rules: out}, nil
}

func (d *topicDetector) Detect(turns []types.Turn, childTraits []types.MatchedTrait) Detection {
	topics := map[string]bool{}
	flags := map[string]bool{}
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		for _, cr := range d.rules {
			if cr.rule.EmergencyFlag != "" && turn.Speaker != types.SpeakerParent {
				continue
			}
			if !cr.matches(text) {
				continue
			}
			switch {
			case cr.rule.EmergencyFlag != "":
				flags[cr.rule.EmergencyFlag] = true
			case cr.trait != "":
				topics[cr.trait] = true
			case cr.rule.Category != "":
				for _, t := range childTraits {
					if t.Category == cr.rule.Category {
						topics[t.TraitName] = true
					}
				}
			}
		}
	}
	return Detection{Topics: sortedKeys(topics), EmergencyFlags: sortedKeys(flags)}
}

func (cr compiledRule) matches(text string) bool {
	for _, re := range cr.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// unionSorted merges b into a without dropping anything from a.
func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	return sortedKeys(set)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
