package knowledge

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/domain/genetics"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

//go:embed data/*.yaml
var embedded embed.FS

const (
	traitsFile     = "traits.yaml"
	questionsFile  = "questions.yaml"
	rulesFile      = "topic_rules.yaml"
	milestonesFile = "milestones.yaml"
	immunityFile   = "immunity.yaml"
	articlesFile   = "articles.yaml"
)

type QuestionTemplate struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
}

type QuestionBank struct {
	ByTrait map[string][]QuestionTemplate `yaml:"traits"`
	General []QuestionTemplate            `yaml:"general"`
}

// TopicRule maps patterns to exactly one of: a trait, a trait category, or an emergency flag.
type TopicRule struct {
	ID            string   `yaml:"id"`
	Patterns      []string `yaml:"patterns"`
	Trait         string   `yaml:"trait"`
	Category      string   `yaml:"category"`
	EmergencyFlag string   `yaml:"emergency_flag"`
}

type AgeBucket struct {
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Label string `yaml:"label"`
}

type MilestoneRow struct {
	GeneID    string   `yaml:"gene_id"`
	TraitName string   `yaml:"trait_name"`
	Start     int      `yaml:"start"`
	End       int      `yaml:"end"`
	Focus     string   `yaml:"focus"`
	Foods     []string `yaml:"foods"`
}

type MilestoneTable struct {
	Buckets []AgeBucket    `yaml:"buckets"`
	Rows    []MilestoneRow `yaml:"milestones"`
}

type Suggestion struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Article is a reference passage for retrieval. Traits is empty for general guidance.
type Article struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Category string   `yaml:"category" json:"category"`
	Traits   []string `yaml:"traits" json:"traits,omitempty"`
	Content  string   `yaml:"content" json:"content"`
}

// Base is the static knowledge the engine runs on. It is immutable after Load.
type Base struct {
	Traits     []types.TraitReference
	Questions  QuestionBank
	TopicRules []TopicRule
	Milestones MilestoneTable
	Immunity   map[string][]Suggestion
	Articles   []Article

	byName map[string]types.TraitReference
}

// Load reads the knowledge files from dir when set, falling back to the
// embedded copy when dir is empty or its contents do not validate.
func Load(log *logger.Logger, dir string) (*Base, error) {
	dir = strings.TrimSpace(dir)
	if dir != "" {
		b, err := load(func(name string) ([]byte, error) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if errors.Is(err, os.ErrNotExist) {
				return embedded.ReadFile("data/" + name)
			}
			return data, err
		})
		if err == nil {
			if log != nil {
				log.Info("knowledge base loaded", "dir", dir, "traits", len(b.Traits), "rules", len(b.TopicRules))
			}
			return b, nil
		}
		if log != nil {
			log.Warn("knowledge base override invalid; using embedded copy", "dir", dir, "error", err)
		}
	}
	return Embedded()
}

// Embedded loads the knowledge base compiled into the binary.
func Embedded() (*Base, error) {
	return load(func(name string) ([]byte, error) {
		return embedded.ReadFile("data/" + name)
	})
}

func load(read func(name string) ([]byte, error)) (*Base, error) {
	var traitsDoc struct {
		Traits []types.TraitReference `yaml:"traits"`
	}
	var rulesDoc struct {
		Rules []TopicRule `yaml:"rules"`
	}
	var immunityDoc struct {
		Suggestions map[string][]Suggestion `yaml:"suggestions"`
	}
	var articlesDoc struct {
		Articles []Article `yaml:"articles"`
	}
	b := &Base{}
	files := []struct {
		name string
		out  any
	}{
		{traitsFile, &traitsDoc},
		{questionsFile, &b.Questions},
		{rulesFile, &rulesDoc},
		{milestonesFile, &b.Milestones},
		{immunityFile, &immunityDoc},
		{articlesFile, &articlesDoc},
	}
	for _, f := range files {
		data, err := read(f.name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := yaml.Unmarshal(data, f.out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	b.Traits = traitsDoc.Traits
	b.TopicRules = rulesDoc.Rules
	b.Immunity = immunityDoc.Suggestions
	b.Articles = articlesDoc.Articles
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func validCategory(c string) bool {
	switch c {
	case types.CategoryCognitive, types.CategoryImmunity, types.CategoryGrowth:
		return true
	}
	return false
}

func (b *Base) validate() error {
	if len(b.Traits) == 0 {
		return fmt.Errorf("%s: no traits", traitsFile)
	}
	b.byName = make(map[string]types.TraitReference, len(b.Traits))
	for i, t := range b.Traits {
		if strings.TrimSpace(t.TraitName) == "" || strings.TrimSpace(t.GeneID) == "" {
			return fmt.Errorf("%s: trait %d missing gene_id or trait_name", traitsFile, i)
		}
		if !validCategory(t.Category) {
			return fmt.Errorf("%s: trait %q has unknown category %q", traitsFile, t.TraitName, t.Category)
		}
		if _, err := genetics.ParseMatcher(t.MatcherPattern); err != nil {
			return fmt.Errorf("%s: trait %q: %w", traitsFile, t.TraitName, err)
		}
		key := strings.ToLower(t.TraitName)
		if _, dup := b.byName[key]; dup {
			return fmt.Errorf("%s: duplicate trait %q", traitsFile, t.TraitName)
		}
		b.byName[key] = t
	}

	for name, qs := range b.Questions.ByTrait {
		if _, ok := b.Trait(name); !ok {
			return fmt.Errorf("%s: questions for unknown trait %q", questionsFile, name)
		}
		for _, q := range qs {
			if strings.TrimSpace(q.Text) == "" {
				return fmt.Errorf("%s: empty question for trait %q", questionsFile, name)
			}
		}
	}
	if len(b.Questions.General) == 0 {
		return fmt.Errorf("%s: general questions required", questionsFile)
	}

	seen := map[string]bool{}
	for _, r := range b.TopicRules {
		if r.ID == "" || seen[r.ID] {
			return fmt.Errorf("%s: missing or duplicate rule id %q", rulesFile, r.ID)
		}
		seen[r.ID] = true
		targets := 0
		for _, s := range []string{r.Trait, r.Category, r.EmergencyFlag} {
			if s != "" {
				targets++
			}
		}
		if targets != 1 {
			return fmt.Errorf("%s: rule %q must set exactly one of trait, category, emergency_flag", rulesFile, r.ID)
		}
		if r.Trait != "" {
			if _, ok := b.Trait(r.Trait); !ok {
				return fmt.Errorf("%s: rule %q references unknown trait %q", rulesFile, r.ID, r.Trait)
			}
		}
		if r.Category != "" && !validCategory(r.Category) {
			return fmt.Errorf("%s: rule %q has unknown category %q", rulesFile, r.ID, r.Category)
		}
		if len(r.Patterns) == 0 {
			return fmt.Errorf("%s: rule %q has no patterns", rulesFile, r.ID)
		}
		for _, p := range r.Patterns {
			if _, err := regexp.Compile(WordPattern(p)); err != nil {
				return fmt.Errorf("%s: rule %q pattern %q: %w", rulesFile, r.ID, p, err)
			}
		}
	}

	if err := b.validateMilestones(); err != nil {
		return err
	}
	for name := range b.Immunity {
		t, ok := b.Trait(name)
		if !ok || t.Category != types.CategoryImmunity {
			return fmt.Errorf("%s: suggestions for unknown immunity trait %q", immunityFile, name)
		}
	}
	return b.validateArticles()
}

func (b *Base) validateArticles() error {
	seen := map[string]bool{}
	for i, a := range b.Articles {
		if strings.TrimSpace(a.ID) == "" || seen[a.ID] {
			return fmt.Errorf("%s: article %d has a missing or duplicate id %q", articlesFile, i, a.ID)
		}
		seen[a.ID] = true
		if strings.TrimSpace(a.Content) == "" {
			return fmt.Errorf("%s: article %q has no content", articlesFile, a.ID)
		}
		if !validCategory(a.Category) {
			return fmt.Errorf("%s: article %q has unknown category %q", articlesFile, a.ID, a.Category)
		}
		for _, name := range a.Traits {
			if _, ok := b.Trait(name); !ok {
				return fmt.Errorf("%s: article %q references unknown trait %q", articlesFile, a.ID, name)
			}
		}
	}
	return nil
}

func (b *Base) validateMilestones() error {
	buckets := b.Milestones.Buckets
	if len(buckets) == 0 {
		return fmt.Errorf("%s: no buckets", milestonesFile)
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Start < buckets[j].Start })
	for i, bk := range buckets {
		if bk.Start < 0 || bk.Start > bk.End {
			return fmt.Errorf("%s: bucket %d-%d has start after end", milestonesFile, bk.Start, bk.End)
		}
		if i > 0 && bk.Start <= buckets[i-1].End {
			return fmt.Errorf("%s: bucket %d-%d overlaps %d-%d", milestonesFile, bk.Start, bk.End, buckets[i-1].Start, buckets[i-1].End)
		}
	}
	for _, row := range b.Milestones.Rows {
		if row.Start > row.End {
			return fmt.Errorf("%s: %s row %d-%d has start after end", milestonesFile, row.TraitName, row.Start, row.End)
		}
		if _, ok := b.BucketFor(row.Start, row.End); !ok {
			return fmt.Errorf("%s: %s row %d-%d does not align with a bucket", milestonesFile, row.TraitName, row.Start, row.End)
		}
		t, ok := b.Trait(row.TraitName)
		if !ok || !strings.EqualFold(t.GeneID, row.GeneID) {
			return fmt.Errorf("%s: row references unknown trait %s/%s", milestonesFile, row.GeneID, row.TraitName)
		}
	}
	return nil
}

// Trait looks up a trait reference by name, case-insensitively.
func (b *Base) Trait(name string) (types.TraitReference, bool) {
	t, ok := b.byName[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// TraitsInCategory returns the knowledge-base trait names in category, in file order.
func (b *Base) TraitsInCategory(category string) []string {
	var out []string
	for _, t := range b.Traits {
		if t.Category == category {
			out = append(out, t.TraitName)
		}
	}
	return out
}

func (b *Base) BucketFor(start, end int) (AgeBucket, bool) {
	for _, bk := range b.Milestones.Buckets {
		if bk.Start == start && bk.End == end {
			return bk, true
		}
	}
	return AgeBucket{}, false
}

// WordPattern wraps a rule fragment into a case-insensitive, word-bounded regexp.
func WordPattern(fragment string) string {
	return `(?i)\b(?:` + fragment + `)\b`
}
