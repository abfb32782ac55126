package services

import (
	"reflect"
	"testing"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/knowledge"
)

func TestTopicDetector(t *testing.T) {
	kb, err := knowledge.Embedded()
	if err != nil {
		t.Fatalf("knowledge: %v", err)
	}
	d, err := NewTopicDetector(kb)
	if err != nil {
		t.Fatalf("NewTopicDetector: %v", err)
	}
	carries := matched(kb, "Eczema Risk", "UV Sensitivity", "Language Development")
	parent := func(text string) types.Turn { return types.Turn{Speaker: types.SpeakerParent, Text: text} }
	assistant := func(text string) types.Turn { return types.Turn{Speaker: types.SpeakerAssistant, Text: text} }

	cases := []struct {
		name       string
		turns      []types.Turn
		wantTopics []string
		wantFlags  []string
	}{
		{
			name:       "nothing medical",
			turns:      []types.Turn{parent("She loves playing with blocks"), assistant("That sounds lovely.")},
			wantTopics: []string{},
			wantFlags:  []string{},
		},
		{
			name:       "trait rule applies even when not carried",
			turns:      []types.Turn{parent("He keeps WHEEZING at night")},
			wantTopics: []string{"Asthma Susceptibility"},
			wantFlags:  []string{},
		},
		{
			name:       "category rule yields carried traits in category",
			turns:      []types.Turn{parent("she has a fever since yesterday")},
			wantTopics: []string{"Eczema Risk", "UV Sensitivity"},
			wantFlags:  []string{},
		},
		{
			name:       "word boundaries",
			turns:      []types.Turn{parent("the coldest day, feverfew tea")},
			wantTopics: []string{},
			wantFlags:  []string{},
		},
		{
			name:       "emergency on parent turn",
			turns:      []types.Turn{parent("he can't breathe and has blue lips")},
			wantTopics: []string{},
			wantFlags:  []string{"difficulty_breathing"},
		},
		{
			name:       "assistant advice raises no flags",
			turns:      []types.Turn{parent("mild eczema"), assistant("If she has difficulty breathing call 911.")},
			wantTopics: []string{"Eczema Risk"},
			wantFlags:  []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Detect(tc.turns, carries)
			if !reflect.DeepEqual(got.Topics, tc.wantTopics) {
				t.Fatalf("topics: want=%v got=%v", tc.wantTopics, got.Topics)
			}
			if !reflect.DeepEqual(got.EmergencyFlags, tc.wantFlags) {
				t.Fatalf("flags: want=%v got=%v", tc.wantFlags, got.EmergencyFlags)
			}
		})
	}
}

func TestUnionSortedNeverShrinks(t *testing.T) {
	got := unionSorted([]string{"b", "a"}, []string{"c", "a"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unionSorted: got=%v", got)
	}
	if got := unionSorted([]string{"x"}, nil); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("unionSorted(nil): got=%v", got)
	}
}
