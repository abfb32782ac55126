package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	types "github.com/yungbote/bloomie-backend/internal/domain"
	"github.com/yungbote/bloomie-backend/internal/services"
)

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	knowledgeDir = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("traitctl %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestRoadmapCommandPrintsBuckets(t *testing.T) {
	out := run(t, "", "roadmap", "--traits", "FLG", "--age-months", "8")
	var buckets []types.MilestoneBucket
	if err := json.Unmarshal([]byte(out), &buckets); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(buckets) == 0 {
		t.Fatalf("expected buckets for FLG")
	}
	current := 0
	for _, b := range buckets {
		if b.IsCurrent {
			current++
		}
	}
	if current > 1 {
		t.Fatalf("current buckets: want<=1 got=%d", current)
	}
}

func TestDetectCommandFlagsEmergency(t *testing.T) {
	out := run(t, "", "detect", "she", "cannot", "breathe")
	var d services.Detection
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(d.EmergencyFlags) == 0 {
		t.Fatalf("expected an emergency flag, got=%+v", d)
	}
}

func TestMatchCommandReadsStdin(t *testing.T) {
	out := run(t, `{"genotype_profile":[{"rs_id":"RS61816761","genotype":"ga"}]}`, "match")
	var traits []types.MatchedTrait
	if err := json.Unmarshal([]byte(out), &traits); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(traits) != 1 || traits[0].GeneID != "FLG" {
		t.Fatalf("match: want FLG got=%+v", traits)
	}
}
