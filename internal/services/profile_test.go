package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/bloomie-backend/internal/domain"
)

func sampleReport(childID string) GeneticReport {
	return GeneticReport{
		ChildID:  childID,
		Birthday: "2025-07-01",
		Gender:   "female",
		GenotypeProfile: []GenotypeCall{
			{RSID: "rs61816761", Genotype: "AG"},
			{RSID: "rs6980093", Genotype: "GG"},
			{RSID: "rs4680", Genotype: "GG"},
		},
	}
}

func TestIngestGeneticReportCreatesInitialEntryOnce(t *testing.T) {
	env := newTestEnv(t)
	env.gen.set(echoEligible(env.kb))
	ctx := context.Background()

	res, err := env.profiles.IngestGeneticReport(ctx, sampleReport("child-1"))
	if err != nil {
		t.Fatalf("IngestGeneticReport: %v", err)
	}
	if got := res.TraitSet.TraitNames(); len(got) != 2 || got[0] != "Eczema Risk" || got[1] != "Language Development" {
		t.Fatalf("trait set: got=%v", got)
	}
	if res.TraitSet.BirthDate == nil || res.TraitSet.MarkerCount != 3 {
		t.Fatalf("trait set fields: got=%+v", res.TraitSet)
	}
	if res.InitialEntry == nil || res.InitialEntry.EntryType != types.EntryTypeInitial || res.InitialEntry.Seq != 1 {
		t.Fatalf("initial entry: got=%+v", res.InitialEntry)
	}

	again, err := env.profiles.IngestGeneticReport(ctx, sampleReport("child-1"))
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if again.InitialEntry != nil {
		t.Fatalf("re-ingest should not create another initial entry")
	}
	entries, err := env.profiles.ListEntries(ctx, "child-1", 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries: got=%d err=%v", len(entries), err)
	}
}

func TestIngestGeneticReportKeepsTraitsWhenInitialEntryFails(t *testing.T) {
	env := newTestEnv(t)
	env.gen.set(func(ctx context.Context, p StructuredPrompt) (StructuredResponse, error) {
		return StructuredResponse{}, errors.New("model unavailable")
	})
	ctx := context.Background()

	res, err := env.profiles.IngestGeneticReport(ctx, sampleReport("child-1"))
	var initErr *InitialEntryError
	if !errors.As(err, &initErr) || !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("IngestGeneticReport: want InitialEntryError wrapping ErrGenerationFailed got=%v", err)
	}
	if res == nil || res.TraitSet == nil {
		t.Fatalf("trait set should be returned")
	}
	if _, err := env.profiles.GetTraitSet(ctx, "child-1"); err != nil {
		t.Fatalf("GetTraitSet: %v", err)
	}
	// The failed initial session does not block a retry.
	env.gen.set(echoEligible(env.kb))
	sess, err := env.checkIns.Start(ctx, "child-1", types.CheckInTypeInitial, "")
	if err != nil {
		t.Fatalf("retry Start(initial): %v", err)
	}
	if _, err := env.checkIns.Submit(ctx, sess.ID); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
}

func TestIngestGeneticReportRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name   string
		report GeneticReport
		want   error
	}{
		{"no child", GeneticReport{GenotypeProfile: sampleReport("x").GenotypeProfile}, ErrValidation},
		{"no markers", GeneticReport{ChildID: "c"}, ErrInvalidGeneticData},
		{"bad birthday", GeneticReport{ChildID: "c", Birthday: "07/01/2025", GenotypeProfile: sampleReport("x").GenotypeProfile}, ErrInvalidGeneticData},
		{"future birthday", GeneticReport{ChildID: "c", Birthday: "2030-01-01", GenotypeProfile: sampleReport("x").GenotypeProfile}, ErrInvalidGeneticData},
		{"malformed marker", GeneticReport{ChildID: "c", GenotypeProfile: []GenotypeCall{{RSID: "rs1", Genotype: "ZZ"}}}, ErrInvalidGeneticData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.profiles.IngestGeneticReport(context.Background(), tc.report); !errors.Is(err, tc.want) {
				t.Fatalf("IngestGeneticReport: want=%v got=%v", tc.want, err)
			}
		})
	}
	if _, err := env.profiles.GetTraitSet(context.Background(), "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected report must not store a trait set: got=%v", err)
	}
}

func appendMedicalLog(t *testing.T, env *testEnv, childID string, date time.Time, traits ...string) *types.MedicalVisitLog {
	t.Helper()
	row, err := env.medical.Append(ctxDB(), &types.MedicalVisitLog{
		ChildID:          childID,
		SessionID:        uuid.New(),
		ConversationDate: date,
		ProblemDiscussed: "discussed " + date.Format("2006-01-02"),
		TraitsDiscussed:  traits,
		Disclaimer:       types.MedicalDisclaimer,
	})
	if err != nil {
		t.Fatalf("append medical log: %v", err)
	}
	return row
}

func TestMedicalLogReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.Now()
	old := appendMedicalLog(t, env, "child-1", now.AddDate(0, 0, -45), "Eczema Risk")
	recent := appendMedicalLog(t, env, "child-1", now.AddDate(0, 0, -2), "Eczema Risk", "UV Sensitivity")

	got, err := env.profiles.GetMedicalLog(ctx, "child-1", old.ID)
	if err != nil || got.ID != old.ID {
		t.Fatalf("GetMedicalLog: got=%v err=%v", got, err)
	}
	if _, err := env.profiles.GetMedicalLog(ctx, "child-2", old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMedicalLog(other child): want ErrNotFound got=%v", err)
	}
	byTrait, err := env.profiles.ListMedicalLogsByTrait(ctx, "child-1", "eczema risk", 30)
	if err != nil || len(byTrait) != 1 || byTrait[0].ID != recent.ID {
		t.Fatalf("ListMedicalLogsByTrait: got=%d err=%v", len(byTrait), err)
	}
	all, err := env.profiles.ListMedicalLogs(ctx, "child-1", 10)
	if err != nil || len(all) != 2 || all[0].ID != recent.ID {
		t.Fatalf("ListMedicalLogs: got=%d err=%v", len(all), err)
	}
}

func TestImmunityDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.seedChild(t, "child-1", 8, "Eczema Risk", "UV Sensitivity", "Language Development")
	now := env.clock.Now()
	appendMedicalLog(t, env, "child-1", now.AddDate(0, 0, -3), "UV Sensitivity")

	d, err := env.profiles.ImmunityDashboard(context.Background(), "child-1")
	if err != nil {
		t.Fatalf("ImmunityDashboard: %v", err)
	}
	if len(d.Traits) != 2 || d.Traits[0].TraitName != "Eczema Risk" || d.Traits[1].TraitName != "UV Sensitivity" {
		t.Fatalf("dashboard traits: got=%+v", d.Traits)
	}
	if len(d.Traits[0].Suggestions) == 0 || len(d.Traits[0].RecentLogs) != 0 {
		t.Fatalf("eczema card: got=%+v", d.Traits[0])
	}
	if len(d.Traits[1].RecentLogs) != 1 {
		t.Fatalf("uv card logs: want=1 got=%d", len(d.Traits[1].RecentLogs))
	}
	if _, err := env.profiles.ImmunityDashboard(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ImmunityDashboard(nobody): want ErrNotFound got=%v", err)
	}
}
