package store

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yourorg/featuregen/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "featuregen.db"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGenerationCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rec := &types.GenerationRecord{
		Operation:   "BOTH",
		Tier:        types.TierDeterministic,
		TierLabel:   "Deterministic Synthesis (Tier 3)",
		Requirement: "Users must be able to list widgets",
		Output:      "Feature: x",
		Valid:       false,
		Errors:      []string{"At least one scenario is required"},
	}
	if err := s.SaveGeneration(rec); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rec.ID, "gen_") || !strings.HasSuffix(rec.ID, "_001") {
		t.Fatalf("unexpected id %q", rec.ID)
	}

	second := &types.GenerationRecord{Operation: "POSITIVE", Tier: types.TierRemote, Output: "Feature: y", Valid: true}
	if err := s.SaveGeneration(second); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(second.ID, "_002") {
		t.Fatalf("expected sequential id, got %q", second.ID)
	}

	got, err := s.GetGeneration(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != types.TierDeterministic || got.Valid || len(got.Errors) != 1 {
		t.Fatalf("unexpected record %+v", got)
	}

	list, err := s.ListGenerations(10)
	if err != nil || len(list) != 2 {
		t.Fatalf("list mismatch: %d err=%v", len(list), err)
	}

	if err := s.DeleteGeneration(rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetGeneration(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteGeneration(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	rec := &types.RunRecord{
		ID:            "9f4c7a1e-run",
		Endpoint:      "https://api.example.com/v1/widgets",
		Method:        "GET",
		ExecutionType: types.ExecDefaultScenarios,
		Total:         2,
		Passed:        1,
		Failed:        1,
		SuccessRate:   "50.0%",
		Results: []types.ExecutionResult{
			{Scenario: "Valid Request Test", Status: types.StatusPassed, StatusCode: 200},
			{Scenario: "Error Handling Test", Status: types.StatusFailed, StatusCode: 500},
		},
	}
	if err := s.SaveRun(rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRun(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 2 || got.Results[1].StatusCode != 500 {
		t.Fatalf("results not restored: %+v", got.Results)
	}

	runs, err := s.ListRuns(0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs mismatch: %v", err)
	}
	if runs[0].Results != nil {
		t.Fatalf("list should omit results")
	}
	if _, err := s.GetRun("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentSaves(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SaveGeneration(&types.GenerationRecord{Operation: "BOTH", Tier: types.TierDeterministic, Output: "Feature: x"}); err != nil {
				t.Error(err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ListGenerations(5)
		}()
	}
	wg.Wait()

	list, err := s.ListGenerations(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 10 {
		t.Fatalf("expected 10 generations, got %d", len(list))
	}
	seen := map[string]bool{}
	for _, g := range list {
		if seen[g.ID] {
			t.Fatalf("duplicate id %s", g.ID)
		}
		seen[g.ID] = true
	}
}
