package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourorg/featuregen/internal/config"
	"github.com/yourorg/featuregen/internal/store"
	"github.com/yourorg/featuregen/pkg/types"
)

const remoteFeature = "```gherkin\nFeature: Widgets\nBackground:\n  * url 'http://x'\nScenario: list\n  Given path '/widgets'\n  When method GET\n  Then status 200\n  And match response == '#array'\n```"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.LLM.Remote.MaxRetries = 0
	cfg.Output.Dir = filepath.Join(t.TempDir(), "output")
	return cfg
}

func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "featuregen.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGenerateRemoteTier(t *testing.T) {
	var hit int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hit, 1)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		msgs := body["messages"].([]interface{})
		user := msgs[1].(map[string]interface{})["content"].(string)
		if !strings.Contains(user, "STRUCTURED REQUIREMENT ANALYSIS") {
			t.Errorf("user prompt should carry the enhanced requirement")
		}
		_ = json.NewEncoder(w).Encode(chatResponse(remoteFeature))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.LLM.Remote.APIKey = "sk-test"
	cfg.LLM.Remote.BaseURL = srv.URL
	st := testStore(t)
	c := NewController(cfg, Capabilities{Remote: RemoteActive, Local: LocalNotConfigured}, st, nil)
	c.Now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	res, err := c.Generate(context.Background(), Request{Requirement: widgetRequirement, Operation: "both"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Tier != types.TierRemote || res.TierLabel != "Remote Model API (Tier 1)" {
		t.Fatalf("unexpected tier %s / %s", res.Tier, res.TierLabel)
	}
	wantHeader := "# Generated using: Remote Model API (Tier 1)\n# Generation completed at: 2024-05-01 10:00:00\n\nFeature: Widgets"
	if !strings.HasPrefix(res.Output, wantHeader) {
		t.Fatalf("unexpected output:\n%s", res.Output)
	}
	if !res.Validation.IsValid {
		t.Fatalf("expected valid output: %v", res.Validation.Errors)
	}
	if res.Operation != types.OperationBoth {
		t.Fatalf("operation not normalised: %s", res.Operation)
	}

	rec, err := st.GetGeneration(res.ID)
	if err != nil {
		t.Fatalf("generation not persisted: %v", err)
	}
	if rec.Tier != types.TierRemote || rec.Output != res.Output {
		t.Fatalf("unexpected record %+v", rec)
	}
	report, err := os.ReadFile(filepath.Join(cfg.Output.Dir, LatestReportName))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(report), res.ID) {
		t.Fatalf("report should reference the generation id")
	}
}

func TestGenerateFallsBackToLocal(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer remote.Close()
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completions" {
			t.Errorf("unexpected local path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]string{{"text": "Feature: local\nScenario: s\n  Given path '/a'\n  When method GET\n  Then status 200\n"}},
		})
	}))
	defer local.Close()

	cfg := testConfig(t)
	cfg.LLM.Remote.APIKey = "sk-test"
	cfg.LLM.Remote.BaseURL = remote.URL
	cfg.LLM.Local.BaseURL = local.URL
	cfg.LLM.Local.ContextSize = 100000
	c := NewController(cfg, Capabilities{Remote: RemoteActive, Local: LocalReady}, nil, nil)

	if got := c.Tiers(); len(got) != 3 || got[2] != types.TierDeterministic {
		t.Fatalf("unexpected tiers %v", got)
	}
	res, err := c.Generate(context.Background(), Request{Requirement: widgetRequirement, Operation: "POSITIVE"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Tier != types.TierLocal || res.TierLabel != "Local Model (Tier 2 - Remote Fallback)" {
		t.Fatalf("unexpected tier %s / %s", res.Tier, res.TierLabel)
	}
	if res.ID != "" {
		t.Fatalf("no id expected without a store")
	}
}

func TestGenerateLocalContextOverflowFallsThrough(t *testing.T) {
	var hit int32
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hit, 1)
	}))
	defer local.Close()

	cfg := testConfig(t)
	cfg.LLM.Local.BaseURL = local.URL
	cfg.LLM.Local.ContextSize = 512
	c := NewController(cfg, Capabilities{Remote: RemoteQuotaExceeded, Local: LocalReady}, nil, nil)

	res, err := c.Generate(context.Background(), Request{Requirement: widgetRequirement, Operation: "NEGATIVE"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if atomic.LoadInt32(&hit) != 0 {
		t.Fatalf("local server must not be called when the prompt overflows")
	}
	if res.Tier != types.TierDeterministic || res.TierLabel != "Deterministic Synthesis (Tier 3 - Full Fallback)" {
		t.Fatalf("unexpected tier %s / %s", res.Tier, res.TierLabel)
	}
	if !strings.Contains(res.Output, "# Remote API Status: quota_exceeded - Using local generation for reliability\n") {
		t.Fatalf("missing remote status line:\n%s", res.Output)
	}
	if !res.Validation.IsValid {
		t.Fatalf("synthesized output must validate: %v", res.Validation.Errors)
	}
}

func TestGenerateDeterministicOnly(t *testing.T) {
	cfg := testConfig(t)
	c := NewController(cfg, Capabilities{Remote: RemoteNotConfigured, Local: LocalNotConfigured}, nil, nil)
	res, err := c.Generate(context.Background(), Request{Requirement: "Users must be able to list widgets", Operation: "BOTH"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.TierLabel != "Deterministic Synthesis (Tier 3)" {
		t.Fatalf("unexpected label %s", res.TierLabel)
	}
	if strings.Contains(res.Output, "Remote API Status") {
		t.Fatalf("no status line expected when remote is not configured")
	}
}

func TestGeneratePreconditions(t *testing.T) {
	cfg := testConfig(t)
	c := NewController(cfg, Capabilities{Remote: RemoteNotConfigured, Local: LocalNotConfigured}, nil, nil)

	if _, err := c.Generate(context.Background(), Request{Requirement: "   ", Operation: "BOTH"}); !errors.Is(err, ErrNoRequirement) {
		t.Fatalf("expected ErrNoRequirement, got %v", err)
	}
	if _, err := c.Generate(context.Background(), Request{Requirement: "x", Operation: "SOMETIMES"}); !errors.Is(err, types.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}

	loading := NewController(cfg, Capabilities{Remote: RemoteNotConfigured, Local: LocalLoading}, nil, nil)
	if _, err := loading.Generate(context.Background(), Request{Requirement: "", Operation: "BOTH"}); !errors.Is(err, ErrNoRequirement) {
		t.Fatalf("empty requirement is checked first, got %v", err)
	}
	if _, err := loading.Generate(context.Background(), Request{Requirement: "x", Operation: "BOTH"}); !errors.Is(err, ErrModelLoading) {
		t.Fatalf("expected ErrModelLoading, got %v", err)
	}
}
