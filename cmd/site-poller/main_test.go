package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"bloomwatch/internal/assessment"
	"bloomwatch/internal/scheduler"
	"bloomwatch/internal/types"
)

type fakeRunner struct {
	sites    []types.Site
	assessed []string
	fail     map[string]bool
}

func (f *fakeRunner) ActiveSites(_ context.Context) ([]types.Site, error) {
	return f.sites, nil
}

func (f *fakeRunner) AssessSite(_ context.Context, key string, _ bool) (*assessment.Result, error) {
	if f.fail[key] {
		return nil, fmt.Errorf("assessing %s: upstream down", key)
	}
	f.assessed = append(f.assessed, key)
	return &assessment.Result{Assessment: &types.Assessment{Score: 40, Level: types.LevelLow}}, nil
}

type fakeRetentionStore struct {
	purged int
}

func (f *fakeRetentionStore) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	f.purged++
	return 3, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestSweepHandler_ReportsOutcome(t *testing.T) {
	runner := &fakeRunner{
		sites: []types.Site{
			{Key: "lake-erie", Status: types.SiteStatusActive},
			{Key: "lake-vanern", Status: types.SiteStatusActive},
			{Key: "lake-taihu", Status: types.SiteStatusActive},
		},
		fail: map[string]bool{"lake-taihu": true},
	}
	poller, err := scheduler.NewSitePoller(scheduler.SitePollerConfig{
		Runner: runner,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSitePoller: %v", err)
	}

	store := &fakeRetentionStore{}
	maintenance := scheduler.NewMaintenance(store, 90, testLogger(), nil)

	handler := newSweepHandler(poller, maintenance, testLogger())

	report, err := handler(context.Background(), scheduler.SweepInput{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if report.Sites != 3 || report.Assessed != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 3 sites, 2 assessed, 1 failed", report)
	}
	if _, ok := report.Errors["lake-taihu"]; !ok {
		t.Errorf("Errors = %v, want lake-taihu entry", report.Errors)
	}
	if store.purged != 1 {
		t.Errorf("retention purges = %d, want 1", store.purged)
	}
}

func TestSweepHandler_TargetedInvocation(t *testing.T) {
	runner := &fakeRunner{
		sites: []types.Site{
			{Key: "lake-erie", Status: types.SiteStatusActive},
			{Key: "lake-vanern", Status: types.SiteStatusActive},
		},
	}
	poller, err := scheduler.NewSitePoller(scheduler.SitePollerConfig{
		Runner: runner,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewSitePoller: %v", err)
	}
	maintenance := scheduler.NewMaintenance(nil, 0, testLogger(), nil)

	handler := newSweepHandler(poller, maintenance, testLogger())

	report, err := handler(context.Background(), scheduler.SweepInput{SiteKeys: []string{"lake-vanern"}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if report.Assessed != 1 {
		t.Errorf("assessed %d sites, want 1", report.Assessed)
	}
	if len(runner.assessed) != 1 || runner.assessed[0] != "lake-vanern" {
		t.Errorf("assessed = %v, want [lake-vanern]", runner.assessed)
	}
}

func TestIsLambdaEnvironment(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	os.Unsetenv("AWS_LAMBDA_RUNTIME_API")
	if isLambdaEnvironment() {
		t.Error("expected false outside the Lambda runtime")
	}

	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	if !isLambdaEnvironment() {
		t.Error("expected true with AWS_LAMBDA_RUNTIME_API set")
	}
}
