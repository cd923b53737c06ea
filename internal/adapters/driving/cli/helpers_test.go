package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

var testTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fakeIngestion struct {
	req domain.IngestRequest
	err error
}

func (f *fakeIngestion) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestResult{
		SourceID:      "src-1",
		Title:         req.Title,
		FragmentCount: 3,
		ContentSize:   len(req.Data),
		Status:        domain.SourceStatusCompleted,
	}, nil
}

type fakeQuery struct {
	req domain.QueryRequest
	err error
}

func (f *fakeQuery) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.QueryResponse{
		ResponseText:   "Rotate keys every 90 days.",
		ConversationID: "conv-1",
		Sources: []*domain.Citation{
			{FragmentID: "f-1", SourceID: "src-1", Content: "Keys are rotated\nevery 90 days.", Position: 2, Similarity: 0.91},
		},
		Timestamp: testTime,
	}, nil
}

type fakeSources struct {
	deleted      string
	reprocessed  string
	tagged       string
	tagMetadata  map[string]string
	listedSector string
	listedLimit  int
	err          error
}

func (f *fakeSources) Get(_ context.Context, id string) (*domain.Source, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Source{
		ID:        id,
		SectorID:  "sector-1",
		Title:     "Security Guide",
		Kind:      domain.SourceKindMarkdown,
		Content:   "Keys are rotated every 90 days.",
		Metadata:  map[string]string{"team": "platform", "author": "ops"},
		Status:    domain.SourceStatusCompleted,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}, nil
}

func (f *fakeSources) ListBySector(_ context.Context, sectorID string, limit, _ int) ([]*domain.Source, error) {
	f.listedSector, f.listedLimit = sectorID, limit
	if f.err != nil {
		return nil, f.err
	}
	if sectorID == "empty" {
		return nil, nil
	}
	return []*domain.Source{
		{ID: "src-1", SectorID: sectorID, Title: "Security Guide", Kind: domain.SourceKindMarkdown, Status: domain.SourceStatusCompleted},
		{ID: "src-2", SectorID: sectorID, Title: "Runbook", Kind: domain.SourceKindPDF, Status: domain.SourceStatusFailed},
	}, nil
}

func (f *fakeSources) Fragments(_ context.Context, sourceID string) ([]*domain.Fragment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.Fragment{
		{ID: "f-1", SourceID: sourceID, Content: "first fragment", Position: 0, TokenCount: 3},
		{ID: "f-2", SourceID: sourceID, Content: "second fragment", Position: 1, TokenCount: 3},
	}, nil
}

func (f *fakeSources) SoftDelete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeSources) Reprocess(_ context.Context, id string) (*domain.IngestResult, error) {
	f.reprocessed = id
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestResult{SourceID: id, FragmentCount: 5, Status: domain.SourceStatusCompleted}, nil
}

func (f *fakeSources) MergeFragmentMetadata(_ context.Context, fragmentID string, metadata map[string]string) error {
	f.tagged, f.tagMetadata = fragmentID, metadata
	return f.err
}

func (f *fakeSources) ReplaceFragmentEmbedding(context.Context, string, []float32) error {
	return f.err
}

type fakeConversations struct {
	historyLimit int
	err          error
}

func (f *fakeConversations) Get(_ context.Context, id string) (*domain.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Conversation{ID: id, UserID: "user-1", SectorID: "sector-1"}, nil
}

func (f *fakeConversations) ListByUser(_ context.Context, userID, sectorID string) ([]*domain.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.Conversation{
		{ID: "conv-2", UserID: userID, SectorID: sectorID, UpdatedAt: testTime, Messages: []*domain.Message{{Role: domain.RoleUser}}},
		{ID: "conv-1", UserID: userID, SectorID: sectorID, UpdatedAt: testTime},
	}, nil
}

func (f *fakeConversations) History(_ context.Context, _ string, limit int) ([]*domain.Message, error) {
	f.historyLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.Message{
		{Role: domain.RoleUser, Content: "How often are keys rotated?", CreatedAt: testTime},
		{Role: domain.RoleAssistant, Content: "Every 90 days.", CreatedAt: testTime},
	}, nil
}

type fakeHealth struct {
	results []runtime.CheckResult
}

func (f *fakeHealth) HealthCheck(context.Context) []runtime.CheckResult {
	return f.results
}

type fakeMigrator struct {
	calls int
	err   error
}

func (f *fakeMigrator) Migrate(context.Context) error {
	f.calls++
	return f.err
}

type testServices struct {
	ingestion     *fakeIngestion
	query         *fakeQuery
	sources       *fakeSources
	conversations *fakeConversations
	health        *fakeHealth
	migrator      *fakeMigrator
}

// setupTestServices injects fakes for every command and resets flag state
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	s := &testServices{
		ingestion:     &fakeIngestion{},
		query:         &fakeQuery{},
		sources:       &fakeSources{},
		conversations: &fakeConversations{},
		health:        &fakeHealth{},
		migrator:      &fakeMigrator{},
	}
	resetFlags(rootCmd)
	deps = &Dependencies{
		Ingestion:     s.ingestion,
		Query:         s.query,
		Sources:       s.sources,
		Conversations: s.conversations,
		Health:        s.health,
		Migrator:      s.migrator,
	}
	ownsDeps = false
	t.Cleanup(func() {
		deps, ownsDeps = nil, false
		rootCmd.SetIn(nil)
	})
	return s
}

// execute runs the root command with args, capturing all output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores defaults since cobra keeps flag values between runs
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() != "stringToString" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
	ingestMetadata = map[string]string{}
	tagMetadata = map[string]string{}
}
