package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burnex/internal/diag"
	"burnex/internal/selector"
	"burnex/pkg/contract"
)

// fakeExtractor: 按 ID 预排记录或错误。
type fakeExtractor struct {
	records map[contract.DocID]contract.BurnsRecord
	errs    map[contract.DocID]error
	calls   []contract.DocID
}

func (f *fakeExtractor) Extract(ctx context.Context, doc contract.Document, glossary string) (contract.BurnsRecord, error) {
	f.calls = append(f.calls, doc.ID)
	if err := f.errs[doc.ID]; err != nil {
		return contract.BurnsRecord{}, err
	}
	rec, ok := f.records[doc.ID]
	if !ok {
		rec = contract.BurnsRecord{AssociatedTrauma: []string{}, Burns: []contract.BurnInjury{}}
	}
	return rec, nil
}

// fakeEnricher: 名称→概念查表。
type fakeEnricher struct {
	concepts map[string]*contract.Concept
	calls    int
}

func (f *fakeEnricher) Lookup(ctx context.Context, name, ecl string) (*contract.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls++
	return f.concepts[name], nil
}

// memWriter: 内存落盘 + 预置“已处理”集合。
type memWriter struct {
	files map[contract.DocID][]byte
	pre   map[contract.DocID]bool
	fail  map[contract.DocID]bool
}

func newMemWriter() *memWriter {
	return &memWriter{files: map[contract.DocID][]byte{}, pre: map[contract.DocID]bool{}, fail: map[contract.DocID]bool{}}
}

func (w *memWriter) Exists(id contract.DocID) bool {
	if w.pre[id] {
		return true
	}
	_, ok := w.files[id]
	return ok
}

func (w *memWriter) Write(ctx context.Context, id contract.DocID, r io.Reader) error {
	if w.fail[id] {
		return &os.PathError{Op: "write", Path: string(id) + ".json", Err: os.ErrPermission}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.files[id] = b
	return nil
}

func mkInput(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".md"), []byte("texto de "+id), 0o644))
	}
	return dir
}

func recordWith(burns ...contract.BurnInjury) contract.BurnsRecord {
	return contract.BurnsRecord{AssociatedTrauma: []string{}, Burns: burns}
}

func TestRunHappyPath(t *testing.T) {
	agent := "boiling water"
	ext := &fakeExtractor{records: map[contract.DocID]contract.BurnsRecord{
		"2301": {
			Agent:            &agent,
			AssociatedTrauma: []string{},
			Burns: []contract.BurnInjury{
				{Location: contract.LocationHand, Laterality: contract.LateralityLeft, Depth: contract.DepthSecondPartial, Provenance: "mão esquerda"},
				{Location: contract.LocationHand, Laterality: contract.LateralityRight, Depth: contract.DepthThird, Provenance: "mão direita"},
			},
		},
		"2302": recordWith(),
	}}
	enr := &fakeEnricher{concepts: map[string]*contract.Concept{
		"hand":          {SCTID: "85562004", Term: "Hand structure"},
		"boiling water": {SCTID: "47448006", Term: "Hot water"},
	}}
	w := newMemWriter()

	sum, err := Run(context.Background(), Components{Extractor: ext, Enricher: enr, Writer: w},
		Settings{InputDir: mkInput(t, "2301", "2302"), SkipProcessed: true}, diag.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Found)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Zero(t, sum.Failed)
	assert.Zero(t, sum.Skipped)

	// 工件携带 ID、合并后的单条 hand 记录与术语编码。
	var art contract.Artifact
	require.NoError(t, json.Unmarshal(w.files["2301"], &art))
	assert.Equal(t, "2301", art.ID)
	require.Len(t, art.Burns, 1)
	assert.Equal(t, contract.LateralityBilateral, art.Burns[0].Laterality)
	assert.Equal(t, contract.DepthThird, art.Burns[0].Depth)
	require.NotNil(t, art.Burns[0].LocationCode)
	assert.Equal(t, "85562004", art.Burns[0].LocationCode.SCTID)
	require.NotNil(t, art.AgentCode)
	assert.Equal(t, "47448006", art.AgentCode.SCTID)

	// 落盘为带缩进的 JSON。
	assert.True(t, bytes.Contains(w.files["2301"], []byte("\n  ")))
}

// 断点续跑：产出已在的文档整体跳过，不触达抽取端，也不计入 processed。
func TestRunSkipsProcessed(t *testing.T) {
	ext := &fakeExtractor{}
	w := newMemWriter()
	w.pre["2301"] = true
	w.pre["2303"] = true
	w.pre["2305"] = true

	sum, err := Run(context.Background(), Components{Extractor: ext, Writer: w},
		Settings{InputDir: mkInput(t, "2301", "2302", "2303", "2304", "2305"), SkipProcessed: true}, diag.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Found)
	assert.Equal(t, 3, sum.Skipped)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Succeeded)
	assert.ElementsMatch(t, []contract.DocID{"2302", "2304"}, ext.calls)
}

func TestRunSkipDisabled(t *testing.T) {
	ext := &fakeExtractor{}
	w := newMemWriter()
	w.pre["2301"] = true

	sum, err := Run(context.Background(), Components{Extractor: ext, Writer: w},
		Settings{InputDir: mkInput(t, "2301", "2302"), SkipProcessed: false}, diag.NewNop())
	require.NoError(t, err)
	assert.Zero(t, sum.Skipped)
	assert.Equal(t, 2, sum.Processed)
}

// 单文档失败记账后继续；processed = succeeded + failed 恒成立。
func TestRunContinuesPastFailures(t *testing.T) {
	ext := &fakeExtractor{errs: map[contract.DocID]error{
		"2302": contract.ErrRateLimited,
		"2303": contract.ErrBlocked,
	}}
	w := newMemWriter()
	w.fail["2304"] = true

	sum, err := Run(context.Background(), Components{Extractor: ext, Writer: w},
		Settings{InputDir: mkInput(t, "2301", "2302", "2303", "2304", "2305"), SkipProcessed: true}, diag.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Processed)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, sum.Processed, sum.Succeeded+sum.Failed)

	byID := map[contract.DocID]Outcome{}
	for _, o := range sum.Outcomes {
		byID[o.ID] = o
	}
	assert.Equal(t, string(diag.CodeQuota), byID["2302"].Reason)
	assert.Equal(t, string(diag.CodeBlocked), byID["2303"].Reason)
	assert.Equal(t, string(diag.CodeIO), byID["2304"].Reason)
	assert.Equal(t, StatusSucceeded, byID["2305"].Status)
}

// 富集关停（Enricher=nil）不影响成功结局。
func TestRunWithoutEnricher(t *testing.T) {
	ext := &fakeExtractor{records: map[contract.DocID]contract.BurnsRecord{
		"2301": recordWith(contract.BurnInjury{Location: contract.LocationFace, Provenance: "face"}),
	}}
	w := newMemWriter()

	sum, err := Run(context.Background(), Components{Extractor: ext, Writer: w},
		Settings{InputDir: mkInput(t, "2301")}, diag.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded)

	var art contract.Artifact
	require.NoError(t, json.Unmarshal(w.files["2301"], &art))
	require.Len(t, art.Burns, 1)
	assert.Nil(t, art.Burns[0].LocationCode)
}

// 选择过滤透传：limit 截取。
func TestRunAppliesFilter(t *testing.T) {
	ext := &fakeExtractor{}
	w := newMemWriter()
	sum, err := Run(context.Background(), Components{Extractor: ext, Writer: w},
		Settings{InputDir: mkInput(t, "2301", "2302", "2303"), Filter: selector.Filter{Limit: 2}}, diag.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Found)
	assert.Equal(t, 2, sum.Processed)
}

func TestRunMissingInputDirIsFatal(t *testing.T) {
	_, err := Run(context.Background(), Components{Extractor: &fakeExtractor{}, Writer: newMemWriter()},
		Settings{InputDir: filepath.Join(t.TempDir(), "absent")}, diag.NewNop())
	assert.Error(t, err)
}

// ctx 取消在文档间生效，终止整轮并上抛。
func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Components{Extractor: &fakeExtractor{}, Writer: newMemWriter()},
		Settings{InputDir: mkInput(t, "2301")}, diag.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}
