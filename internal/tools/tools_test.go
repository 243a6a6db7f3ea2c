package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/tool"
	"github.com/lorekeep/lorekeep/internal/web"
)

type fakeRetriever struct {
	got    string
	chunks []domain.RetrievedChunk
	err    error
}

func (f *fakeRetriever) Assemble(ctx context.Context, query string, sourceIDs []string) (*retrieval.GroundingContext, error) {
	f.got = query
	if f.err != nil {
		return nil, f.err
	}
	return &retrieval.GroundingContext{Chunks: f.chunks}, nil
}

type fakeChunkReader struct {
	chunks []domain.RetrievedChunk
}

func (f *fakeChunkReader) GetChunksByIDs(ctx context.Context, ids []string) ([]domain.RetrievedChunk, error) {
	return f.chunks, nil
}

type fakeSourceLister struct {
	sources []domain.Source
}

func (f *fakeSourceLister) ListSources(ctx context.Context, userID string) ([]domain.Source, error) {
	return f.sources, nil
}

type fakeWebSearcher struct {
	results []web.SearchResult
	err     error
}

func (f *fakeWebSearcher) Search(ctx context.Context, query string, maxResults int) ([]web.SearchResult, error) {
	return f.results, f.err
}

func TestSearchDocuments_ReturnsHits(t *testing.T) {
	r := &fakeRetriever{chunks: []domain.RetrievedChunk{
		{ID: "ch1", SourceName: "report", ChunkIndex: 2, Content: "quarterly revenue", Score: 0.9},
	}}
	st := NewSearchDocuments(r)

	out, err := st.Execute(context.Background(), tool.ExecutionContext{SourceIDs: []string{"s1"}}, `{"query":"revenue"}`)
	require.NoError(t, err)
	assert.Equal(t, "revenue", r.got)

	var payload struct {
		Results []struct {
			ChunkID string `json:"chunkId"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "ch1", payload.Results[0].ChunkID)
}

func TestSearchDocuments_EmptyClassifiesAsEmptyResult(t *testing.T) {
	st := NewSearchDocuments(&fakeRetriever{})
	_, err := st.Execute(context.Background(), tool.ExecutionContext{SourceIDs: []string{"s1"}}, `{"query":"nothing"}`)
	require.Error(t, err)

	se := tool.ClassifyErr(st.Name(), err)
	assert.Equal(t, tool.ErrEmptyResult, se.Type)
}

func TestSearchDocuments_BadArgsClassifyAsValidation(t *testing.T) {
	st := NewSearchDocuments(&fakeRetriever{})
	_, err := st.Execute(context.Background(), tool.ExecutionContext{}, `{not json`)
	require.Error(t, err)

	se := tool.ClassifyErr(st.Name(), err)
	assert.Equal(t, tool.ErrValidation, se.Type)
}

func TestReadChunks_RequiresIDs(t *testing.T) {
	rc := NewReadChunks(&fakeChunkReader{})
	_, err := rc.Execute(context.Background(), tool.ExecutionContext{}, `{"chunk_ids":[]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestReadChunks_ReturnsContent(t *testing.T) {
	rc := NewReadChunks(&fakeChunkReader{chunks: []domain.RetrievedChunk{
		{ID: "c1", SourceName: "notes", ChunkIndex: 0, Content: "alpha"},
	}})
	out, err := rc.Execute(context.Background(), tool.ExecutionContext{}, `{"chunk_ids":["c1"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
}

func TestListSources_FiltersToPermitted(t *testing.T) {
	ls := NewListSources(&fakeSourceLister{sources: []domain.Source{
		{ID: "a", Name: "allowed"},
		{ID: "b", Name: "hidden"},
	}})
	out, err := ls.Execute(context.Background(), tool.ExecutionContext{UserID: "u1", SourceIDs: []string{"a"}}, `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "allowed")
	assert.NotContains(t, out, "hidden")
}

func TestWebSearch_NoResultsIsError(t *testing.T) {
	ws := NewWebSearch(&fakeWebSearcher{})
	_, err := ws.Execute(context.Background(), tool.ExecutionContext{}, `{"query":"obscure"}`)
	require.Error(t, err)
	assert.Equal(t, tool.ErrEmptyResult, tool.ClassifyErr(ws.Name(), err).Type)
}

func TestWebSearch_PassesThroughProviderError(t *testing.T) {
	ws := NewWebSearch(&fakeWebSearcher{err: fmt.Errorf("429 too many requests")})
	_, err := ws.Execute(context.Background(), tool.ExecutionContext{}, `{"query":"x"}`)
	require.Error(t, err)
	assert.Equal(t, tool.ErrRateLimit, tool.ClassifyErr(ws.Name(), err).Type)
}

func TestFinalAnswer_AlwaysSucceeds(t *testing.T) {
	fa := NewFinalAnswer()
	out, err := fa.Execute(context.Background(), tool.ExecutionContext{}, `{}`)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, FinalAnswerName, fa.Name())
}
