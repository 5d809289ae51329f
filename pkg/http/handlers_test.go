package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lingopulse-server/pkg/analysis"
	"lingopulse-server/pkg/importer"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *AnalysisHandler {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAnalysisHandler(logger, analysis.NewDefault(), importer.NewImporter(logger))
}

func analysisBody(views ...string) string {
	req := map[string]interface{}{
		"conversation": map[string]interface{}{
			"id": "conv-1",
			"turns": []map[string]string{
				{"speaker": "张三", "content": "这个项目的代码还要再改", "timestamp": "2024-01-01 12:00:00"},
				{"speaker": "李四", "content": "同意，我支持尽快重构", "timestamp": "2024-01-01 12:01:00"},
			},
		},
	}
	if len(views) > 0 {
		req["views"] = views
	}
	data, _ := json.Marshal(req)
	return string(data)
}

func TestHandleAnalysisAllViews(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(analysisBody()))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Well-formed requests should succeed")

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, 2, resp.Turns)
	require.NotNil(t, resp.Report)
	assert.NotNil(t, resp.Report.Topics, "All views should be computed by default")
	assert.NotNil(t, resp.Report.Sentiment)
	assert.NotNil(t, resp.Report.KeyPoints)
	assert.NotNil(t, resp.Report.Intents)
	assert.NotNil(t, resp.Report.Structure)
	assert.NotNil(t, resp.Report.Pulse)
}

func TestHandleAnalysisSelectedViews(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(analysisBody("sentiment", "topics")))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Report.Sentiment)
	assert.NotNil(t, resp.Report.Topics)
	assert.Nil(t, resp.Report.KeyPoints, "Unrequested views should be omitted")
	assert.Nil(t, resp.Report.Pulse)
}

func TestHandleAnalysisConfiguredDefaultViews(t *testing.T) {
	handler := newTestHandler()
	handler.SetDefaultViews([]string{"sentiment"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(analysisBody()))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Report.Sentiment)
	assert.Nil(t, resp.Report.Topics, "Configured default views replace the all-views fallback")
}

func TestHandleAnalysisUnknownView(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(analysisBody("sonogram")))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "Unknown views should be rejected before any view runs")
}

func TestHandleAnalysisMissingConversation(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(`{"views": ["topics"]}`))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalysisMalformedBody(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalysisMethodNotAllowed(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis", nil)
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestHandleAnalysisCustomOptions(t *testing.T) {
	handler := newTestHandler()

	body := `{
		"conversation": {"turns": [
			{"speaker": "a", "content": "糟糕 这个方案失败了"},
			{"speaker": "b", "content": "赞 我们再试一次"},
			{"speaker": "a", "content": "糟糕 还是不行"},
			{"speaker": "b", "content": "赞 换个思路"}
		]},
		"views": ["sentiment"],
		"options": {"max_turning_points": 1}
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleAnalysis(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report.Sentiment)
	assert.LessOrEqual(t, len(resp.Report.Sentiment.TurningPoints), 1, "Option caps should apply to the request")
}

func TestHandleImport(t *testing.T) {
	handler := newTestHandler()

	record := "2024-01-01 12:00:00 张三: 新版本发布了\n2024-01-01 12:01:00 李四: 太好了，我马上更新"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?format=txt&title=发布通知", strings.NewReader(record))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var conv struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Turns []struct {
			Speaker string `json:"speaker"`
		} `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "发布通知", conv.Title)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "张三", conv.Turns[0].Speaker)
}

func TestHandleImportAndAnalyze(t *testing.T) {
	handler := newTestHandler()

	record := "2024-01-01 12:00:00 张三: 这个项目进展很好\n2024-01-01 12:01:00 李四: 同意，继续保持"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?format=txt&analyze=true", strings.NewReader(record))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, 2, resp.Turns)
	require.NotNil(t, resp.Report)
	assert.NotNil(t, resp.Report.Sentiment, "analyze=true should return a full report")
}

func TestHandleImportEmptyRecord(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import?format=txt", strings.NewReader("---"))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
