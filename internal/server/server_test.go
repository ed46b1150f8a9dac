package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crimson-sun/quip/internal/engine"
	"github.com/crimson-sun/quip/internal/engine/testdata"
	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/store"
	"github.com/crimson-sun/quip/internal/table"
	"github.com/crimson-sun/quip/pkg/quip"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockPredictor is a mock implementation of Predictor.
type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Ready() bool {
	return m.Called().Bool(0)
}

func (m *MockPredictor) Predict(text string) (model.Label, error) {
	args := m.Called(text)
	return args.Get(0).(model.Label), args.Error(1)
}

func (m *MockPredictor) PredictBatch(texts []string) ([]model.Label, error) {
	args := m.Called(texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Label), args.Error(1)
}

func (m *MockPredictor) PredictTable(t *table.Table, column string) (*table.Table, error) {
	args := m.Called(t, column)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*table.Table), args.Error(1)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
	Meta    *MetaInfo       `json:"meta"`
}

func newFixtureServer(t *testing.T, opts Options) (*Server, *store.MemoryStore) {
	t.Helper()
	q, err := quip.New(quip.WithArtifactPaths(testdata.VectorizerPath(), testdata.ClassifierPath()))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return New(q, s, zap.NewNop(), opts), s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func uploadCSV(t *testing.T, h http.Handler, csv, column string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "tweets.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	if column != "" {
		require.NoError(t, mw.WriteField("column", column))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/predict/csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestHealth(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, _ := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.Contains(t, w.Body.String(), `"memory"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthNotReady(t *testing.T) {
	p := new(MockPredictor)
	p.On("Ready").Return(false)
	srv := New(p, nil, zap.NewNop(), Options{})

	w, _ := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not loaded")
}

func TestLabels(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, env := doJSON(t, srv.Handler(), http.MethodGet, "/v1/labels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var got []struct {
		Index int    `json:"index"`
		Label string `json:"label"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 4)
	assert.Equal(t, "Figurative", got[0].Label)
	assert.Equal(t, 3, got[3].Index)
}

func TestPredict(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict", map[string]string{"text": "wow, just wow"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	var got model.PredictionRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, model.PredictionRecord{Text: "wow, just wow", Label: model.Sarcasm}, got)
}

func TestPredictEmptyTextIsValid(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict", `{"text": ""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Regular")
}

func TestPredictInvalidBody(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	for _, body := range []string{`{}`, `not json`, `{"text": 3}`} {
		w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
	}
}

func TestPredictBatch(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	texts := []string{"wow, just wow", "it is sunny", "I just love Mondays"}
	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/batch", map[string]any{"texts": texts})
	require.Equal(t, http.StatusOK, w.Code)

	var got BatchOutput
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, []PredictionOutput{
		{Text: "wow, just wow", Label: model.Sarcasm},
		{Text: "it is sunny", Label: model.Regular},
		{Text: "I just love Mondays", Label: model.Irony},
	}, got.Predictions)
}

func TestPredictBatchEmpty(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/batch", `{"texts": []}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got BatchOutput
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Zero(t, got.Count)
	assert.Empty(t, got.Predictions)
}

func TestPredictBatchTooLarge(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{MaxBatchRows: 2})

	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/batch",
		map[string]any{"texts": []string{"a", "b", "c"}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "BATCH_TOO_LARGE", env.Error.Code)
}

func TestPredictTable(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	body := `{"columns": ["id", "text"], "rows": [[1, "wow, just wow"], [2, "it is sunny"]]}`
	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/table", body)
	require.Equal(t, http.StatusOK, w.Code)

	var got table.Table
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, []string{"id", "text", "predicted_sentiment"}, got.Columns)
	assert.Equal(t, []any{float64(1), "wow, just wow", "Sarcasm"}, got.Rows[0])
	assert.Equal(t, []any{float64(2), "it is sunny", "Regular"}, got.Rows[1])
}

func TestPredictTableMalformed(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	tests := map[string]string{
		"missing column": `{"columns": ["tweet"], "rows": [["wow"]]}`,
		"number cell":    `{"columns": ["text"], "rows": [["wow"], [42]]}`,
		"null cell":      `{"columns": ["text"], "rows": [[null]]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/table", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "MALFORMED_BATCH_INPUT", env.Error.Code)
			assert.Empty(t, env.Data)
		})
	}
}

func TestPredictTableRagged(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/table",
		`{"columns": ["id", "text"], "rows": [["1"]]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestPredictCSVAndDownload(t *testing.T) {
	srv, st := newFixtureServer(t, Options{})

	csv := "id,tweet\n1,\"wow, just wow\"\n2,I am literally dying\n"
	w, env := uploadCSV(t, srv.Handler(), csv, "tweet")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got CSVOutput
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, []any{"1", "wow, just wow", "Sarcasm"}, got.Preview.Rows[0])
	assert.True(t, strings.HasPrefix(got.Filename, "sentiment_predictions_"))
	require.True(t, strings.HasPrefix(got.DownloadURL, "/v1/downloads/"))
	assert.Equal(t, 1, st.Len())

	req := httptest.NewRequest(http.MethodGet, got.DownloadURL, nil)
	dw := httptest.NewRecorder()
	srv.Handler().ServeHTTP(dw, req)

	require.Equal(t, http.StatusOK, dw.Code)
	assert.Equal(t, "text/csv; charset=utf-8", dw.Header().Get("Content-Type"))
	assert.Contains(t, dw.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t,
		"id,tweet,predicted_sentiment\n1,\"wow, just wow\",Sarcasm\n2,I am literally dying,Figurative\n",
		dw.Body.String())
}

func TestPredictCSVPreviewCapped(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	var b strings.Builder
	b.WriteString("text\n")
	for i := 0; i < previewRows+5; i++ {
		fmt.Fprintf(&b, "row %d is sunny\n", i)
	}
	w, env := uploadCSV(t, srv.Handler(), b.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got CSVOutput
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, previewRows+5, got.Rows)
	assert.Len(t, got.Preview.Rows, previewRows)
}

func TestPredictCSVMissingColumn(t *testing.T) {
	srv, st := newFixtureServer(t, Options{})

	w, env := uploadCSV(t, srv.Handler(), "tweet\nwow\n", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_BATCH_INPUT", env.Error.Code)
	assert.Contains(t, env.Error.Message, `"text" column`)
	assert.Zero(t, st.Len())
}

func TestPredictCSVNoFile(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/predict/csv", strings.NewReader(""))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadErrors(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	w, env := doJSON(t, srv.Handler(), http.MethodGet, "/v1/downloads/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	w, env = doJSON(t, srv.Handler(), http.MethodGet, "/v1/downloads/6f1c3a52-2b8e-4a3c-9d7e-0f5b2c1e8a90", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestPredictorErrorsMapped(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not ready", engine.ErrNotReady, http.StatusServiceUnavailable, "NOT_READY"},
		{"dimension", &engine.StageError{Stage: engine.StageClassify, Err: model.ErrDimensionMismatch},
			http.StatusInternalServerError, "MODEL_MISMATCH"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPredictor)
			p.On("Predict", "wow").Return(model.Label(""), tt.err)
			srv := New(p, nil, zap.NewNop(), Options{})

			w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict", `{"text": "wow"}`)
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.False(t, env.Success)
			p.AssertExpectations(t)
		})
	}
}

func TestCSVWithoutStoreHasNoLink(t *testing.T) {
	p := new(MockPredictor)
	out, err := table.New([]string{"text", "predicted_sentiment"}, [][]any{{"wow", "Sarcasm"}})
	require.NoError(t, err)
	p.On("PredictTable", mock.Anything, "").Return(out, nil)
	srv := New(p, nil, zap.NewNop(), Options{})

	w, env := uploadCSV(t, srv.Handler(), "text\nwow\n", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got CSVOutput
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Empty(t, got.DownloadURL)
}

func TestMetricsMountedWithoutMetricsAddr(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})
	w, _ := doJSON(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	split, _ := newFixtureServer(t, Options{MetricsAddr: ":0"})
	w, _ = doJSON(t, split.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{Addr: "127.0.0.1:0", MetricsAddr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := newFixtureServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/labels", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "req-123", env.Meta.RequestID)
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(zap.NewNop()))
	router.GET("/panic", func(c *gin.Context) { panic("test panic") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestCORS(t *testing.T) {
	preflight := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/v1/predict", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	t.Run("disabled by default", func(t *testing.T) {
		srv, _ := newFixtureServer(t, Options{})
		w := preflight(srv.Handler())
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin", func(t *testing.T) {
		srv, _ := newFixtureServer(t, Options{CORSOrigins: []string{"https://app.example"}})
		w := preflight(srv.Handler())
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		srv, _ := newFixtureServer(t, Options{CORSOrigins: []string{"*"}})
		w := preflight(srv.Handler())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestPredictBatchMalformedElement(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"null element", `{"texts": ["wow, just wow", null]}`, "texts[1] is missing"},
		{"number element", `{"texts": [42, "it is sunny"]}`, "texts[0] must be a string"},
		{"object element", `{"texts": ["ok", {"text": "nested"}]}`, "texts[1] must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPredictor)
			srv := New(p, nil, zap.NewNop(), Options{})

			w, env := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predict/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, "MALFORMED_BATCH_INPUT", env.Error.Code)
			assert.Contains(t, env.Error.Message, tt.msg)
			p.AssertNotCalled(t, "PredictBatch", mock.Anything)
		})
	}
}

func TestBatchRequestStrings(t *testing.T) {
	got, err := BatchRequest{Texts: []any{"a", ""}}.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", ""}, got)

	_, err = BatchRequest{Texts: []any{"a", nil}}.Strings()
	assert.ErrorIs(t, err, engine.ErrMalformedBatchInput)

	_, err = BatchRequest{Texts: []any{true}}.Strings()
	assert.ErrorIs(t, err, engine.ErrMalformedBatchInput)
}

func TestPredictCSVUploadTooLarge(t *testing.T) {
	srv, st := newFixtureServer(t, Options{MaxUploadBytes: 256})

	csv := "text\n" + strings.Repeat("it is sunny again today\n", 100)
	w, env := uploadCSV(t, srv.Handler(), csv, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UPLOAD_TOO_LARGE", env.Error.Code)
	assert.Zero(t, st.Len())
}

func TestDownloadKeepsUploadFilename(t *testing.T) {
	q, err := quip.New(quip.WithArtifactPaths(testdata.VectorizerPath(), testdata.ClassifierPath()))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	h := NewHandler(q, st, zap.NewNop(), Options{})
	router := NewRouter(h, zap.NewNop())

	uploaded := time.Date(2024, 3, 9, 23, 59, 30, 0, time.UTC)
	h.now = func() time.Time { return uploaded }
	w, env := uploadCSV(t, router, "text\nit is sunny\n", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got CSVOutput
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "sentiment_predictions_2024-03-09.csv", got.Filename)

	h.now = func() time.Time { return uploaded.Add(time.Minute) }
	req := httptest.NewRequest(http.MethodGet, got.DownloadURL, nil)
	dw := httptest.NewRecorder()
	router.ServeHTTP(dw, req)

	require.Equal(t, http.StatusOK, dw.Code)
	assert.Equal(t, `attachment; filename="sentiment_predictions_2024-03-09.csv"`,
		dw.Header().Get("Content-Disposition"))
	assert.Equal(t, "text,predicted_sentiment\nit is sunny,Regular\n", dw.Body.String())
}
