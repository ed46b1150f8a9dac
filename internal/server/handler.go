package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crimson-sun/quip/internal/engine"
	"github.com/crimson-sun/quip/internal/engine/labels"
	"github.com/crimson-sun/quip/internal/metrics"
	"github.com/crimson-sun/quip/internal/model"
	"github.com/crimson-sun/quip/internal/store"
	"github.com/crimson-sun/quip/internal/table"
)

// previewRows caps the rows echoed back by the CSV upload endpoint.
const previewRows = 20

// Predictor is the prediction surface the handlers need.
type Predictor interface {
	Ready() bool
	Predict(text string) (model.Label, error)
	PredictBatch(texts []string) ([]model.Label, error)
	PredictTable(t *table.Table, column string) (*table.Table, error)
}

// Handler serves the prediction API.
type Handler struct {
	predictor Predictor
	store     store.Store
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// NewHandler creates a handler. store may be nil, which disables CSV
// downloads.
func NewHandler(p Predictor, s store.Store, logger *zap.Logger, opts Options) *Handler {
	return &Handler{predictor: p, store: s, logger: logger, opts: opts.withDefaults(), now: time.Now}
}

// PredictRequest is the body of POST /v1/predict.
type PredictRequest struct {
	Text *string `json:"text" binding:"required"`
}

// BatchRequest is the body of POST /v1/predict/batch. Elements are decoded
// loosely so that null or non-string entries can be reported as malformed
// batch input instead of a decode error.
type BatchRequest struct {
	Texts []any `json:"texts" binding:"required"`
}

// Strings returns the texts, failing with model.ErrMalformedBatchInput on the
// first element that is not a JSON string.
func (r BatchRequest) Strings() ([]string, error) {
	out := make([]string, len(r.Texts))
	for i, v := range r.Texts {
		s, ok := v.(string)
		if !ok {
			if v == nil {
				return nil, fmt.Errorf("texts[%d] is missing: %w", i, model.ErrMalformedBatchInput)
			}
			return nil, fmt.Errorf("texts[%d] must be a string, got %T: %w", i, v, model.ErrMalformedBatchInput)
		}
		out[i] = s
	}
	return out, nil
}

// TableRequest is the body of POST /v1/predict/table. Cells may be any JSON
// value; only the text column must hold strings.
type TableRequest struct {
	Columns []string `json:"columns" binding:"required"`
	Rows    [][]any  `json:"rows"`
	Column  string   `json:"column"`
}

// PredictionOutput pairs a statement with its label.
type PredictionOutput = model.PredictionRecord

// BatchOutput is the data of a batch reply.
type BatchOutput struct {
	Predictions []PredictionOutput `json:"predictions"`
	Count       int                `json:"count"`
}

// CSVOutput is the data of a CSV upload reply.
type CSVOutput struct {
	Preview     *table.Table `json:"preview"`
	Rows        int          `json:"rows"`
	DownloadURL string       `json:"download_url,omitempty"`
	Filename    string       `json:"filename"`
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	components := map[string]string{"model": "ok"}
	status, code := "healthy", http.StatusOK
	if !h.predictor.Ready() {
		components["model"] = "not loaded"
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	if h.store != nil {
		components["store"] = h.store.Name()
	} else {
		components["store"] = "not configured"
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}

// Labels handles GET /v1/labels.
func (h *Handler) Labels(c *gin.Context) {
	respondSuccess(c, http.StatusOK, labels.All())
}

// Predict handles POST /v1/predict.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}

	start := time.Now()
	label, err := h.predictor.Predict(*req.Text)
	metrics.Observe(metrics.ModeSingle, []model.Label{label}, start, err)
	if err != nil {
		HandleError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, PredictionOutput{Text: *req.Text, Label: label})
}

// PredictBatch handles POST /v1/predict/batch.
func (h *Handler) PredictBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	if !h.checkRows(c, len(req.Texts)) {
		return
	}
	texts, err := req.Strings()
	if err != nil {
		metrics.Observe(metrics.ModeBatch, nil, time.Now(), err)
		HandleError(c, err)
		return
	}

	start := time.Now()
	out, err := h.predictor.PredictBatch(texts)
	metrics.Observe(metrics.ModeBatch, out, start, err)
	if err != nil {
		HandleError(c, err)
		return
	}

	preds := make([]PredictionOutput, len(out))
	for i, l := range out {
		preds[i] = PredictionOutput{Text: texts[i], Label: l}
	}
	respondSuccess(c, http.StatusOK, BatchOutput{Predictions: preds, Count: len(preds)})
}

// PredictTable handles POST /v1/predict/table.
func (h *Handler) PredictTable(c *gin.Context) {
	var req TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	in, err := table.New(req.Columns, req.Rows)
	if err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	if !h.checkRows(c, in.Len()) {
		return
	}

	out, err := h.predictTable(in, req.Column)
	if err != nil {
		HandleError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, out)
}

// PredictCSV handles POST /v1/predict/csv with a multipart "file" field and
// an optional "column" form value. The annotated CSV is kept in the store
// and linked from the reply.
func (h *Handler) PredictCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		HandleInvalidRequest(c, "multipart field \"file\" is required: "+err.Error())
		return
	}
	f, err := fh.Open()
	if err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	defer f.Close()

	in, err := table.ReadCSV(f)
	if err != nil {
		HandleInvalidRequest(c, err.Error())
		return
	}
	if !h.checkRows(c, in.Len()) {
		return
	}

	out, err := h.predictTable(in, c.PostForm("column"))
	if err != nil {
		HandleError(c, err)
		return
	}

	resp := CSVOutput{
		Preview:  head(out, previewRows),
		Rows:     out.Len(),
		Filename: DownloadFilename(h.now()),
	}
	if h.store != nil {
		id, err := h.saveCSV(c.Request.Context(), resp.Filename, out)
		if err != nil {
			HandleError(c, err)
			return
		}
		resp.DownloadURL = "/v1/downloads/" + id
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Download handles GET /v1/downloads/:id.
func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		HandleInvalidRequest(c, "invalid download id")
		return
	}
	if h.store == nil {
		HandleError(c, store.ErrNotFound)
		return
	}
	blob, err := h.store.Get(c.Request.Context(), downloadKey(id.String()))
	if err != nil {
		HandleError(c, err)
		return
	}
	name, data := decodeDownload(blob)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *Handler) predictTable(in *table.Table, column string) (*table.Table, error) {
	start := time.Now()
	out, err := h.predictor.PredictTable(in, column)
	var got []model.Label
	if err == nil {
		got = tableLabels(out)
	}
	metrics.Observe(metrics.ModeTable, got, start, err)
	return out, err
}

// saveCSV stores the filename on the first line, followed by the CSV.
func (h *Handler) saveCSV(ctx context.Context, filename string, t *table.Table) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(filename)
	buf.WriteByte('\n')
	if err := table.WriteCSV(&buf, t); err != nil {
		return "", err
	}
	id := uuid.New().String()
	if err := h.store.Put(ctx, downloadKey(id), buf.Bytes(), h.opts.DownloadTTL); err != nil {
		return "", err
	}
	h.logger.Debug("stored download", zap.String("id", id), zap.Int("bytes", buf.Len()))
	return id, nil
}

func (h *Handler) checkRows(c *gin.Context, n int) bool {
	if n > h.opts.MaxBatchRows {
		respondError(c, http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE",
			fmt.Sprintf("batch has %d rows, limit is %d", n, h.opts.MaxBatchRows))
		return false
	}
	return true
}

// DownloadFilename names the annotated CSV for the given day.
func DownloadFilename(day time.Time) string {
	return "sentiment_predictions_" + day.Format("2006-01-02") + ".csv"
}

func downloadKey(id string) string {
	return "download:" + id
}

func decodeDownload(blob []byte) (filename string, data []byte) {
	name, data, ok := bytes.Cut(blob, []byte{'\n'})
	if !ok {
		return DownloadFilename(time.Now()), blob
	}
	return string(name), data
}

func head(t *table.Table, n int) *table.Table {
	if t.Len() <= n {
		return t
	}
	return &table.Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

func tableLabels(t *table.Table) []model.Label {
	col := t.Index(engine.PredictionColumn)
	if col < 0 {
		return nil
	}
	out := make([]model.Label, 0, t.Len())
	for _, row := range t.Rows {
		if s, ok := row[col].(string); ok {
			out = append(out, model.Label(s))
		}
	}
	return out
}
