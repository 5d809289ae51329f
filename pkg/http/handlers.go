package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"lingopulse-server/pkg/analysis"
	"lingopulse-server/pkg/conversation"
	"lingopulse-server/pkg/errors"
	"lingopulse-server/pkg/importer"
	"lingopulse-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// ResultPublisher is implemented by the AMQP client. Publishing is best
// effort: a failed publish is logged, never surfaced to the API caller.
type ResultPublisher interface {
	IsConnected() bool
	PublishAnalysis(conversationID, title string, report interface{}, metadata map[string]interface{}) error
}

// AnalysisHandler serves the analysis and import endpoints.
type AnalysisHandler struct {
	logger       *logrus.Logger
	analyzer     *analysis.Analyzer
	importer     *importer.Importer
	publisher    ResultPublisher
	wsHandler    *ReportWebSocketHandler
	defaultViews []analysis.View
}

// NewAnalysisHandler creates the API handler. Publisher and WebSocket
// handler are optional.
func NewAnalysisHandler(logger *logrus.Logger, analyzer *analysis.Analyzer, im *importer.Importer) *AnalysisHandler {
	return &AnalysisHandler{
		logger:   logger,
		analyzer: analyzer,
		importer: im,
	}
}

// SetDefaultViews overrides the view set used when a request names none.
func (h *AnalysisHandler) SetDefaultViews(views []string) {
	h.defaultViews = nil
	for _, v := range views {
		h.defaultViews = append(h.defaultViews, analysis.View(strings.TrimSpace(v)))
	}
}

// SetPublisher attaches the AMQP publisher for completed reports.
func (h *AnalysisHandler) SetPublisher(publisher ResultPublisher) {
	h.publisher = publisher
}

// SetWebSocketHandler attaches the report stream for completed reports.
func (h *AnalysisHandler) SetWebSocketHandler(ws *ReportWebSocketHandler) {
	h.wsHandler = ws
}

// Register registers the API endpoints on the server.
func (h *AnalysisHandler) Register(server *Server) {
	server.RegisterHandler("/api/v1/analysis", h.HandleAnalysis)
	server.RegisterHandler("/api/v1/import", h.HandleImport)
}

// AnalysisRequest is the POST /api/v1/analysis payload.
type AnalysisRequest struct {
	Conversation *conversation.Conversation `json:"conversation"`
	Views        []string                   `json:"views,omitempty"`
	Options      map[string]interface{}     `json:"options,omitempty"`
}

// AnalysisResponse wraps a computed report.
type AnalysisResponse struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	Title          string           `json:"title,omitempty"`
	Turns          int              `json:"turns"`
	DurationMS     int64            `json:"duration_ms"`
	Report         *analysis.Report `json:"report"`
}

// HandleAnalysis computes the requested views over the posted conversation.
// Views are independent reads over the same immutable input, so they are
// fanned out concurrently and merged.
func (h *AnalysisHandler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, errors.Wrap(errors.ErrInvalidConversation, "malformed analysis request"))
		return
	}
	if req.Conversation == nil {
		h.errorResponse(w, errors.Wrap(errors.ErrInvalidConversation, "missing conversation"))
		return
	}

	views := make([]analysis.View, 0, len(req.Views))
	for _, v := range req.Views {
		views = append(views, analysis.View(v))
	}
	if len(views) == 0 {
		views = h.defaultViews
	}
	if len(views) == 0 {
		views = analysis.AllViews
	}

	opts := analysis.ParseOptions(req.Options)
	analyzer := h.analyzer
	if req.Options != nil {
		analyzer = analysis.New(nil, opts)
	}

	start := time.Now()
	report, err := h.analyzeConcurrently(analyzer, req.Conversation, views)
	if err != nil {
		if metrics.AnalysisErrors != nil {
			metrics.AnalysisErrors.WithLabelValues("request").Inc()
		}
		h.errorResponse(w, err)
		return
	}
	metrics.ObserveConversation(req.Conversation.Len())

	h.logger.WithFields(logrus.Fields{
		"conversation_id": req.Conversation.ID,
		"turns":           req.Conversation.Len(),
		"views":           len(views),
		"duration":        time.Since(start),
	}).Info("Analysis request completed")

	h.distribute(req.Conversation, report)

	writeJSON(w, http.StatusOK, &AnalysisResponse{
		ConversationID: req.Conversation.ID,
		Title:          req.Conversation.Title,
		Turns:          req.Conversation.Len(),
		DurationMS:     time.Since(start).Milliseconds(),
		Report:         report,
	})
}

// analyzeConcurrently runs one view per goroutine and merges the partial
// reports. An unknown view fails the whole request before any view runs.
func (h *AnalysisHandler) analyzeConcurrently(analyzer *analysis.Analyzer, conv *conversation.Conversation, views []analysis.View) (*analysis.Report, error) {
	known := make(map[analysis.View]bool, len(analysis.AllViews))
	for _, v := range analysis.AllViews {
		known[v] = true
	}
	for _, v := range views {
		if !known[v] {
			return nil, errors.Wrap(errors.ErrUnknownView, "unsupported analysis view",
				map[string]interface{}{"view": string(v)})
		}
	}

	partials := make([]*analysis.Report, len(views))
	errs := make([]error, len(views))
	var wg sync.WaitGroup
	for i, view := range views {
		wg.Add(1)
		go func(i int, view analysis.View) {
			defer wg.Done()
			start := time.Now()
			partials[i], errs[i] = analyzer.Analyze(conv, view)
			metrics.ObserveAnalysis(string(view), start)
		}(i, view)
	}
	wg.Wait()

	merged := &analysis.Report{}
	for i, partial := range partials {
		if errs[i] != nil {
			return nil, errs[i]
		}
		mergeReport(merged, partial)
	}
	return merged, nil
}

func mergeReport(dst, src *analysis.Report) {
	if src == nil {
		return
	}
	if src.Topics != nil {
		dst.Topics = src.Topics
	}
	if src.Sentiment != nil {
		dst.Sentiment = src.Sentiment
	}
	if src.KeyPoints != nil {
		dst.KeyPoints = src.KeyPoints
	}
	if src.Intents != nil {
		dst.Intents = src.Intents
	}
	if src.Structure != nil {
		dst.Structure = src.Structure
	}
	if src.Pulse != nil {
		dst.Pulse = src.Pulse
	}
}

// distribute fans a completed report out to the AMQP queue and the
// WebSocket stream. Both paths are best effort.
func (h *AnalysisHandler) distribute(conv *conversation.Conversation, report *analysis.Report) {
	if h.wsHandler != nil {
		h.wsHandler.BroadcastReport(conv.ID, report)
	}
	if h.publisher != nil && h.publisher.IsConnected() {
		go func() {
			metadata := map[string]interface{}{"turns": conv.Len()}
			if err := h.publisher.PublishAnalysis(conv.ID, conv.Title, report, metadata); err != nil {
				h.logger.WithError(err).WithField("conversation_id", conv.ID).Warn("Failed to publish analysis result")
			}
		}()
	}
}

// HandleImport parses a chat record export posted as the request body. The
// format is taken from the "format" query parameter (default auto). With
// "analyze=true" the imported conversation is analyzed in the same request.
func (h *AnalysisHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := importer.Format(r.URL.Query().Get("format"))
	title := r.URL.Query().Get("title")

	conv, err := h.importer.Import(format, title, r.Body)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	if r.URL.Query().Get("analyze") != "true" {
		writeJSON(w, http.StatusOK, conv)
		return
	}

	start := time.Now()
	report, err := h.analyzeConcurrently(h.analyzer, conv, analysis.AllViews)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	metrics.ObserveConversation(conv.Len())
	h.distribute(conv, report)

	writeJSON(w, http.StatusOK, &AnalysisResponse{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Turns:          conv.Len(),
		DurationMS:     time.Since(start).Milliseconds(),
		Report:         report,
	})
}

func (h *AnalysisHandler) errorResponse(w http.ResponseWriter, err error) {
	errors.WriteError(w, err)
	h.logger.WithError(err).Warn("HTTP error response sent")
}
