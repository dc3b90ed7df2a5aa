package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"ecosort-gateway/classifier"
	"ecosort-gateway/middleware/auth"
	"ecosort-gateway/middleware/ratelimit"
	"ecosort-gateway/monitoring"
	"ecosort-gateway/pipeline"
)

const inputEchoLength = 100

type features struct {
	TextClassification  bool `json:"text_classification"`
	ImageClassification bool `json:"image_classification"`
	RateLimiting        bool `json:"rate_limiting"`
	APIAuthentication   bool `json:"api_authentication"`
}

type serviceInfo struct {
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Features    features  `json:"features"`
}

type textResponse struct {
	Label      classifier.Category `json:"label"`
	Confidence float64             `json:"confidence"`
	Tip        string              `json:"tip"`
	InputText  string              `json:"input_text"`
}

type imageInfo struct {
	Filename string `json:"filename"`
	Size     string `json:"size"`
	Format   string `json:"format"`
}

type imageResponse struct {
	Label      classifier.Category `json:"label"`
	Confidence float64             `json:"confidence"`
	Tip        string              `json:"tip"`
	ImageInfo  imageInfo           `json:"image_info"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := s.opts.Info
	writeSuccess(w, http.StatusOK, serviceInfo{
		Service:     ServiceName,
		Version:     ServiceVersion,
		Environment: info.Environment,
		Timestamp:   time.Now(),
		Status:      monitoring.StatusHealthy,
		Features: features{
			TextClassification:  true,
			ImageClassification: true,
			RateLimiting:        info.RateLimitEnabled,
			APIAuthentication:   info.APIKeyEnabled,
		},
	}, "")
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health == nil {
		writeSuccess(w, http.StatusOK, map[string]string{"overall_status": monitoring.StatusHealthy}, "")
		return
	}
	report := s.opts.Health.Check(r.Context())
	status := http.StatusOK
	if report.OverallStatus == monitoring.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeSuccess(w, status, report, "")
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"metrics": s.opts.Metrics.Snapshot(r.Context())}
	if s.opts.AdmissionReport != nil {
		report, err := s.opts.AdmissionReport(r.Context())
		if err != nil {
			s.log.Warn("admission stats unavailable", "error", err)
		} else {
			data["admission"] = report
		}
	}
	writeSuccess(w, http.StatusOK, data, "")
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.opts.Alerts == nil {
		writeError(w, http.StatusNotFound, "Alerts disabled", "")
		return
	}
	alerts := s.opts.Alerts.Check(s.opts.Metrics.Snapshot(r.Context()))
	if alerts == nil {
		alerts = []monitoring.Alert{}
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"alerts":  alerts,
		"history": s.opts.Alerts.History(),
	}, "")
}

func (s *Server) handleClassifyText(w http.ResponseWriter, r *http.Request) {
	req := s.newRequest(r, pipeline.ModalityText)
	req.Load = func(req *pipeline.Request) error {
		var body struct {
			Text *string `json:"text"`
		}
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextBody)).Decode(&body)
		if err != nil || body.Text == nil {
			// corpo inválido conta como "texto ausente"
			return nil
		}
		req.Text, req.HasPayload = *body.Text, true
		return nil
	}

	out, err := s.opts.Pipeline.Run(r.Context(), req)
	s.writeRateHeaders(w, req, out)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	res := out.Result
	s.log.Debug("text classified", "label", res.Category, "confidence", res.Confidence, "degraded", res.Degraded)
	writeSuccess(w, http.StatusOK, textResponse{
		Label:      res.Category,
		Confidence: res.Confidence,
		Tip:        classifier.DisposalTip(res.Category),
		InputText:  echo(out.Sanitized),
	}, "")
}

func (s *Server) handleClassifyImage(w http.ResponseWriter, r *http.Request) {
	req := s.newRequest(r, pipeline.ModalityImage)
	req.Load = func(req *pipeline.Request) error {
		return s.loadUpload(w, r, req)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	out, err := s.opts.Pipeline.Run(r.Context(), req)
	s.writeRateHeaders(w, req, out)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	res, img := out.Result, out.Image
	s.log.Info("image classified", "filename", req.Filename, "label", res.Category, "confidence", res.Confidence)
	writeSuccess(w, http.StatusOK, imageResponse{
		Label:      res.Category,
		Confidence: res.Confidence,
		Tip:        classifier.DisposalTip(res.Category),
		ImageInfo: imageInfo{
			Filename: secureFilename(req.Filename),
			Size:     fmt.Sprintf("%dx%d", img.Width, img.Height),
			Format:   img.Format,
		},
	}, "")
}

func (s *Server) newRequest(r *http.Request, m pipeline.Modality) *pipeline.Request {
	return &pipeline.Request{
		Modality:   m,
		Method:     r.Method,
		Endpoint:   r.URL.Path,
		ClientKey:  s.opts.KeyFunc(r),
		Credential: auth.Credential(r),
		Now:        time.Now(),
	}
}

// loadUpload lê o campo "image" (ou "file") do multipart. Partes sem nome de
// arquivo chegam como valor comum; tratamos como arquivo sem nome.
func (s *Server) loadUpload(w http.ResponseWriter, r *http.Request, req *pipeline.Request) error {
	limit := s.maxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &pipeline.RejectError{Kind: pipeline.ErrInvalidInput, Reason: "File too large", Cause: err}
		}
		// não é multipart ou está corrompido: nenhum arquivo enviado
		return nil
	}

	for _, field := range []string{"image", "file"} {
		file, header, err := r.FormFile(field)
		if err == nil {
			defer file.Close()
			return readUpload(req, file, header, limit)
		}
		if vals := r.MultipartForm.Value[field]; len(vals) > 0 {
			req.HasPayload = true
			req.File = []byte(vals[0])
			req.DeclaredSize = int64(len(vals[0]))
			return nil
		}
	}
	return nil
}

func readUpload(req *pipeline.Request, file multipart.File, header *multipart.FileHeader, limit int64) error {
	// lê no máximo limit+1: o validador decide se passou do teto
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	req.HasPayload = true
	req.File = data
	req.Filename = header.Filename
	req.DeclaredSize = header.Size
	return nil
}

func (s *Server) maxFileSize() int64 {
	if s.opts.Info.MaxFileSize > 0 {
		return s.opts.Info.MaxFileSize
	}
	return 16 << 20
}

func (s *Server) writeRateHeaders(w http.ResponseWriter, req *pipeline.Request, out *pipeline.Outcome) {
	if s.opts.Limiter == nil || out == nil {
		return
	}
	ratelimit.WriteHeaders(w, ratelimit.HeaderOptions{
		Limiter:             s.opts.Limiter,
		AddRateLimitHeaders: s.opts.AddRateLimitHeaders,
	}, req.ClientKey, req.Now, out.Decision)
}

func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	re, ok := pipeline.AsReject(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "Service unavailable", "")
			return
		}
		s.log.Error("classification failed", "endpoint", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	switch {
	case errors.Is(re, pipeline.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized", re.Reason)
	case errors.Is(re, pipeline.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded",
			fmt.Sprintf("Maximum %d requests per minute allowed", s.opts.Info.RateLimitPerMinute))
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(re, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, re.Reason, "")
	}
}

func echo(text string) string {
	if utf8.RuneCountInString(text) <= inputEchoLength {
		return text
	}
	return string([]rune(text)[:inputEchoLength]) + "..."
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// secureFilename reduz o nome ao componente final com caracteres seguros.
func secureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base("/" + name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}
