package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"betterats/internal/errors"
	"betterats/internal/observability"
	"betterats/internal/types"
	"betterats/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	processInputField = "process_input"
	filesField        = "files"

	// multipart parts beyond this stay on disk while parsing
	maxMultipartMemory = 8 << 20
)

// createProcessHandler serves POST /process: a multipart form carrying the
// job requirements as JSON plus the candidate's documents.
func (s *Server) createProcessHandler(om *observability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeErrorResponse(w, "Method not allowed", "use POST", http.StatusMethodNotAllowed)
			return
		}

		ctx, span := om.Tracer("betterats.api").Start(r.Context(), "api.process")
		defer span.End()

		requestID := uuid.NewString()
		logger := s.Logger.With("request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)

		input, files, err := parseProcessForm(r)
		defer func() {
			if r.MultipartForm == nil {
				return
			}
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logger.Warn("Failed to remove multipart temp files", "error", err)
			}
		}()
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			status := http.StatusBadRequest
			var maxBytesErr *http.MaxBytesError
			if stderrors.As(err, &maxBytesErr) {
				status = http.StatusRequestEntityTooLarge
			}
			s.writeErrorResponse(w, "Invalid request", err.Error(), status)
			return
		}

		paths, cleanup, err := s.saveUploads(files)
		defer cleanup()
		if err != nil {
			span.RecordError(err)
			logger.LogError(err, "Failed to store uploaded files")
			s.writeErrorResponse(w, "Failed to store uploaded files", err.Error(), http.StatusInternalServerError)
			return
		}

		span.SetAttributes(
			attribute.String("request.id", requestID),
			attribute.Int("request.files", len(paths)),
			attribute.Int("request.requirements", len(input.JobRequirements)),
		)

		result, err := s.Processor.Process(ctx, paths, input.JobRequirements)
		if err != nil {
			status := statusForError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "processing failed")
			span.SetAttributes(attribute.Int("http.status_code", status))
			logger.LogError(err, "Failed to process application", "status", status)
			s.writeAppErrorResponse(w, err, status)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.assessments", len(result.Assessments)),
		)
		s.writeJSON(w, http.StatusOK, result)
	}
}

// parseProcessForm reads the process_input field and the uploaded files.
func parseProcessForm(r *http.Request) (types.ProcessInput, []*multipart.FileHeader, error) {
	var input types.ProcessInput

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return input, nil, fmt.Errorf("request body too large (limit is %d bytes): %w", maxBytesErr.Limit, err)
		}
		return input, nil, fmt.Errorf("expected multipart/form-data: %w", err)
	}

	raw := r.FormValue(processInputField)
	if raw == "" {
		return input, nil, fmt.Errorf("%s field is required", processInputField)
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return input, nil, fmt.Errorf("%s is not valid JSON: %w", processInputField, err)
	}
	if len(input.JobRequirements) == 0 {
		return input, nil, fmt.Errorf("job_requirements must contain at least one entry")
	}

	files := r.MultipartForm.File[filesField]
	if len(files) == 0 {
		return input, nil, fmt.Errorf("at least one file is required in the %s field", filesField)
	}
	return input, files, nil
}

// saveUploads writes each upload to UploadDir as <uuid><ext>. The returned
// cleanup removes whatever was written and is safe to call on error.
func (s *Server) saveUploads(files []*multipart.FileHeader) ([]string, func(), error) {
	var paths []string
	cleanup := func() {
		for _, p := range paths {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				s.Logger.Warn("Failed to remove upload", "path", p, "error", err)
			}
		}
	}

	if err := os.MkdirAll(s.UploadDir, 0750); err != nil {
		return nil, cleanup, errors.NewIOError("DIRECTORY_CREATE_FAILED",
			fmt.Sprintf("Cannot create upload directory: %s", s.UploadDir), err)
	}

	for _, fh := range files {
		dst := filepath.Join(s.UploadDir, uuid.NewString()+utils.GetFileExtension(fh.Filename))
		if err := copyUpload(fh, dst); err != nil {
			return paths, cleanup, err
		}
		paths = append(paths, dst)
		s.Logger.Debug("Upload stored",
			"filename", fh.Filename,
			"path", dst,
			"size", utils.FormatFileSize(fh.Size))
	}
	return paths, cleanup, nil
}

func copyUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read upload: %s", fh.Filename), err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", dst), err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", dst), err)
	}
	return out.Close()
}

// statusForError maps the stage that originally failed to an HTTP status.
// Input problems are the client's fault; model problems are an upstream
// failure.
func statusForError(err error) int {
	typ, ok := errors.RootType(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch typ {
	case errors.ErrorTypeRequest, errors.ErrorTypeExtraction:
		return http.StatusBadRequest
	case errors.ErrorTypeGeneration, errors.ErrorTypeMalformedReply, errors.ErrorTypeValidation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
