package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/knowsee/knowsee/internal/artifacts"
	"github.com/knowsee/knowsee/internal/convert"
	"github.com/knowsee/knowsee/internal/upload"
)

// UploadedFile reports one stored attachment.
type UploadedFile struct {
	Filename  string `json:"filename"`
	MIMEType  string `json:"mime_type"`
	SizeBytes int    `json:"size_bytes"`
	Version   int    `json:"version"`
	Converted bool   `json:"converted"`
}

func (h *Handler) handleUploadConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, upload.CurrentConfig())
}

// handleUpload accepts multipart attachments for a session. Office
// documents are converted to Markdown before storage so the model can
// read them.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.config.Artifacts == nil {
		h.jsonError(w, "uploads not configured", http.StatusServiceUnavailable)
		return
	}
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		h.countUpload("rejected")
		h.jsonError(w, "multipart form required", http.StatusBadRequest)
		return
	}

	var stored []UploadedFile
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.countUpload("failed")
			h.jsonError(w, "malformed multipart body", http.StatusBadRequest)
			return
		}
		if part.FileName() == "" {
			continue
		}

		if len(stored) >= upload.MaxFiles {
			h.countUpload("rejected")
			h.jsonError(w, fmt.Sprintf("too many files: at most %d per message", upload.MaxFiles),
				http.StatusBadRequest)
			return
		}

		filename := part.FileName()
		mimeType := part.Header.Get("Content-Type")
		if !upload.IsSupported(mimeType) {
			h.countUpload("rejected")
			h.jsonError(w, fmt.Sprintf("unsupported file type: %s", mimeType),
				http.StatusUnsupportedMediaType)
			return
		}

		data, err := io.ReadAll(io.LimitReader(part, upload.MaxFileSizeBytes+1))
		if err != nil {
			h.countUpload("failed")
			h.jsonError(w, "failed to read file", http.StatusBadRequest)
			return
		}
		if len(data) > upload.MaxFileSizeBytes {
			h.countUpload("rejected")
			h.jsonError(w, fmt.Sprintf("file too large: limit is %d bytes", upload.MaxFileSizeBytes),
				http.StatusRequestEntityTooLarge)
			return
		}

		converted := false
		if convert.NeedsConversion(mimeType) {
			result, err := convert.Convert(mimeType, data, filename)
			if err != nil {
				h.countUpload("rejected")
				if errors.Is(err, convert.ErrUnsupported) {
					h.jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
				} else {
					h.jsonError(w, fmt.Sprintf("conversion failed: %s", filename),
						http.StatusUnprocessableEntity)
				}
				return
			}
			data = result.Content
			mimeType = result.MIMEType
			filename = result.Filename
			converted = true
		}

		key := artifacts.Key{
			AppName:   h.config.AppName,
			UserID:    session.UserID,
			SessionID: session.ID,
			Filename:  filename,
		}
		version, err := h.config.Artifacts.Save(r.Context(), key, artifacts.Artifact{
			Data:     data,
			MIMEType: mimeType,
		})
		if err != nil {
			h.countUpload("failed")
			h.logger.Error("failed to store artifact", "filename", filename, "error", err)
			h.jsonError(w, "failed to store file", http.StatusInternalServerError)
			return
		}

		stored = append(stored, UploadedFile{
			Filename:  filename,
			MIMEType:  mimeType,
			SizeBytes: len(data),
			Version:   version,
			Converted: converted,
		})
		if converted {
			h.countUpload("converted")
		} else {
			h.countUpload("accepted")
		}
	}

	if len(stored) == 0 {
		h.countUpload("rejected")
		h.jsonError(w, "no files in request", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"files": stored})
}

func (h *Handler) countUpload(outcome string) {
	if h.config.Metrics != nil {
		h.config.Metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	}
}
