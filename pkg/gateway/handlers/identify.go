package handlers

import (
	"encoding/base64"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/core/types"
	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/metrics"
	"github.com/stampchat/stampchat/pkg/gateway/textproc"
)

const identifyPrompt = "You are a philatelic expert. Identify the postage stamp in this image. " +
	"State its name, country of issue, year of issue, denomination and color if you can determine them. " +
	"If the image does not show a postage stamp, say so plainly."

// maxImageBytes caps uploads; vision inputs above a few megabytes are
// rejected upstream anyway.
const maxImageBytes = 8 << 20

// IdentifyHandler serves POST /v1/stamps/identify: an image in, a prose
// identification plus a best-effort structured record out.
type IdentifyHandler struct {
	Config  config.Config
	Vision  core.VisionProvider
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type identifyResponse struct {
	Response    string             `json:"response"`
	Stamp       *types.StampRecord `json:"stamp,omitempty"`
	FoundStamps int                `json:"foundStamps"`
}

func (h IdentifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	dataURL, err := h.readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	text, err := h.Vision.LookupImage(r.Context(), identifyPrompt, dataURL)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.RecordVoiceRequest("identify", "error")
		}
		writeError(w, r, err)
		return
	}
	text = textproc.Clean(text)

	resp := identifyResponse{Response: text}
	if rec, ok := textproc.ExtractStamp(text); ok {
		resp.Stamp = &rec
		resp.FoundStamps = 1
	}
	if h.Metrics != nil {
		h.Metrics.RecordVoiceRequest("identify", "ok")
	}
	writeJSON(w, http.StatusOK, resp)
}

// readImage accepts either a multipart "image" part or a JSON body carrying
// base64 image data, and returns the image as a data URL.
func (h IdentifyHandler) readImage(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return "", core.NewValidationError("invalid multipart body")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return "", core.NewValidationErrorWithParam("image file is required", "image")
		}
		defer file.Close()
		return encodeImagePart(file, header)
	}

	var body struct {
		ImageBase64 string `json:"imageBase64"`
		MimeType    string `json:"mimeType"`
	}
	if err := decodeBody(w, r, maxImageBytes, &body); err != nil {
		return "", err
	}
	if strings.TrimSpace(body.ImageBase64) == "" {
		return "", core.NewValidationErrorWithParam("imageBase64 is required", "imageBase64")
	}
	// Accept a complete data URL as-is.
	if strings.HasPrefix(body.ImageBase64, "data:") {
		return body.ImageBase64, nil
	}
	if _, err := base64.StdEncoding.DecodeString(body.ImageBase64); err != nil {
		return "", core.NewValidationErrorWithParam("imageBase64 is not valid base64", "imageBase64")
	}
	mime := body.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + body.ImageBase64, nil
}

func encodeImagePart(file multipart.File, header *multipart.FileHeader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", core.NewValidationError("failed to read image upload")
	}
	if len(data) == 0 {
		return "", core.NewValidationErrorWithParam("image file is empty", "image")
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
