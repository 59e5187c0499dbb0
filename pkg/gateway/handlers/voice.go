package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/stampchat/stampchat/pkg/core"
	"github.com/stampchat/stampchat/pkg/gateway/config"
	"github.com/stampchat/stampchat/pkg/gateway/metrics"
)

// maxAudioBytes caps audio uploads for transcription.
const maxAudioBytes = 16 << 20

// TranscribeHandler serves POST /v1/voice/transcribe: multipart audio in,
// transcript text out.
type TranscribeHandler struct {
	Config      config.Config
	Transcriber core.Transcriber
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func (h TranscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeError(w, r, core.NewValidationError("invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, r, core.NewValidationErrorWithParam("audio file is required", "audio"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeError(w, r, core.NewValidationErrorWithParam("audio file is empty", "audio"))
		return
	}

	format := strings.TrimPrefix(path.Ext(header.Filename), ".")

	text, err := h.Transcriber.Transcribe(r.Context(), data, format)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.RecordVoiceRequest("stt", "error")
		}
		writeError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordVoiceRequest("stt", "ok")
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// SpeechHandler serves POST /v1/voice/speech: text in, audio bytes out.
type SpeechHandler struct {
	Config      config.Config
	Synthesizer core.Synthesizer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

func (h SpeechHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req struct {
		Text  string `json:"text"`
		Voice string `json:"voice,omitempty"`
	}
	if err := decodeBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, core.NewValidationErrorWithParam("text is required", "text"))
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = h.Config.VoiceName
	}

	audio, err := h.Synthesizer.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.RecordVoiceRequest("tts", "error")
		}
		writeError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordVoiceRequest("tts", "ok")
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
