package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeVision struct {
	text        string
	lastPrompt  string
	lastDataURL string
}

func (f *fakeVision) LookupImage(ctx context.Context, prompt, imageDataURL string) (string, error) {
	f.lastPrompt = prompt
	f.lastDataURL = imageDataURL
	return f.text, nil
}

func TestIdentify_MultipartUpload(t *testing.T) {
	vision := &fakeVision{text: `This is the "Penny Black", issued by the United Kingdom in 1840.`}
	h := IdentifyHandler{Vision: vision}

	imageData := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10} // jpeg magic
	body, contentType := multipartAudio(t, "image", "stamp.jpg", imageData)
	req := httptest.NewRequest(http.MethodPost, "/v1/stamps/identify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var resp identifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FoundStamps != 1 || resp.Stamp == nil {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.Stamp.Name != "Penny Black" {
		t.Fatalf("stamp=%+v", resp.Stamp)
	}

	if !strings.HasPrefix(vision.lastDataURL, "data:") {
		t.Fatalf("data url does not start with data:")
	}
	wantB64 := base64.StdEncoding.EncodeToString(imageData)
	if !strings.HasSuffix(vision.lastDataURL, wantB64) {
		t.Fatal("data url does not carry the upload")
	}
	if !strings.Contains(vision.lastPrompt, "postage stamp") {
		t.Fatalf("prompt=%q", vision.lastPrompt)
	}
}

func TestIdentify_Base64JSONBody(t *testing.T) {
	vision := &fakeVision{text: "This does not appear to be a postage stamp."}
	h := IdentifyHandler{Vision: vision}

	b64 := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	payload := `{"imageBase64":"` + b64 + `","mimeType":"image/png"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/stamps/identify", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if want := "data:image/png;base64," + b64; vision.lastDataURL != want {
		t.Fatalf("data url=%q, want %q", vision.lastDataURL, want)
	}

	var resp identifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FoundStamps != 0 || resp.Stamp != nil {
		t.Fatalf("resp=%+v, want no extracted stamp", resp)
	}
}

func TestIdentify_RejectsMissingImage(t *testing.T) {
	h := IdentifyHandler{Vision: &fakeVision{}}

	req := httptest.NewRequest(http.MethodPost, "/v1/stamps/identify", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestIdentify_RejectsInvalidBase64(t *testing.T) {
	h := IdentifyHandler{Vision: &fakeVision{}}

	req := httptest.NewRequest(http.MethodPost, "/v1/stamps/identify", strings.NewReader(`{"imageBase64":"!!not-base64!!"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}
