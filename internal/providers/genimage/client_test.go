package genimage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
)

func testClient(url string) *Client {
	return NewClient(Options{BaseURL: url, APIKey: "sk-test", Logger: zerolog.Nop()})
}

func sampleRequest() Request {
	return Request{
		Prompt: "studio shot",
		Image:  InlineImage{Data: []byte("jpeg bytes"), MIME: "image/jpeg", FileName: "shoe.jpg"},
		Metadata: Metadata{
			SourceImageID: "src-1",
			CategoryIDs:   []string{"cat-1"},
			SKU:           "SKU-9",
		},
	}
}

func TestGenerateSuccess(t *testing.T) {
	imageBytes := []byte("generated webp")
	var captured wireRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/product-image" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		remaining := 7
		_ = json.NewEncoder(w).Encode(map[string]any{
			"imageBase64":      base64.StdEncoding.EncodeToString(imageBytes),
			"mimeType":         "image/webp",
			"model":            "gecko-v2",
			"remainingCredits": remaining,
		})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(result.Data) != string(imageBytes) {
		t.Fatalf("data = %q", result.Data)
	}
	if result.MIME != "image/webp" {
		t.Fatalf("mime = %s", result.MIME)
	}
	if result.Model != "gecko-v2" {
		t.Fatalf("model = %s", result.Model)
	}
	if result.RemainingCredits == nil || *result.RemainingCredits != 7 {
		t.Fatalf("remaining = %v", result.RemainingCredits)
	}

	if captured.Prompt != "studio shot" {
		t.Errorf("prompt = %q", captured.Prompt)
	}
	if captured.Image.Base64 != base64.StdEncoding.EncodeToString([]byte("jpeg bytes")) {
		t.Errorf("image payload not base64 of source bytes")
	}
	if captured.Image.MimeType != "image/jpeg" || captured.Image.FileName != "shoe.jpg" {
		t.Errorf("image meta = %+v", captured.Image)
	}
	if captured.Metadata.SourceImageID != "src-1" || captured.Metadata.ProductSKU != "SKU-9" {
		t.Errorf("metadata = %+v", captured.Metadata)
	}
}

func TestGenerateSnakeCaseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"image_base64":      base64.StdEncoding.EncodeToString([]byte("png")),
			"mime_type":         "image/png",
			"remaining_credits": 3,
		})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.MIME != "image/png" {
		t.Fatalf("mime = %s", result.MIME)
	}
	if result.RemainingCredits == nil || *result.RemainingCredits != 3 {
		t.Fatalf("remaining = %v", result.RemainingCredits)
	}
}

func TestGeneratePartsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"parts": []map[string]string{
				{"mime_type": "text/plain"},
				{"image_base64": base64.StdEncoding.EncodeToString([]byte("img")), "mime_type": "image/gif"},
			},
		})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(result.Data) != "img" || result.MIME != "image/gif" {
		t.Fatalf("result = %q %s", result.Data, result.MIME)
	}
}

func TestGenerateURLResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"image_url": "https://cdn.example/img.webp"})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.SourceURL != "https://cdn.example/img.webp" {
		t.Fatalf("source url = %s", result.SourceURL)
	}
	if len(result.Data) != 0 {
		t.Fatalf("unexpected inline data: %q", result.Data)
	}
}

func TestGenerateQuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if !errors.Is(err, domain.ErrRemoteRejected) {
		t.Fatalf("err = %v, want ErrRemoteRejected", err)
	}
	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("err %T is not a RejectionError", err)
	}
	if rejection.Code != http.StatusPaymentRequired {
		t.Fatalf("code = %d", rejection.Code)
	}
	// The remote's own message surfaces verbatim.
	if rejection.Message != "quota exceeded" {
		t.Fatalf("message = %q, want %q", rejection.Message, "quota exceeded")
	}
	if err.Error() != "quota exceeded" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestGenerateNoImageInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"model": "gecko-v2"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if !errors.Is(err, domain.ErrInvalidRemoteResponse) {
		t.Fatalf("err = %v, want ErrInvalidRemoteResponse", err)
	}
}

func TestGenerateMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), sampleRequest())
	if !errors.Is(err, domain.ErrInvalidRemoteResponse) {
		t.Fatalf("err = %v, want ErrInvalidRemoteResponse", err)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://localhost:0", Logger: zerolog.Nop()})
	if _, err := client.Generate(context.Background(), sampleRequest()); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestGenerateRequiresImageData(t *testing.T) {
	req := sampleRequest()
	req.Image.Data = nil
	if _, err := testClient("http://localhost:0").Generate(context.Background(), req); !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("err = %v, want ErrRemoteRequest", err)
	}
}

func TestExtractErrorMessagePriority(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"error string", `{"error":"quota exceeded","message":"ignored"}`, "quota exceeded"},
		{"error object", `{"error":{"message":"bad prompt"}}`, "bad prompt"},
		{"message field", `{"message":"try again later"}`, "try again later"},
		{"errors list", `{"errors":["first failure","second"]}`, "first failure"},
		{"errors object list", `{"errors":[{"message":"nested"}]}`, "nested"},
		{"unparseable", `<html></html>`, "HTTP 500"},
		{"empty object", `{}`, "HTTP 500"},
	}
	for _, tc := range cases {
		if got := extractErrorMessage([]byte(tc.body), 500); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
