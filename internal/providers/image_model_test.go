package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"google.golang.org/genai"
)

func fakeGeminiStream(responses []*genai.GenerateContentResponse, produced *int) geminiStreamFunc {
	return func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			for _, r := range responses {
				*produced++
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: s}}},
	}}}
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{Data: data, MIMEType: "image/png"}}}},
	}}}
}

func TestGeminiModelStopsProducerOnBreak(t *testing.T) {
	produced := 0
	m := &geminiModel{model: "gemini-2.5-flash-image", stream: fakeGeminiStream([]*genai.GenerateContentResponse{
		textResponse("thinking about cubes"),
		imageResponse([]byte("first")),
		imageResponse([]byte("second")),
		textResponse("trailing"),
	}, &produced)}

	var got []byte
	for chunk, err := range m.GenerateStream(context.Background(), "a red cube") {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if chunk.HasImage() {
			got = chunk.Data
			break
		}
	}
	if string(got) != "first" {
		t.Fatalf("expected first image, got %q", got)
	}
	if produced != 2 {
		t.Errorf("producer kept going after break: produced %d responses", produced)
	}
	if m.Label() != "Gemini 2.5 Flash Image" {
		t.Errorf("label = %q", m.Label())
	}
}

func TestGeminiModelWrapsStreamError(t *testing.T) {
	m := &geminiModel{model: "x", stream: func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
		return func(yield func(*genai.GenerateContentResponse, error) bool) {
			yield(nil, errors.New("quota exceeded"))
		}
	}}
	for _, err := range m.GenerateStream(context.Background(), "p") {
		if !errors.Is(err, domain.ErrTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
		return
	}
	t.Fatal("expected an error element")
}

func TestNewGeminiModelRequiresKey(t *testing.T) {
	if _, err := NewGeminiModel(context.Background(), "", "m"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenAIModelDecodesImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["response_format"] != "b64_json" {
			t.Errorf("response_format = %v", body["response_format"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("img")), "revised_prompt": "a red cube, studio light"}},
		})
	}))
	defer srv.Close()

	m, err := NewOpenAIModel("sk-test", "dall-e-3", srv.URL+"/v1")
	if err != nil {
		t.Fatalf("NewOpenAIModel: %v", err)
	}
	var texts, images int
	for chunk, err := range m.GenerateStream(context.Background(), "a red cube") {
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		if chunk.HasImage() {
			images++
			if string(chunk.Data) != "img" {
				t.Errorf("data = %q", chunk.Data)
			}
		} else if chunk.Text != "" {
			texts++
		}
	}
	if texts != 1 || images != 1 {
		t.Errorf("texts=%d images=%d", texts, images)
	}
}

func TestOpenAIModelContentPolicyEndsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"rejected","type":"invalid_request_error","code":"content_policy_violation"}}`))
	}))
	defer srv.Close()

	m, _ := NewOpenAIModel("sk-test", "dall-e-3", srv.URL+"/v1")
	n := 0
	for _, err := range m.GenerateStream(context.Background(), "bad") {
		n++
		if err != nil {
			t.Fatalf("content policy must not surface as transport error: %v", err)
		}
	}
	if n != 0 {
		t.Errorf("expected empty stream, got %d elements", n)
	}
}

func TestOpenAIModelTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	m, _ := NewOpenAIModel("sk-test", "dall-e-3", srv.URL+"/v1")
	for _, err := range m.GenerateStream(context.Background(), "p") {
		if !errors.Is(err, domain.ErrTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
		return
	}
	t.Fatal("expected an error element")
}
