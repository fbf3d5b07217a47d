package generator

import (
	"context"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// --- Mocks ---

var _ ContentGenerator = (*gemini.Client)(nil)

type generateCall struct {
	model string
	parts []*genai.Part
	opts  gemini.GenerateOptions
}

type mockAIClient struct {
	calls []generateCall
	resp  *genai.GenerateContentResponse
	err   error
}

func (m *mockAIClient) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	m.calls = append(m.calls, generateCall{model: model, parts: parts, opts: opts})
	if m.err != nil {
		return nil, m.err
	}
	return &gemini.Response{RawResponse: m.resp}, nil
}

func imageResponse(mime string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{Text: "here you go"},
					{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
				},
			},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}
