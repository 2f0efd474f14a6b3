package zenzai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"kanakanji/model"
)

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIScorer asks a Gemini model to pick the most natural candidate. With
// rich candidates enabled the model may also answer with its own text.
type GenAIScorer struct {
	models contentGenerator
	model  string
}

func NewGenAIScorer(ctx context.Context, apiKey, modelName string) (*GenAIScorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: no API key configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return &GenAIScorer{models: client.Models, model: modelName}, nil
}

func prompt(req Request) string {
	var sb strings.Builder
	if req.Version != V1 {
		fmt.Fprintf(&sb, "読み: %s\n", req.Reading)
	}
	sb.WriteString("候補:\n")
	for i, c := range req.Candidates {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Text)
	}
	sb.WriteString("最も自然な変換の番号だけを答えてください。")
	if req.RichCandidates {
		sb.WriteString("候補に適切なものがなければ変換結果をそのまま書いてください。")
	}
	return sb.String()
}

func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// applyReply moves the chosen candidate to the front. An unparseable reply
// leaves the order unchanged unless rich candidates are allowed.
func applyReply(reply string, cands []model.Candidate, rich bool) []model.Candidate {
	line, _, _ := strings.Cut(reply, "\n")
	line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "."))
	if line == "" || len(cands) == 0 {
		return cands
	}
	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 || n > len(cands) {
			return cands
		}
		out := make([]model.Candidate, 0, len(cands))
		out = append(out, cands[n-1])
		out = append(out, cands[:n-1]...)
		return append(out, cands[n:]...)
	}
	for i, c := range cands {
		if c.Text == line {
			return applyReply(strconv.Itoa(i+1), cands, rich)
		}
	}
	if !rich {
		return cands
	}
	fresh := model.Candidate{Text: line, Cost: cands[0].Cost, Source: model.SourceNeural}
	return append([]model.Candidate{fresh}, cands...)
}

func (s *GenAIScorer) Refine(ctx context.Context, req Request) (Response, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(prompt(req))},
	}}
	resp, err := s.models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: 64,
	})
	if err != nil {
		return Response{}, fmt.Errorf("genai %s: %w", s.model, err)
	}
	return Response{
		Candidates: applyReply(replyText(resp), req.Candidates, req.RichCandidates),
		CallsUsed:  1,
		Converged:  true,
	}, nil
}
