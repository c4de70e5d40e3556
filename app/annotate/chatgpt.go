// Package annotate recognizes person names in article texts
// via an external NLP service.
package annotate

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"

	"github.com/alanindra/news-enricher/app/store"
	cache "github.com/go-pkgz/expirable-cache/v2"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slog"
)

//go:embed data/prompt.tmpl
var prompt string

var promptTmpl = template.Must(template.New("prompt").Parse(prompt))

//go:generate moq -out mock_openai_client.go . OpenAIClient
// OpenAIClient is interface for OpenAI client with the possibility to mock it
type OpenAIClient interface {
	CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatGPT is a client that runs entity recognition over the OpenAI
// chatgpt service.
type ChatGPT struct {
	log       *slog.Logger
	cl        OpenAIClient
	maxTokens int
	cache     cache.Cache[string, []string]
}

// NewChatGPT creates new ChatGPT client.
func NewChatGPT(lg *slog.Logger, cl *http.Client, token string, maxResponseTokens int) *ChatGPT {
	config := openai.DefaultConfig(token)
	config.HTTPClient = cl

	client := openai.NewClientWithConfig(config)

	return &ChatGPT{
		log:       lg,
		cl:        &loggingClient{log: lg, cl: client},
		maxTokens: maxResponseTokens,
		cache: cache.NewCache[string, []string]().
			WithLRU().
			WithMaxKeys(100),
	}
}

// maxRequestTokens is a maximum number of tokens that can be sent to OpenAI.
const maxRequestTokens = 4097

// categoryPerson is the entity category kept by People.
const categoryPerson = "PERSON"

type entity struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// People returns person names mentioned in the article content, in the
// order of first mention and without duplicates. Content that exceeds
// the request token budget is truncated, not rejected.
func (s *ChatGPT) People(ctx context.Context, article store.Article) ([]string, error) {
	if people, ok := s.cache.Get(article.URL); ok {
		return people, nil
	}

	text, err := s.renderPrompt(article)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:     openai.GPT3Dot5Turbo,
		MaxTokens: s.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	}

	resp, err := s.cl.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	entities, err := parseEntities(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	people := lo.Uniq(lo.FilterMap(entities, func(e entity, _ int) (string, bool) {
		name := strings.TrimSpace(e.Name)
		return name, name != "" && strings.EqualFold(e.Category, categoryPerson)
	}))

	s.cache.Set(article.URL, people, 0)
	return people, nil
}

func (s *ChatGPT) renderPrompt(article store.Article) (string, error) {
	buf := &strings.Builder{}
	if err := promptTmpl.Execute(buf, article); err != nil {
		return "", err
	}

	totalTokens := strings.Count(buf.String(), " ") + 1
	if totalTokens <= maxRequestTokens {
		return buf.String(), nil
	}

	words := strings.Fields(article.Content)
	overflow := totalTokens - maxRequestTokens
	if overflow >= len(words) {
		words = nil
	} else {
		words = words[:len(words)-overflow]
	}
	article.Content = strings.Join(words, " ")

	buf.Reset()
	if err := promptTmpl.Execute(buf, article); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// parseEntities pulls the JSON array out of the model response, which
// occasionally wraps it into prose or a code fence.
func parseEntities(s string) ([]entity, error) {
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in %q", s)
	}

	var entities []entity
	if err := json.Unmarshal([]byte(s[start:end+1]), &entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}

	return entities, nil
}

type loggingClient struct {
	log *slog.Logger
	cl  OpenAIClient
}

func (l *loggingClient) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	l.log.DebugCtx(ctx, "sending request to chatGPT")
	resp, err := l.cl.CreateChatCompletion(ctx, req)
	l.log.DebugCtx(ctx, "response received from chatGPT")
	return resp, err
}
