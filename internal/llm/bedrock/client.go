package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"legal-backend/internal/llm"
	"legal-backend/internal/shared/telemetry"
)

const anthropicVersion = "bedrock-2023-05-31"

// API is the subset of the Bedrock runtime client used by Client.
type API interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client implements llm.Client on Amazon Bedrock using the Anthropic messages format.
type Client struct {
	api API
	cfg llm.Config
}

// New loads the default AWS config chain and builds a Client.
func New(ctx context.Context, region string, cfg llm.Config) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), cfg)
}

// NewWithAPI builds a Client on an existing runtime client.
func NewWithAPI(api API, cfg llm.Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Bedrock")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Client{api: api, cfg: cfg}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type response struct {
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

func (c *Client) Invoke(ctx context.Context, prompt string) (llm.Response, error) {
	body, err := json.Marshal(request{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.cfg.MaxTokens,
		Messages:         []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return llm.Response{}, err
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.cfg.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("bedrock invoke model=%s: %w", c.cfg.Model, err)
	}

	var parsed response
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("bedrock response parse: %w", err)
	}

	resp := llm.Response{Model: parsed.Model, StopReason: parsed.StopReason}
	if resp.Model == "" {
		resp.Model = c.cfg.Model
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			resp.Segments = append(resp.Segments, block.Text)
		}
	}
	if len(resp.Segments) == 0 {
		return llm.Response{}, fmt.Errorf("bedrock response empty content")
	}

	fields := map[string]any{
		"request_id":  telemetry.RequestIDFromContext(ctx),
		"provider":    "bedrock",
		"model":       resp.Model,
		"stop_reason": resp.StopReason,
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.InputTokens
		fields["completion_tokens"] = parsed.Usage.OutputTokens
	}
	telemetry.Info("llm.response", fields)
	return resp, nil
}

var _ llm.Client = (*Client)(nil)
