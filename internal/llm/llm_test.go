package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestBuildPromptDeterministic(t *testing.T) {
	text := "This Agreement is made between Acme Corp and Beta LLC."
	first := BuildPrompt(text)
	second := BuildPrompt(text)
	if first != second {
		t.Fatalf("expected identical prompts")
	}
	if !strings.Contains(first, text) {
		t.Fatalf("expected document text embedded verbatim")
	}
	if strings.Contains(first, documentPlaceholder) {
		t.Fatalf("placeholder left in prompt")
	}
	for _, section := range []string{"keyTerms", "riskAssessment", "clauseAnalysis", "complianceCheck", "executiveSummary", "confidenceScore"} {
		if !strings.Contains(first, section) {
			t.Fatalf("prompt missing section %s", section)
		}
	}
}

func TestBuildPromptKeepsPlaceholderLikeText(t *testing.T) {
	text := "literal {{DOCUMENT_TEXT}} inside the contract"
	if !strings.Contains(BuildPrompt(text), text) {
		t.Fatalf("expected text to survive verbatim")
	}
	if BuildPrompt("") == "" {
		t.Fatalf("expected template even for empty text")
	}
}

func TestResponseText(t *testing.T) {
	r := Response{Segments: []string{"{\"a\":", "1}"}}
	if r.Text() != "{\"a\":1}" {
		t.Fatalf("unexpected text %q", r.Text())
	}
}

type flakyClient struct {
	errs  []error
	calls int
}

func (f *flakyClient) Invoke(ctx context.Context, prompt string) (Response, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return Response{}, f.errs[f.calls-1]
	}
	return Response{Segments: []string{"ok"}}, nil
}

func TestWithRetryRetriesTransient(t *testing.T) {
	base := &flakyClient{errs: []error{fmt.Errorf("openai http status 503")}}
	client := WithRetry(base, 2, time.Millisecond)

	resp, err := client.Invoke(context.Background(), "p")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if resp.Text() != "ok" || base.calls != 2 {
		t.Fatalf("unexpected result %q calls=%d", resp.Text(), base.calls)
	}
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	base := &flakyClient{errs: []error{fmt.Errorf("openai http status 401")}}
	client := WithRetry(base, 3, time.Millisecond)
	if _, err := client.Invoke(context.Background(), "p"); err == nil {
		t.Fatalf("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected one call, got %d", base.calls)
	}
}

func TestWithRetryZeroIsPassthrough(t *testing.T) {
	base := &flakyClient{}
	if got := WithRetry(base, 0, 0); got != Client(base) {
		t.Fatalf("expected base client unchanged")
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrNotConfigured, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{errors.New("openai http status 502"), true},
		{errors.New("bedrock invoke: ThrottlingException: rate exceeded"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("openai http status 400"), false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("ShouldRetry(%v)=%v want %v", tc.err, got, tc.want)
		}
	}
}

func TestUnconfigured(t *testing.T) {
	if _, err := (Unconfigured{}).Invoke(context.Background(), "p"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
