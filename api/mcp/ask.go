package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	askToolName    = "ask"
	askDescription = "Answer a question using the ingested document corpus. Returns the answer and the source document and page of every passage used."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the documents"`
}

// AskSource is one cited passage.
type AskSource struct {
	Source string `json:"source"`
	Page   string `json:"page"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	Answer  string      `json:"answer"`
	Sources []AskSource `json:"sources"`
}

// handleAsk processes an ask request.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger
	logger.Debug("MCP ask request", "question", input.Question)

	ans, err := s.config.Answerer.Answer(ctx, input.Question)
	if err != nil {
		logger.Error("failed to answer question", "error", err)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to answer question: %v", err)},
			},
		}, AskOutput{}, nil
	}

	output := AskOutput{
		Answer:  ans.Text,
		Sources: make([]AskSource, len(ans.Sources)),
	}
	for i, src := range ans.Sources {
		output.Sources[i] = AskSource{Source: src.Source, Page: src.PageLabel()}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: formatAnswer(output)},
		},
	}, output, nil
}

func formatAnswer(out AskOutput) string {
	var b strings.Builder
	b.WriteString(out.Answer)
	if len(out.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, src := range out.Sources {
			fmt.Fprintf(&b, "\n- %s (page %s)", src.Source, src.Page)
		}
	}
	return b.String()
}
