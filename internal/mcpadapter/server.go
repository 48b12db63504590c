package mcpadapter

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/gitsensei/internal/agent"
)

type ServerConfig struct {
	Name         string
	Version      string
	Instructions string
}

// NewServer registers the search, ask and evaluate tools.
func NewServer(cfg ServerConfig, searcher Searcher, asker agent.Asker, evaluator Evaluator) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Search the FAQ database with hybrid lexical and semantic retrieval",
	}, NewSearchHandler(searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question with the search-augmented GitSensei agent. The interaction is logged for evaluation.",
	}, NewAskHandler(asker))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate",
		Description: "Judge an agent answer against the evaluation checklist",
	}, NewEvaluateHandler(evaluator, cfg.Instructions))

	return server
}
