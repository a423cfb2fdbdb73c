// Command yagokoro wires the library packages together for smoke-level
// exercising (SPEC_FULL.md §6: "CLI and server surfaces are specified at
// the interface/contract level only"). Grounded on the teacher's own
// plain-main-function style across examples/*/main.go (llm, err :=
// openai.New() followed by embeddings.NewEmbedder(llm)); no CLI framework
// appears in any example's go.mod, so flags are stdlib `flag` per
// SPEC_FULL.md's note.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nahisaho/YAGOKORO-sub003/embedclient"
	graphstoreMem "github.com/nahisaho/YAGOKORO-sub003/graphstore/memory"
	"github.com/nahisaho/YAGOKORO-sub003/llmclient"
	yglog "github.com/nahisaho/YAGOKORO-sub003/log"
	"github.com/nahisaho/YAGOKORO-sub003/mcpserver"
	"github.com/nahisaho/YAGOKORO-sub003/query"
	vectorstoreMem "github.com/nahisaho/YAGOKORO-sub003/vectorstore/memory"
)

func main() {
	mode := flag.String("mode", "query", "operation to run: query | serve")
	question := flag.String("q", "", "question to ask in query mode")
	flag.Parse()

	llm, err := openai.New()
	if err != nil {
		yglog.Error("initialize LLM: %v", err)
		os.Exit(1)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		yglog.Error("initialize embedder: %v", err)
		os.Exit(1)
	}

	graph := graphstoreMem.New()
	vectors := vectorstoreMem.New()
	chat := llmclient.New(llm, "gpt-4o-mini")
	embed := embedclient.New(embedder)

	local := &query.LocalEngine{Graph: graph, Vectors: vectors, Embedder: embed, LLM: chat}

	switch *mode {
	case "query":
		if *question == "" {
			fmt.Fprintln(os.Stderr, "yagokoro: -q is required in query mode")
			os.Exit(2)
		}
		resp, err := local.Query(context.Background(), *question, query.Options{})
		if err != nil {
			yglog.Error("query failed: %v", err)
			os.Exit(1)
		}
		fmt.Println(resp.Answer)
	case "serve":
		registry := mcpserver.NewRegistry()
		registry.Register(mcpserver.Tool{
			Name:        "query_local",
			Description: "Answer a question using entity-centric local retrieval.",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				q, _ := args["question"].(string)
				return local.Query(ctx, q, query.Options{})
			},
		})
		yglog.Info("yagokoro mcpserver listening on stdio")
		if err := registry.ServeStdio(context.Background(), os.Stdin, os.Stdout); err != nil {
			yglog.Error("serve failed: %v", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "yagokoro: unknown mode %q\n", *mode)
		os.Exit(2)
	}
}
