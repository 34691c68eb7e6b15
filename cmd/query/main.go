// Command query is a retrieval CLI that matches the API stack: it uses the
// same embedding client, vector store, and hit preparation pipeline as
// /api/search, so results are consistent between the two.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"paperhub/internal/chunker"
	"paperhub/internal/config"
	"paperhub/internal/links"
	"paperhub/internal/llm"
	"paperhub/internal/rag"
	"paperhub/internal/retrieval"
	"paperhub/internal/storage"
	"paperhub/internal/vectorstore"
)

var (
	flagQuery           string
	flagK               int
	flagPerDoc          int
	flagNeighbors       int
	flagContains        string
	flagYearMin         int
	flagYearMax         int
	flagJSON            bool
	flagMaxPreviewChars int
	flagNoTruncate      bool
	flagShowCounts      bool
	flagShowTitles      bool
	flagRerank          bool
)

var rootCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the vector index",
	Long: `Searches the corpus with the same retrieval pipeline as the API:
overfetch, per-document diversification, neighbor stitching, and
keyword/year filters.`,
	RunE: runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question and get a cited answer",
	RunE:  runAsk,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagQuery, "q", "", "query text (required)")
	rootCmd.PersistentFlags().IntVar(&flagK, "k", 10, "top-k to output after diversification")
	rootCmd.PersistentFlags().IntVar(&flagPerDoc, "per-doc", 2, "max results per document")
	rootCmd.PersistentFlags().IntVar(&flagNeighbors, "neighbors", 1, "adjacent chunks to stitch for preview")
	rootCmd.PersistentFlags().StringVar(&flagContains, "contains", "", "comma-separated keywords that must appear in chunk text")
	rootCmd.PersistentFlags().IntVar(&flagYearMin, "year-min", 0, "minimum publication year")
	rootCmd.PersistentFlags().IntVar(&flagYearMax, "year-max", 0, "maximum publication year")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output JSON lines instead of pretty text")
	rootCmd.PersistentFlags().IntVar(&flagMaxPreviewChars, "max-preview-chars", 1800, "char cap for printed preview")
	rootCmd.PersistentFlags().BoolVar(&flagNoTruncate, "no-truncate", false, "print full stitched preview (ignore char cap)")
	rootCmd.Flags().BoolVar(&flagShowCounts, "show-counts", false, "print word/char/token counts for previews")
	rootCmd.Flags().BoolVar(&flagShowTitles, "show-titles", true, "include title/year/page metadata in pretty output")
	askCmd.Flags().BoolVar(&flagRerank, "rerank", true, "rerank hits before prompting")
	rootCmd.AddCommand(askCmd)

	_ = rootCmd.MarkPersistentFlagRequired("q")
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildEngine wires the same stack the API server uses.
func buildEngine(ctx context.Context, withChat bool) (rag.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	index, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.VectorSize)

	var chatClient rag.ChatModel
	if withChat {
		chatClient = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	}

	var reranker rag.Reranker
	if cfg.Runtime.Rerank {
		reranker = rag.NewLexicalReranker()
	}

	engine := rag.NewEngine(
		embedder,
		index,
		cfg.QdrantCollection,
		storage.NewMetaCache(storage.NewChunkRepo(db)),
		links.NewEnricher(storage.NewDocumentRepo(db)).EnrichFunc,
		reranker,
		chatClient,
		nil,
	)
	return rag.WithDefaultFilters(engine, cfg.Runtime.Retrieval), cleanup, nil
}

func cliFilters() map[string]any {
	filters := map[string]any{
		"per_doc":           flagPerDoc,
		"neighbors":         flagNeighbors,
		"max_preview_chars": flagMaxPreviewChars,
	}
	if flagContains != "" {
		filters["contains"] = flagContains
	}
	if flagYearMin > 0 {
		filters["year_min"] = flagYearMin
	}
	if flagYearMax > 0 {
		filters["year_max"] = flagYearMax
	}
	if flagNoTruncate {
		filters["no_truncate"] = true
	}
	return filters
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	engine, cleanup, err := buildEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	hits, err := engine.Search(ctx, rag.SearchRequest{
		Query:   flagQuery,
		K:       flagK,
		Filters: cliFilters(),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if flagJSON {
		return outputJSONLines(cmd, hits)
	}
	return outputPretty(cmd, hits)
}

func outputJSONLines(cmd *cobra.Command, hits []retrieval.Hit) error {
	for _, hit := range hits {
		payload := map[string]any{
			"id":       hit.ID,
			"score":    hit.Score,
			"metadata": hit.Meta,
		}
		if flagShowCounts {
			preview, _ := hit.Meta["preview"].(string)
			words, chars, tokens := previewCounts(preview)
			payload["preview_words"] = words
			payload["preview_chars"] = chars
			payload["preview_tokens"] = tokens
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal hit: %w", err)
		}
		cmd.Println(string(data))
	}
	return nil
}

func outputPretty(cmd *cobra.Command, hits []retrieval.Hit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for rank, hit := range hits {
		preview, _ := hit.Meta["preview"].(string)
		snippet := retrieval.FormatSnippet(preview, 180)

		title, _ := hit.Meta["title"].(string)
		if title == "" {
			title = "?"
		}

		header := fmt.Sprintf("%2d %.3f  %s", rank+1, hit.Score, title)
		if flagShowTitles {
			if suffix := retrieval.FormatMetaSuffix(hit.Meta); suffix != "" {
				header = header + " " + suffix
			}
		}
		cmd.Printf("%s  %s\n", header, snippet)

		if flagShowCounts {
			words, chars, tokens := previewCounts(preview)
			cmd.Printf("   counts: %d words, %d chars, tokens~%d\n", words, chars, tokens)
		}
		if !flagShowTitles {
			cmd.Printf("   text:  %s\n\n", preview)
		}
	}
	return nil
}

func previewCounts(s string) (words, chars, tokens int) {
	words = len(strings.Fields(s))
	chars = len(s)
	tokens = len(chunker.NewWordTokenizer().Tokenize(s))
	return words, chars, tokens
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	engine, cleanup, err := buildEngine(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	rerank := flagRerank
	resp, err := engine.Ask(ctx, rag.AskRequest{
		Question: flagQuery,
		K:        flagK,
		Rerank:   &rerank,
		Filters:  cliFilters(),
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if flagJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(resp.Answer)
	return nil
}
