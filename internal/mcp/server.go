package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/bibdex/internal/search"
	"github.com/Aman-CERP/bibdex/internal/store"
	"github.com/Aman-CERP/bibdex/pkg/version"
)

// Limits for search_papers.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Server is the bibdex MCP server. It answers read-only questions about one
// data directory.
type Server struct {
	mcp     *mcp.Server
	engine  search.Searcher
	index   store.SearchIndex
	catalog store.Catalog
	dataDir string
	logger  *slog.Logger
}

// Dependencies are the collaborators of a Server.
type Dependencies struct {
	Engine  search.Searcher
	Index   store.SearchIndex
	Catalog store.Catalog
	DataDir string
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name: "search_papers",
		Description: "Search the indexed bibliography. Matches full text of the papers plus author, title and " +
			"citation key. Scoped fields narrow the query; unscoped terms rank results. Returns entries with file paths.",
	},
	{
		Name:        "catalog_status",
		Description: "Report how many entries and files are indexed, when the catalog was last synced, and whether the index agrees with the catalog.",
	},
}

// NewServer creates an MCP server over deps.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("search engine is required")
	}
	if deps.Index == nil {
		return nil, errors.New("search index is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = store.Catalog{}
	}

	s := &Server{
		engine:  deps.Engine,
		index:   deps.Index,
		catalog: deps.Catalog,
		dataDir: deps.DataDir,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "bibdex", Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "bibdex", version.Version
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool invokes a tool by name with JSON-shaped arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_papers":
		var in SearchPapersInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.searchPapers(ctx, in)
	case "catalog_status":
		return s.catalogStatus(ctx)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchPapersHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpCatalogStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpSearchPapersHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchPapersInput) (
	*mcp.CallToolResult,
	*SearchPapersOutput,
	error,
) {
	out, err := s.searchPapers(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpCatalogStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ CatalogStatusInput) (
	*mcp.CallToolResult,
	*CatalogStatusOutput,
	error,
) {
	out, err := s.catalogStatus(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) searchPapers(ctx context.Context, in SearchPapersInput) (*SearchPapersOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	var fields search.Fields
	fields[search.FieldFullText] = in.Query
	fields[search.FieldKey] = in.Key
	fields[search.FieldAuthor] = in.Author
	fields[search.FieldTitle] = in.Title
	query := strings.TrimSpace(search.BuildQuery(fields))
	if query == "" {
		return nil, NewInvalidParamsError("at least one of query, author, title or key is required")
	}
	limit := clampLimit(in.Limit, DefaultLimit, 1, MaxLimit)

	results, err := s.engine.Search(ctx, query, limit)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	out := &SearchPapersOutput{Query: query, Papers: make([]PaperOutput, 0, len(results))}
	for _, r := range results {
		out.Papers = append(out.Papers, PaperOutput{
			Key:    r.Entry.ID,
			Author: r.Entry.Author,
			Title:  r.Entry.Title,
			Files:  append([]string(nil), r.Entry.Files...),
			Lang:   r.Entry.Lang,
			Score:  r.Score,
		})
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("results", len(out.Papers)),
		slog.Duration("duration", duration))
	return out, nil
}

func (s *Server) catalogStatus(ctx context.Context) (*CatalogStatusOutput, error) {
	stats, err := store.CollectStats(s.dataDir, s.catalog, s.index)
	if err != nil {
		return nil, MapError(err)
	}

	ids, err := s.index.AllIDs(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	consistent := len(ids) == len(s.catalog)
	if consistent {
		for _, id := range ids {
			if _, ok := s.catalog[id]; !ok {
				consistent = false
				break
			}
		}
	}

	return &CatalogStatusOutput{
		DataDir:        stats.DataDir,
		Entries:        stats.Entries,
		Files:          stats.Files,
		IndexDocuments: stats.IndexDocuments,
		Languages:      stats.Languages,
		LastSync:       formatTime(stats.LastSync),
		Consistent:     consistent,
	}, nil
}

// Serve runs the server on the given transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func clampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		return def
	}
	return max(lo, min(v, hi))
}

// generateRequestID creates a short ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
