// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the certificate feed to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/certhub/internal/analytics"
	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/fixtures"
	"github.com/starford/certhub/internal/pipeline"
	"github.com/starford/certhub/internal/upload"
)

// CatalogURI is the resource listing the known filter values.
const CatalogURI = "certhub://catalog"

// Server wraps the MCP server with certhub tools.
type Server struct {
	mcp      *server.MCPServer
	store    *certstore.Store
	catalog  fixtures.Catalog
	uploader upload.Uploader
}

// New creates an MCP server with all tools registered.
func New(store *certstore.Store, catalog fixtures.Catalog, uploader upload.Uploader) *Server {
	s := &Server{store: store, catalog: catalog, uploader: uploader}

	s.mcp = server.NewMCPServer(
		"certhub",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	stringList := map[string]any{"type": "string"}
	s.mcp.AddTool(mcp.NewTool("search_certificates",
		mcp.WithDescription("Search certificates. Filters combine with AND; values inside one list combine with OR. "+
			"The date range applies only when both from and to are given. Read "+CatalogURI+" for valid categories and units."),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against title, category, issuer, tags and author name")),
		mcp.WithArray("categories", mcp.Items(stringList), mcp.Description("Categories to include")),
		mcp.WithArray("tags", mcp.Items(stringList), mcp.Description("Tags; a certificate matches if it has any of them")),
		mcp.WithArray("units", mcp.Items(stringList), mcp.Description("Author units to include")),
		mcp.WithString("from", mcp.Description("Start date, YYYY-MM-DD, inclusive")),
		mcp.WithString("to", mcp.Description("End date, YYYY-MM-DD, inclusive")),
		mcp.WithString("sort", mcp.Enum("date", "likes", "views", "title"), mcp.Description("Sort key (default date)")),
		mcp.WithString("order", mcp.Enum("asc", "desc"), mcp.Description("Sort order (default desc)")),
		mcp.WithNumber("page", mcp.Description("1-based page number")),
		mcp.WithNumber("page_size", mcp.Description("Records per page")),
	), s.searchCertificates)

	s.mcp.AddTool(mcp.NewTool("get_certificate",
		mcp.WithDescription("Read one certificate by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Certificate id, e.g. cert_001")),
	), s.getCertificate)

	s.mcp.AddTool(mcp.NewTool("list_catalog",
		mcp.WithDescription("List the known categories, popular tags and units."),
	), s.listCatalog)

	s.mcp.AddTool(mcp.NewTool("get_analytics",
		mcp.WithDescription("Dashboard figures: certificates per category, the last six months, top issuers and totals."),
	), s.getAnalytics)

	s.mcp.AddTool(mcp.NewTool("toggle_like",
		mcp.WithDescription("Like a certificate, or remove the like if it is already liked."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Certificate id")),
	), s.toggleLike)

	s.mcp.AddTool(mcp.NewTool("upload_certificate_file",
		mcp.WithDescription("Upload a certificate file given as a base64 data URI. Returns the reference to use as fileUrl."),
		mcp.WithString("data", mcp.Required(), mcp.Description("data:<mime>;base64,<payload> (pdf, png or jpeg)")),
		mcp.WithString("filename", mcp.Description("Original file name; derived from the MIME type when omitted")),
	), s.uploadFile)

	s.mcp.AddResource(
		mcp.NewResource(CatalogURI, "Certificate Catalog",
			mcp.WithResourceDescription("Known categories, popular tags and units used by search filters."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCatalogResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchCertificates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("q", req.GetString("query", ""))
	set("from", req.GetString("from", ""))
	set("to", req.GetString("to", ""))
	set("sort", req.GetString("sort", ""))
	set("order", req.GetString("order", ""))
	v["category"] = req.GetStringSlice("categories", nil)
	v["tag"] = req.GetStringSlice("tags", nil)
	v["unit"] = req.GetStringSlice("units", nil)

	params, err := pipeline.ParseQuery(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid filters: %v", err)), nil
	}
	page := req.GetInt("page", 1)
	size := req.GetInt("page_size", s.store.PageSize())
	return jsonResult(s.store.Search(params, page, size))
}

func (s *Server) getCertificate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.Get(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) listCatalog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.catalog)
}

func (s *Server) getAnalytics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(analytics.Compute(s.store.All(), s.catalog.Categories))
}

func (s *Server) toggleLike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.ToggleLike(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: likes=%d liked=%t", c.ID, c.Likes, c.IsLikedByUser)), nil
}

func (s *Server) readCatalogResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.catalog)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode catalog: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CatalogURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
