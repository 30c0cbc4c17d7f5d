// Package mcpserver exposes the ordering pipeline as Model Context Protocol
// tools, so an external agent can take orders on behalf of a caller.
//
// Tools:
//
//   - start_session: open an ordering session and return its ID.
//   - process_voice_order: run one utterance through a session.
//   - get_order_context: return the cart and conversation state of a session.
//   - list_drinks: list the catalog, optionally by category.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/barkeep/internal/catalog"
	"github.com/MrWong99/barkeep/internal/observe"
	"github.com/MrWong99/barkeep/internal/session"
	"github.com/MrWong99/barkeep/internal/voiceorder"
)

// Tool names.
const (
	ToolStartSession      = "start_session"
	ToolProcessVoiceOrder = "process_voice_order"
	ToolGetOrderContext   = "get_order_context"
	ToolListDrinks        = "list_drinks"
)

// Engine runs voice commands.
type Engine interface {
	ProcessVoiceOrder(ctx context.Context, text, sessionID string) voiceorder.VoiceOrderResult
}

// Sessions opens and resolves sessions. [*session.Manager] implements it.
type Sessions interface {
	voiceorder.Sessions
	Create(ctx context.Context) session.Info
}

// Menu is the catalog view.
type Menu interface {
	Drinks() []catalog.Drink
}

// Server wraps an MCP server bound to one engine.
type Server struct {
	engine   Engine
	sessions Sessions
	menu     Menu
	mcp      *mcpsdk.Server
}

type startSessionInput struct{}

type processInput struct {
	Text      string `json:"text" jsonschema:"what the caller said, as transcribed"`
	SessionID string `json:"session_id" jsonschema:"session returned by start_session"`
}

type contextInput struct {
	SessionID string `json:"session_id" jsonschema:"session returned by start_session"`
}

type listDrinksInput struct {
	Category string `json:"category,omitempty" jsonschema:"only list drinks of this category"`
}

// New registers the ordering tools on a fresh MCP server.
func New(engine Engine, sessions Sessions, menu Menu, version string) *Server {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		menu:     menu,
		mcp:      mcpsdk.NewServer(&mcpsdk.Implementation{Name: "barkeep", Version: version}, nil),
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolStartSession,
		Description: "Open a new ordering session with an empty cart. Returns the session ID.",
	}, s.startSession)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolProcessVoiceOrder,
		Description: "Interpret one spoken bar order command (add, remove, change, repeat, checkout) and update the session cart.",
	}, s.processVoiceOrder)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolGetOrderContext,
		Description: "Return the current cart, last intent and conversation state of a session.",
	}, s.getOrderContext)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolListDrinks,
		Description: "List the drinks on the menu with price and stock.",
	}, s.listDrinks)
	return s
}

// MCP returns the underlying server, for transports other than HTTP.
func (s *Server) MCP() *mcpsdk.Server { return s.mcp }

// Handler serves the tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.mcp }, nil)
}

func (s *Server) startSession(ctx context.Context, _ *mcpsdk.CallToolRequest, _ startSessionInput) (*mcpsdk.CallToolResult, any, error) {
	info := s.sessions.Create(ctx)
	return jsonResult(info)
}

func (s *Server) processVoiceOrder(ctx context.Context, _ *mcpsdk.CallToolRequest, in processInput) (*mcpsdk.CallToolResult, any, error) {
	if in.SessionID == "" {
		return errorResult("session_id is required"), nil, nil
	}
	ctx = observe.WithSession(ctx, in.SessionID)
	res := s.engine.ProcessVoiceOrder(ctx, in.Text, in.SessionID)
	observe.Logger(ctx).Debug("mcpserver: processed voice order", "success", res.Success)
	out, _, err := jsonResult(res)
	if err != nil {
		return nil, nil, err
	}
	out.IsError = errors.Is(res.Err, voiceorder.ErrUnknownSession)
	return out, nil, nil
}

func (s *Server) getOrderContext(_ context.Context, _ *mcpsdk.CallToolRequest, in contextInput) (*mcpsdk.CallToolResult, any, error) {
	sess, err := s.sessions.Lookup(in.SessionID)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return jsonResult(sess.Contexts.Get())
}

func (s *Server) listDrinks(_ context.Context, _ *mcpsdk.CallToolRequest, in listDrinksInput) (*mcpsdk.CallToolResult, any, error) {
	drinks := []catalog.Drink{}
	for _, d := range s.menu.Drinks() {
		if in.Category != "" && !strings.EqualFold(d.Category, in.Category) {
			continue
		}
		drinks = append(drinks, d)
	}
	return jsonResult(drinks)
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}}}, nil, nil
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}
