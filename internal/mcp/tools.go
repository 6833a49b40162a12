package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dmmcquay/endgame-mcp/internal/health"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
	"github.com/dmmcquay/endgame-mcp/internal/quality"
	"github.com/dmmcquay/endgame-mcp/internal/tablebase"
	"github.com/dmmcquay/endgame-mcp/internal/training"
	"github.com/dmmcquay/endgame-mcp/internal/uci"
	"github.com/dmmcquay/endgame-mcp/internal/wdl"
)

// engineRetries is how often an engine tool is retried after a crash.
const engineRetries = 1

// Deps are the services the tools call into. Health and Observer may be
// nil.
type Deps struct {
	Engine   uci.Engine
	Coach    *training.Coach
	Prober   tablebase.Prober
	Health   *health.Checker
	Observer training.ClassificationObserver

	// RequestTimeout bounds each engine request; zero means no bound.
	RequestTimeout time.Duration
}

// ToolsHandler manages the MCP tools for endgame training.
type ToolsHandler struct {
	deps       Deps
	logger     logging.ContextLogger
	middleware *Middleware
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(deps Deps, logger logging.ContextLogger) *ToolsHandler {
	return &ToolsHandler{deps: deps, logger: logger}
}

// SetMiddleware sets the middleware for the tools handler.
func (h *ToolsHandler) SetMiddleware(middleware *Middleware) {
	h.middleware = middleware
}

func (h *ToolsHandler) add(s *server.MCPServer, tool mcp.Tool, handler ToolHandler, retryOnCrash bool) {
	if h.middleware != nil {
		if retryOnCrash {
			handler = h.middleware.WrapToolWithRetry(tool.Name, handler, engineRetries)
		} else {
			handler = h.middleware.WrapTool(tool.Name, handler)
		}
	}
	s.AddTool(tool, server.ToolHandlerFunc(handler))
}

// RegisterTools registers all tools with the MCP server.
func (h *ToolsHandler) RegisterTools(s *server.MCPServer) {
	fen := mcp.WithString("fen",
		mcp.Description("Position in Forsyth-Edwards Notation"),
		mcp.Required(),
	)
	newGame := mcp.WithBoolean("newGame",
		mcp.Description("Reset engine state first; use when the position is unrelated to the previous one"),
	)
	format := mcp.WithString("format",
		mcp.Description("Output format: text (default) or json"),
		mcp.Enum("text", "json"),
	)

	h.add(s, mcp.NewTool("evaluatePosition",
		mcp.WithDescription("Evaluate a chess position with the UCI engine: score from the side to move, depth and principal variation"),
		fen, newGame, format,
	), h.HandleEvaluatePosition, true)

	h.add(s, mcp.NewTool("getBestMove",
		mcp.WithDescription("Ask the UCI engine for its best move in a chess position"),
		fen, newGame, format,
	), h.HandleGetBestMove, true)

	h.add(s, mcp.NewTool("classifyMove",
		mcp.WithDescription("Classify a move's quality from the tablebase WDL before the move (mover to play) and after it (opponent to play). WDL values are -2 loss, -1 blessed loss, 0 draw, 1 cursed win, 2 win; omit or pass null when unknown."),
		mcp.WithNumber("wdlBefore",
			mcp.Description("WDL of the position before the move, from the mover's side"),
		),
		mcp.WithNumber("wdlAfter",
			mcp.Description("WDL of the position after the move, from the opponent's side"),
		),
		mcp.WithString("side",
			mcp.Description("Side that played the move: white or black"),
			mcp.Enum("white", "black"),
		),
		mcp.WithString("fen",
			mcp.Description("Position before the move; used for the side to move when side is omitted"),
		),
	), h.HandleClassifyMove, false)

	h.add(s, mcp.NewTool("organizeTablebaseMoves",
		mcp.WithDescription("Group tablebase moves into win, draw, loss and unknown buckets for the mover, ordered by DTZ. Pass the moves directly, or a FEN to probe the tablebase."),
		mcp.WithArray("moves",
			mcp.Description(`Tablebase move records: {"uci","san","wdl","dtz","dtm","category"}; wdl and dtz are from the opponent's side after the move`),
		),
		mcp.WithString("fen",
			mcp.Description("Position to probe when moves is omitted"),
		),
	), h.HandleOrganizeTablebaseMoves, false)

	h.add(s, mcp.NewTool("moveFeedback",
		mcp.WithDescription("Check a played move against the tablebase, classify it and suggest better moves"),
		fen,
		mcp.WithString("move",
			mcp.Description("Move played, in coordinate (e2e4) or standard (Nf3) notation"),
			mcp.Required(),
		),
		format,
	), h.HandleMoveFeedback, false)

	h.add(s, mcp.NewTool("getEngineStatus",
		mcp.WithDescription("Get the status of the UCI engine, tool statistics and rate limits"),
	), h.HandleGetEngineStatus, false)

	h.add(s, mcp.NewTool("restartEngine",
		mcp.WithDescription("Replace the running UCI engine with a fresh process"),
	), h.HandleRestartEngine, false)

	h.add(s, mcp.NewTool("stopEngine",
		mcp.WithDescription("Stop the UCI engine; the next engine request starts a new one"),
	), h.HandleStopEngine, false)

	h.add(s, mcp.NewTool("health",
		mcp.WithDescription("Check server, engine and cache health"),
	), h.HandleHealth, false)
}

func (h *ToolsHandler) toolLogger(ctx context.Context, tool string) logging.ContextLogger {
	return h.logger.WithContext(ctx).WithField("tool", tool)
}

func (h *ToolsHandler) engineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.deps.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.deps.RequestTimeout)
}

// positionArgs reads and validates the fen argument and the engine options
// shared by the search tools.
func (h *ToolsHandler) positionArgs(request mcp.CallToolRequest) (args, string, error) {
	a, err := arguments(request)
	if err != nil {
		return nil, "", err
	}
	fen, err := a.requireString("fen")
	if err != nil {
		return nil, "", err
	}
	fen = strings.TrimSpace(fen)
	if _, err := training.NewGame(fen); err != nil {
		return nil, "", err
	}
	return a, fen, nil
}

func (h *ToolsHandler) prepareEngine(ctx context.Context, a args, logger logging.ContextLogger) error {
	if !a.optionalBool("newGame") {
		return nil
	}
	logger.Debug("Resetting engine for a new game")
	if err := h.deps.Engine.NewGame(ctx); err != nil {
		return fmt.Errorf("failed to reset engine: %w", err)
	}
	return nil
}

// EvaluationView is the evaluatePosition result.
type EvaluationView struct {
	FEN         string   `json:"fen"`
	Side        string   `json:"side"`
	Centipawns  *int     `json:"centipawns"`
	MateIn      *int     `json:"mateIn"`
	Depth       int      `json:"depth"`
	BestMove    string   `json:"bestMove,omitempty"`
	BestMoveSAN string   `json:"bestMoveSan,omitempty"`
	PV          []string `json:"pv"`
	PVSAN       []string `json:"pvSan"`
}

// HandleEvaluatePosition handles the evaluatePosition tool.
func (h *ToolsHandler) HandleEvaluatePosition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "evaluatePosition")

	a, fen, err := h.positionArgs(request)
	if err != nil {
		return nil, err
	}
	side, _ := training.SideFromFEN(fen)

	ctx, cancel := h.engineContext(ctx)
	defer cancel()

	if err := h.prepareEngine(ctx, a, logger); err != nil {
		return nil, err
	}

	eval, err := h.deps.Engine.RequestEvaluation(ctx, fen)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	logger.Debug("Evaluation completed", "depth", eval.Depth, "has_score", eval.HasScore())

	view := EvaluationView{
		FEN:        fen,
		Side:       side.String(),
		Centipawns: eval.Centipawns,
		MateIn:     eval.MateIn,
		Depth:      eval.Depth,
		PV:         make([]string, len(eval.PV)),
	}
	for i, m := range eval.PV {
		view.PV[i] = m.String()
	}
	view.PVSAN = training.LineSAN(fen, view.PV)
	if eval.BestMove != nil {
		view.BestMove = eval.BestMove.String()
		view.BestMoveSAN = training.SANFromFEN(fen, view.BestMove)
	}

	if wantJSON(a) {
		return jsonResult(view)
	}
	return mcp.NewToolResultText(formatEvaluation(&view)), nil
}

// BestMoveView is the getBestMove result.
type BestMoveView struct {
	FEN  string `json:"fen"`
	Side string `json:"side"`
	// Move is empty when the side to move has no legal move.
	Move string `json:"move"`
	SAN  string `json:"san,omitempty"`
}

// HandleGetBestMove handles the getBestMove tool.
func (h *ToolsHandler) HandleGetBestMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "getBestMove")

	a, fen, err := h.positionArgs(request)
	if err != nil {
		return nil, err
	}
	side, _ := training.SideFromFEN(fen)

	ctx, cancel := h.engineContext(ctx)
	defer cancel()

	if err := h.prepareEngine(ctx, a, logger); err != nil {
		return nil, err
	}

	move, err := h.deps.Engine.RequestBestMove(ctx, fen)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	view := BestMoveView{FEN: fen, Side: side.String()}
	if move != nil {
		view.Move = move.String()
		view.SAN = training.SANFromFEN(fen, view.Move)
	}
	logger.Debug("Search completed", "move", view.Move)

	if wantJSON(a) {
		return jsonResult(view)
	}
	if view.Move == "" {
		return mcp.NewToolResultText(fmt.Sprintf("No legal move for %s in this position", view.Side)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Best move for %s: %s (%s)", view.Side, displayMove(view.SAN, view.Move), view.Move)), nil
}

// ClassificationView is the classifyMove result.
type ClassificationView struct {
	quality.Result
	IsError bool   `json:"isError"`
	Text    string `json:"text"`
}

// HandleClassifyMove handles the classifyMove tool.
func (h *ToolsHandler) HandleClassifyMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "classifyMove")

	a, err := arguments(request)
	if err != nil {
		return nil, err
	}

	before, err := wdlArg(a, "wdlBefore")
	if err != nil {
		return nil, err
	}
	after, err := wdlArg(a, "wdlAfter")
	if err != nil {
		return nil, err
	}
	side, err := sideArg(a)
	if err != nil {
		return nil, err
	}

	result := quality.ClassifyMove(before, after, side)
	if h.deps.Observer != nil {
		h.deps.Observer.RecordClassification(string(result.Category))
	}
	logger.Debug("Move classified", "category", string(result.Category), "transition", result.Transition)

	return jsonResult(ClassificationView{
		Result:  result,
		IsError: result.Category.IsError(),
		Text:    result.Summary(),
	})
}

func wdlArg(a args, key string) (wdl.Value, error) {
	n, err := a.optionalInt(key)
	if err != nil {
		return wdl.Unknown(), err
	}
	v, err := wdl.FromPointer(n)
	if err != nil {
		return wdl.Unknown(), fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// sideArg prefers an explicit side and falls back to the side to move in
// fen.
func sideArg(a args) (wdl.Side, error) {
	side, err := a.optionalString("side")
	if err != nil {
		return wdl.White, err
	}
	if strings.TrimSpace(side) != "" {
		return wdl.ParseSide(side)
	}
	fen, err := a.optionalString("fen")
	if err != nil {
		return wdl.White, err
	}
	if strings.TrimSpace(fen) == "" {
		return wdl.White, fmt.Errorf("must provide either 'side' or 'fen' parameter")
	}
	return training.SideFromFEN(fen)
}

// OrganizedView is the organizeTablebaseMoves result.
type OrganizedView struct {
	tablebase.Classified
	FEN  string          `json:"fen,omitempty"`
	Best *tablebase.Move `json:"best,omitempty"`
}

// HandleOrganizeTablebaseMoves handles the organizeTablebaseMoves tool.
func (h *ToolsHandler) HandleOrganizeTablebaseMoves(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "organizeTablebaseMoves")

	a, err := arguments(request)
	if err != nil {
		return nil, err
	}
	fen, err := a.optionalString("fen")
	if err != nil {
		return nil, err
	}
	fen = strings.TrimSpace(fen)

	var moves []tablebase.Move
	switch {
	case a.has("moves"):
		if err := a.decode("moves", &moves); err != nil {
			return nil, err
		}
	case fen != "":
		if h.deps.Prober == nil {
			return nil, fmt.Errorf("no tablebase source configured")
		}
		pos, err := h.deps.Prober.Probe(ctx, fen)
		if errors.Is(err, tablebase.ErrPositionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("No tablebase data for %s", fen)), nil
		}
		if err != nil {
			return nil, fmt.Errorf("tablebase probe failed: %w", err)
		}
		moves = pos.Moves
	default:
		return nil, fmt.Errorf("must provide either 'moves' or 'fen' parameter")
	}

	if fen != "" {
		for i := range moves {
			if moves[i].SAN == "" {
				moves[i].SAN = training.SANFromFEN(fen, moves[i].UCI)
			}
		}
	}

	view := OrganizedView{Classified: tablebase.ClassifyMovesByDTZ(moves), FEN: fen}
	if best, ok := view.Classified.Best(); ok {
		view.Best = &best
	}
	logger.Debug("Moves organized",
		"total", view.Total,
		"win", len(view.Win),
		"draw", len(view.Draw),
		"loss", len(view.Loss),
	)
	return jsonResult(view)
}

// HandleMoveFeedback handles the moveFeedback tool.
func (h *ToolsHandler) HandleMoveFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "moveFeedback")

	if h.deps.Coach == nil {
		return nil, fmt.Errorf("no tablebase source configured")
	}
	a, err := arguments(request)
	if err != nil {
		return nil, err
	}
	fen, err := a.requireString("fen")
	if err != nil {
		return nil, err
	}
	move, err := a.requireString("move")
	if err != nil {
		return nil, err
	}

	fb, err := h.deps.Coach.Feedback(ctx, fen, move)
	if err != nil {
		return nil, fmt.Errorf("feedback failed: %w", err)
	}
	logger.Info("Move feedback", "move", fb.UCI, "category", string(fb.Result.Category))

	if wantJSON(a) {
		return jsonResult(fb)
	}
	return mcp.NewToolResultText(fb.Text), nil
}

// StatusView is the getEngineStatus result.
type StatusView struct {
	Engine uci.Status `json:"engine"`
	Tools  any        `json:"tools,omitempty"`
	Limits any        `json:"rateLimits,omitempty"`
}

// HandleGetEngineStatus handles the getEngineStatus tool.
func (h *ToolsHandler) HandleGetEngineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "getEngineStatus")

	view := StatusView{Engine: h.deps.Engine.Status()}
	if h.middleware != nil {
		view.Tools = h.middleware.metrics.ToolStats()
		view.Limits = h.middleware.rateLimiter.GetStatus()
	}

	logger.Debug("Engine status checked", "state", view.Engine.State)
	return jsonResult(view)
}

// HandleRestartEngine handles the restartEngine tool.
func (h *ToolsHandler) HandleRestartEngine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "restartEngine")

	ctx, cancel := h.engineContext(ctx)
	defer cancel()

	logger.Info("Restarting engine")
	if err := h.deps.Engine.Restart(ctx); err != nil {
		return nil, fmt.Errorf("failed to restart engine: %w", err)
	}

	status := h.deps.Engine.Status()
	logger.Info("Engine restarted", "engine", status.Engine, "restarts", status.Restarts)
	return mcp.NewToolResultText(fmt.Sprintf("Engine restarted (%s, %s)", engineName(status), status.State)), nil
}

// HandleStopEngine handles the stopEngine tool.
func (h *ToolsHandler) HandleStopEngine(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := h.toolLogger(ctx, "stopEngine")

	if h.deps.Engine.Status().State == uci.StateUninitialized.String() {
		logger.Debug("Engine not running")
		return mcp.NewToolResultText("Engine is not running"), nil
	}

	logger.Info("Stopping engine")
	if err := h.deps.Engine.Stop(ctx); err != nil {
		return nil, fmt.Errorf("failed to stop engine: %w", err)
	}
	return mcp.NewToolResultText("Engine stopped; the next request starts a new one"), nil
}

// HandleHealth handles the health tool.
func (h *ToolsHandler) HandleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.deps.Health == nil {
		return jsonResult(health.Response{Status: health.StatusHealthy, Timestamp: time.Now().UTC()})
	}
	return jsonResult(h.deps.Health.CheckHealth(ctx))
}

func wantJSON(a args) bool {
	format, _ := a.optionalString("format")
	return strings.EqualFold(format, "json")
}
