package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tagrag/internal/connector"
	"tagrag/internal/domain"
	"tagrag/internal/llm"
	"tagrag/internal/logging"
)

const (
	DefaultQueryToolName = "memory"
	defaultMaxRows       = 200
)

var ErrInvalidArguments = errors.New("invalid tool arguments")

var queryToolParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "A single SQL SELECT statement to run against the conversation store."
    }
  },
  "required": ["query"]
}`)

// QueryToolConfig describe el almacen al modelo.
type QueryToolConfig struct {
	Name             string
	StoreDescription string
	Examples         []string
	MaxRows          int
}

// QueryTool expone un connector.QueryExecutor como herramienta invocable.
type QueryTool struct {
	executor    connector.QueryExecutor
	name        string
	description string
	maxRows     int
	logger      *zap.Logger
}

func NewQueryTool(executor connector.QueryExecutor, cfg QueryToolConfig, logger *zap.Logger) *QueryTool {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultQueryToolName
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &QueryTool{
		executor:    executor,
		name:        name,
		description: buildQueryToolDescription(cfg.StoreDescription, cfg.Examples),
		maxRows:     maxRows,
		logger:      logging.OrNop(logger),
	}
}

func buildQueryToolDescription(store string, examples []string) string {
	var sb strings.Builder
	sb.WriteString("Runs a read-only SQL query against the stored conversation log and returns the matching rows as JSON.")
	if s := strings.TrimSpace(store); s != "" {
		sb.WriteString(" ")
		sb.WriteString(s)
	}
	if len(examples) > 0 {
		sb.WriteString("\nExample queries:")
		for _, e := range examples {
			sb.WriteString("\n- ")
			sb.WriteString(e)
		}
	}
	return sb.String()
}

func (t *QueryTool) Name() string { return t.name }

func (t *QueryTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionSpec{
			Name:        t.name,
			Description: t.description,
			Parameters:  queryToolParameters,
		},
	}
}

type queryToolResult struct {
	Rows      []domain.Row `json:"rows"`
	RowCount  int          `json:"row_count"`
	Truncated bool         `json:"truncated"`
}

// Invoke decodifica {"query": "..."} y ejecuta la consulta tal cual la escribio el modelo.
func (t *QueryTool) Invoke(ctx context.Context, arguments string) (string, error) {
	raw := extractFirstJSONObject(arguments)
	if raw == "" {
		return "", fmt.Errorf("%w: expected a JSON object", ErrInvalidArguments)
	}
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	query := cleanFenced(in.Query)
	if query == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidArguments)
	}

	rows, err := t.executor.Execute(ctx, query)
	if err != nil {
		return "", err
	}

	result := queryToolResult{Rows: rows, RowCount: len(rows)}
	if len(rows) > t.maxRows {
		result.Rows = rows[:t.maxRows]
		result.Truncated = true
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	t.logger.Info("query tool executed",
		zap.String("query", query),
		zap.Int("rows", len(rows)),
		zap.Bool("truncated", result.Truncated),
	)
	return string(out), nil
}
