package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/guillermoBallester/tollgate/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "tollgate"

// Tool descriptions
const (
	descListRules = "List the configured threshold rules with their descriptions. " +
		"Call this first to learn which rule names check_limit accepts."

	descDescribeRule = "Describe one threshold rule: the table, field and key column it reads, " +
		"the maximum the stored value plus a candidate may reach, the default key value (masked) " +
		"and the message templates returned for each failure reason."

	descRuleParam = "Name of the rule"

	descCheckLimit = "Check whether adding a value to the stored field of one keyed record would exceed the rule's maximum. " +
		"Returns valid=true when stored + value <= max. Otherwise reason is no_record_found " +
		"(no row for the key) or exceedsmax, with a human-readable message. " +
		"The database is only read, never written."

	descCheckValueParam = "Candidate increment. Integers are added exactly; any fractional value switches to float arithmetic"

	descKeyValueParam = "Key identifying the record. Optional when the rule defines a default key_value"

	descExplainRule = "Show the PostgreSQL execution plan for a rule's lookup query. " +
		"Use this to confirm the key column is indexed."
)

func RegisterTools(s *server.MCPServer, checks *service.CheckService) {
	s.AddTool(
		mcp.NewTool("list_rules",
			mcp.WithDescription(descListRules),
		),
		listRulesHandler(checks),
	)

	s.AddTool(
		mcp.NewTool("describe_rule",
			mcp.WithDescription(descDescribeRule),
			mcp.WithString("rule",
				mcp.Required(),
				mcp.Description(descRuleParam),
			),
		),
		describeRuleHandler(checks),
	)

	s.AddTool(
		mcp.NewTool("check_limit",
			mcp.WithDescription(descCheckLimit),
			mcp.WithString("rule",
				mcp.Required(),
				mcp.Description(descRuleParam),
			),
			mcp.WithNumber("value",
				mcp.Required(),
				mcp.Description(descCheckValueParam),
			),
			mcp.WithString("key_value",
				mcp.Description(descKeyValueParam),
			),
		),
		checkLimitHandler(checks),
	)

	s.AddTool(
		mcp.NewTool("explain_rule",
			mcp.WithDescription(descExplainRule),
			mcp.WithString("rule",
				mcp.Required(),
				mcp.Description(descRuleParam),
			),
			mcp.WithString("key_value",
				mcp.Description(descKeyValueParam),
			),
		),
		explainRuleHandler(checks),
	)
}

func listRulesHandler(checks *service.CheckService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type entry struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
		}
		views := checks.ListRules()
		out := make([]entry, 0, len(views))
		for _, v := range views {
			out = append(out, entry{Name: v.Name, Description: v.Description})
		}
		return jsonResult(out)
	}
}

func describeRuleHandler(checks *service.CheckService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["rule"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("rule is required"), nil
		}

		view, err := checks.DescribeRule(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(view)
	}
}

func checkLimitHandler(checks *service.CheckService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		name, ok := args["rule"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("rule is required"), nil
		}
		value, ok := args["value"]
		if !ok || value == nil {
			return mcp.NewToolResultError("value is required"), nil
		}

		ctx = service.WithSource(ctx, "check_limit")
		result, err := checks.Check(ctx, service.CheckRequest{
			Rule:     name,
			Value:    normalizeArg(value),
			KeyValue: args["key_value"],
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", toolError(err))), nil
		}
		return jsonResult(result)
	}
}

func explainRuleHandler(checks *service.CheckService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		name, ok := args["rule"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("rule is required"), nil
		}

		plan, err := checks.Explain(ctx, name, args["key_value"])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("explain failed: %v", toolError(err))), nil
		}
		return jsonResult(plan)
	}
}

// toolError hides database detail from clients for anything that is not a
// caller mistake.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownRule),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrNotNumeric),
		errors.Is(err, domain.ErrNoAdapter):
		return err
	default:
		return errors.New("internal error")
	}
}

// normalizeArg turns integral JSON numbers back into int64 so that integer
// arithmetic is kept for values like 4 that arrive as float64(4).
func normalizeArg(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
