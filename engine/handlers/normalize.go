package handlers

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/itchyny/gojq"

	"github.com/moizaamir12/vsync-workflow-sub000/engine"
)

// NormalizeHandler reshapes a value for downstream consumption. logic.mode
// selects the strategy:
//   - "html": extract readable article text from logic.normalize_html via
//     go-readability (strip boilerplate, ads, nav chrome).
//   - "trim": strip the trim_chars (default whitespace) from both ends of a
//     string.
//   - "jq" (default): run logic.normalize_query (gojq) against
//     logic.normalize_value.
func NormalizeHandler(_ engineCtx, block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	mode := logicString(block, wctx, "mode", "jq")

	switch mode {
	case "html":
		return normalizeHTML(block, wctx)
	case "trim":
		return normalizeTrim(block, wctx)
	default:
		return normalizeJQ(block, wctx)
	}
}

func normalizeHTML(block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	html := logicString(block, wctx, "normalize_html", "")
	if html == "" {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "normalize: normalize_html is required in html mode", nil)
	}
	pageURL := logicString(block, wctx, "normalize_url", "https://example.invalid/")
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "normalize_url: "+err.Error(), err)
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "normalize: extraction failed: "+err.Error(), err)
	}

	out := map[string]any{
		"title": article.Title,
		"text":  article.TextContent,
		"excerpt": article.Excerpt,
	}
	return engine.BlockResult{StateDelta: bind(block, "normalized", out)}, nil
}

func normalizeTrim(block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	input := logicString(block, wctx, "normalize_value", "")
	cutset := logicString(block, wctx, "trim_chars", "")
	var trimmed string
	if cutset == "" {
		trimmed = strings.TrimSpace(input)
	} else {
		trimmed = strings.Trim(input, cutset)
	}
	return engine.BlockResult{StateDelta: bind(block, "normalized", trimmed)}, nil
}

func normalizeJQ(block engine.Block, wctx *engine.WorkflowContext) (engine.BlockResult, error) {
	value, _ := logicAny(block, wctx, "normalize_value")
	query := logicString(block, wctx, "normalize_query", ".")

	q, err := gojq.Parse(query)
	if err != nil {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "normalize_query: "+err.Error(), err)
	}
	iter := q.Run(value)
	out, ok := iter.Next()
	if !ok {
		out = nil
	}
	if errVal, ok := out.(error); ok {
		return engine.BlockResult{}, engine.NewBlockError(engine.ErrCodeValidation, "normalize_query: "+errVal.Error(), errVal)
	}
	return engine.BlockResult{StateDelta: bind(block, "normalized", out)}, nil
}
