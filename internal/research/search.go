package research

import (
	"context"
	"encoding/json"
)

// Selection is a tool call proposed by the model: the raw query text, the
// tool name it picked and the parameter bag it filled in. Any part of it may
// be garbage; the dispatcher is responsible for turning garbage into
// something executable.
type Selection struct {
	Query     string
	Tool      string
	Reasoning string
	Params    map[string]any
}

// UnmarshalJSON decodes the flat object the model emits: search_query,
// search_tool and reasoning are fixed keys, every other key is a tool
// parameter.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Selection{Params: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "search_query":
			s.Query, _ = v.(string)
		case "search_tool":
			s.Tool, _ = v.(string)
		case "reasoning":
			s.Reasoning, _ = v.(string)
		default:
			s.Params[k] = v
		}
	}
	return nil
}

// Response is the envelope every dispatch returns. Fallback means the
// original selection was unusable and the default tool ran instead.
type Response struct {
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params,omitempty"`
	Items    []SearchItem   `json:"items,omitempty"`
	Stats    map[string]any `json:"stats,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
	Err      string         `json:"error,omitempty"`
}

// Dispatcher resolves and executes model tool selections. Implementations
// must degrade rather than fail: an unusable selection or an exhausted
// backend is reported inside the Response, never as a panic or a lost step.
type Dispatcher interface {
	Dispatch(ctx context.Context, sel Selection) Response
}
