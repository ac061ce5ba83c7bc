package agent

import "encoding/json"

// toolResult renders fields as the JSON dict every tool returns, injecting
// the mandatory "status" key the LLM is instructed to check first.
func toolResult(status string, fields map[string]any) string {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = status
	raw, err := json.Marshal(out)
	if err != nil {
		return `{"status":"error","error_message":"failed to encode tool result"}`
	}
	return string(raw)
}

func ok(fields map[string]any) string {
	return toolResult("success", fields)
}

func fail(message string) string {
	return toolResult("error", map[string]any{"error_message": message})
}

func decodeArgs(argsJSON string, out any) error {
	if argsJSON == "" {
		argsJSON = "{}"
	}
	return json.Unmarshal([]byte(argsJSON), out)
}
