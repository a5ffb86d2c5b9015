package graphstore

import "encoding/json"

// metadataToJSON / jsonToMetadata store the entity's dynamic metadata
// dictionary as a single string property on the graph node (§9: "Dynamic
// metadata dictionaries ... map cleanly to a single string->JSON column").
func metadataToJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func jsonToMetadata(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
