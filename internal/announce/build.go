package announce

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/tidwall/jsonc"

	"github.com/nerrad567/gray-logic-node/internal/entity"
)

// BuildOptions are the device-level values filled into component blocks.
type BuildOptions struct {
	// DeviceID prefixes generated unique_id values.
	DeviceID string

	// AvailabilityTopic is attached to components without their own
	// availability list. Empty leaves components untouched.
	AvailabilityTopic string
}

// Build merges the component block of every announced entity into the
// template's "cmps" map. The template may carry comments. Topics missing
// from a block are filled from the entity: stat_t from its outbound topic,
// cmd_t from its inbound topic. Template components with the same key are
// replaced.
func Build(template []byte, entities []*entity.Entity, opts BuildOptions) ([]byte, error) {
	doc := map[string]any{}
	if len(template) > 0 {
		if err := json.Unmarshal(jsonc.ToJSON(template), &doc); err != nil {
			return nil, fmt.Errorf("%w: template: %v", ErrMalformedPayload, err)
		}
	}

	cmps, _ := doc["cmps"].(map[string]any)
	if cmps == nil {
		cmps = map[string]any{}
	}

	for _, e := range entities {
		spec := e.Spec()
		if !e.Announced() || len(spec.Component) == 0 {
			continue
		}

		block := maps.Clone(spec.Component)
		key := spec.Name
		if k, ok := block["key"].(string); ok && k != "" {
			key = k
			delete(block, "key")
		}
		setDefault(block, "stat_t", spec.Out)
		setDefault(block, "cmd_t", spec.In)
		if opts.DeviceID != "" {
			setDefault(block, "unique_id", opts.DeviceID+"_"+key)
		}
		if opts.AvailabilityTopic != "" {
			if _, ok := block["availability"]; !ok {
				block["availability"] = []any{map[string]any{"topic": opts.AvailabilityTopic}}
			}
		}
		cmps[key] = block
	}

	doc["cmps"] = cmps
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding announcement: %w", err)
	}
	return out, nil
}

func setDefault(block map[string]any, field, value string) {
	if value == "" {
		return
	}
	if _, ok := block[field]; !ok {
		block[field] = value
	}
}
