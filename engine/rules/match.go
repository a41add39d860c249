package rules

import "github.com/nathoo/rulecore/engine/entity"

// Subjects lists the names a condition or op may use to pick an entity.
var Subjects = map[string]bool{
	"owner":  true,
	"source": true,
	"medium": true,
	"target": true,
}

// subject resolves the "of" param of a condition: which entity it inspects.
// The trigger's owner is the default.
func subject(params map[string]any, env Env) *entity.Entity {
	name, _ := params["of"].(string)
	return pick(name, "owner", env)
}

// pick maps a subject name to an entity, using def when name is empty.
func pick(name, def string, env Env) *entity.Entity {
	if name == "" {
		name = def
	}
	switch name {
	case "owner":
		return env.Owner
	}
	if env.Action == nil {
		return nil
	}
	switch name {
	case "source":
		return env.Action.Source
	case "medium":
		return env.Action.Medium
	case "target":
		return env.Action.Target
	default:
		return nil
	}
}
