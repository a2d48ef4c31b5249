package declare

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dshills/activity-go/activity/script"
	"github.com/dshills/activity-go/activity/varmap"
)

// FilterDoc is the YAML form of a variable-mapping filter:
//
//	in: [params, model]              # key list
//	in: {current_user: user}         # renames, in document order
//	in: {method: model_input}        # builder method
//	in: {script: "return {...}", requires: [params]}
type FilterDoc struct {
	Keys     []string
	Renames  varmap.RenameMap
	Method   string
	Script   string
	Requires []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FilterDoc) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var keys []string
		if err := node.Decode(&keys); err != nil {
			return err
		}
		if len(keys) == 0 {
			return errors.New("filter key list is empty")
		}
		*f = FilterDoc{Keys: keys}
		return nil

	case yaml.ScalarNode:
		var key string
		if err := node.Decode(&key); err != nil {
			return err
		}
		*f = FilterDoc{Keys: []string{key}}
		return nil

	case yaml.MappingNode:
		if hasKey(node, "script") || hasKey(node, "method") {
			var special struct {
				Method   string   `yaml:"method"`
				Script   string   `yaml:"script"`
				Requires []string `yaml:"requires"`
			}
			if err := node.Decode(&special); err != nil {
				return err
			}
			if special.Method != "" && special.Script != "" {
				return errors.New("filter has both method and script")
			}
			*f = FilterDoc{Method: special.Method, Script: special.Script, Requires: special.Requires}
			return nil
		}

		renames := make(varmap.RenameMap, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var from, to string
			if err := node.Content[i].Decode(&from); err != nil {
				return err
			}
			if err := node.Content[i+1].Decode(&to); err != nil {
				return fmt.Errorf("rename %s: %w", from, err)
			}
			renames = append(renames, varmap.Rename{From: from, To: to})
		}
		if len(renames) == 0 {
			return errors.New("filter rename map is empty")
		}
		*f = FilterDoc{Renames: renames}
		return nil

	default:
		return fmt.Errorf("line %d: unsupported filter", node.Line)
	}
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Filter returns the varmap filter f describes. Scripts are compiled here.
func (f *FilterDoc) Filter() (varmap.Filter, error) {
	switch {
	case len(f.Keys) > 0:
		return varmap.Keys(f.Keys...), nil
	case len(f.Renames) > 0:
		return f.Renames, nil
	case f.Method != "":
		return varmap.MethodRef(f.Method), nil
	case f.Script != "":
		return script.Map(f.Script, f.Requires...)
	default:
		return nil, errors.New("empty filter")
	}
}
