package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAMLConfig is a kong configuration loader for YAML files. Keys match flag
// names, with dashes or underscores:
//
//	api: https://orgs.example.com/api
//	session-dir: /var/lib/orgctl
//	console:
//	  listen: 127.0.0.1:8080
func YAMLConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	var resolver kong.ResolverFunc = func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if v, ok := values[key]; ok {
				return v, nil
			}
		}

		// flags of subcommands may be nested under the command name
		if parent == nil || parent.Command == nil {
			return nil, nil
		}
		var raw any = values
		for _, part := range commandPath(parent.Command) {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, nil
			}
			if raw, ok = m[part]; !ok {
				return nil, nil
			}
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, nil
		}
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if v, ok := m[key]; ok {
				return v, nil
			}
		}
		return nil, nil
	}

	return resolver, nil
}

func commandPath(node *kong.Node) []string {
	var parts []string
	for n := node; n != nil && n.Type == kong.CommandNode; n = n.Parent {
		parts = append([]string{n.Name}, parts...)
	}
	return parts
}
