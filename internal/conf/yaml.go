package conf

import (
	"fmt"
	"io"

	"github.com/tphakala/okn-go/internal/logger"
	"gopkg.in/yaml.v3"
)

const maskedValue = "********"

// WriteYAML writes the effective settings as YAML with secrets masked.
func WriteYAML(w io.Writer, settings *Settings) error {
	data, err := marshalYAML(settings, true)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalYAML(settings *Settings, mask bool) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(settings); err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	if mask {
		maskSecrets(&node)
	}
	data, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

// maskSecrets replaces non-empty scalar values under sensitive keys and
// redacts credentials embedded in URLs.
func maskSecrets(n *yaml.Node) {
	if n.Kind == yaml.DocumentNode || n.Kind == yaml.SequenceNode {
		for _, c := range n.Content {
			maskSecrets(c)
		}
		return
	}
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if value.Kind == yaml.ScalarNode {
			switch {
			case value.Value == "":
			case logger.IsSensitiveKey(key.Value):
				value.Value = maskedValue
			case key.Value == "broker":
				value.Value = logger.RedactURL(value.Value)
			}
			continue
		}
		maskSecrets(value)
	}
}
