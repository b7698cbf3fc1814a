package sources

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pushchain/validator-trust/trustClient/errors"
	"github.com/pushchain/validator-trust/trustClient/validators"
)

type format int

const (
	formatJSON format = iota
	formatYAML
	formatText
)

// document is the envelope accepted by file and URL sources. A bare list of
// records is accepted as well.
type document struct {
	Validators []validators.Record `json:"validators" yaml:"validators"`
	Message    string              `json:"message" yaml:"message"`
	Expiration time.Time           `json:"expiration" yaml:"expiration"`
}

func formatFromPath(path string) format {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return formatYAML
	case strings.HasSuffix(path, ".txt"):
		return formatText
	default:
		return formatJSON
	}
}

func formatFromContentType(contentType string) format {
	switch {
	case strings.Contains(contentType, "yaml"):
		return formatYAML
	case strings.HasPrefix(contentType, "text/plain"):
		return formatText
	default:
		return formatJSON
	}
}

func decode(source string, data []byte, f format, capacity int) (*Result, error) {
	switch f {
	case formatYAML:
		return decodeYAML(source, data)
	case formatText:
		return decodeText(source, data, capacity)
	default:
		return decodeJSON(source, data)
	}
}

func decodeJSON(source string, data []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []validators.Record
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, errors.NewParseError(source, "failed to decode json list", err)
		}
		return &Result{List: list}, nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, errors.NewParseError(source, "failed to decode json document", err)
	}
	return doc.result(), nil
}

func decodeYAML(source string, data []byte) (*Result, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, errors.NewParseError(source, "failed to decode yaml", err)
	}
	if len(node.Content) == 0 {
		return &Result{}, nil
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var list []validators.Record
		if err := node.Content[0].Decode(&list); err != nil {
			return nil, errors.NewParseError(source, "failed to decode yaml list", err)
		}
		return &Result{List: list}, nil
	}

	var doc document
	if err := node.Content[0].Decode(&doc); err != nil {
		return nil, errors.NewParseError(source, "failed to decode yaml document", err)
	}
	return doc.result(), nil
}

// decodeText reads one "<key> [label...]" per line. Blank lines and lines
// starting with # are skipped.
func decodeText(source string, data []byte, capacity int) (*Result, error) {
	list := make([]validators.Record, 0, capacity)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		keyStr, label, _ := strings.Cut(text, " ")
		key, err := validators.ParsePublicKey(keyStr)
		if err != nil {
			return nil, errors.NewParseError(source, "invalid key", err).WithContext("line", line)
		}
		list = append(list, validators.Record{PublicKey: key, Label: strings.TrimSpace(label)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewParseError(source, "failed to read list", err)
	}
	return &Result{List: list}, nil
}

func (d document) result() *Result {
	return &Result{List: d.Validators, Message: d.Message, Expiration: d.Expiration}
}
