package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/ledgerkit/internal/log"
)

// SaveSection replaces one top-level key of the config file with value,
// keeping comments and formatting of every other section. The file is
// created when missing.
func SaveSection(configPath, key string, value any) error {
	doc, err := readDocument(configPath)
	if err != nil {
		return err
	}

	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	setKey(doc, key, &node)

	if err := writeDocument(configPath, doc); err != nil {
		return err
	}
	log.Debug(log.CatConfig, "saved config section", "path", configPath, "key", key)
	return nil
}

// Save writes every section of cfg to configPath, keeping comments on the
// keys that already exist.
func Save(configPath string, cfg Config) error {
	doc, err := readDocument(configPath)
	if err != nil {
		return err
	}

	var full yaml.Node
	if err := full.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	for i := 0; i+1 < len(full.Content); i += 2 {
		setKey(doc, full.Content[i].Value, full.Content[i+1])
	}

	if err := writeDocument(configPath, doc); err != nil {
		return err
	}
	log.Info(log.CatConfig, "saved config", "path", configPath)
	return nil
}

func readDocument(configPath string) (*yaml.Node, error) {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path is the configured config file
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	doc := &yaml.Node{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing config: top level is not a mapping")
	}
	return doc, nil
}

// setKey replaces the value of key in the root mapping of doc, or appends it.
// Comments attached to the old value move to the new one.
func setKey(doc *yaml.Node, key string, value *yaml.Node) {
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			old := root.Content[i+1]
			value.LineComment = old.LineComment
			value.FootComment = old.FootComment
			root.Content[i+1] = value
			return
		}
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

// writeDocument encodes doc and replaces configPath atomically.
func writeDocument(configPath string, doc *yaml.Node) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".ledgerkit.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
