package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dshills/gustavo-mcp/pkg/types"
)

// Supported catalog formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Intent is a labeled category of user meaning with example phrases and canned responses
type Intent struct {
	Tag       string   `json:"tag" yaml:"tag" validate:"required"`
	Patterns  []string `json:"patterns" yaml:"patterns" validate:"dive,required"`
	Responses []string `json:"responses" yaml:"responses" validate:"required,min=1,dive,required"`
}

// Catalog is the full intent document, loaded once at startup
type Catalog struct {
	Intents []Intent `json:"intents" yaml:"intents" validate:"required,min=1,dive"`
}

// Example is a single (tag, pattern) pair in catalog order
type Example struct {
	Tag  string
	Text string
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Load reads and validates a catalog file. The format is chosen by extension.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	format, err := formatFromPath(path)
	if err != nil {
		return nil, err
	}

	return Parse(data, format)
}

// Parse decodes and validates a catalog document
func Parse(data []byte, format string) (*Catalog, error) {
	var c Catalog

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&c); err != nil {
			return nil, types.ConfigurationErrorf("malformed catalog: %v", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, types.ConfigurationErrorf("malformed catalog: %v", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks structural rules and tag uniqueness
func (c *Catalog) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return types.ConfigurationErrorf("invalid catalog: %v", err)
	}

	seen := make(map[string]struct{}, len(c.Intents))
	for i, intent := range c.Intents {
		if _, dup := seen[intent.Tag]; dup {
			return types.ConfigurationErrorf("duplicate tag %q at intent %d", intent.Tag, i)
		}
		seen[intent.Tag] = struct{}{}

		for j, p := range intent.Patterns {
			if strings.TrimSpace(p) == "" {
				return types.ConfigurationErrorf("intent %q: pattern %d is blank", intent.Tag, j)
			}
		}
	}
	return nil
}

// Examples flattens every (tag, pattern) pair in catalog order
func (c *Catalog) Examples() []Example {
	examples := make([]Example, 0, c.PatternCount())
	for _, intent := range c.Intents {
		for _, p := range intent.Patterns {
			examples = append(examples, Example{Tag: intent.Tag, Text: p})
		}
	}
	return examples
}

// PatternCount returns the total number of example phrases
func (c *Catalog) PatternCount() int {
	n := 0
	for _, intent := range c.Intents {
		n += len(intent.Patterns)
	}
	return n
}

// Responses builds the tag -> responses lookup table
func (c *Catalog) Responses() ResponseTable {
	table := make(ResponseTable, len(c.Intents))
	for _, intent := range c.Intents {
		responses := make([]string, len(intent.Responses))
		copy(responses, intent.Responses)
		table[intent.Tag] = responses
	}
	return table
}

// Fingerprint hashes the tags and patterns in order. Responses are excluded since
// they do not affect the vector index.
func (c *Catalog) Fingerprint() [32]byte {
	h := sha256.New()
	var lenBuf [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	for _, intent := range c.Intents {
		write(intent.Tag)
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(intent.Patterns)))
		h.Write(lenBuf[:])
		for _, p := range intent.Patterns {
			write(p)
		}
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func formatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
