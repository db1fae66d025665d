package allowlist

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileDocument is the structured allowlist format shared by YAML and TOML files.
type fileDocument struct {
	Addresses []string `yaml:"addresses" toml:"addresses"`
}

// LoadFile reads an allowlist from disk. The format follows the extension:
// .yaml/.yml and .toml hold an `addresses` list, anything else is one address
// per line with `#` comments.
func LoadFile(path string) ([]common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}

	var entries []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc fileDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse allowlist yaml: %w", err)
		}
		entries = doc.Addresses
	case ".toml":
		var doc fileDocument
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse allowlist toml: %w", err)
		}
		entries = doc.Addresses
	default:
		entries = readLines(data)
	}
	return ParseAddresses(entries)
}

// ParseAddresses validates hex addresses, dropping blanks and case-insensitive
// duplicates while preserving first-seen order.
func ParseAddresses(entries []string) ([]common.Address, error) {
	seen := make(map[common.Address]struct{}, len(entries))
	out := make([]common.Address, 0, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !common.IsHexAddress(entry) {
			return nil, fmt.Errorf("allowlist entry %d: invalid address %q", i, entry)
		}
		addr := common.HexToAddress(entry)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func readLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		lines = append(lines, line)
	}
	return lines
}
