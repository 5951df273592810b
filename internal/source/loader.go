// Package source loads per-domain declarative YAML files and flattens them
// into the desired-state record set.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/yk-dns-sync/internal/model"
)

// recordDoc is the YAML shape of a single record entry inside a group.
type recordDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Value    string `yaml:"value"`
	TTL      *int   `yaml:"ttl"`
	Proxied  *bool  `yaml:"proxied"`
	Priority *int   `yaml:"priority"`
}

// Load discovers all *.yaml and *.yml files directly under dir and parses
// each into one or more Zones. Declaration order of record groups and of
// records within a group is preserved. Returns DuplicateZoneError if two
// files declare the same zone name.
func Load(dir string) ([]model.Zone, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("scanning source directory %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no zone files found in %s", dir)
	}
	sort.Strings(files)

	declaredIn := make(map[string]string)
	var zones []model.Zone
	for _, path := range files {
		fileZones, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for _, z := range fileZones {
			if first, ok := declaredIn[z.Name]; ok {
				return nil, &DuplicateZoneError{Zone: z.Name, Path: path, FirstPath: first}
			}
			declaredIn[z.Name] = path
			zones = append(zones, z)
		}
	}
	return zones, nil
}

// loadFile parses one declarative file. The top-level key is the zone name;
// the optional "records" key maps friendly names to sequences of records.
// Parsing walks the yaml node tree rather than unmarshalling into maps so
// that declaration order survives and duplicate friendly names are visible
// to validation downstream.
func loadFile(path string) ([]model.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading zone file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if len(doc.Content) == 0 {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("no zone declared")}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("top level must be a mapping of zone name to zone body")}
	}

	var zones []model.Zone
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, bodyNode := root.Content[i], root.Content[i+1]
		zoneName := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(keyNode.Value), "."))
		if zoneName == "" {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("line %d: empty zone name", keyNode.Line)}
		}
		zone := model.Zone{Name: zoneName, File: path}

		// A bare "example.com:" with no body is a legal zone-only declaration.
		if bodyNode.Kind == yaml.MappingNode {
			groups, err := parseZoneBody(path, zoneName, bodyNode)
			if err != nil {
				return nil, err
			}
			zone.Groups = groups
		} else if !isNull(bodyNode) {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("line %d: zone %q body must be a mapping", bodyNode.Line, zoneName)}
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

func parseZoneBody(path, zoneName string, body *yaml.Node) ([]model.RecordGroup, error) {
	var groups []model.RecordGroup
	for i := 0; i+1 < len(body.Content); i += 2 {
		keyNode, valNode := body.Content[i], body.Content[i+1]
		if keyNode.Value != "records" {
			continue
		}
		if isNull(valNode) {
			continue
		}
		if valNode.Kind != yaml.MappingNode {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("line %d: zone %q: records must be a mapping", valNode.Line, zoneName)}
		}
		for j := 0; j+1 < len(valNode.Content); j += 2 {
			nameNode, seqNode := valNode.Content[j], valNode.Content[j+1]
			group, err := parseGroup(path, zoneName, nameNode.Value, seqNode)
			if err != nil {
				return nil, err
			}
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func parseGroup(path, zoneName, friendlyName string, seq *yaml.Node) (model.RecordGroup, error) {
	group := model.RecordGroup{Name: friendlyName}
	if seq.Kind != yaml.SequenceNode {
		return group, &ParseError{Path: path, Err: fmt.Errorf("line %d: zone %q, record group %q: expected a sequence of records", seq.Line, zoneName, friendlyName)}
	}
	for _, item := range seq.Content {
		var rd recordDoc
		if err := item.Decode(&rd); err != nil {
			return group, &ParseError{Path: path, Err: fmt.Errorf("zone %q, record group %q: %w", zoneName, friendlyName, err)}
		}
		group.Records = append(group.Records, model.RecordSpec{
			Name:     rd.Name,
			Type:     rd.Type,
			Value:    rd.Value,
			TTL:      rd.TTL,
			Proxied:  rd.Proxied,
			Priority: rd.Priority,
		})
	}
	return group, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == 0 || n.Tag == "!!null"
}
