// Package plantscope resolves which plants an admin identity may see. Certain
// organizational units share one admin role in practice, so a plant can be
// configured to cover others; the grouping lives in a JSON document validated
// at load time rather than in string comparisons scattered through handlers.
package plantscope

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

//go:embed groups.json
var defaultGroupsJSON []byte

type document struct {
	Groups map[string][]string `json:"groups"`
}

// Resolver answers "which plants may this scope access".
type Resolver struct {
	groups map[string][]string
}

// Default builds a Resolver from the embedded grouping shipped with the binary
// (Seamsless Division also covers Wire Plant).
func Default() *Resolver {
	r, err := Parse(defaultGroupsJSON)
	if err != nil {
		// The embedded document is validated by tests; reaching this is a build defect.
		panic(fmt.Sprintf("plantscope: embedded groups invalid: %v", err))
	}
	return r
}

// Load reads a grouping document from disk, falling back to the embedded
// default when path is empty.
func Load(path string) (*Resolver, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plant groups: %w", err)
	}
	return Parse(raw)
}

// Parse validates the raw document against the embedded JSON Schema and builds
// a Resolver from it.
func Parse(raw []byte) (*Resolver, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("memory://plantscope/schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("register plant groups schema: %w", err)
	}
	compiled, err := compiler.Compile("memory://plantscope/schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile plant groups schema: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode plant groups: %w", err)
	}
	if err := compiled.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate plant groups: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode plant groups: %w", err)
	}

	groups := make(map[string][]string, len(doc.Groups))
	for plant, aliases := range doc.Groups {
		groups[plant] = append([]string(nil), aliases...)
	}

	return &Resolver{groups: groups}, nil
}

// Resolve returns the set of plant names the given scope may access: the plant
// itself plus any configured aliases, sorted for deterministic queries.
func (r *Resolver) Resolve(plant string) []string {
	seen := map[string]struct{}{plant: {}}
	for _, alias := range r.groups[plant] {
		seen[alias] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether an identity scoped to scopePlant may act on a row
// tagged with targetPlant.
func (r *Resolver) Allows(scopePlant, targetPlant string) bool {
	if scopePlant == targetPlant {
		return true
	}
	for _, alias := range r.groups[scopePlant] {
		if alias == targetPlant {
			return true
		}
	}
	return false
}
