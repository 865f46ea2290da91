package cache

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

type fileFormat struct {
	Version      int                    `json:"version"`
	LastFullSync *time.Time             `json:"lastFullSync,omitempty"`
	Vaults       map[string]vaultFormat `json:"vaults"`
}

type vaultFormat struct {
	SecretNames   []string `json:"secretNames"`
	SecretsSynced bool     `json:"secretsSynced"`
}

// Encode renders the cache in its persisted form. The output is
// deterministic: equal caches always encode to identical bytes.
func Encode(c *Cache) ([]byte, error) {
	ff := fileFormat{
		Version: CurrentVersion,
		Vaults:  make(map[string]vaultFormat, len(c.vaults)),
	}
	if !c.LastFullSync.IsZero() {
		t := c.LastFullSync.UTC()
		ff.LastFullSync = &t
	}
	for _, v := range c.vaults {
		ff.Vaults[v.Name] = vaultFormat{
			SecretNames:   v.SecretNames(),
			SecretsSynced: v.SecretsSynced,
		}
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted cache. Both the current object format and the
// legacy flat list of vault names are accepted.
func Decode(data []byte) (*Cache, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		return decodeLegacy(data)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("invalid cache document: %w", err)
	}

	c := New()
	c.Version = ff.Version
	if c.Version == 0 {
		c.Version = LegacyVersion
	}
	if ff.LastFullSync != nil {
		c.LastFullSync = ff.LastFullSync.UTC()
	}
	for name, vf := range ff.Vaults {
		v, err := c.UpsertVault(name)
		if err != nil {
			return nil, err
		}
		// Two spellings of one vault collapse into a single entry.
		for _, s := range vf.SecretNames {
			if !ValidName(s) {
				return nil, &InvalidNameError{Kind: "secret", Name: s}
			}
			v.secrets[SecretKey(s)] = s
		}
		v.SecretsSynced = v.SecretsSynced || vf.SecretsSynced
	}
	return c, nil
}

func decodeLegacy(data []byte) (*Cache, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("invalid legacy cache document: %w", err)
	}
	c := New()
	c.Version = LegacyVersion
	for _, n := range names {
		// Legacy releases wrote one blank entry when az returned nothing.
		if strings.TrimSpace(n) == "" {
			continue
		}
		if _, err := c.UpsertVault(n); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func validate(data []byte) error {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	if schemaErr != nil {
		return fmt.Errorf("cache schema: %w", schemaErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("cache document is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("cache document failed schema validation:\n  - %s", strings.Join(msgs, "\n  - "))
	}
	return nil
}
