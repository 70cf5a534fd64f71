// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package store manages the on-disk template store: one directory per
// template holding a master metadata file, uploaded and replaced as tar
// archives.
package store

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Metadata is the parsed master file of one template.
type Metadata struct {
	ID                  string    `yaml:"id" json:"id"`
	Name                string    `yaml:"name" json:"name"`
	Version             string    `yaml:"version" json:"version"`
	Author              string    `yaml:"author" json:"author"`
	Description         string    `yaml:"description" json:"description"`
	MandatoryParameters []string  `yaml:"mandatory_parameters" json:"mandatory_parameters"`
	OptionalParameters  []string  `yaml:"optional_parameters" json:"optional_parameters"`
	Products            []Product `yaml:"products" json:"products"`
}

// Product is one application family a template can deploy, with the
// parameters that family contributes.
type Product struct {
	Type       string   `yaml:"type" json:"type"`
	Parameters []string `yaml:"parameters" json:"parameters"`
}

// ParseMetadata reads and validates a master template file.
func ParseMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading master template file")
	}
	var meta Metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, errors.Wrap(err, "parsing master template file")
	}
	if meta.ID == "" {
		return nil, errors.Errorf("master template file %s has no id", path)
	}
	return &meta, nil
}

// KeyValue is the key/value-pair view used by list-style API responses.
// Keys are 1-based positions.
type KeyValue struct {
	Key   int         `json:"key"`
	Value interface{} `json:"value"`
}

// ListToMap numbers a list from 1.
func ListToMap(items []string) map[int]string {
	out := make(map[int]string, len(items))
	for i, item := range items {
		out[i+1] = item
	}
	return out
}

// ListToKVP renders a list as ordered key/value pairs numbered from 1.
func ListToKVP(items []string) []KeyValue {
	out := make([]KeyValue, 0, len(items))
	for i, item := range items {
		out = append(out, KeyValue{Key: i + 1, Value: item})
	}
	return out
}

// Application instance types accepted from deployment requests.
const (
	AppTypeCMDuplex = "CM_DUPLEX"
	AppTypeCMESS    = "CM_ESS"
	AppTypeWDC      = "WDC"
)

// Template variables the product families map to.
const (
	ProductVariableCM  = "product_cm"
	ProductVariableWin = "product_win"
)

// ProductTypesToTemplateVariables maps requested application instance
// types to the template variables that enable them. Duplicates collapse.
func ProductTypesToTemplateVariables(productTypes []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, pt := range productTypes {
		var v string
		switch pt {
		case AppTypeCMDuplex, AppTypeCMESS:
			v = ProductVariableCM
		case AppTypeWDC:
			v = ProductVariableWin
		default:
			continue
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
