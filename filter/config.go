// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filter

import (
	"io/ioutil"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the YAML form of a Spec.
//
//	level: warn
//	filter: "myapp/db=debug"
//	directives:
//	  - target: myapp/http
//	    level: trace
//	  - span: request
//	    level: debug
//
// The items of Filter are applied before Directives. A non-empty Level
// overrides any default set in Filter.
type Config struct {
	Level      string            `yaml:"level"`
	Filter     string            `yaml:"filter"`
	Directives []DirectiveConfig `yaml:"directives"`
}

// DirectiveConfig is the YAML form of a Directive.
type DirectiveConfig struct {
	Target string `yaml:"target"`
	Span   string `yaml:"span"`
	Level  string `yaml:"level"`
}

// Spec builds the Spec described by c.
func (c Config) Spec() (*Spec, error) {
	base, err := Parse(c.Filter)
	if err != nil {
		return nil, err
	}
	def := base.Default()
	if c.Level != "" {
		if def, err = ParseLevel(c.Level); err != nil {
			return nil, xerrors.Errorf("level: %w", err)
		}
	}
	// Directives() lists the highest priority first; reverse so New sees
	// them in their original order.
	parsed := base.Directives()
	ds := make([]Directive, 0, len(parsed)+len(c.Directives))
	for i := len(parsed) - 1; i >= 0; i-- {
		ds = append(ds, parsed[i])
	}
	for i, dc := range c.Directives {
		l := TraceLevel
		if dc.Level != "" {
			if l, err = ParseLevel(dc.Level); err != nil {
				return nil, xerrors.Errorf("directives[%d]: %w", i, err)
			}
		}
		if dc.Target == "" && dc.Span == "" {
			return nil, xerrors.Errorf("directives[%d]: missing target: %w", i, ErrSyntax)
		}
		ds = append(ds, Directive{Target: dc.Target, Span: dc.Span, Level: l})
	}
	return New(def, ds...), nil
}

// LoadConfig parses a YAML document into a Spec.
func LoadConfig(data []byte) (*Spec, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, xerrors.Errorf("decoding filter config: %w", err)
	}
	return c.Spec()
}

// LoadFile reads and parses the YAML filter config at path.
func LoadFile(path string) (*Spec, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	spec, err := LoadConfig(data)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}
	return spec, nil
}
