// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filter

import (
	"strings"

	"golang.org/x/xerrors"
)

// ErrSyntax is wrapped by every error returned for a malformed directive.
var ErrSyntax = xerrors.New("invalid filter directive")

// Parse parses a comma separated list of directives.
//
// Each item is one of
//
//	level                 the default level
//	target                every level for target
//	target=level
//	target[span]=level    level for target while inside span
//	[span]=level          level for every target while inside span
//
// White space around items is ignored. The default level is ErrorLevel unless
// a bare level item sets it; the last such item wins.
func Parse(s string) (*Spec, error) {
	def := ErrorLevel
	var ds []Directive
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		d, isDefault, err := parseItem(item)
		if err != nil {
			return nil, xerrors.Errorf("parsing %q: %w", item, err)
		}
		if isDefault {
			def = d.Level
			continue
		}
		ds = append(ds, d)
	}
	return New(def, ds...), nil
}

// MustParse is like Parse but panics if s is malformed.
func MustParse(s string) *Spec {
	spec, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return spec
}

func parseItem(item string) (d Directive, isDefault bool, err error) {
	lhs, rhs, hasLevel := strings.Cut(item, "=")
	if !hasLevel {
		if l, err := ParseLevel(item); err == nil {
			return Directive{Level: l}, true, nil
		}
		// A bare target enables everything for it.
		d.Level = TraceLevel
	} else {
		if d.Level, err = ParseLevel(rhs); err != nil {
			return d, false, err
		}
	}
	lhs = strings.TrimSpace(lhs)
	if open := strings.IndexByte(lhs, '['); open >= 0 {
		if !strings.HasSuffix(lhs, "]") {
			return d, false, xerrors.Errorf("unterminated span name: %w", ErrSyntax)
		}
		d.Span = strings.TrimSpace(lhs[open+1 : len(lhs)-1])
		if d.Span == "" || strings.ContainsAny(d.Span, "[]") {
			return d, false, xerrors.Errorf("bad span name: %w", ErrSyntax)
		}
		lhs = strings.TrimSpace(lhs[:open])
	}
	if strings.ContainsAny(lhs, "[]= \t") {
		return d, false, xerrors.Errorf("bad target %q: %w", lhs, ErrSyntax)
	}
	if lhs == "" && d.Span == "" {
		return d, false, xerrors.Errorf("missing target: %w", ErrSyntax)
	}
	d.Target = lhs
	return d, false, nil
}
