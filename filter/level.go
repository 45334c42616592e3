// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package filter

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// A Level is the verbosity of an event or span.
// The higher the level, the more verbose and the less important the event.
//
// A directive with threshold T enables every level l with l <= T, so
// OffLevel as a threshold enables nothing and TraceLevel enables everything.
type Level int

// Names for the levels understood by directives.
const (
	OffLevel Level = iota
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

var levelNames = [...]string{
	OffLevel:   "OFF",
	ErrorLevel: "ERROR",
	WarnLevel:  "WARN",
	InfoLevel:  "INFO",
	DebugLevel: "DEBUG",
	TraceLevel: "TRACE",
}

// String returns the upper case name of the level.
// Levels outside the named range are reported as "LEVEL(n)".
func (l Level) String() string {
	if l < OffLevel || l > TraceLevel {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// Enables reports whether a threshold of l lets an event at level e through.
func (l Level) Enables(e Level) bool {
	return e != OffLevel && e <= l
}

// ParseLevel returns the level named by s, ignoring case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return OffLevel, nil
	case "error":
		return ErrorLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "trace":
		return TraceLevel, nil
	}
	return OffLevel, xerrors.Errorf("unknown level %q: %w", s, ErrSyntax)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
