// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package typecheck

import (
	"fmt"
	"sync"

	"carvel.dev/jtt/pkg/filepos"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is one finding of a check.
type Diagnostic struct {
	Severity Severity
	Span     filepos.Span
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Severity, d.Message)
}

// Listener receives findings of a check as they are made. The host
// decides whether warnings fail a build. A listener belongs to one check.
type Listener interface {
	Warn(span filepos.Span, msg string)
	Error(span filepos.Span, msg string)
	// OnLookup is called for every variable resolved by name
	OnLookup(span filepos.Span, name string, t Type)
}

type NoopListener struct{}

var _ Listener = NoopListener{}

func (NoopListener) Warn(filepos.Span, string)           {}
func (NoopListener) Error(filepos.Span, string)          {}
func (NoopListener) OnLookup(filepos.Span, string, Type) {}

// Lookup is a recorded variable resolution.
type Lookup struct {
	Span filepos.Span
	Name string
	Type Type
}

// CollectingListener records all findings. Safe for concurrent use.
type CollectingListener struct {
	lock        sync.Mutex
	diagnostics []Diagnostic
	lookups     []Lookup
}

var _ Listener = &CollectingListener{}

func NewCollectingListener() *CollectingListener { return &CollectingListener{} }

func (l *CollectingListener) Warn(span filepos.Span, msg string) {
	l.add(Diagnostic{Severity: SeverityWarning, Span: span, Message: msg})
}

func (l *CollectingListener) Error(span filepos.Span, msg string) {
	l.add(Diagnostic{Severity: SeverityError, Span: span, Message: msg})
}

func (l *CollectingListener) add(d Diagnostic) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.diagnostics = append(l.diagnostics, d)
}

func (l *CollectingListener) OnLookup(span filepos.Span, name string, t Type) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.lookups = append(l.lookups, Lookup{Span: span, Name: name, Type: t})
}

func (l *CollectingListener) Diagnostics() []Diagnostic {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]Diagnostic(nil), l.diagnostics...)
}

func (l *CollectingListener) Errors() []Diagnostic   { return l.filter(SeverityError) }
func (l *CollectingListener) Warnings() []Diagnostic { return l.filter(SeverityWarning) }

func (l *CollectingListener) filter(severity Severity) []Diagnostic {
	var result []Diagnostic
	for _, d := range l.Diagnostics() {
		if d.Severity == severity {
			result = append(result, d)
		}
	}
	return result
}

func (l *CollectingListener) Lookups() []Lookup {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]Lookup(nil), l.lookups...)
}
