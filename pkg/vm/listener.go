// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package vm

import (
	"sync"

	"carvel.dev/jtt/pkg/filepos"
)

// Listener observes a render. Calls happen on the rendering goroutine.
type Listener interface {
	// OnReference is called for every function or macro called by name
	OnReference(name string)
	// OnDefinition is called when a macro is defined
	OnDefinition(name string)
	OnMacroStart(name string, span filepos.Span)
	OnMacroStop(name string)
	// OnModelReference receives ref()/source() calls with constant arguments
	OnModelReference(kind string, args []string, span filepos.Span)
}

type NoopListener struct{}

var _ Listener = NoopListener{}

func (NoopListener) OnReference(string)                             {}
func (NoopListener) OnDefinition(string)                            {}
func (NoopListener) OnMacroStart(string, filepos.Span)              {}
func (NoopListener) OnMacroStop(string)                             {}
func (NoopListener) OnModelReference(string, []string, filepos.Span) {}

// ModelReference is a recorded ref()/source() call.
type ModelReference struct {
	Kind string
	Args []string
	Span filepos.Span
}

// RecordingListener collects notifications. Safe for concurrent use.
type RecordingListener struct {
	lock        sync.Mutex
	references  []string
	definitions []string
	macroCalls  map[string]int
	models      []ModelReference
}

var _ Listener = &RecordingListener{}

func NewRecordingListener() *RecordingListener {
	return &RecordingListener{macroCalls: map[string]int{}}
}

func (l *RecordingListener) OnReference(name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.references = append(l.references, name)
}

func (l *RecordingListener) OnDefinition(name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.definitions = append(l.definitions, name)
}

func (l *RecordingListener) OnMacroStart(name string, _ filepos.Span) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.macroCalls[name]++
}

func (l *RecordingListener) OnMacroStop(string) {}

func (l *RecordingListener) OnModelReference(kind string, args []string, span filepos.Span) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.models = append(l.models, ModelReference{Kind: kind, Args: args, Span: span})
}

func (l *RecordingListener) References() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.references...)
}

func (l *RecordingListener) Definitions() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.definitions...)
}

func (l *RecordingListener) MacroCalls(name string) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.macroCalls[name]
}

func (l *RecordingListener) ModelReferences() []ModelReference {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]ModelReference(nil), l.models...)
}
