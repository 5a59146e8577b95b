// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"sort"
	"sync"
	"time"

	"carvel.dev/jtt/pkg/filepos"
	"carvel.dev/jtt/pkg/vm"
	"github.com/google/uuid"
)

// RenderReport summarizes one render.
type RenderReport struct {
	ID       uuid.UUID
	Template string
	Duration time.Duration
	// MacroCalls counts calls per macro name
	MacroCalls      map[string]int
	References      []string
	ModelReferences []vm.ModelReference
}

// MacroNames lists called macros in name order.
func (r RenderReport) MacroNames() []string {
	var names []string
	for name := range r.MacroCalls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reportCollector aggregates listener notifications per render ID.
type reportCollector struct {
	lock    sync.Mutex
	reports map[uuid.UUID]*RenderReport
}

func newReportCollector() *reportCollector {
	return &reportCollector{reports: map[uuid.UUID]*RenderReport{}}
}

func (c *reportCollector) start(tplName string) (uuid.UUID, vm.Listener) {
	id := uuid.New()
	c.lock.Lock()
	defer c.lock.Unlock()
	c.reports[id] = &RenderReport{ID: id, Template: tplName, MacroCalls: map[string]int{}}
	return id, &reportListener{id: id, collector: c}
}

// finish removes the report of id from the collector and returns it.
func (c *reportCollector) finish(id uuid.UUID, duration time.Duration) RenderReport {
	c.lock.Lock()
	defer c.lock.Unlock()
	report := c.reports[id]
	delete(c.reports, id)
	report.Duration = duration
	return *report
}

// InFlight returns the number of renders currently running.
func (c *reportCollector) InFlight() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.reports)
}

func (c *reportCollector) update(id uuid.UUID, fn func(*RenderReport)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if report, found := c.reports[id]; found {
		fn(report)
	}
}

type reportListener struct {
	id        uuid.UUID
	collector *reportCollector
}

var _ vm.Listener = &reportListener{}

func (l *reportListener) OnReference(name string) {
	l.collector.update(l.id, func(r *RenderReport) { r.References = append(r.References, name) })
}

func (l *reportListener) OnDefinition(string) {}

func (l *reportListener) OnMacroStart(name string, _ filepos.Span) {
	l.collector.update(l.id, func(r *RenderReport) { r.MacroCalls[name]++ })
}

func (l *reportListener) OnMacroStop(string) {}

func (l *reportListener) OnModelReference(kind string, args []string, span filepos.Span) {
	l.collector.update(l.id, func(r *RenderReport) {
		r.ModelReferences = append(r.ModelReferences, vm.ModelReference{Kind: kind, Args: args, Span: span})
	})
}
