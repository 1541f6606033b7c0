package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler keeps the last CPU time of each named scope and running counters for the
// sky renderer. Not safe for concurrent use; the renderer serializes access.
type Profiler struct {
	last   map[string]time.Duration
	total  map[string]time.Duration
	starts map[string]time.Time
	counts map[string]int
	order  []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		last:   make(map[string]time.Duration),
		total:  make(map[string]time.Duration),
		starts: make(map[string]time.Time),
		counts: make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	if _, ok := p.last[name]; !ok {
		p.order = append(p.order, name)
		p.last[name] = 0
	}
	p.starts[name] = time.Now()
}

func (p *Profiler) EndScope(name string) {
	start, ok := p.starts[name]
	if !ok {
		return
	}
	d := time.Since(start)
	p.last[name] = d
	p.total[name] += d
	delete(p.starts, name)
}

func (p *Profiler) Inc(name string) {
	p.counts[name]++
}

func (p *Profiler) Count(name string) int {
	return p.counts[name]
}

func (p *Profiler) Last(name string) time.Duration {
	return p.last[name]
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString("Sky timings (CPU, last / total):\n")
	for _, name := range p.order {
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms / %.2f ms\n", name,
			float64(p.last[name].Microseconds())/1000.0,
			float64(p.total[name].Microseconds())/1000.0))
	}

	sb.WriteString("\nSky stats:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.counts[k]))
	}
	return sb.String()
}
