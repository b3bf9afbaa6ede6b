// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dispatch is the named-tool registry and invocation surface
// (C8) that sits between an AI client and the symbol retrieval/edit
// engines: each tool declares a JSON-schema-shaped input, validated with
// struct tags before it runs, and is invoked under a per-tool timeout
// and an optional shared rate limit.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultTimeout is applied to a tool that doesn't declare its own.
const DefaultTimeout = 240 * time.Second

// MaxResultTextLen bounds a successful tool's Text before it reaches the
// caller, so one overbroad findSymbol/getSymbolsOverview call can't blow
// out an AI client's context window.
const MaxResultTextLen = 30000

const truncatedSuffix = "\n... [output truncated]"

func truncate(text string) string {
	if len(text) <= MaxResultTextLen {
		return text
	}
	return text[:MaxResultTextLen] + truncatedSuffix
}

// ErrorKind names the taxonomy of dispatch-time failures (§7), distinct
// from a tool's own reported failure text.
type ErrorKind string

const (
	ErrorKindUnknownTool   ErrorKind = "unknown_tool"
	ErrorKindInvalidInput  ErrorKind = "invalid_input"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindRateLimited   ErrorKind = "rate_limited"
	ErrorKindToolFailed    ErrorKind = "tool_failed"
)

// Result is a tool invocation's outcome: exactly one of Text (success)
// or Kind+Message (failure) is populated.
type Result struct {
	OK      bool      `json:"ok"`
	Text    string    `json:"text,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

func ok(text string) Result                    { return Result{OK: true, Text: text} }
func fail(kind ErrorKind, msg string) Result    { return Result{OK: false, Kind: kind, Message: msg} }
func failErr(kind ErrorKind, err error) Result  { return fail(kind, err.Error()) }

// Schema is a minimal JSON Schema subset: an object with named typed
// properties and a required list, sufficient to describe this surface's
// flat tool inputs.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

type SchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Items       *struct {
		Type string `json:"type"`
	} `json:"items,omitempty"`
}

// Handler executes one tool invocation. input is the already-decoded and
// validated argument struct registered alongside the tool.
type Handler func(ctx context.Context, input any) (string, error)

// Tool is one named entry in the registry.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	// NewInput returns a fresh zero-valued pointer to the tool's input
	// struct, which json.Unmarshal and validator both operate on.
	NewInput func() any
	Handler  Handler
	Timeout  time.Duration
}

// Registry is the set of tools a Dispatcher can invoke by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	tracer = otel.Tracer("serenad.dispatch")
	meter  = otel.Meter("serenad.dispatch")

	invocationsOnce sync.Once
	invocationTotal metric.Int64Counter
)

func initInvocationMetric() {
	invocationsOnce.Do(func() {
		invocationTotal, _ = meter.Int64Counter(
			"serenad.dispatch.invocation.total",
			metric.WithDescription("Tool dispatch invocations by tool and outcome"),
		)
	})
}

// Dispatcher validates input, enforces the rate limit and per-tool
// timeout, and invokes the matching Handler.
type Dispatcher struct {
	registry  *Registry
	validate  *validator.Validate
	limiter   *rate.Limiter
}

// DispatcherOption configures optional Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithRateLimiter bounds invocation throughput with a token-bucket
// limiter; a tool invoked while the bucket is empty waits for a token or
// the tool's own timeout, whichever comes first.
func WithRateLimiter(l *rate.Limiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry, validate: validator.New(validator.WithRequiredStructEnabled())}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke decodes params into the named tool's input type, validates it,
// waits for a rate-limit token, then runs the handler under the tool's
// timeout (DefaultTimeout if unset).
func (d *Dispatcher) Invoke(ctx context.Context, name string, params json.RawMessage) Result {
	initInvocationMetric()
	if ctx == nil {
		return fail(ErrorKindInvalidInput, "ctx must not be nil")
	}

	tool, found := d.registry.Get(name)
	if !found {
		d.recordOutcome(ctx, name, ErrorKindUnknownTool)
		return fail(ErrorKindUnknownTool, fmt.Sprintf("unknown tool: %s", name))
	}

	ctx, span := tracer.Start(ctx, "dispatch."+name)
	defer span.End()

	input := tool.NewInput()
	if len(params) > 0 {
		if err := json.Unmarshal(params, input); err != nil {
			d.recordOutcome(ctx, name, ErrorKindInvalidInput)
			return failErr(ErrorKindInvalidInput, fmt.Errorf("decoding params: %w", err))
		}
	}
	if err := d.validate.StructCtx(ctx, input); err != nil {
		d.recordOutcome(ctx, name, ErrorKindInvalidInput)
		return failErr(ErrorKindInvalidInput, err)
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(execCtx); err != nil {
			d.recordOutcome(ctx, name, ErrorKindRateLimited)
			return fail(ErrorKindRateLimited, "rate limit wait exceeded tool timeout")
		}
	}

	text, err := tool.Handler(execCtx, input)
	if err != nil {
		if execCtx.Err() != nil {
			d.recordOutcome(ctx, name, ErrorKindTimeout)
			return fail(ErrorKindTimeout, "tool execution timed out")
		}
		d.recordOutcome(ctx, name, ErrorKindToolFailed)
		return failErr(ErrorKindToolFailed, err)
	}
	d.recordOutcome(ctx, name, "")
	return ok(truncate(text))
}

func (d *Dispatcher) recordOutcome(ctx context.Context, name string, kind ErrorKind) {
	if invocationTotal == nil {
		return
	}
	invocationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.Bool("success", kind == ""),
		attribute.String("error_kind", string(kind)),
	))
}

func (d *Dispatcher) Registry() *Registry { return d.registry }
