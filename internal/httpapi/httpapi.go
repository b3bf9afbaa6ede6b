// Copyright (C) 2026 serenad contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package httpapi is the operational HTTP surface: liveness, Prometheus
// exposition, and LS-fleet introspection. It is distinct from the
// tool-call server an AI client talks to — this surface is read-only
// and only ever reports process health.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/symbolengine/serenad/internal/lsproc"
)

// NewRouter builds the operational gin.Engine: GET /healthz, GET
// /metrics, GET /v1/status. registry may be nil (no project activated
// yet); /v1/status then reports an empty fleet.
func NewRouter(registry *lsproc.ProjectRegistry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("serenad.httpapi"))

	router.GET("/healthz", healthzHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/v1/status", statusHandler(registry))

	return router
}

func healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LanguageStatus is one fleet entry in the /v1/status response.
type LanguageStatus struct {
	Language string `json:"language"`
	ID       string `json:"id"`
	State    string `json:"state"`
	IdleFor  string `json:"idleFor"`
}

// StatusResponse is the JSON body of GET /v1/status, and the data the
// status CLI command renders as a table.
type StatusResponse struct {
	ProjectRoot string           `json:"projectRoot"`
	Languages   []LanguageStatus `json:"languages"`
}

// BuildStatus assembles a StatusResponse from the active project's
// Manager snapshot, shared by the HTTP handler and the status command
// so both report identical data.
func BuildStatus(registry *lsproc.ProjectRegistry) StatusResponse {
	if registry == nil {
		return StatusResponse{Languages: []LanguageStatus{}}
	}
	manager := registry.Active()
	if manager == nil {
		return StatusResponse{Languages: []LanguageStatus{}}
	}

	snapshot := manager.Snapshot()
	languages := make([]LanguageStatus, 0, len(snapshot))
	for _, s := range snapshot {
		languages = append(languages, LanguageStatus{
			Language: s.Language,
			ID:       s.ID.String(),
			State:    s.State.String(),
			IdleFor:  time.Since(s.LastUsed).Round(time.Second).String(),
		})
	}
	return StatusResponse{ProjectRoot: registry.ActiveRoot(), Languages: languages}
}

func statusHandler(registry *lsproc.ProjectRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, BuildStatus(registry))
	}
}
