package app

import (
	"time"

	"skeditor/internal/types"
)

type LaunchRequest struct {
	GraphPath string
	BuildDir  string
	WorldPath string
}

type LaunchResult struct {
	Report   types.LaunchReport
	Duration time.Duration
}

type GenerateRequest struct {
	Name        string
	ProgramPath string
	OutputDir   string
	GraphPath   string
	Parameters  map[string]string
}

type GenerateResult struct {
	Executable string
}

type InspectRequest struct {
	GraphPath string
}

type InspectNode struct {
	Name        string
	Slug        string
	Kind        types.NodeKind
	Controllers int
	ProgramPath string
}

type InspectResult struct {
	Nodes      []InspectNode
	Parameters []types.Parameter
	Duplicates []string
}
