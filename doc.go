// Package foundry is a long-running execution-container host for versioned
// artifact bundles.
//
// # Overview
//
// Foundry loads bundles identified by group/artifact/version coordinates
// into containers, fans their lifecycle out to pluggable capability
// extensions, keeps them synchronized with a remote controller and with
// durable local state, and supports live upgrade and background version
// scanning.
//
// The host consists of three main parts:
//   - Host Engine: container lifecycle orchestration and the public operations
//   - Controller Client: handshake and background reconnect to the control plane
//   - State Store: whole-document persistence keyed by server id (file or bbolt)
//
// # Architecture
//
//	┌─────────────────┐       ┌─────────────────┐
//	│  Host Engine    │◄──────┤   Controller    │
//	│  (lifecycle)    │       │  (control plane)│
//	└────────┬────────┘       └─────────────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│   Extensions    │       │  Scanner        │
//	│  (capabilities) │       │  (per container)│
//	└────────┬────────┘       └─────────────────┘
//	         │
//	┌────────▼────────┐
//	│  State Store    │
//	│  (file / bbolt) │
//	└─────────────────┘
//
// # Getting Started
//
//	foundry server --controller http://controller:8080 --state-path ./state
//
// See internal/engine for the lifecycle semantics and internal/extension for
// the capability extension contract.
package foundry
