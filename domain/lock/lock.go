// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package lock serialises singleton maintenance operations across the
// engine cluster by locking pre-provisioned sentinel rows.
package lock

// Purpose identifies a system-wide exclusive lock. Each purpose maps to
// its own sentinel row, so distinct purposes never contend with each
// other.
type Purpose string

const (
	// Deployment serialises process definition deployment.
	Deployment Purpose = "deployment"

	// HistoryCleanup serialises the periodic history cleanup job.
	HistoryCleanup Purpose = "historyCleanup"

	// Startup serialises engine bootstrap and schema migration.
	Startup Purpose = "startup"

	// Telemetry serialises telemetry reporting.
	Telemetry Purpose = "telemetry"

	// InstallationID serialises generation of the installation id
	// property.
	InstallationID Purpose = "installationId"
)

// sentinelNames maps each purpose to its fixed sentinel row name. The
// rows are seeded at schema install time and never deleted.
var sentinelNames = map[Purpose]string{
	Deployment:     "deployment.lock",
	HistoryCleanup: "history.cleanup.lock",
	Startup:        "startup.lock",
	Telemetry:      "telemetry.lock",
	InstallationID: "installation.id.lock",
}

// SentinelName returns the sentinel row name for the input purpose and
// false if the purpose is not known.
func (p Purpose) SentinelName() (string, bool) {
	name, ok := sentinelNames[p]
	return name, ok
}

// Purposes returns all known lock purposes.
func Purposes() []Purpose {
	return []Purpose{Deployment, HistoryCleanup, Startup, Telemetry, InstallationID}
}
