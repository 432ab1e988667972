// Package services implements the driving ports: asking, ingestion,
// management and settings. Services orchestrate the driven ports.
package services
