// Package compose adapts the docker compose CLI to the engine.
//
// Runner implements engine.Orchestrator (up -d / down) and
// engine.StatusReporter (ps --all --format json). Every call targets the
// stack's compose file with the stack name as the compose project name.
// Process execution goes through CommandRunner so tests can replace it.
//
// LoadProject and Services parse a stack's compose definition with
// compose-go to list the services it declares.
package compose
