//go:generate gomarkdoc -e -f github -o README.md . --repository.url https://github.com/agentstation/collection --repository.default-branch master --repository.path /

// Package collection builds the resource collection: it fetches items from
// the primary registry and the partner feeds, keeps moderation decisions
// sticky across runs, and writes the export, the next index and the
// per-item record store.
package collection
