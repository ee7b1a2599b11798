// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a graph mutation.
type AuditAction string

const (
	AuditRegister        AuditAction = "register"
	AuditUpdate          AuditAction = "update"
	AuditDeprecate       AuditAction = "deprecate"
	AuditMerge           AuditAction = "merge"
	AuditAddMechanism    AuditAction = "add_mechanism"
	AuditRetireMechanism AuditAction = "retire_mechanism"
	AuditRestore         AuditAction = "restore"
)

// AuditEntry is an immutable record of one successful mutation. Seq is
// assigned by the history store when the entry is appended.
type AuditEntry struct {
	ID      uuid.UUID   `json:"id" yaml:"id"`
	Seq     uint64      `json:"seq" yaml:"seq"`
	At      time.Time   `json:"at" yaml:"at"`
	Action  AuditAction `json:"action" yaml:"action"`
	Subject string      `json:"subject" yaml:"subject"`
	Version int         `json:"version,omitempty" yaml:"version,omitempty"`
	Detail  string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// NewAuditEntry stamps a new entry.
func NewAuditEntry(action AuditAction, subject string, version int, detail string) AuditEntry {
	return AuditEntry{
		ID:      uuid.New(),
		At:      time.Now().UTC(),
		Action:  action,
		Subject: subject,
		Version: version,
		Detail:  detail,
	}
}
