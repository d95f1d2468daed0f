package domain

import (
	"fmt"
	"strings"
	"time"
)

// LogAction tags an automation log entry.
type LogAction string

const (
	LogActionSequencing      LogAction = "sequencing"
	LogActionPriorityFlag    LogAction = "priority_flag"
	LogActionAdminReportSent LogAction = "admin_report_sent"
	LogActionError           LogAction = "error"
)

func (a LogAction) String() string { return string(a) }

func (a LogAction) IsValid() bool {
	switch a {
	case LogActionSequencing, LogActionPriorityFlag, LogActionAdminReportSent, LogActionError:
		return true
	}
	return false
}

func ParseLogActionFromString(s string) (LogAction, error) {
	a := LogAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: invalid automation action %q", ErrValidation, s)
	}
	return a, nil
}

// AutomationLogEntry is an append-only audit record of an automated action.
type AutomationLogEntry struct {
	ID        string
	Action    LogAction
	ClientID  *string
	Timestamp time.Time
	Details   map[string]any
}

// AutomationSettings is the single global automation control record.
type AutomationSettings struct {
	Paused    bool
	UpdatedBy string
	UpdatedAt time.Time
}
