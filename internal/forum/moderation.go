package forum

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/alphabot-ai/commons/internal/model"
	"github.com/alphabot-ai/commons/internal/observability"
	"github.com/alphabot-ai/commons/internal/store"
)

const DefaultReportReason = "No reason given."

// SubmitReport files an unresolved report from the active identity against
// target.
func (s *State) SubmitReport(ctx context.Context, target, reason string) (model.Report, error) {
	var filed model.Report
	err := s.run(ctx, "submit_report", func(t *txn) error {
		acc, err := s.active()
		if err != nil {
			return err
		}
		target = strings.TrimSpace(target)
		if target == "" {
			return ErrBlankTarget
		}
		if target == acc.Username {
			return ErrSelfReport
		}
		if _, ok := s.accounts[target]; !ok {
			return ErrNoSuchAccount
		}
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = DefaultReportReason
		}

		filed = model.Report{
			ID:       s.newID(),
			Target:   target,
			Reporter: acc.Username,
			Reason:   reason,
			Time:     s.now(),
		}
		reports := append(slices.Clone(s.reports), filed)
		t.stage(store.KeyReports, reports, func() { s.reports = reports })
		return nil
	})
	if err != nil {
		return model.Report{}, err
	}
	return filed, nil
}

// ResolveBan bans target and closes the report. minutes == 0 bans
// permanently. An existing ban record is overwritten.
func (s *State) ResolveBan(ctx context.Context, reportID, target string, minutes int) error {
	return s.resolve(ctx, "resolve_ban", reportID, target, model.ActionBan, func(t *txn, admin model.Account) error {
		if minutes < 0 {
			return ErrInvalidDuration
		}
		if target == admin.Username {
			return ErrSelfBan
		}
		var ban model.Ban
		if minutes > 0 {
			until := s.now().Add(time.Duration(minutes) * time.Minute)
			ban.Until = &until
		}
		bans := maps.Clone(s.bans)
		bans[target] = ban
		t.stage(store.KeyBans, bans, func() { s.bans = bans })
		return nil
	})
}

// ResolveWarn adds one warning to target and closes the report.
func (s *State) ResolveWarn(ctx context.Context, reportID, target string) error {
	return s.resolve(ctx, "resolve_warn", reportID, target, model.ActionWarn, func(t *txn, _ model.Account) error {
		warnings := maps.Clone(s.warnings)
		warnings[target]++
		t.stage(store.KeyWarnings, warnings, func() { s.warnings = warnings })
		return nil
	})
}

// ResolveIgnore closes the report without touching its target.
func (s *State) ResolveIgnore(ctx context.Context, reportID string) error {
	return s.resolve(ctx, "resolve_ignore", reportID, "", model.ActionIgnore, nil)
}

// resolve moves an unresolved report to its terminal action. An empty
// target skips the target check.
func (s *State) resolve(ctx context.Context, op, reportID, target string, action model.ReportAction,
	effect func(*txn, model.Account) error) error {
	err := s.run(ctx, op, func(t *txn) error {
		admin, err := s.admin()
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(s.reports, func(r model.Report) bool { return r.ID == reportID })
		if idx < 0 {
			return ErrNoSuchReport
		}
		if s.reports[idx].Resolved {
			return ErrAlreadyResolved
		}
		if target != "" && s.reports[idx].Target != target {
			return ErrTargetMismatch
		}
		if effect != nil {
			if err := effect(t, admin); err != nil {
				return err
			}
		}

		reports := slices.Clone(s.reports)
		reports[idx].Resolved = true
		reports[idx].Action = action
		t.stage(store.KeyReports, reports, func() { s.reports = reports })
		return nil
	})
	if err == nil {
		observability.ReportsResolved.WithLabelValues(string(action)).Inc()
	}
	return err
}

// Reports returns every report in filing order.
func (s *State) Reports() []model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.reports)
}

// OpenReports returns the unresolved reports in filing order.
func (s *State) OpenReports() []model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Report{}
	for _, r := range s.reports {
		if !r.Resolved {
			out = append(out, r)
		}
	}
	return out
}

func (s *State) Report(id string) (model.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ID == id {
			return r, true
		}
	}
	return model.Report{}, false
}

func (s *State) Warnings(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings[username]
}

// Ban returns the stored ban record for username, lapsed or not.
func (s *State) Ban(username string) (model.Ban, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bans[username]
	if ok && b.Until != nil {
		until := *b.Until
		b.Until = &until
	}
	return b, ok
}
