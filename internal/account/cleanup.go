package account

import (
	"context"
	"log/slog"
)

// CleanupReport summarizes one run of the duplicate-email maintenance action.
type CleanupReport struct {
	Groups      []EmailGroup
	Deactivated []Account
	DryRun      bool
}

// CleanupService resolves duplicate-email account groups by deactivating all
// but the most-recently-created account per group. Nothing is ever deleted.
type CleanupService struct {
	repo   *Repository
	logger *slog.Logger
}

func NewCleanupService(repo *Repository, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		repo:   repo,
		logger: logger,
	}
}

func (s *CleanupService) Run(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	groups, err := s.repo.ListDuplicateEmailGroups(ctx)
	if err != nil {
		return nil, err
	}

	report := &CleanupReport{Groups: groups, DryRun: dryRun}
	if dryRun || len(groups) == 0 {
		return report, nil
	}

	for _, group := range groups {
		// Accounts come back newest first; the head of the group survives.
		keep := group.Accounts[0]
		s.logger.Info("keeping account",
			"email", group.Email,
			"username", keep.Username,
			"id", keep.ID,
		)
		for _, acct := range group.Accounts[1:] {
			if err := s.repo.Deactivate(ctx, acct.ID); err != nil {
				return nil, err
			}
			s.logger.Info("deactivated account",
				"email", group.Email,
				"username", acct.Username,
				"id", acct.ID,
			)
			report.Deactivated = append(report.Deactivated, acct)
		}
	}

	return report, nil
}
