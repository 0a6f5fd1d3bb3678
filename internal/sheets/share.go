package sheets

import (
	"context"
	"fmt"

	drive "google.golang.org/api/drive/v3"

	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/instrumentation"
	"github.com/teemow/sheetsgate/internal/logging"
	"github.com/teemow/sheetsgate/internal/tools/batch"
)

// ShareSpreadsheet grants role to each address. A failure for one address
// does not stop the others; outcomes are reported per address.
func (c *Client) ShareSpreadsheet(ctx context.Context, p backend.ShareSpreadsheetParams) (*backend.ShareResult, error) {
	role := p.EffectiveRole()
	if !backend.ValidRole(role) {
		return nil, fmt.Errorf("%w %q: must be one of %v", ErrInvalidRole, role, backend.Roles)
	}
	notify := p.ShouldNotify()

	results := batch.Process(ctx, p.EmailAddresses, func(ctx context.Context, email string) (*drive.Permission, error) {
		return observe(ctx, c, instrumentation.ServiceDrive, "permissions.create", p.SpreadsheetID,
			func(ctx context.Context) (*drive.Permission, error) {
				return c.drive.Permissions.Create(p.SpreadsheetID, &drive.Permission{
					Type:         "user",
					Role:         role,
					EmailAddress: email,
				}).
					SendNotificationEmail(notify).
					TransferOwnership(role == backend.RoleOwner).
					SupportsAllDrives(true).
					Fields("id").
					Context(ctx).
					Do()
			})
	})

	out := &backend.ShareResult{
		Successes: []backend.ShareSuccess{},
		Failures:  []backend.ShareFailure{},
	}
	successes, failures := batch.Split(results)
	for _, r := range successes {
		out.Successes = append(out.Successes, backend.ShareSuccess{
			EmailAddress: r.ID,
			PermissionID: r.Value.Id,
			Role:         role,
		})
	}
	logger := logging.WithOperation(logging.WithService(c.logger, instrumentation.ServiceDrive), "permissions.create")
	for _, r := range failures {
		logger.WarnContext(ctx, "Failed to share spreadsheet",
			logging.SpreadsheetID(p.SpreadsheetID),
			logging.UserHash(r.ID),
			logging.Domain(r.ID),
			logging.Err(r.Err))
		out.Failures = append(out.Failures, backend.ShareFailure{
			EmailAddress: r.ID,
			Error:        r.Err.Error(),
		})
	}
	return out, nil
}
