// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/reqwatch/internal/log"
)

// WriteReport writes the report as JSON, atomically and durably: the data is
// fsynced to a temp file and renamed over the target, so readers never see a
// partial report.
func WriteReport(ctx context.Context, path string, report *Report) error {
	logger := xglog.WithComponentFromContext(ctx, "audit")

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}

	logger.Debug().Str(xglog.FieldPath, path).Str(xglog.FieldRunID, report.RunID).Msg("report written")
	return nil
}
