package bunstore

import (
	"context"
	"fmt"

	"github.com/squidi0n/fluxao-sub000/audit"
)

// Record appends an audit event.
func (s *Store) Record(ctx context.Context, event *audit.Event) error {
	m := toAuditEventModel(event)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: record audit event: %w", err)
	}
	return nil
}
