package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	regularizationapp "github.com/rentflow/backend/internal/application/regularization"
	"go.uber.org/zap"
)

// LoggingSender renders each statement and records the delivery in the log
// instead of talking to a mail gateway. With an output directory it also
// writes the rendered document there, one file per lease.
type LoggingSender struct {
	renderer  *Renderer
	logger    *zap.Logger
	outputDir string
}

var _ regularizationapp.DocumentSender = (*LoggingSender)(nil)

// SenderOption configures a LoggingSender
type SenderOption func(*LoggingSender)

// WithOutputDir writes rendered documents under dir
func WithOutputDir(dir string) SenderOption {
	return func(s *LoggingSender) {
		s.outputDir = dir
	}
}

// NewLoggingSender creates a sender with the default statement template
func NewLoggingSender(logger *zap.Logger, opts ...SenderOption) (*LoggingSender, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LoggingSender{renderer: renderer, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return s, nil
}

// Send implements regularizationapp.DocumentSender
func (s *LoggingSender) Send(ctx context.Context, req regularizationapp.DeliveryRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Tenant.Email == "" {
		return fmt.Errorf("tenant %s has no email address", req.Tenant.ID)
	}

	doc, err := s.renderer.Render(req)
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("to", doc.To),
		zap.String("subject", doc.Subject),
		zap.String("lease_id", req.Statement.LeaseID),
		zap.Int64("balance_cents", req.Statement.BalanceCents),
		zap.Int("size_bytes", len(doc.Body)),
	}
	if s.outputDir != "" {
		path := filepath.Join(s.outputDir, doc.FileName)
		if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fields = append(fields, zap.String("path", path))
	}

	s.logger.Info("Regularization statement delivered", fields...)
	return nil
}
