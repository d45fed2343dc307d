// Package notice orchestrates the notice lifecycle: validate, persist the
// attachment, record the row, and signal connected viewers.
package notice

import (
	"context"
	"fmt"
	"io"
	"strings"

	"noticeboard/internal/broadcast"
	"noticeboard/internal/store"
	"noticeboard/internal/upload"
	"noticeboard/pkg/types"

	"github.com/sirupsen/logrus"
)

type Service struct {
	logger      *logrus.Logger
	notices     *store.NoticeRepository
	uploader    *upload.Uploader
	broadcaster broadcast.Broadcaster
}

func New(
	logger *logrus.Logger,
	notices *store.NoticeRepository,
	uploader *upload.Uploader,
	broadcaster broadcast.Broadcaster,
) *Service {
	return &Service{
		logger:      logger,
		notices:     notices,
		uploader:    uploader,
		broadcaster: broadcaster,
	}
}

// Add validates the title and file, stores both, and publishes the update
// signal. The file write and the row insert are not transactional: if the
// insert fails the stored file is removed best-effort, so a crash between
// the two can still orphan a file.
func (s *Service) Add(ctx context.Context, title, filename string, src io.Reader) (*types.Notice, error) {
	if strings.TrimSpace(title) == "" {
		return nil, types.ErrMissingTitle
	}

	path, fileType, err := s.uploader.Save(filename, src)
	if err != nil {
		return nil, err
	}

	n := &types.Notice{
		Title:    title,
		FilePath: &path,
		FileType: fileType,
	}

	if err := s.notices.CreateNotice(ctx, n); err != nil {
		if removeErr := s.uploader.Remove(path); removeErr != nil {
			s.logger.WithError(removeErr).WithField("path", path).Warn("failed to clean up orphaned upload")
		}
		return nil, fmt.Errorf("create notice: %w", err)
	}

	s.broadcaster.Publish(broadcast.EventNoticesUpdated)

	return n, nil
}

// Remove deletes the notice row and its file, then publishes the update
// signal. A missing file is tolerated; a missing row is ErrNoticeNotFound
// and leaves state unchanged.
func (s *Service) Remove(ctx context.Context, noticeID int64) error {
	n, err := s.notices.Notice(ctx, noticeID)
	if err != nil {
		return err
	}

	if n.FilePath != nil {
		if err := s.uploader.Remove(*n.FilePath); err != nil {
			s.logger.WithError(err).WithField("path", *n.FilePath).Warn("failed to remove notice file")
		}
	}

	if err := s.notices.DeleteNotice(ctx, noticeID); err != nil {
		return err
	}

	s.broadcaster.Publish(broadcast.EventNoticesUpdated)

	return nil
}

// List returns every notice, newest first. No authentication required.
func (s *Service) List(ctx context.Context) ([]*types.Notice, error) {
	return s.notices.Notices(ctx)
}
