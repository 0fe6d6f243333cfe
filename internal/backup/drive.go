package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	DefaultDriveFolderName = "workoutlog-backup"
	driveFolderMimeType    = "application/vnd.google-apps.folder"
)

// DriveArchiver uploads snapshots into one Google Drive folder, created on
// first use when missing.
type DriveArchiver struct {
	service  *drive.Service
	folderId string
}

func NewDriveArchiver(ctx context.Context, folderName string, opts ...option.ClientOption) (*DriveArchiver, error) {
	if folderName == "" {
		folderName = DefaultDriveFolderName
	}

	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve drive client: %w", err)
	}

	a := &DriveArchiver{service: driveService}
	folderId, err := a.findFolder(ctx, folderName)
	if err != nil {
		return nil, err
	}

	if folderId == "" {
		log.Printf("backups folder [%s] not found, creating it", folderName)
		folderId, err = a.createFolder(ctx, folderName)
		if err != nil {
			return nil, fmt.Errorf("create backups folder: %w", err)
		}
		log.Printf("new backups folder created: %s", folderId)
	} else {
		log.Debugf("found backups folder ID: %s", folderId)
	}

	a.folderId = folderId
	return a, nil
}

func (a *DriveArchiver) Name() string {
	return "gdrive"
}

func (a *DriveArchiver) Upload(ctx context.Context, name string, data []byte) (string, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: "text/csv",
		Parents:  []string{a.folderId},
	}
	f, err := a.service.
		Files.Create(meta).
		Fields("id, name").
		Media(bytes.NewReader(data), googleapi.ContentType("text/csv")).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create drive file %s: %w", name, err)
	}
	return "gdrive://" + f.Id, nil
}

func (a *DriveArchiver) findFolder(ctx context.Context, folderName string) (string, error) {
	query := fmt.Sprintf(
		"mimeType = '%s' and trashed = false and name = '%s'",
		driveFolderMimeType, strings.ReplaceAll(folderName, "'", `\'`),
	)
	list, err := a.service.
		Files.List().
		Q(query).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("list drive folders: %w", err)
	}

	switch len(list.Files) {
	case 0:
		return "", nil
	case 1:
		return list.Files[0].Id, nil
	default:
		log.Warnf("found %d backups folders, will take the first one: %s", len(list.Files), list.Files[0].Id)
		return list.Files[0].Id, nil
	}
}

func (a *DriveArchiver) createFolder(ctx context.Context, folderName string) (string, error) {
	f, err := a.service.
		Files.Create(&drive.File{
			Name:     folderName,
			MimeType: driveFolderMimeType,
		}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}
