package repository

import (
	"context"
	"errors"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoStatistics    = errors.New("no statistics recorded")
	ErrNoCSVStatistics = errors.New("no csv statistics recorded")
)

type StatisticsRepository interface {
	UpsertAppStatistics(s *domain.AppStatistics) error
	UpsertVideoStatistics(s *domain.VideoStatistics) error
	UpsertFloorStatistics(s *domain.FloorStatistics) error
	LatestAppStatisticsDate(adminUserID uint) (string, error)
	AppStatisticsByDate(adminUserID uint, date string) ([]domain.AppStatistics, error)
	AppStatisticsByDevice(adminUserID uint, deviceID string) ([]domain.AppStatistics, error)
	LatestAppStatistics(adminUserID uint) (*domain.AppStatistics, error)
	ListVideoStatistics(adminUserID uint) ([]domain.VideoStatistics, error)
	ListFloorStatistics(adminUserID uint) ([]domain.FloorStatistics, error)
	DistinctDeviceIDs(adminUserID uint) ([]string, error)
	SaveCSV(csv *domain.CSVStatistics) error
	LatestCSV(adminUserID uint) (*domain.CSVStatistics, error)
	DeleteAppStatisticsByAdminUserID(adminUserID uint) error
	DeleteVideoStatisticsByAdminUserID(adminUserID uint) error
	DeleteFloorStatisticsByAdminUserID(adminUserID uint) error
	DeleteCSVStatisticsByAdminUserID(adminUserID uint) error
}

type GormStatisticsRepository struct{ db *gorm.DB }

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &GormStatisticsRepository{db: db}
}

// UpsertAppStatistics replaces the daily snapshot keyed by (admin_user_id,
// device_id, date). Syncing twice on the same day updates the one row.
func (r *GormStatisticsRepository) UpsertAppStatistics(s *domain.AppStatistics) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "admin_user_id"}, {Name: "device_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_videos", "videos_with_views", "total_views", "total_floors", "total_rooms",
			"pie_chart_video_count", "line_chart_video_count", "bar_chart_video_count",
			"line_race_video_count", "time_range_start", "time_range_end", "updated_at",
		}),
	}).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "app_statistics", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "app_statistics", "upsert", "success")
	return nil
}

// UpsertVideoStatistics replaces the row keyed by (admin_user_id, video_id),
// view_history included. Replace, not merge: the payload's history is the
// truth for that video.
func (r *GormStatisticsRepository) UpsertVideoStatistics(s *domain.VideoStatistics) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "admin_user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"device_id", "video_title", "views", "last_viewed", "view_history", "updated_at",
		}),
	}).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "video_statistics", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "video_statistics", "upsert", "success")
	return nil
}

func (r *GormStatisticsRepository) UpsertFloorStatistics(s *domain.FloorStatistics) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "admin_user_id"}, {Name: "floor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"floor_name", "room_count", "updated_at",
		}),
	}).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "floor_statistics", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "floor_statistics", "upsert", "success")
	return nil
}

func (r *GormStatisticsRepository) LatestAppStatisticsDate(adminUserID uint) (string, error) {
	var s domain.AppStatistics
	err := r.db.Where("admin_user_id = ?", adminUserID).
		Order("date DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "app_statistics", "latest_date", "not_found")
			return "", ErrNoStatistics
		}
		observability.RecordRepositoryOperation(context.Background(), "app_statistics", "latest_date", "error")
		return "", err
	}
	observability.RecordRepositoryOperation(context.Background(), "app_statistics", "latest_date", "success")
	return s.Date, nil
}

func (r *GormStatisticsRepository) AppStatisticsByDate(adminUserID uint, date string) ([]domain.AppStatistics, error) {
	var rows []domain.AppStatistics
	err := r.db.Where("admin_user_id = ? AND date = ?", adminUserID, date).
		Order("device_id ASC").
		Find(&rows).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "app_statistics", "by_date", "error")
		return rows, err
	}
	observability.RecordRepositoryOperation(context.Background(), "app_statistics", "by_date", "success")
	return rows, nil
}

func (r *GormStatisticsRepository) AppStatisticsByDevice(adminUserID uint, deviceID string) ([]domain.AppStatistics, error) {
	var rows []domain.AppStatistics
	err := r.db.Where("admin_user_id = ? AND device_id = ?", adminUserID, deviceID).
		Order("date DESC").
		Find(&rows).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "app_statistics", "by_device", "error")
		return rows, err
	}
	observability.RecordRepositoryOperation(context.Background(), "app_statistics", "by_device", "success")
	return rows, nil
}

func (r *GormStatisticsRepository) LatestAppStatistics(adminUserID uint) (*domain.AppStatistics, error) {
	var s domain.AppStatistics
	err := r.db.Where("admin_user_id = ?", adminUserID).
		Order("date DESC, updated_at DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "app_statistics", "latest", "not_found")
			return nil, ErrNoStatistics
		}
		observability.RecordRepositoryOperation(context.Background(), "app_statistics", "latest", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "app_statistics", "latest", "success")
	return &s, nil
}

func (r *GormStatisticsRepository) ListVideoStatistics(adminUserID uint) ([]domain.VideoStatistics, error) {
	var rows []domain.VideoStatistics
	err := r.db.Where("admin_user_id = ?", adminUserID).
		Order("views DESC").
		Find(&rows).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "video_statistics", "list", "error")
		return rows, err
	}
	observability.RecordRepositoryOperation(context.Background(), "video_statistics", "list", "success")
	return rows, nil
}

func (r *GormStatisticsRepository) ListFloorStatistics(adminUserID uint) ([]domain.FloorStatistics, error) {
	var rows []domain.FloorStatistics
	err := r.db.Where("admin_user_id = ?", adminUserID).
		Order("floor_id ASC").
		Find(&rows).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "floor_statistics", "list", "error")
		return rows, err
	}
	observability.RecordRepositoryOperation(context.Background(), "floor_statistics", "list", "success")
	return rows, nil
}

// DistinctDeviceIDs collects every device id that ever wrote a statistics
// row for the admin user, across the app and video tables. Devices with no
// surviving session still show up here.
func (r *GormStatisticsRepository) DistinctDeviceIDs(adminUserID uint) ([]string, error) {
	var fromApp []string
	if err := r.db.Model(&domain.AppStatistics{}).
		Where("admin_user_id = ? AND device_id <> ''", adminUserID).
		Distinct("device_id").
		Pluck("device_id", &fromApp).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "app_statistics", "distinct_devices", "error")
		return nil, err
	}
	var fromVideo []string
	if err := r.db.Model(&domain.VideoStatistics{}).
		Where("admin_user_id = ? AND device_id <> ''", adminUserID).
		Distinct("device_id").
		Pluck("device_id", &fromVideo).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "video_statistics", "distinct_devices", "error")
		return nil, err
	}

	seen := make(map[string]struct{}, len(fromApp)+len(fromVideo))
	ids := make([]string, 0, len(fromApp)+len(fromVideo))
	for _, id := range append(fromApp, fromVideo...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	observability.RecordRepositoryOperation(context.Background(), "statistics", "distinct_devices", "success")
	return ids, nil
}

func (r *GormStatisticsRepository) SaveCSV(csv *domain.CSVStatistics) error {
	if err := r.db.Create(csv).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "csv_statistics", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "csv_statistics", "save", "success")
	return nil
}

func (r *GormStatisticsRepository) LatestCSV(adminUserID uint) (*domain.CSVStatistics, error) {
	var s domain.CSVStatistics
	err := r.db.Where("admin_user_id = ?", adminUserID).
		Order("updated_at DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "csv_statistics", "latest", "not_found")
			return nil, ErrNoCSVStatistics
		}
		observability.RecordRepositoryOperation(context.Background(), "csv_statistics", "latest", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "csv_statistics", "latest", "success")
	return &s, nil
}

func (r *GormStatisticsRepository) DeleteAppStatisticsByAdminUserID(adminUserID uint) error {
	return r.deleteByAdmin(adminUserID, "app_statistics", &domain.AppStatistics{})
}

func (r *GormStatisticsRepository) DeleteVideoStatisticsByAdminUserID(adminUserID uint) error {
	return r.deleteByAdmin(adminUserID, "video_statistics", &domain.VideoStatistics{})
}

func (r *GormStatisticsRepository) DeleteFloorStatisticsByAdminUserID(adminUserID uint) error {
	return r.deleteByAdmin(adminUserID, "floor_statistics", &domain.FloorStatistics{})
}

func (r *GormStatisticsRepository) DeleteCSVStatisticsByAdminUserID(adminUserID uint) error {
	return r.deleteByAdmin(adminUserID, "csv_statistics", &domain.CSVStatistics{})
}

func (r *GormStatisticsRepository) deleteByAdmin(adminUserID uint, entity string, model any) error {
	err := r.db.Where("admin_user_id = ?", adminUserID).Delete(model).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), entity, "delete_by_admin_user_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), entity, "delete_by_admin_user_id", "success")
	return nil
}
