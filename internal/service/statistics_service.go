package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// FlexTime accepts the timestamp shapes devices actually send: RFC 3339
// strings, epoch milliseconds, or epoch seconds. Anything unparseable
// decodes to nil instead of failing the whole payload.
type FlexTime struct {
	value *time.Time
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		f.value = nil
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		unquoted := strings.Trim(raw, `"`)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, unquoted); err == nil {
				f.value = &t
				return nil
			}
		}
		f.value = nil
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n <= 0 {
		f.value = nil
		return nil
	}
	// Values beyond 1e11 cannot be plausible epoch seconds.
	var t time.Time
	if n > 1e11 {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		t = time.Unix(int64(n), 0).UTC()
	}
	f.value = &t
	return nil
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(f.value.UTC().Format(time.RFC3339))), nil
}

func (f FlexTime) Time() *time.Time { return f.value }

type VideoPayload struct {
	VideoID     string         `json:"video_id" validate:"required"`
	VideoTitle  string         `json:"video_title"`
	Views       int64          `json:"views"`
	LastViewed  FlexTime       `json:"last_viewed"`
	ViewHistory map[string]int `json:"view_history"`
}

type FloorPayload struct {
	FloorID   string `json:"floor_id" validate:"required"`
	FloorName string `json:"floor_name"`
	RoomCount int    `json:"room_count"`
}

type CSVPayload struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// SyncPayload is the per-device statistics snapshot pushed by the app.
type SyncPayload struct {
	TotalVideos         int            `json:"total_videos"`
	VideosWithViews     int            `json:"videos_with_views"`
	TotalViews          int64          `json:"total_views"`
	TotalFloors         int            `json:"total_floors"`
	TotalRooms          int            `json:"total_rooms"`
	PieChartVideoCount  int            `json:"pie_chart_video_count"`
	LineChartVideoCount int            `json:"line_chart_video_count"`
	BarChartVideoCount  int            `json:"bar_chart_video_count"`
	LineRaceVideoCount  int            `json:"line_race_video_count"`
	TimeRangeStart      FlexTime       `json:"time_range_start"`
	TimeRangeEnd        FlexTime       `json:"time_range_end"`
	Videos              []VideoPayload `json:"videos"`
	Floors              []FloorPayload `json:"floors"`
	CSV                 *CSVPayload    `json:"csv,omitempty"`
}

// SyncResult reports what the sync managed to store. Secondary failures
// show up in the failed counts instead of failing the call.
type SyncResult struct {
	Date         string `json:"date"`
	VideosSynced int    `json:"videos_synced"`
	VideosFailed int    `json:"videos_failed"`
	FloorsSynced int    `json:"floors_synced"`
	FloorsFailed int    `json:"floors_failed"`
	CSVStored    bool   `json:"csv_stored"`
}

// StatisticsReport is the aggregate answer for the dashboard.
type StatisticsReport struct {
	Source          string                   `json:"source"`
	Date            string                   `json:"date,omitempty"`
	DeviceID        string                   `json:"device_id,omitempty"`
	TotalVideos     int                      `json:"total_videos"`
	VideosWithViews int                      `json:"videos_with_views"`
	TotalViews      int64                    `json:"total_views"`
	TotalFloors     int                      `json:"total_floors"`
	TotalRooms      int                      `json:"total_rooms"`
	ChartCounts     ChartCounts              `json:"chart_counts"`
	History         []domain.AppStatistics   `json:"history"`
	Videos          []domain.VideoStatistics `json:"videos"`
	Floors          []domain.FloorStatistics `json:"floors"`
}

type ChartCounts struct {
	Pie      int `json:"pie"`
	Line     int `json:"line"`
	Bar      int `json:"bar"`
	LineRace int `json:"line_race"`
}

// Report sources, in order of preference.
const (
	reportSourceDaily   = "daily_aggregate"
	reportSourceLatest  = "latest_snapshot"
	reportSourceDerived = "derived"
	reportSourceEmpty   = "empty"
	reportSourceDevice  = "device"
)

type StatisticsService struct {
	stats  repository.StatisticsRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewStatisticsService(stats repository.StatisticsRepository, logger *slog.Logger) *StatisticsService {
	return &StatisticsService{
		stats:  stats,
		logger: logger,
		now:    time.Now,
	}
}

// Sync stores a device snapshot. The daily app row is the one write that can
// fail the call; video, floor, and csv writes are best effort and only
// logged, so one bad record never loses the rest of the snapshot.
func (s *StatisticsService) Sync(ctx context.Context, adminUserID uint, deviceID string, payload *SyncPayload) (*SyncResult, error) {
	now := s.now().UTC()
	date := now.Format("2006-01-02")

	app := &domain.AppStatistics{
		AdminUserID:         adminUserID,
		DeviceID:            deviceID,
		Date:                date,
		TotalVideos:         payload.TotalVideos,
		VideosWithViews:     payload.VideosWithViews,
		TotalViews:          payload.TotalViews,
		TotalFloors:         payload.TotalFloors,
		TotalRooms:          payload.TotalRooms,
		PieChartVideoCount:  payload.PieChartVideoCount,
		LineChartVideoCount: payload.LineChartVideoCount,
		BarChartVideoCount:  payload.BarChartVideoCount,
		LineRaceVideoCount:  payload.LineRaceVideoCount,
		TimeRangeStart:      payload.TimeRangeStart.Time(),
		TimeRangeEnd:        payload.TimeRangeEnd.Time(),
	}
	if err := s.stats.UpsertAppStatistics(app); err != nil {
		observability.RecordStatisticsSync("error")
		return nil, err
	}

	result := &SyncResult{Date: date}
	for _, video := range payload.Videos {
		row := &domain.VideoStatistics{
			AdminUserID: adminUserID,
			DeviceID:    deviceID,
			VideoID:     video.VideoID,
			VideoTitle:  video.VideoTitle,
			Views:       video.Views,
			LastViewed:  video.LastViewed.Time(),
			ViewHistory: viewHistoryMap(video.ViewHistory),
		}
		if err := s.stats.UpsertVideoStatistics(row); err != nil {
			result.VideosFailed++
			s.logger.WarnContext(ctx, "video statistics upsert failed",
				"admin_user_id", adminUserID, "video_id", video.VideoID, "error", err)
			continue
		}
		result.VideosSynced++
	}
	for _, floor := range payload.Floors {
		row := &domain.FloorStatistics{
			AdminUserID: adminUserID,
			FloorID:     floor.FloorID,
			FloorName:   floor.FloorName,
			RoomCount:   floor.RoomCount,
		}
		if err := s.stats.UpsertFloorStatistics(row); err != nil {
			result.FloorsFailed++
			s.logger.WarnContext(ctx, "floor statistics upsert failed",
				"admin_user_id", adminUserID, "floor_id", floor.FloorID, "error", err)
			continue
		}
		result.FloorsSynced++
	}
	if payload.CSV != nil && payload.CSV.Content != "" {
		csv := &domain.CSVStatistics{
			AdminUserID: adminUserID,
			DeviceID:    deviceID,
			Filename:    payload.CSV.Filename,
			Content:     payload.CSV.Content,
		}
		if err := s.stats.SaveCSV(csv); err != nil {
			s.logger.WarnContext(ctx, "csv statistics save failed",
				"admin_user_id", adminUserID, "error", err)
		} else {
			result.CSVStored = true
		}
	}

	observability.RecordStatisticsSync("success")
	return result, nil
}

// Get answers the dashboard query. A concrete device id returns that
// device's rows; "all" or empty aggregates across devices, walking the
// fallback chain until a source yields data. A brand-new tenant gets a zero
// report, never an error.
func (s *StatisticsService) Get(ctx context.Context, adminUserID uint, deviceID string) (*StatisticsReport, error) {
	videos, floors, err := s.fetchDetail(ctx, adminUserID)
	if err != nil {
		return nil, err
	}

	if deviceID != "" && deviceID != "all" {
		report, err := s.deviceReport(adminUserID, deviceID, videos, floors)
		if err != nil {
			return nil, err
		}
		observability.RecordStatisticsGet(report.Source)
		return report, nil
	}

	report, err := s.aggregateReport(adminUserID, videos, floors)
	if err != nil {
		return nil, err
	}
	observability.RecordStatisticsGet(report.Source)
	return report, nil
}

// fetchDetail loads the video and floor rows concurrently; both lists ride
// along with every report shape.
func (s *StatisticsService) fetchDetail(ctx context.Context, adminUserID uint) ([]domain.VideoStatistics, []domain.FloorStatistics, error) {
	var (
		videos []domain.VideoStatistics
		floors []domain.FloorStatistics
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		videos, err = s.stats.ListVideoStatistics(adminUserID)
		return err
	})
	g.Go(func() error {
		var err error
		floors, err = s.stats.ListFloorStatistics(adminUserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	// Empty reports carry empty arrays, never null.
	if videos == nil {
		videos = []domain.VideoStatistics{}
	}
	if floors == nil {
		floors = []domain.FloorStatistics{}
	}
	return videos, floors, nil
}

func (s *StatisticsService) deviceReport(adminUserID uint, deviceID string, videos []domain.VideoStatistics, floors []domain.FloorStatistics) (*StatisticsReport, error) {
	history, err := s.stats.AppStatisticsByDevice(adminUserID, deviceID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []domain.AppStatistics{}
	}
	deviceVideos := make([]domain.VideoStatistics, 0, len(videos))
	for _, v := range videos {
		if v.DeviceID == deviceID {
			deviceVideos = append(deviceVideos, v)
		}
	}
	report := &StatisticsReport{
		Source:   reportSourceDevice,
		DeviceID: deviceID,
		History:  history,
		Videos:   deviceVideos,
		Floors:   floors,
	}
	if len(history) > 0 {
		latest := history[0]
		report.Date = latest.Date
		report.TotalVideos = latest.TotalVideos
		report.VideosWithViews = latest.VideosWithViews
		report.TotalViews = latest.TotalViews
		report.TotalFloors = latest.TotalFloors
		report.TotalRooms = latest.TotalRooms
		report.ChartCounts = chartCountsOf(&latest)
	}
	return report, nil
}

// aggregateReport walks the fallback chain: sum of the newest day's rows
// across devices, then the newest single snapshot, then totals derived from
// the video and floor tables, then zeros.
func (s *StatisticsService) aggregateReport(adminUserID uint, videos []domain.VideoStatistics, floors []domain.FloorStatistics) (*StatisticsReport, error) {
	report := &StatisticsReport{
		Source:  reportSourceEmpty,
		History: []domain.AppStatistics{},
		Videos:  videos,
		Floors:  floors,
	}

	date, err := s.stats.LatestAppStatisticsDate(adminUserID)
	switch {
	case err == nil:
		rows, err := s.stats.AppStatisticsByDate(adminUserID, date)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			report.Source = reportSourceDaily
			report.Date = date
			report.History = rows
			for i := range rows {
				row := &rows[i]
				report.TotalVideos += row.TotalVideos
				report.VideosWithViews += row.VideosWithViews
				report.TotalViews += row.TotalViews
				report.TotalFloors += row.TotalFloors
				report.TotalRooms += row.TotalRooms
				report.ChartCounts.Pie += row.PieChartVideoCount
				report.ChartCounts.Line += row.LineChartVideoCount
				report.ChartCounts.Bar += row.BarChartVideoCount
				report.ChartCounts.LineRace += row.LineRaceVideoCount
			}
			return report, nil
		}
	case !errors.Is(err, repository.ErrNoStatistics):
		return nil, err
	}

	latest, err := s.stats.LatestAppStatistics(adminUserID)
	switch {
	case err == nil:
		report.Source = reportSourceLatest
		report.Date = latest.Date
		report.History = []domain.AppStatistics{*latest}
		report.TotalVideos = latest.TotalVideos
		report.VideosWithViews = latest.VideosWithViews
		report.TotalViews = latest.TotalViews
		report.TotalFloors = latest.TotalFloors
		report.TotalRooms = latest.TotalRooms
		report.ChartCounts = chartCountsOf(latest)
		return report, nil
	case !errors.Is(err, repository.ErrNoStatistics):
		return nil, err
	}

	if len(videos) > 0 || len(floors) > 0 {
		report.Source = reportSourceDerived
		report.TotalVideos = len(videos)
		for i := range videos {
			report.TotalViews += videos[i].Views
			if videos[i].Views > 0 {
				report.VideosWithViews++
			}
		}
		report.TotalFloors = len(floors)
		for i := range floors {
			report.TotalRooms += floors[i].RoomCount
		}
		return report, nil
	}

	return report, nil
}

// LatestCSV returns the newest CSV export stored for the tenant.
func (s *StatisticsService) LatestCSV(adminUserID uint) (*domain.CSVStatistics, error) {
	csv, err := s.stats.LatestCSV(adminUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNoCSVStatistics) {
			return nil, ErrStatisticsNotFound
		}
		return nil, err
	}
	return csv, nil
}

func chartCountsOf(row *domain.AppStatistics) ChartCounts {
	return ChartCounts{
		Pie:      row.PieChartVideoCount,
		Line:     row.LineChartVideoCount,
		Bar:      row.BarChartVideoCount,
		LineRace: row.LineRaceVideoCount,
	}
}

func viewHistoryMap(history map[string]int) datatypes.JSONMap {
	if history == nil {
		return nil
	}
	m := make(datatypes.JSONMap, len(history))
	for date, count := range history {
		m[date] = count
	}
	return m
}
