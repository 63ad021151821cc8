package service

import (
	"context"
	"time"

	"github.com/kevinaaaquil/writeups/store"
)

const analyticsWindow = 30 * 24 * time.Hour

type StatsStore interface {
	CountWriteups(ctx context.Context) (int64, error)
	CountCategories(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	SumWriteupReads(ctx context.Context) (int64, error)
	CountUsersCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountUsersActiveSince(ctx context.Context, since time.Time) (int64, error)
	UsersPerDay(ctx context.Context, field string, since time.Time) ([]store.DayCount, error)
}

type Overview struct {
	TotalWriteups   int64 `json:"totalWriteups"`
	TotalCategories int64 `json:"totalCategories"`
	TotalUsers      int64 `json:"totalUsers"`
	TotalReads      int64 `json:"totalReads"`
}

type UserAnalytics struct {
	NewUsersToday    int64            `json:"newUsersToday"`
	ActiveUsersToday int64            `json:"activeUsersToday"`
	MonthlyNewUsers  int64            `json:"monthlyNewUsers"`
	DailyActiveUsers []store.DayCount `json:"dailyActiveUsers"`
	UserGrowth       []store.DayCount `json:"userGrowth"`
}

// StatsService reports aggregate counts. It never writes.
type StatsService struct {
	store StatsStore
	now   func() time.Time
}

func NewStatsService(s StatsStore) *StatsService {
	return &StatsService{store: s, now: time.Now}
}

func (s *StatsService) Overview(ctx context.Context) (Overview, error) {
	var (
		o   Overview
		err error
	)
	if o.TotalWriteups, err = s.store.CountWriteups(ctx); err != nil {
		return o, err
	}
	if o.TotalCategories, err = s.store.CountCategories(ctx); err != nil {
		return o, err
	}
	if o.TotalUsers, err = s.store.CountUsers(ctx); err != nil {
		return o, err
	}
	if o.TotalReads, err = s.store.SumWriteupReads(ctx); err != nil {
		return o, err
	}
	return o, nil
}

func (s *StatsService) UserAnalytics(ctx context.Context) (UserAnalytics, error) {
	var (
		a   UserAnalytics
		err error
	)
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthAgo := now.Add(-analyticsWindow)

	if a.NewUsersToday, err = s.store.CountUsersCreatedSince(ctx, startOfDay); err != nil {
		return a, err
	}
	if a.ActiveUsersToday, err = s.store.CountUsersActiveSince(ctx, startOfDay); err != nil {
		return a, err
	}
	if a.MonthlyNewUsers, err = s.store.CountUsersCreatedSince(ctx, monthAgo); err != nil {
		return a, err
	}
	if a.DailyActiveUsers, err = s.store.UsersPerDay(ctx, "lastLogin", monthAgo); err != nil {
		return a, err
	}
	if a.UserGrowth, err = s.store.UsersPerDay(ctx, "createdAt", monthAgo); err != nil {
		return a, err
	}
	return a, nil
}
