// Package sqlite - хранилище задач на GORM и SQLite для локального запуска без PostgreSQL.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type taskRecord struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Title       string     `gorm:"size:100;not null"`
	Description *string    `gorm:"size:500"`
	Status      string     `gorm:"size:16;not null;default:Pending;index"`
	CreatedAt   time.Time  `gorm:"not null;index"`
	CompletedAt *time.Time
}

func (taskRecord) TableName() string {
	return "tasks"
}

func toRecord(t *task.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func (r taskRecord) toTask() *task.Task {
	t := &task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.CompletedAt != nil {
		ca := r.CompletedAt.UTC()
		t.CompletedAt = &ca
	}
	return t
}

type Storage struct {
	db *gorm.DB
}

func New(path string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.New(logger.Std(), gormlogger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		logger.Error("Repository: Не удалось открыть SQLite", err, zap.String("path", path))
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("получение sql.DB: %w", err)
	}
	// один писатель, к тому же :memory: живёт в рамках одного соединения
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		_ = sqlDB.Close()
		logger.Error("Repository: Не удалось применить миграции SQLite", err)
		return nil, fmt.Errorf("миграция sqlite: %w", err)
	}

	logger.Info("Repository: Успешное открытие SQLite", zap.String("path", path))
	return &Storage{db: db}, nil
}

func (s *Storage) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("Repository: SQLite закрыта")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("получение sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Insert(ctx context.Context, taskToCreate *task.Task) (*task.Task, error) {
	rec := toRecord(taskToCreate)
	rec.ID = 0

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err)
		return nil, fmt.Errorf("добавление задачи: %w", err)
	}
	return rec.toTask(), nil
}

func (s *Storage) FindByID(ctx context.Context, id int64) (*task.Task, error) {
	var rec taskRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err)
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return rec.toTask(), nil
}

func (s *Storage) FindAll(ctx context.Context) ([]*task.Task, error) {
	var recs []taskRecord
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&recs).Error; err != nil {
		logger.Error("Repository: Не удалось получить задачи", err)
		return nil, fmt.Errorf("получение задач: %w", err)
	}

	tasks := make([]*task.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, rec.toTask())
	}
	return tasks, nil
}

func (s *Storage) Replace(ctx context.Context, taskToUpdate *task.Task) (bool, error) {
	// map, чтобы nil-поля тоже записались
	res := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("id = ?", taskToUpdate.ID).
		Updates(map[string]any{
			"title":        taskToUpdate.Title,
			"description":  taskToUpdate.Description,
			"status":       string(taskToUpdate.Status),
			"completed_at": taskToUpdate.CompletedAt,
		})
	if res.Error != nil {
		logger.Error("Repository: Не удалось обновить задачу", res.Error)
		return false, fmt.Errorf("обновление задачи: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Storage) Delete(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if res.Error != nil {
		logger.Error("Repository: Полное удаление задачи", res.Error)
		return false, fmt.Errorf("полное удаление: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
