package repository

import (
	"context"
	"errors"

	"bopus/model"

	"gorm.io/gorm"
)

// 分页上限
const maxListLimit = 200

// RunRepository 切分运行历史数据访问接口
type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, limit, offset int) ([]*model.Run, error)
	Count(ctx context.Context) (int64, error)
}

// gormRunRepository GORM 实现
type gormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository 创建 GORM 运行历史仓库
func NewGormRunRepository(db *gorm.DB) RunRepository {
	return &gormRunRepository{db: db}
}

// Create 保存一次运行
func (r *gormRunRepository) Create(ctx context.Context, run *model.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID 根据ID获取运行记录，不存在返回 nil, nil
func (r *gormRunRepository) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List 按创建时间倒序分页
func (r *gormRunRepository) List(ctx context.Context, limit, offset int) ([]*model.Run, error) {
	limit, offset = NormalizePage(limit, offset)
	var runs []*model.Run
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, err
}

// Count 运行记录总数
func (r *gormRunRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Run{}).Count(&count).Error
	return count, err
}

// NormalizePage 修正分页参数
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
