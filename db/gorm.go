package db

import (
	"fmt"
	"time"

	"bopus/config"
	"bopus/logger"
	"bopus/model"

	sqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB 是 GORM 数据库连接实例
var GormDB *gorm.DB

// BuildDSN 由配置生成 MySQL DSN，密码中的特殊字符由驱动负责转义
func BuildDSN(cfg *config.Config) string {
	c := sqldriver.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPassword
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort)
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.Local
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// ConnectGormDB 建立 GORM 数据库连接并迁移运行记录表
func ConnectGormDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(BuildDSN(cfg)), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.Run{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate models: %w", err)
	}

	GormDB = db
	logger.Info("数据库连接成功",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return db, nil
}

// CloseGormDB 关闭 GORM 数据库连接
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}
	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}
	GormDB = nil
	return sqlDB.Close()
}
